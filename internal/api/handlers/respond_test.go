package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/domain"
)

func TestStatusFor(t *testing.T) {
	cases := map[domain.Kind]int{
		domain.KindForbidden:          http.StatusForbidden,
		domain.KindPreconditionFailed: http.StatusPreconditionFailed,
		domain.KindOutOfOrder:         http.StatusConflict,
		domain.KindRoleNotEligible:    http.StatusUnprocessableEntity,
		domain.KindLastOwnerProtected: http.StatusConflict,
		domain.KindInvalidArgument:    http.StatusBadRequest,
		domain.KindConflict:           http.StatusConflict,
		domain.KindUnavailable:        http.StatusServiceUnavailable,
		domain.KindNotFound:           http.StatusNotFound,
	}
	for kind, want := range cases {
		err := fmt.Errorf("wrapped: %w", domain.Errorf(kind, "op", "detail"))
		assert.Equal(t, want, StatusFor(err), kind)
	}
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("untyped")))
}
