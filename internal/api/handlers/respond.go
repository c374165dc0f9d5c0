package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/api/middleware"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/domain"
	"go.uber.org/zap"
)

var statusByKind = map[domain.Kind]int{
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

// StatusFor maps an error kind onto its HTTP status.
func StatusFor(err error) int {
	if status, ok := statusByKind[domain.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, logger *zap.Logger, err error) {
	status := StatusFor(err)
	code := string(domain.KindOf(err))
	message := err.Error()

	var de *domain.Error
	if errors.As(err, &de) && de.Msg != "" {
		message = de.Msg
	}
	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		logger.Error("Request failed",
			zap.String("request_id", middleware.RequestID(c)),
			zap.String("route", c.FullPath()),
			zap.Error(err))
		if status == http.StatusInternalServerError {
			code = "INTERNAL"
			message = "Internal server error"
		} else {
			c.Header("Retry-After", "1")
			message = "storage temporarily unavailable"
		}
	}
	middleware.AbortJSON(c, status, code, message)
}

func badRequest(c *gin.Context, message string) {
	middleware.AbortJSON(c, http.StatusBadRequest, string(domain.KindInvalidArgument), message)
}

// principal is set by RequireAuth; every route below it can rely on it.
func principal(c *gin.Context) (domain.Principal, bool) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		middleware.AbortJSON(c, http.StatusUnauthorized, "UNAUTHENTICATED", "missing principal")
	}
	return p, ok
}

func groupParam(c *gin.Context) (domain.Group, bool) {
	g, ok := domain.ParseGroup(c.Param("group"))
	if !ok {
		badRequest(c, "unknown group "+c.Param("group"))
	}
	return g, ok
}

// bind decodes an optional JSON body. An empty body leaves v untouched.
func bind(c *gin.Context, v any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil {
		badRequest(c, "malformed request body: "+err.Error())
		return false
	}
	return true
}
