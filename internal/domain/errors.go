package domain

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindForbidden          Kind = "FORBIDDEN"
	KindPreconditionFailed Kind = "PRECONDITION_FAILED"
	KindOutOfOrder         Kind = "OUT_OF_ORDER"
	KindRoleNotEligible    Kind = "ROLE_NOT_ELIGIBLE"
	KindLastOwnerProtected Kind = "LAST_OWNER_PROTECTED"
	KindInvalidArgument    Kind = "INVALID_ARGUMENT"
	KindConflict           Kind = "CONFLICT"
	KindUnavailable        Kind = "UNAVAILABLE"
	KindNotFound           Kind = "NOT_FOUND"
)

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrPreconditionFailed = &Error{Kind: KindPreconditionFailed}
	ErrOutOfOrder         = &Error{Kind: KindOutOfOrder}
	ErrRoleNotEligible    = &Error{Kind: KindRoleNotEligible}
	ErrLastOwnerProtected = &Error{Kind: KindLastOwnerProtected}
	ErrInvalidArgument    = &Error{Kind: KindInvalidArgument}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrUnavailable        = &Error{Kind: KindUnavailable}
	ErrNotFound           = &Error{Kind: KindNotFound}
)

// Error is the typed result of every rejected engine operation.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == "" && t.Err == nil
}

func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Unavailable wraps a storage failure.
func Unavailable(op string, err error) *Error {
	return &Error{Kind: KindUnavailable, Op: op, Err: err}
}

// KindOf returns the kind carried by err, or "" when err is not typed.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
