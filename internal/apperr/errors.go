// Package apperr defines the error kinds reported to API callers and their
// HTTP status mapping.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an application error.
type Kind string

const (
	NotFound            Kind = "NotFound"
	Forbidden           Kind = "Forbidden"
	InvalidState        Kind = "InvalidState"
	Validation          Kind = "ValidationError"
	Conflict            Kind = "Conflict"
	InsufficientBalance Kind = "InsufficientBalance"
	Unauthorized        Kind = "Unauthorized"
	Internal            Kind = "Internal"
)

// Error is an error carrying a Kind and a message safe to show to users.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

// Is reports whether target is an *Error of the same kind, so that
// errors.Is(err, apperr.ErrNotFound) matches any NotFound error.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound            = &Error{Kind: NotFound}
	ErrForbidden           = &Error{Kind: Forbidden}
	ErrInvalidState        = &Error{Kind: InvalidState}
	ErrValidation          = &Error{Kind: Validation}
	ErrConflict            = &Error{Kind: Conflict}
	ErrInsufficientBalance = &Error{Kind: InsufficientBalance}
	ErrUnauthorized        = &Error{Kind: Unauthorized}
)

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func NotFoundf(msg string) *Error     { return New(NotFound, msg) }
func Forbiddenf(msg string) *Error    { return New(Forbidden, msg) }
func InvalidStatef(msg string) *Error { return New(InvalidState, msg) }
func Validationf(msg string) *Error   { return New(Validation, msg) }
func Conflictf(msg string) *Error     { return New(Conflict, msg) }
func Insufficientf(msg string) *Error { return New(InsufficientBalance, msg) }
func Unauthorizedf(msg string) *Error { return New(Unauthorized, msg) }

// KindOf returns the kind of err, or Internal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case NotFound:
		return http.StatusNotFound
	case Forbidden:
		return http.StatusForbidden
	case InvalidState, Conflict:
		return http.StatusConflict
	case Validation:
		return http.StatusBadRequest
	case InsufficientBalance:
		return http.StatusUnprocessableEntity
	case Unauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
