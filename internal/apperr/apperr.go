// Package apperr defines the application error taxonomy and its mapping to
// HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport mapping.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindUnavailable     Kind = "unavailable"
	KindInternal        Kind = "internal"
	KindOther           Kind = "other"
)

// Error is the error type returned by services for anything a client should see.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Details map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Expose reports whether the error is the client's fault. Server-side failures
// are logged and never carry their cause in production responses.
func (e *Error) Expose() bool {
	return e.Status < http.StatusInternalServerError
}

// WithDetails attaches per-field messages.
func (e *Error) WithDetails(details map[string]string) *Error {
	e.Details = details
	return e
}

// New builds an error with an explicit status for cases outside the named kinds.
func New(status int, message string) *Error {
	return &Error{Kind: KindOther, Status: status, Message: message}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Message: message}
}

func Unauthenticated(message string) *Error {
	return &Error{Kind: KindUnauthenticated, Status: http.StatusUnauthorized, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Status: http.StatusForbidden, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Status: http.StatusNotFound, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Status: http.StatusConflict, Message: message}
}

// Unavailable marks a dependency outage. The cause is kept for logs only.
func Unavailable(message string, cause error) *Error {
	return &Error{Kind: KindUnavailable, Status: http.StatusServiceUnavailable, Message: message, Err: cause}
}

// Internal wraps an unexpected failure.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Message: "internal server error", Err: cause}
}

// From extracts an *Error from err, wrapping anything unknown as Internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	return From(err).Kind
}

// StatusOf returns the HTTP status for err.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return From(err).Status
}
