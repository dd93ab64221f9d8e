// Package apperror defines the closed set of failure classes surfaced by the API
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure for the HTTP boundary
type Kind string

const (
	KindValidation     Kind = "ValidationError"
	KindSessionInvalid Kind = "SessionInvalid"
	KindUpstream       Kind = "UpstreamApiError"
	KindPartialCommit  Kind = "PartialCommitFailure"
	KindInternal       Kind = "Internal"
)

// Error is a classified failure with a human readable message and optional details
type Error struct {
	Kind    Kind
	Message string
	Details string
	// Status overrides the default status for the kind when non-zero
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the status code the error maps to
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindSessionInvalid:
		return http.StatusUnauthorized
	case KindPartialCommit:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// Validation returns a 400 class error
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// SessionInvalid returns a 401 class error
func SessionInvalid(message string) *Error {
	return &Error{Kind: KindSessionInvalid, Message: message}
}

// Upstream wraps a failure reported by the hosting provider
func Upstream(message string, status int, err error) *Error {
	e := &Error{Kind: KindUpstream, Message: message, Status: status, Err: err}
	if err != nil {
		e.Details = err.Error()
	}
	return e
}

// PartialCommit reports a commit batch that stopped after applying some operations
func PartialCommit(message, details string) *Error {
	return &Error{Kind: KindPartialCommit, Message: message, Details: details}
}

// Internal wraps an unexpected failure
func Internal(message string, err error) *Error {
	e := &Error{Kind: KindInternal, Message: message, Err: err}
	if err != nil {
		e.Details = err.Error()
	}
	return e
}

// From returns err as an *Error, classifying unknown errors as internal
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("Internal server error", err)
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}
