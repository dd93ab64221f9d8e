package gitapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
)

// ErrorKind classifies a failed upstream call
type ErrorKind string

const (
	KindNotFound      ErrorKind = "not_found"
	KindConflict      ErrorKind = "conflict"
	KindUnprocessable ErrorKind = "unprocessable"
	KindUnauthorized  ErrorKind = "unauthorized"
	KindForbidden     ErrorKind = "forbidden"
	KindRateLimited   ErrorKind = "rate_limited"
	KindTimeout       ErrorKind = "timeout"
	KindTransport     ErrorKind = "transport"
	KindOther         ErrorKind = "other"
)

// ErrNotAFile is returned when a file read targets a directory
var ErrNotAFile = errors.New("path refers to a directory, not a file")

// APIError is a failed upstream call
type APIError struct {
	Op               string
	StatusCode       int
	Message          string
	DocumentationURL string
	Kind             ErrorKind
	Err              error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: upstream status %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the upstream failure to the status reported to the browser
func (e *APIError) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnprocessable:
		return http.StatusUnprocessableEntity
	case KindForbidden:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// AsAPIError unwraps err into an *APIError
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// classifyStatus picks the kind for a non-success response
func classifyStatus(resp *http.Response) ErrorKind {
	switch resp.StatusCode {
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusUnprocessableEntity:
		return KindUnprocessable
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusForbidden:
		if remaining, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining")); err == nil && remaining == 0 {
			return KindRateLimited
		}
		return KindForbidden
	}
	return KindOther
}

// transportError wraps a failure that happened before any response arrived
func transportError(op string, err error) *APIError {
	kind := KindTransport
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	msg := err.Error()
	if kind == KindTimeout {
		msg = "upstream request timed out"
	}
	return &APIError{Op: op, Message: msg, Kind: kind, Err: err}
}
