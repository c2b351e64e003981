package ai

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMalformedResponse indicates the model did not return valid structured
// data after cleanup. Callers surface it to the user; nothing is persisted.
var ErrMalformedResponse = errors.New("model response is not valid structured data")

// ErrorKind classifies upstream model API failures by status code, not by
// matching substrings in error text.
type ErrorKind string

const (
	KindRateLimited  ErrorKind = "rate_limited"
	KindUnauthorized ErrorKind = "unauthorized"
	KindUnavailable  ErrorKind = "upstream_unavailable"
	KindBadRequest   ErrorKind = "bad_request"
)

// APIError is a typed upstream model API failure.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("model api %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("model api %s (status %d)", e.Kind, e.StatusCode)
}

// classifyStatus maps an HTTP status to an error kind.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindUnauthorized
	case status >= 500:
		return KindUnavailable
	default:
		return KindBadRequest
	}
}

// newAPIError builds a typed error from an upstream response.
func newAPIError(status int, message string) *APIError {
	return &APIError{
		Kind:       classifyStatus(status),
		StatusCode: status,
		Message:    message,
	}
}

// newTransportError marks connection-level failures as upstream unavailable.
func newTransportError(err error) *APIError {
	return &APIError{
		Kind:    KindUnavailable,
		Message: err.Error(),
	}
}
