package gemini

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies an API failure so retry policies can dispatch on the
// variant instead of sniffing provider message strings.
type ErrorKind int

const (
	// KindFatal covers failures that will not go away on retry (bad request,
	// auth, unknown model).
	KindFatal ErrorKind = iota
	// KindRateLimited covers quota exhaustion (HTTP 429, RESOURCE_EXHAUSTED).
	KindRateLimited
	// KindTransient covers server-side errors and malformed responses.
	KindTransient
)

// APIError is a classified failure from the model API.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	switch e.Kind {
	case KindRateLimited:
		return fmt.Sprintf("model API rate limited (status %d): %s", e.StatusCode, e.Message)
	case KindTransient:
		return fmt.Sprintf("model API transient failure (status %d): %s", e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("model API error (status %d): %s", e.StatusCode, e.Message)
	}
}

// IsRateLimited reports whether err carries a rate-limit classification.
func IsRateLimited(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Kind == KindRateLimited
}

// IsTransient reports whether err carries a transient classification
// (server error or malformed response).
func IsTransient(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Kind == KindTransient
}

// IsMalformed reports whether err is a transient failure produced by an
// unusable 2xx response (undecodable body, missing fields) rather than a
// server-side status.
func IsMalformed(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Kind == KindTransient && ae.StatusCode == 200
}

// classifyStatus maps an HTTP status plus response body to an error kind.
// The body check backstops providers that return rate-limit information in
// the error payload with a generic status.
func classifyStatus(status int, body string) ErrorKind {
	if status == 429 {
		return KindRateLimited
	}
	if strings.Contains(body, "RESOURCE_EXHAUSTED") || strings.Contains(body, "quota") {
		return KindRateLimited
	}
	if status >= 500 {
		return KindTransient
	}
	return KindFatal
}
