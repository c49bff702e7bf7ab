package llm

import (
	"errors"
	"fmt"
)

// Sentinel errors for oracle calls.
var (
	// ErrNotConfigured indicates the oracle has no API key.
	ErrNotConfigured = errors.New("llm: api key required")

	// ErrUnreachable classifies transport failures reaching the API.
	// Retryable.
	ErrUnreachable = errors.New("llm: api unreachable")
)

// APIError is a structured model API error response.
type APIError struct {
	// Status is the HTTP status code.
	Status int

	// Type is the API error type, e.g. "overloaded_error".
	Type string

	// Message is the API error message.
	Message string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("llm: api error (%d)", e.Status)
	if e.Type != "" {
		msg += ": " + e.Type
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Transient reports whether the failure may clear on retry: throttling,
// overload, or server errors.
func (e *APIError) Transient() bool {
	return e.Status == 429 || e.Status == 529 || e.Status >= 500
}
