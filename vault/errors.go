package vault

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the vault flow.
var (
	// ErrConfigMissing indicates the vault or the requested connection
	// is not configured; nothing was attempted.
	ErrConfigMissing = errors.New("vault: not configured")

	// ErrSourceTokenMissing indicates no usable subject token was
	// available for the exchange.
	ErrSourceTokenMissing = errors.New("vault: source token required")

	// ErrNotLinked indicates the user has not linked the requested
	// connection. The connected-accounts flow must complete first.
	ErrNotLinked = errors.New("vault: connection not linked for user")

	// ErrExchangeDenied classifies definitive vault rejections other
	// than a missing link. Never retried.
	ErrExchangeDenied = errors.New("vault: denied by token vault")

	// ErrExchangeTransient classifies upstream failures that may clear
	// on retry (timeouts, 5xx, throttling).
	ErrExchangeTransient = errors.New("vault: transient upstream failure")
)

// UpstreamError is a structured vault error response. It maps onto the
// package sentinels under errors.Is: ErrNotLinked for missing-link
// denials, then ErrExchangeTransient or ErrExchangeDenied by
// transience.
type UpstreamError struct {
	// Status is the HTTP status code of the response.
	Status int

	// Code is the OAuth "error" field, e.g. "tokenset_not_found".
	Code string

	// Description is the OAuth "error_description" field.
	Description string
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("vault: upstream status %d", e.Status)
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Description != "" {
		msg += ": " + e.Description
	}
	return msg
}

// Transient reports whether the failure may clear on retry.
func (e *UpstreamError) Transient() bool {
	return e.Status == 429 || e.Status == 408 || e.Status >= 500
}

// NotLinked reports whether the response means the user never linked
// the connection: either the tokenset is missing outright, or access
// was denied with the tokenset named in the description.
func (e *UpstreamError) NotLinked() bool {
	if e.Code == "tokenset_not_found" {
		return true
	}
	return e.Code == "access_denied" && strings.Contains(strings.ToLower(e.Description), "tokenset")
}

// Is maps the error onto the taxonomy sentinels.
func (e *UpstreamError) Is(target error) bool {
	switch target {
	case ErrNotLinked:
		return e.NotLinked()
	case ErrExchangeTransient:
		return e.Transient()
	case ErrExchangeDenied:
		return !e.Transient() && !e.NotLinked()
	default:
		return false
	}
}
