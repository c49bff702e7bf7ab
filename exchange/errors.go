package exchange

import (
	"errors"
	"fmt"
)

// Sentinel errors for the exchange flow.
var (
	// ErrConfigMissing indicates the audience has no usable
	// configuration; its grant is unavailable, nothing was attempted.
	ErrConfigMissing = errors.New("exchange: audience not configured")

	// ErrAssertionMissing indicates no valid identity assertion was
	// supplied to exchange from.
	ErrAssertionMissing = errors.New("exchange: identity assertion required")

	// ErrExchangeDenied classifies definitive authorization-server
	// rejections. Never retried.
	ErrExchangeDenied = errors.New("exchange: denied by authorization server")

	// ErrExchangeTransient classifies upstream failures that may clear
	// on retry (timeouts, 5xx, throttling).
	ErrExchangeTransient = errors.New("exchange: transient upstream failure")

	// ErrTokenRejected indicates a resource-side bearer token failed
	// verification.
	ErrTokenRejected = errors.New("exchange: access token rejected")
)

// OAuthError is a structured authorization-server error response.
// It matches ErrExchangeTransient or ErrExchangeDenied under errors.Is
// according to its transience, and carries the wire error fields.
type OAuthError struct {
	// Status is the HTTP status code of the response.
	Status int

	// Code is the OAuth "error" field, e.g. "invalid_grant".
	Code string

	// Description is the OAuth "error_description" field.
	Description string
}

func (e *OAuthError) Error() string {
	msg := fmt.Sprintf("exchange: upstream status %d", e.Status)
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Description != "" {
		msg += ": " + e.Description
	}
	return msg
}

// Transient reports whether the failure may clear on retry.
func (e *OAuthError) Transient() bool {
	return e.Status == 429 || e.Status == 408 || e.Status >= 500
}

// Is maps the error onto the taxonomy sentinels.
func (e *OAuthError) Is(target error) bool {
	switch target {
	case ErrExchangeTransient:
		return e.Transient()
	case ErrExchangeDenied:
		return !e.Transient()
	default:
		return false
	}
}
