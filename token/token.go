// Package token defines the bearer token value type shared by the
// exchange, vault, and orchestration layers.
//
// A Token is either available (carrying a bearer value and expiry) or
// unavailable (carrying the reason it could not be derived). Consumers
// must branch on Ok or Bearer; there is no way to read a value out of
// an unavailable token.
package token

import (
	"fmt"
	"time"
)

// Token is the result of a token derivation.
//
// The zero value is an unavailable token with no reason.
type Token struct {
	value     string
	expiresAt time.Time
	reason    error
	available bool
}

// Available returns a token carrying a bearer value.
// An empty value is still considered unavailable.
func Available(value string, expiresAt time.Time) Token {
	if value == "" {
		return Token{}
	}
	return Token{value: value, expiresAt: expiresAt, available: true}
}

// Unavailable returns a token that could not be derived.
// The reason records which failure class applies (see the owning
// package's sentinel errors).
func Unavailable(reason error) Token {
	return Token{reason: reason}
}

// Ok reports whether a bearer value is present.
func (t Token) Ok() bool {
	return t.available
}

// Bearer returns the bearer value. The second return is false when the
// token is unavailable or expired at the time of the call.
func (t Token) Bearer() (string, bool) {
	if !t.available {
		return "", false
	}
	if !t.expiresAt.IsZero() && time.Now().After(t.expiresAt) {
		return "", false
	}
	return t.value, true
}

// ExpiresAt returns the expiry time, or the zero time when unknown.
func (t Token) ExpiresAt() time.Time {
	return t.expiresAt
}

// Reason returns why the token is unavailable, or nil.
func (t Token) Reason() error {
	return t.reason
}

// ExpiresWithin reports whether the token expires within d of now.
// Unavailable tokens and tokens without a known expiry report false.
func (t Token) ExpiresWithin(d time.Duration) bool {
	if !t.available || t.expiresAt.IsZero() {
		return false
	}
	return time.Now().Add(d).After(t.expiresAt)
}

// String describes the token without exposing the bearer value.
func (t Token) String() string {
	if !t.available {
		if t.reason != nil {
			return fmt.Sprintf("token(unavailable: %v)", t.reason)
		}
		return "token(unavailable)"
	}
	if t.expiresAt.IsZero() {
		return "token(available)"
	}
	return fmt.Sprintf("token(available, expires %s)", t.expiresAt.UTC().Format(time.RFC3339))
}
