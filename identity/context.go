package identity

import "context"

// Context keys for identity values.
type contextKey int

const (
	assertionKey contextKey = iota
	tokensKey
)

// Tokens carries the raw credentials extracted from an inbound request
// before verification: the identity assertion and, optionally, an
// already-exchanged resource bearer token.
type Tokens struct {
	IDToken     string
	AccessToken string
}

// WithAssertion returns a new context carrying the verified assertion.
func WithAssertion(ctx context.Context, a Assertion) context.Context {
	return context.WithValue(ctx, assertionKey, a)
}

// AssertionFromContext retrieves the verified assertion from the
// context. The zero Assertion is returned when none is present.
func AssertionFromContext(ctx context.Context) Assertion {
	a, _ := ctx.Value(assertionKey).(Assertion)
	return a
}

// SubjectFromContext retrieves the verified subject from the context.
// Returns empty string if no assertion is present.
func SubjectFromContext(ctx context.Context) string {
	return AssertionFromContext(ctx).Subject
}

// WithTokens returns a new context carrying the raw header tokens.
func WithTokens(ctx context.Context, t Tokens) context.Context {
	return context.WithValue(ctx, tokensKey, t)
}

// TokensFromContext retrieves the raw header tokens from the context.
func TokensFromContext(ctx context.Context) Tokens {
	t, _ := ctx.Value(tokensKey).(Tokens)
	return t
}
