package exchange

import (
	"time"

	"github.com/apexwealth/agentgate/token"
)

// Grant is the outcome of one audience's delegated exchange. A failed
// exchange still yields a Grant; its Token is unavailable and carries
// the reason.
type Grant struct {
	// AudienceKey identifies which audience this grant is for.
	AudienceKey string

	// Token is the audience-scoped access token, or unavailable with
	// the failure reason.
	Token token.Token

	// DelegatedAssertion is the intermediate assertion retained for
	// audit. Empty when step 1 failed.
	DelegatedAssertion string

	// TokenType is the wire token type, normally "Bearer".
	TokenType string

	// Scope is the scope string the server granted.
	Scope string

	// ExchangedAt is when the exchange completed.
	ExchangedAt time.Time
}

// Ok reports whether the grant carries a usable token.
func (g Grant) Ok() bool {
	return g.Token.Ok()
}

// failedGrant builds the Grant for an audience whose exchange failed.
func failedGrant(audienceKey string, reason error) Grant {
	return Grant{
		AudienceKey: audienceKey,
		Token:       token.Unavailable(reason),
	}
}
