package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/apexwealth/agentgate/exchange"
	"github.com/apexwealth/agentgate/token"
	"github.com/apexwealth/agentgate/tool"
	"github.com/apexwealth/agentgate/vault"
)

// ProviderTokenSource derives a provider connection token from an
// audience access token. *vault.Bridge satisfies it.
type ProviderTokenSource interface {
	GetProviderToken(ctx context.Context, connection, sourceToken string) (vault.ProviderToken, error)
}

// TokenSet carries the credentials of a single turn: one grant per
// configured audience, plus connection tokens derived on first use.
// It must not outlive its turn.
//
// Contract:
//   - ForRoute never returns an error. Absence travels as an
//     unavailable token carrying the reason, so callers fold it into
//     a structured result instead of aborting the round.
//   - A connection token is derived only from the grant of the
//     route's own audience. There is no cross-audience chaining.
type TokenSet struct {
	grants map[string]exchange.Grant
	source ProviderTokenSource

	mu      sync.Mutex
	derived map[string]vault.ProviderToken
}

// NewTokenSet builds the token set for one turn. grants may be nil
// for an anonymous turn; source may be nil when no vault is
// configured.
func NewTokenSet(grants map[string]exchange.Grant, source ProviderTokenSource) *TokenSet {
	ts := &TokenSet{
		grants:  make(map[string]exchange.Grant, len(grants)),
		source:  source,
		derived: make(map[string]vault.ProviderToken),
	}
	for key, grant := range grants {
		ts.grants[key] = grant
	}
	return ts
}

// Grant returns the exchange outcome for an audience key.
func (ts *TokenSet) Grant(audienceKey string) (exchange.Grant, bool) {
	g, ok := ts.grants[audienceKey]
	return g, ok
}

// ForRoute resolves the token a routed call must present.
func (ts *TokenSet) ForRoute(ctx context.Context, route tool.Route) token.Token {
	grant, ok := ts.grants[route.AudienceKey]
	if !ok {
		return token.Unavailable(fmt.Errorf("no grant for audience %q", route.AudienceKey))
	}

	switch route.Flow {
	case tool.FlowCrossApp:
		return grant.Token
	case tool.FlowCrossAppVault:
		return ts.connectionToken(ctx, route, grant)
	default:
		return token.Unavailable(fmt.Errorf("flow %s carries no token", route.Flow))
	}
}

// connectionToken derives the provider token for a vault-backed
// route, reusing one already derived this turn.
func (ts *TokenSet) connectionToken(ctx context.Context, route tool.Route, grant exchange.Grant) token.Token {
	bearer, ok := grant.Token.Bearer()
	if !ok {
		reason := grant.Token.Reason()
		if reason == nil {
			reason = fmt.Errorf("audience %s token expired", route.AudienceKey)
		}
		return token.Unavailable(reason)
	}
	if ts.source == nil {
		return token.Unavailable(vault.ErrConfigMissing)
	}

	key := route.AudienceKey + "\x00" + route.Connection

	ts.mu.Lock()
	cached, ok := ts.derived[key]
	ts.mu.Unlock()
	if ok && cached.Ok() {
		return cached.Token
	}

	pt, err := ts.source.GetProviderToken(ctx, route.Connection, bearer)
	if err != nil {
		return token.Unavailable(err)
	}

	ts.mu.Lock()
	ts.derived[key] = pt
	ts.mu.Unlock()

	return pt.Token
}
