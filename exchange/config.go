package exchange

import (
	"crypto/rsa"
	"net/http"
	"strings"
	"time"

	"github.com/apexwealth/agentgate/observe"
	"github.com/apexwealth/agentgate/resilience"
)

// AudienceConfig describes one target authorization server. Audiences
// are data: adding a downstream service is a configuration change, not
// a code change.
type AudienceConfig struct {
	// Key is the stable identifier the router and token set use,
	// e.g. "portfolio".
	Key string

	// Domain is the identity provider base URL,
	// e.g. "https://acme.okta.com".
	Domain string

	// AuthServerID is the target authorization server ID under Domain.
	AuthServerID string

	// Audience is the resource audience the minted token is for,
	// e.g. "api://portfolio". Used by the resource-side verifier.
	Audience string

	// AgentID is the agent's OAuth client ID at this server.
	AgentID string

	// SigningKey signs the agent's client assertion (step 3).
	SigningKey *rsa.PrivateKey
}

// Configured reports whether every field needed to attempt the
// exchange is present.
func (c AudienceConfig) Configured() bool {
	return c.Key != "" &&
		c.Domain != "" &&
		c.AuthServerID != "" &&
		c.AgentID != "" &&
		c.SigningKey != nil
}

// IssueEndpoint is the org-level token endpoint where the delegated
// assertion is issued (step 1).
func (c AudienceConfig) IssueEndpoint() string {
	return strings.TrimSuffix(c.Domain, "/") + "/oauth2/v1/token"
}

// RedeemEndpoint is the target authorization server's token endpoint
// where the delegated assertion is redeemed (step 3).
func (c AudienceConfig) RedeemEndpoint() string {
	return strings.TrimSuffix(c.Domain, "/") + "/oauth2/" + c.AuthServerID + "/v1/token"
}

// DelegationAudience is the audience value the delegated assertion is
// issued for: the target authorization server itself.
func (c AudienceConfig) DelegationAudience() string {
	return strings.TrimSuffix(c.Domain, "/") + "/oauth2/" + c.AuthServerID
}

// Config configures the Exchanger.
type Config struct {
	// Audiences are the target authorization servers, in order.
	Audiences []AudienceConfig

	// Timeout bounds each upstream HTTP call. Default: 10 seconds.
	Timeout time.Duration

	// Retry governs transient-failure retries per upstream call.
	// Zero value applies resilience defaults.
	Retry resilience.RetryConfig

	// HTTPClient is the client for token calls. If nil, a default
	// client is used; per-call timeouts come from Timeout either way.
	HTTPClient *http.Client

	// Observer supplies logging, tracing, and metrics. Nil disables
	// telemetry.
	Observer observe.Observer
}
