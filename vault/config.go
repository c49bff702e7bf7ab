package vault

import (
	"net/http"
	"strings"
	"time"

	"github.com/apexwealth/agentgate/cache"
	"github.com/apexwealth/agentgate/observe"
	"github.com/apexwealth/agentgate/resilience"
)

// Config configures the token vault bridge.
type Config struct {
	// Domain is the vault tenant domain, with or without scheme.
	Domain string

	// ClientID authenticates this application to the vault.
	ClientID string

	// ClientSecret authenticates this application to the vault.
	ClientSecret string

	// Audience is the vault API audience requested in step A.
	Audience string

	// SourceTokenType is the custom subject token type registered for
	// the step A exchange profile.
	// Default: "urn:apexwealth:okta-token"
	SourceTokenType string

	// Connections are the federated connections this deployment can
	// serve. Requests for other connections fail with ErrConfigMissing.
	// Default: google-oauth2, salesforce
	Connections []string

	// SafetyMargin is subtracted from the vault token lifetime before
	// caching, so a cached token is never handed out about to expire.
	// Default: 60s
	SafetyMargin time.Duration

	// Timeout bounds each upstream call.
	// Default: 30s
	Timeout time.Duration

	// Retry controls retry behavior for transient upstream failures.
	Retry resilience.RetryConfig

	// Cache stores minted vault tokens. Default: in-memory.
	Cache cache.Cache

	// HTTPClient is the HTTP client for vault calls.
	HTTPClient *http.Client

	// Observer instruments the exchanges. Default: no-op.
	Observer observe.Observer
}

// Configured reports whether the vault can be called at all.
func (c Config) Configured() bool {
	return c.Domain != "" && c.ClientID != "" && c.ClientSecret != "" && c.Audience != ""
}

// TokenEndpoint returns the vault token endpoint. Bare tenant domains
// get the https scheme.
func (c Config) TokenEndpoint() string {
	domain := strings.TrimSuffix(c.Domain, "/")
	if !strings.Contains(domain, "://") {
		domain = "https://" + domain
	}
	return domain + "/oauth/token"
}
