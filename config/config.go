package config

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/apexwealth/agentgate/exchange"
	"github.com/apexwealth/agentgate/identity"
	"github.com/apexwealth/agentgate/llm"
	"github.com/apexwealth/agentgate/observe"
	"github.com/apexwealth/agentgate/secret"
	"github.com/apexwealth/agentgate/vault"
)

// PortfolioAudienceKey is the audience key of the internal portfolio
// service, the one exchange target every deployment has.
const PortfolioAudienceKey = "portfolio"

const serviceName = "agentgate"

// envConfig holds raw environment values before assembly.
type envConfig struct {
	Addr         string   `env:"SERVER_ADDR" envDefault:":8000"`
	Version      string   `env:"SERVICE_VERSION" envDefault:"1.0.0"`
	FrontendURL  string   `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	ExtraOrigins []string `env:"CORS_EXTRA_ORIGINS" envSeparator:"," envDefault:"https://apex-wealth-app.vercel.app"`

	OktaDomain   string `env:"OKTA_DOMAIN"`
	OktaClientID string `env:"OKTA_CLIENT_ID"`

	MCPAuthServerID string `env:"OKTA_MCP_AUTH_SERVER_ID"`
	MCPAudience     string `env:"OKTA_MCP_AUDIENCE"`
	AgentID         string `env:"OKTA_AGENT_ID"`
	AgentPrivateKey string `env:"OKTA_AGENT_PRIVATE_KEY"`
	ExtraAudiences  string `env:"XAA_EXTRA_AUDIENCES"`

	Auth0Domain       string   `env:"AUTH0_DOMAIN"`
	Auth0ClientID     string   `env:"AUTH0_CLIENT_ID"`
	Auth0ClientSecret string   `env:"AUTH0_CLIENT_SECRET"`
	VaultAudience     string   `env:"AUTH0_VAULT_AUDIENCE"`
	VaultTokenType    string   `env:"AUTH0_OKTA_TOKEN_TYPE"`
	VaultConnections  []string `env:"AUTH0_VAULT_CONNECTIONS" envSeparator:","`

	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	Model           string `env:"CLAUDE_MODEL"`

	TimeZone string `env:"CALENDAR_TIMEZONE"`

	LogLevel        string  `env:"LOG_LEVEL" envDefault:"info"`
	TracingExporter string  `env:"TRACING_EXPORTER" envDefault:"none"`
	TracingSample   float64 `env:"TRACING_SAMPLE_PCT" envDefault:"1.0"`
	MetricsExporter string  `env:"METRICS_EXPORTER" envDefault:"none"`
}

// extraAudience is one additional exchange target, supplied as a JSON
// array in XAA_EXTRA_AUDIENCES. Adding a downstream service is a
// configuration change, not a code change.
type extraAudience struct {
	Key          string `json:"key"`
	Domain       string `json:"domain"`
	AuthServerID string `json:"auth_server_id"`
	Audience     string `json:"audience"`
	AgentID      string `json:"agent_id"`
	PrivateKey   string `json:"private_key"`
}

// Config is the assembled application configuration. Component
// sections are ready to hand to their constructors.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string

	// Version is reported by the service banner.
	Version string

	// AllowedOrigins is the CORS allowlist: the frontend URL plus any
	// extra origins.
	AllowedOrigins []string

	// TimeZone labels calendar events when a phrase names no zone.
	// Empty uses the calendar default.
	TimeZone string

	// Identity verifies inbound assertions.
	Identity identity.Config

	// Audiences are the delegated exchange targets, portfolio first.
	Audiences []exchange.AudienceConfig

	// Vault configures the federated-connection bridge.
	Vault vault.Config

	// Oracle configures the model client.
	Oracle llm.Config

	// Observe configures logging, tracing, and metrics.
	Observe observe.Config

	// Warnings lists configuration pieces that resolved degraded.
	Warnings []string
}

// Load reads .env (when present) and the process environment and
// assembles the configuration.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	return assemble(raw)
}

func assemble(raw envConfig) (*Config, error) {
	cfg := &Config{
		Addr:     raw.Addr,
		Version:  raw.Version,
		TimeZone: raw.TimeZone,
		Identity: identity.Config{
			Issuer:   raw.OktaDomain,
			ClientID: raw.OktaClientID,
		},
		Vault: vault.Config{
			Domain:          raw.Auth0Domain,
			ClientID:        raw.Auth0ClientID,
			Audience:        raw.VaultAudience,
			SourceTokenType: raw.VaultTokenType,
			Connections:     trimList(raw.VaultConnections),
		},
		Oracle: llm.Config{
			Model: raw.Model,
		},
		Observe: observe.Config{
			ServiceName: serviceName,
			Version:     raw.Version,
			Tracing: observe.TracingConfig{
				Enabled:   exporterEnabled(raw.TracingExporter),
				Exporter:  raw.TracingExporter,
				SamplePct: raw.TracingSample,
			},
			Metrics: observe.MetricsConfig{
				Enabled:  exporterEnabled(raw.MetricsExporter),
				Exporter: raw.MetricsExporter,
			},
			Logging: observe.LoggingConfig{
				Enabled: true,
				Level:   raw.LogLevel,
			},
		},
	}

	cfg.AllowedOrigins = append([]string{raw.FrontendURL}, trimList(raw.ExtraOrigins)...)

	cfg.Oracle.APIKey = cfg.resolveSecret("ANTHROPIC_API_KEY", raw.AnthropicAPIKey)
	cfg.Vault.ClientSecret = cfg.resolveSecret("AUTH0_CLIENT_SECRET", raw.Auth0ClientSecret)

	if cfg.Oracle.APIKey == "" {
		cfg.warn("ANTHROPIC_API_KEY not set; the oracle is unconfigured")
	}
	if cfg.Identity.Issuer == "" {
		cfg.warn("OKTA_DOMAIN not set; every turn runs anonymous")
	}
	if !cfg.Vault.Configured() {
		cfg.warn("token vault not fully configured; external tools serve fixtures")
	}

	cfg.Audiences = append(cfg.Audiences, cfg.portfolioAudience(raw))
	extras, err := cfg.extraAudiences(raw.ExtraAudiences)
	if err != nil {
		return nil, err
	}
	cfg.Audiences = append(cfg.Audiences, extras...)

	return cfg, nil
}

// portfolioAudience builds the internal service audience from the
// flat OKTA_MCP_* variables.
func (c *Config) portfolioAudience(raw envConfig) exchange.AudienceConfig {
	ac := exchange.AudienceConfig{
		Key:          PortfolioAudienceKey,
		Domain:       raw.OktaDomain,
		AuthServerID: raw.MCPAuthServerID,
		Audience:     raw.MCPAudience,
		AgentID:      raw.AgentID,
		SigningKey:   c.signingKey(PortfolioAudienceKey, raw.AgentPrivateKey),
	}
	if !ac.Configured() {
		c.warn("portfolio audience not fully configured; its exchanges will fail")
	}
	return ac
}

// extraAudiences decodes XAA_EXTRA_AUDIENCES. A malformed document is
// a hard error: silently dropping an audience the operator spelled
// out would hide a misconfigured deployment.
func (c *Config) extraAudiences(doc string) ([]exchange.AudienceConfig, error) {
	if strings.TrimSpace(doc) == "" {
		return nil, nil
	}

	var extras []extraAudience
	if err := json.Unmarshal([]byte(doc), &extras); err != nil {
		return nil, fmt.Errorf("config: parse XAA_EXTRA_AUDIENCES: %w", err)
	}

	out := make([]exchange.AudienceConfig, 0, len(extras))
	for _, extra := range extras {
		ac := exchange.AudienceConfig{
			Key:          extra.Key,
			Domain:       extra.Domain,
			AuthServerID: extra.AuthServerID,
			Audience:     extra.Audience,
			AgentID:      extra.AgentID,
			SigningKey:   c.signingKey(extra.Key, extra.PrivateKey),
		}
		if !ac.Configured() {
			c.warn(fmt.Sprintf("extra audience %q not fully configured; its exchanges will fail", extra.Key))
		}
		out = append(out, ac)
	}
	return out, nil
}

// signingKey resolves and parses one audience's private key. Failure
// degrades the audience instead of failing the load.
func (c *Config) signingKey(audienceKey, ref string) *rsa.PrivateKey {
	if strings.TrimSpace(ref) == "" {
		return nil
	}
	material, err := secret.Resolve(ref)
	if err != nil {
		c.warn(fmt.Sprintf("audience %q: resolve signing key: %v", audienceKey, err))
		return nil
	}
	key, err := secret.ParseRSAPrivateKey(material)
	if err != nil {
		c.warn(fmt.Sprintf("audience %q: parse signing key: %v", audienceKey, err))
		return nil
	}
	return key
}

// resolveSecret resolves one secret reference, degrading to empty on
// failure.
func (c *Config) resolveSecret(name, ref string) string {
	if strings.TrimSpace(ref) == "" {
		return ""
	}
	value, err := secret.Resolve(ref)
	if err != nil {
		c.warn(fmt.Sprintf("%s: %v", name, err))
		return ""
	}
	return value
}

func (c *Config) warn(msg string) {
	c.Warnings = append(c.Warnings, msg)
}

func exporterEnabled(exporter string) bool {
	return exporter != "" && exporter != "none"
}

func trimList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
