package vault

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/apexwealth/agentgate/cache"
	"github.com/apexwealth/agentgate/observe"
	"github.com/apexwealth/agentgate/resilience"
	"github.com/apexwealth/agentgate/token"
)

// ProviderToken is a minted third-party provider token.
type ProviderToken struct {
	// Connection names the federated connection the token is for.
	Connection string

	// Token is the provider access token, or unavailable with the
	// failure reason.
	Token token.Token

	// TokenType is the wire token type, normally "Bearer".
	TokenType string

	// Scope is the scope string the provider granted, when reported.
	Scope string
}

// Ok reports whether the provider token is usable.
func (p ProviderToken) Ok() bool {
	return p.Token.Ok()
}

// Bridge derives provider tokens through the token vault.
//
// Contract:
// - Concurrency: safe for concurrent use; concurrent step A calls for
//   the same source token collapse into one upstream exchange.
// - Context: all methods honor cancellation.
// - Errors: failures match exactly one of the package sentinels under
//   errors.Is; ErrNotLinked is an expected per-user outcome.
type Bridge struct {
	config      Config
	httpClient  *http.Client
	timeout     time.Duration
	retry       *resilience.Retry
	loader      *cache.Loader
	keyer       *cache.Keyer
	connections map[string]struct{}
	mw          *observe.Middleware
	logger      observe.Logger

	mu        sync.Mutex
	lastVault cache.Entry
}

// NewBridge creates a Bridge from the given configuration.
func NewBridge(config Config) *Bridge {
	if config.SourceTokenType == "" {
		config.SourceTokenType = defaultSourceTokenType
	}
	if len(config.Connections) == 0 {
		config.Connections = []string{"google-oauth2", "salesforce"}
	}
	if config.SafetyMargin <= 0 {
		config.SafetyMargin = time.Minute
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	if config.Cache == nil {
		config.Cache = cache.NewMemory()
	}
	if config.Retry.Classify == nil {
		config.Retry.Classify = func(err error) bool {
			return errors.Is(err, ErrExchangeTransient) || resilience.IsTransient(err)
		}
	}

	connections := make(map[string]struct{}, len(config.Connections))
	for _, c := range config.Connections {
		connections[c] = struct{}{}
	}

	mw := observe.NewMiddleware(config.Observer)

	return &Bridge{
		config:      config,
		httpClient:  config.HTTPClient,
		timeout:     config.Timeout,
		retry:       resilience.NewRetry(config.Retry),
		loader:      cache.NewLoader(config.Cache),
		keyer:       cache.NewKeyer("vault"),
		connections: connections,
		mw:          mw,
		logger:      mw.Logger(),
	}
}

// Configured reports whether the vault can be called at all.
func (b *Bridge) Configured() bool {
	return b.config.Configured()
}

// Connections returns the configured connection names.
func (b *Bridge) Connections() []string {
	out := make([]string, len(b.config.Connections))
	copy(out, b.config.Connections)
	return out
}

// ExchangeForVaultToken is step A: the source access token is traded
// for a vault token, cached per source token under the token lifetime
// minus the safety margin.
func (b *Bridge) ExchangeForVaultToken(ctx context.Context, sourceToken string) (token.Token, error) {
	if !b.Configured() {
		return token.Unavailable(ErrConfigMissing), ErrConfigMissing
	}
	if sourceToken == "" {
		return token.Unavailable(ErrSourceTokenMissing), ErrSourceTokenMissing
	}

	var entry cache.Entry
	var cached bool
	meta := observe.OpMeta{Kind: observe.KindVault, Name: "vault_token"}
	err := b.mw.Instrument(ctx, meta, func(ctx context.Context) error {
		key := b.keyer.Key(b.config.Audience, sourceToken)

		var err error
		entry, cached, err = b.loader.Load(ctx, key, func(ctx context.Context) (cache.Entry, error) {
			return b.mintVaultToken(ctx, sourceToken)
		})
		if err != nil {
			return err
		}

		if cached {
			b.mw.Metrics().RecordCacheHit(ctx, meta)
		} else {
			b.mw.Metrics().RecordCacheMiss(ctx, meta)
		}
		return nil
	})
	if err != nil {
		return token.Unavailable(err), err
	}

	b.mu.Lock()
	b.lastVault = entry
	b.mu.Unlock()

	return token.Available(entry.Value, entry.ExpiresAt), nil
}

// mintVaultToken performs the step A upstream call.
func (b *Bridge) mintVaultToken(ctx context.Context, sourceToken string) (cache.Entry, error) {
	form := url.Values{}
	form.Set("grant_type", grantTypeTokenExchange)
	form.Set("audience", b.config.Audience)
	form.Set("client_id", b.config.ClientID)
	form.Set("client_secret", b.config.ClientSecret)
	form.Set("subject_token_type", b.config.SourceTokenType)
	form.Set("subject_token", sourceToken)
	form.Set("scope", vaultScope)

	var resp *tokenResponse
	err := b.retry.Execute(ctx, func(ctx context.Context) error {
		return resilience.WithTimeout(ctx, b.timeout, func(ctx context.Context) error {
			var err error
			resp, err = b.postForm(ctx, form)
			return err
		})
	})
	if err != nil {
		return cache.Entry{}, fmt.Errorf("vault token exchange: %w", err)
	}

	// The margin keeps cached tokens from being handed out near expiry.
	// Lifetimes under the margin keep their real expiry.
	lifetime := time.Duration(resp.ExpiresIn) * time.Second
	if lifetime > b.config.SafetyMargin {
		lifetime -= b.config.SafetyMargin
	}
	return cache.Entry{
		Value:     resp.AccessToken,
		ExpiresAt: time.Now().Add(lifetime),
	}, nil
}

// ExchangeForConnectionToken is step B: a vault token is traded for a
// federated connection access token. A zero vault token falls back to
// the most recently minted one.
func (b *Bridge) ExchangeForConnectionToken(ctx context.Context, connection string, vaultToken token.Token) (ProviderToken, error) {
	if !b.Configured() {
		return failedProviderToken(connection, ErrConfigMissing), ErrConfigMissing
	}
	if _, ok := b.connections[connection]; !ok {
		err := fmt.Errorf("%w: unknown connection %q", ErrConfigMissing, connection)
		return failedProviderToken(connection, err), err
	}

	bearer, ok := vaultToken.Bearer()
	if !ok {
		bearer, ok = b.cachedVaultBearer()
	}
	if !ok {
		err := fmt.Errorf("%w: no vault token", ErrSourceTokenMissing)
		return failedProviderToken(connection, err), err
	}

	var out ProviderToken
	meta := observe.OpMeta{Kind: observe.KindVault, Name: "connection_token", Connection: connection}
	err := b.mw.Instrument(ctx, meta, func(ctx context.Context) error {
		form := url.Values{}
		form.Set("grant_type", grantTypeFederatedConnection)
		form.Set("client_id", b.config.ClientID)
		form.Set("client_secret", b.config.ClientSecret)
		form.Set("subject_token_type", subjectTypeAccessToken)
		form.Set("subject_token", bearer)
		form.Set("connection", connection)
		form.Set("requested_token_type", requestedTypeConnectionToken)

		var resp *tokenResponse
		err := b.retry.Execute(ctx, func(ctx context.Context) error {
			return resilience.WithTimeout(ctx, b.timeout, func(ctx context.Context) error {
				var err error
				resp, err = b.postForm(ctx, form)
				return err
			})
		})
		if err != nil {
			return fmt.Errorf("connection token exchange for %s: %w", connection, err)
		}

		var expiresAt time.Time
		if resp.ExpiresIn > 0 {
			expiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
		}
		tokenType := resp.TokenType
		if tokenType == "" {
			tokenType = "Bearer"
		}
		out = ProviderToken{
			Connection: connection,
			Token:      token.Available(resp.AccessToken, expiresAt),
			TokenType:  tokenType,
			Scope:      resp.Scope,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotLinked) {
			b.logger.Info(ctx, "connection not linked for user",
				observe.Field{Key: "connection", Value: connection},
			)
		}
		return failedProviderToken(connection, err), err
	}
	return out, nil
}

// GetProviderToken runs step A then step B. A step A failure fails the
// provider token with step A's reason.
func (b *Bridge) GetProviderToken(ctx context.Context, connection, sourceToken string) (ProviderToken, error) {
	vaultToken, err := b.ExchangeForVaultToken(ctx, sourceToken)
	if err != nil {
		return failedProviderToken(connection, err), err
	}
	return b.ExchangeForConnectionToken(ctx, connection, vaultToken)
}

// cachedVaultBearer returns the most recently minted vault token if it
// is still live.
func (b *Bridge) cachedVaultBearer() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lastVault.Value == "" || b.lastVault.Expired(time.Now()) {
		return "", false
	}
	return b.lastVault.Value, true
}

func failedProviderToken(connection string, reason error) ProviderToken {
	return ProviderToken{
		Connection: connection,
		Token:      token.Unavailable(reason),
	}
}
