package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/apexwealth/agentgate/identity"
	"github.com/apexwealth/agentgate/observe"
	"github.com/apexwealth/agentgate/resilience"
	"github.com/apexwealth/agentgate/scope"
	"github.com/apexwealth/agentgate/token"
)

// Exchanger performs the delegated exchange for every configured
// audience.
//
// Contract:
// - Concurrency: safe for concurrent use; ExchangeAll fans out internally.
// - Context: all methods honor cancellation; in-flight calls are abandoned.
// - Errors: failures are per-audience; a Grant is always returned and a
//   failed Grant's token carries the taxonomy reason.
type Exchanger struct {
	audiences  map[string]AudienceConfig
	order      []string
	httpClient *http.Client
	timeout    time.Duration
	retry      *resilience.Retry
	mw         *observe.Middleware
	logger     observe.Logger

	mu        sync.Mutex
	keystores map[string]*identity.Keystore
}

// NewExchanger creates an Exchanger from the given configuration.
func NewExchanger(config Config) *Exchanger {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	if config.Retry.Classify == nil {
		config.Retry.Classify = func(err error) bool {
			return errors.Is(err, ErrExchangeTransient) || resilience.IsTransient(err)
		}
	}

	audiences := make(map[string]AudienceConfig, len(config.Audiences))
	order := make([]string, 0, len(config.Audiences))
	for _, ac := range config.Audiences {
		if ac.Key == "" {
			continue
		}
		audiences[ac.Key] = ac
		order = append(order, ac.Key)
	}

	mw := observe.NewMiddleware(config.Observer)

	return &Exchanger{
		audiences:  audiences,
		order:      order,
		httpClient: config.HTTPClient,
		timeout:    config.Timeout,
		retry:      resilience.NewRetry(config.Retry),
		mw:         mw,
		logger:     mw.Logger(),
		keystores:  make(map[string]*identity.Keystore),
	}
}

// AudienceKeys returns the configured audience keys in config order.
func (e *Exchanger) AudienceKeys() []string {
	keys := make([]string, len(e.order))
	copy(keys, e.order)
	return keys
}

// Exchange runs the 3-step flow for one audience. The returned Grant is
// always usable: on failure its token is unavailable with the reason,
// which is also returned as the error.
func (e *Exchanger) Exchange(ctx context.Context, audienceKey string, a identity.Assertion, sc scope.Scope) (Grant, error) {
	ac, ok := e.audiences[audienceKey]
	if !ok || !ac.Configured() {
		err := fmt.Errorf("%w: %s", ErrConfigMissing, audienceKey)
		return failedGrant(audienceKey, err), err
	}
	if !a.Valid() {
		return failedGrant(audienceKey, ErrAssertionMissing), ErrAssertionMissing
	}

	var grant Grant
	meta := observe.OpMeta{Kind: observe.KindExchange, Name: "delegated_grant", Audience: audienceKey}
	err := e.mw.Instrument(ctx, meta, func(ctx context.Context) error {
		delegated, err := e.issueDelegated(ctx, ac, a, sc)
		if err != nil {
			return err
		}

		// Advisory only: a verification failure is logged, never blocking.
		if verifyErr := e.verifyDelegated(ctx, ac, delegated.AccessToken, a.Subject); verifyErr != nil {
			e.logger.Warn(ctx, "delegated assertion verification failed",
				observe.Field{Key: "audience", Value: audienceKey},
				observe.Field{Key: "error", Value: verifyErr.Error()},
			)
		} else {
			e.logger.Debug(ctx, "delegated assertion verified",
				observe.Field{Key: "audience", Value: audienceKey},
			)
		}

		minted, err := e.redeemDelegated(ctx, ac, delegated.AccessToken)
		if err != nil {
			return err
		}

		now := time.Now()
		var expiresAt time.Time
		if minted.ExpiresIn > 0 {
			expiresAt = now.Add(time.Duration(minted.ExpiresIn) * time.Second)
		}
		tokenType := minted.TokenType
		if tokenType == "" {
			tokenType = "Bearer"
		}
		granted := minted.Scope
		if granted == "" {
			granted = sc.GrantString()
		}

		grant = Grant{
			AudienceKey:        audienceKey,
			Token:              token.Available(minted.AccessToken, expiresAt),
			DelegatedAssertion: delegated.AccessToken,
			TokenType:          tokenType,
			Scope:              granted,
			ExchangedAt:        now,
		}
		return nil
	})
	if err != nil {
		return failedGrant(audienceKey, err), err
	}
	return grant, nil
}

// ExchangeAll fans the exchange out across every configured audience.
// Each audience succeeds or fails on its own; the returned map always
// holds one Grant per configured audience.
func (e *Exchanger) ExchangeAll(ctx context.Context, a identity.Assertion, sc scope.Scope) map[string]Grant {
	grants := make(map[string]Grant, len(e.order))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, key := range e.order {
		g.Go(func() error {
			grant, err := e.Exchange(gctx, key, a, sc)
			if err != nil {
				e.logger.Warn(gctx, "audience exchange failed",
					observe.Field{Key: "audience", Value: key},
					observe.Field{Key: "error", Value: err.Error()},
				)
			}
			mu.Lock()
			grants[key] = grant
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return grants
}

// issueDelegated is step 1: the identity assertion is exchanged for a
// delegated assertion scoped to the target authorization server.
func (e *Exchanger) issueDelegated(ctx context.Context, ac AudienceConfig, a identity.Assertion, sc scope.Scope) (*tokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", grantTypeTokenExchange)
	form.Set("requested_token_type", tokenTypeDelegated)
	form.Set("subject_token", a.Raw())
	form.Set("subject_token_type", tokenTypeIDToken)
	form.Set("audience", ac.DelegationAudience())
	form.Set("scope", sc.GrantString())

	var out *tokenResponse
	err := e.retry.Execute(ctx, func(ctx context.Context) error {
		return resilience.WithTimeout(ctx, e.timeout, func(ctx context.Context) error {
			resp, err := e.postTokenForm(ctx, ac.IssueEndpoint(), form)
			if err != nil {
				return err
			}
			out = resp
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// redeemDelegated is step 3: the delegated assertion is redeemed at the
// target authorization server. A fresh client assertion is signed per
// attempt so retries never replay a jti.
func (e *Exchanger) redeemDelegated(ctx context.Context, ac AudienceConfig, delegated string) (*tokenResponse, error) {
	endpoint := ac.RedeemEndpoint()

	var out *tokenResponse
	err := e.retry.Execute(ctx, func(ctx context.Context) error {
		clientAssertion, err := signClientAssertion(ac.AgentID, ac.SigningKey, endpoint, time.Now())
		if err != nil {
			return fmt.Errorf("exchange: sign client assertion: %w", err)
		}

		form := url.Values{}
		form.Set("grant_type", grantTypeJWTBearer)
		form.Set("assertion", delegated)
		form.Set("client_assertion_type", clientAssertionType)
		form.Set("client_assertion", clientAssertion)

		return resilience.WithTimeout(ctx, e.timeout, func(ctx context.Context) error {
			resp, err := e.postTokenForm(ctx, endpoint, form)
			if err != nil {
				return err
			}
			out = resp
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
