package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config configures the assertion verifier.
type Config struct {
	// Issuer is the expected iss claim, e.g. "https://acme.okta.com".
	Issuer string

	// ClientID is the expected audience (aud claim) of assertions.
	ClientID string

	// JWKSURL is the issuer's key set endpoint.
	// Default: {Issuer}/oauth2/v1/keys
	JWKSURL string

	// CacheTTL is how long JWKS keys stay fresh. Default: 1 hour.
	CacheTTL time.Duration

	// Leeway tolerates clock skew when checking time claims.
	Leeway time.Duration

	// HTTPClient is used for JWKS fetches.
	HTTPClient *http.Client
}

// Verifier validates identity assertions against the issuer's JWKS.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Context: Verify honors cancellation during key fetches.
// - Errors: all rejections match ErrIdentityInvalid under errors.Is.
type Verifier struct {
	config Config
	keys   *Keystore
}

// NewVerifier creates a verifier for the given issuer.
func NewVerifier(config Config) *Verifier {
	if config.JWKSURL == "" && config.Issuer != "" {
		config.JWKSURL = strings.TrimSuffix(config.Issuer, "/") + "/oauth2/v1/keys"
	}

	return &Verifier{
		config: config,
		keys: NewKeystore(KeystoreConfig{
			URL:        config.JWKSURL,
			CacheTTL:   config.CacheTTL,
			HTTPClient: config.HTTPClient,
		}),
	}
}

// Verify validates the raw assertion and returns its verified claims.
func (v *Verifier) Verify(ctx context.Context, raw string) (Assertion, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Assertion{}, ErrMissingAssertion
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		kid, _ := t.Header["kid"].(string)
		return v.keys.Key(ctx, kid)
	}, jwt.WithLeeway(v.config.Leeway))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Assertion{}, ErrAssertionExpired
		case errors.Is(err, ErrKeyNotFound):
			return Assertion{}, ErrKeyNotFound
		default:
			return Assertion{}, fmt.Errorf("%w: %v", ErrAssertionMalformed, err)
		}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Assertion{}, ErrAssertionMalformed
	}

	if v.config.Issuer != "" {
		if iss, _ := claims["iss"].(string); iss != v.config.Issuer {
			return Assertion{}, ErrIssuerMismatch
		}
	}

	if v.config.ClientID != "" {
		if !containsAudience(audienceList(claims), v.config.ClientID) {
			return Assertion{}, ErrAudienceMismatch
		}
	}

	return buildAssertion(raw, claims), nil
}

func audienceList(claims jwt.MapClaims) []string {
	switch v := claims["aud"].(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, a := range v {
			if s, ok := a.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func containsAudience(audiences []string, target string) bool {
	for _, aud := range audiences {
		if aud == target {
			return true
		}
	}
	return false
}

func buildAssertion(raw string, claims jwt.MapClaims) Assertion {
	a := Assertion{
		Claims: make(map[string]any, len(claims)),
		raw:    raw,
	}
	for k, val := range claims {
		a.Claims[k] = val
	}

	a.Subject, _ = claims["sub"].(string)
	a.Email, _ = claims["email"].(string)
	a.Name, _ = claims["name"].(string)
	a.Issuer, _ = claims["iss"].(string)

	if groups, ok := claims["groups"].([]any); ok {
		a.Groups = make([]string, 0, len(groups))
		for _, g := range groups {
			if s, ok := g.(string); ok {
				a.Groups = append(a.Groups, s)
			}
		}
	}

	if exp, ok := claims["exp"].(float64); ok {
		a.ExpiresAt = time.Unix(int64(exp), 0)
	}
	if iat, ok := claims["iat"].(float64); ok {
		a.IssuedAt = time.Unix(int64(iat), 0)
	}

	return a
}
