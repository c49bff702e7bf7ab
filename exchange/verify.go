package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/apexwealth/agentgate/identity"
	"github.com/apexwealth/agentgate/observe"
)

// keystoreFor returns a cached key store for the given issuer,
// deriving the standard key set location from the issuer URL.
func (e *Exchanger) keystoreFor(issuer string) *identity.Keystore {
	url := jwksURLForIssuer(issuer)

	e.mu.Lock()
	defer e.mu.Unlock()

	if ks, ok := e.keystores[url]; ok {
		return ks
	}
	ks := identity.NewKeystore(identity.KeystoreConfig{
		URL:        url,
		HTTPClient: e.httpClient,
	})
	e.keystores[url] = ks
	return ks
}

// jwksURLForIssuer maps an issuer to its key set endpoint: org issuers
// publish under /oauth2/v1/keys, authorization servers under /v1/keys.
func jwksURLForIssuer(issuer string) string {
	issuer = strings.TrimSuffix(issuer, "/")
	if strings.Contains(issuer, "/oauth2/") {
		return issuer + "/v1/keys"
	}
	return issuer + "/oauth2/v1/keys"
}

// verifyDelegated is step 2: claim checks on the delegated assertion,
// with a signature check when the issuer's key set is reachable.
// Callers treat the result as advisory.
func (e *Exchanger) verifyDelegated(ctx context.Context, ac AudienceConfig, delegated, expectSubject string) error {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()

	// Read the issuer first; the signature check needs its key set.
	if _, _, err := parser.ParseUnverified(delegated, claims); err != nil {
		return fmt.Errorf("parse delegated assertion: %w", err)
	}
	issuer, _ := claims["iss"].(string)

	signatureChecked := false
	if issuer != "" {
		_, err := jwt.Parse(delegated, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
			}
			kid, _ := t.Header["kid"].(string)
			return e.keystoreFor(issuer).Key(ctx, kid)
		})
		switch {
		case err == nil:
			signatureChecked = true
		case errors.Is(err, identity.ErrKeystoreUnavailable):
			// Key set unreachable: fall back to claim checks only.
		default:
			return fmt.Errorf("delegated assertion signature: %w", err)
		}
	}

	if aud := audienceClaim(claims); aud != "" && aud != ac.DelegationAudience() {
		return fmt.Errorf("delegated assertion audience %q, want %q", aud, ac.DelegationAudience())
	}
	if sub, _ := claims["sub"].(string); expectSubject != "" && sub != expectSubject {
		return fmt.Errorf("delegated assertion subject %q, want %q", sub, expectSubject)
	}
	if exp, ok := claims["exp"].(float64); ok && time.Now().After(time.Unix(int64(exp), 0)) {
		return errors.New("delegated assertion expired")
	}

	if !signatureChecked {
		e.logger.Debug(ctx, "delegated assertion checked without signature",
			observe.Field{Key: "audience", Value: ac.Key},
		)
	}
	return nil
}

func audienceClaim(claims jwt.MapClaims) string {
	switch v := claims["aud"].(type) {
	case string:
		return v
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

// VerifierConfig configures resource-side access token verification.
type VerifierConfig struct {
	// Domain is the identity provider base URL.
	Domain string

	// AuthServerID is the authorization server that minted the tokens.
	AuthServerID string

	// Audience is the resource audience tokens must carry.
	Audience string

	// Leeway tolerates clock skew on time claims.
	Leeway time.Duration

	// HTTPClient is used for key set fetches.
	HTTPClient *http.Client
}

// Verification is the verified view of an accepted access token.
type Verification struct {
	Subject   string
	Issuer    string
	Audience  string
	Scopes    []string
	ExpiresAt time.Time
}

// HasScope reports whether the token carries the given scope grant.
func (v Verification) HasScope(s string) bool {
	for _, sc := range v.Scopes {
		if sc == s {
			return true
		}
	}
	return false
}

// Verifier is the resource-side gate: backends consult it before
// executing any tool, independently of the orchestrator's own checks.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: all rejections match ErrTokenRejected under errors.Is.
type Verifier struct {
	config VerifierConfig
	issuer string
	keys   *identity.Keystore
}

// NewVerifier creates a resource-side verifier for tokens minted by the
// given authorization server.
func NewVerifier(config VerifierConfig) *Verifier {
	issuer := strings.TrimSuffix(config.Domain, "/") + "/oauth2/" + config.AuthServerID
	return &Verifier{
		config: config,
		issuer: issuer,
		keys: identity.NewKeystore(identity.KeystoreConfig{
			URL:        issuer + "/v1/keys",
			HTTPClient: config.HTTPClient,
		}),
	}
}

// VerifyAccessToken validates signature, issuer, audience, and expiry,
// returning the token's verified subject and scopes.
func (v *Verifier) VerifyAccessToken(ctx context.Context, bearer string) (Verification, error) {
	bearer = strings.TrimSpace(bearer)
	if bearer == "" {
		return Verification{}, fmt.Errorf("%w: empty token", ErrTokenRejected)
	}

	parsed, err := jwt.Parse(bearer, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		kid, _ := t.Header["kid"].(string)
		return v.keys.Key(ctx, kid)
	}, jwt.WithLeeway(v.config.Leeway))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Verification{}, fmt.Errorf("%w: expired", ErrTokenRejected)
		}
		return Verification{}, fmt.Errorf("%w: %v", ErrTokenRejected, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Verification{}, fmt.Errorf("%w: malformed claims", ErrTokenRejected)
	}

	if iss, _ := claims["iss"].(string); iss != v.issuer {
		return Verification{}, fmt.Errorf("%w: issuer %q", ErrTokenRejected, iss)
	}
	if v.config.Audience != "" {
		if aud := audienceClaim(claims); aud != v.config.Audience {
			return Verification{}, fmt.Errorf("%w: audience %q", ErrTokenRejected, aud)
		}
	}

	out := Verification{Issuer: v.issuer}
	out.Subject, _ = claims["sub"].(string)
	out.Audience = audienceClaim(claims)
	out.Scopes = scopeClaims(claims)
	if exp, ok := claims["exp"].(float64); ok {
		out.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return out, nil
}

// scopeClaims extracts granted scopes from either the "scp" list claim
// or the space-separated "scope" claim.
func scopeClaims(claims jwt.MapClaims) []string {
	if scp, ok := claims["scp"].([]any); ok {
		out := make([]string, 0, len(scp))
		for _, s := range scp {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	if scope, ok := claims["scope"].(string); ok && scope != "" {
		return strings.Fields(scope)
	}
	return nil
}
