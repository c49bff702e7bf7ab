package exchange

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RFC 8693 / RFC 7523 wire identifiers used by the flow.
const (
	grantTypeTokenExchange = "urn:ietf:params:oauth:grant-type:token-exchange"
	grantTypeJWTBearer     = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	tokenTypeDelegated     = "urn:ietf:params:oauth:token-type:id-jag"
	tokenTypeIDToken       = "urn:ietf:params:oauth:token-type:id_token"
	clientAssertionType    = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
)

const clientAssertionLifetime = 5 * time.Minute

// maxErrorBody caps how much of an upstream error body is read.
const maxErrorBody = 64 << 10

// tokenResponse is the token endpoint success payload.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope"`
	IssuedType  string `json:"issued_token_type"`
}

// errorResponse is the token endpoint failure payload.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// postTokenForm performs one form-encoded token endpoint call and maps
// failures onto the taxonomy.
func (e *Exchanger) postTokenForm(ctx context.Context, endpoint string, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("exchange: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrExchangeTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		oauthErr := &OAuthError{Status: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var wire errorResponse
		if json.Unmarshal(body, &wire) == nil {
			oauthErr.Code = wire.Error
			oauthErr.Description = wire.ErrorDescription
		}
		return nil, oauthErr
	}

	var out tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrExchangeTransient, err)
	}
	if out.AccessToken == "" {
		return nil, &OAuthError{Status: resp.StatusCode, Code: "invalid_response", Description: "missing access_token"}
	}
	return &out, nil
}

// signClientAssertion builds the RS256 client authentication JWT for a
// token endpoint. Each call mints a fresh jti.
func signClientAssertion(agentID string, key *rsa.PrivateKey, endpoint string, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"iss": agentID,
		"sub": agentID,
		"aud": endpoint,
		"iat": now.Unix(),
		"exp": now.Add(clientAssertionLifetime).Unix(),
		"jti": uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
}
