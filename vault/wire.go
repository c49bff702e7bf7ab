package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	grantTypeTokenExchange       = "urn:ietf:params:oauth:grant-type:token-exchange"
	grantTypeFederatedConnection = "urn:auth0:params:oauth:grant-type:token-exchange:federated-connection-access-token"

	subjectTypeAccessToken       = "urn:ietf:params:oauth:token-type:access_token"
	requestedTypeConnectionToken = "http://auth0.com/oauth/token-type/federated-connection-access-token"

	defaultSourceTokenType = "urn:apexwealth:okta-token"
	vaultScope             = "read:vault"

	maxErrorBody = 64 << 10
)

// tokenResponse is the vault token endpoint's success body.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope"`
}

// errorResponse is the vault token endpoint's error body.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// postForm runs one token endpoint call and maps the response onto the
// package taxonomy. Transport failures and malformed success bodies
// classify transient; HTTP error responses become UpstreamError.
func (b *Bridge) postForm(ctx context.Context, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.config.TokenEndpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrExchangeTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		upstream := &UpstreamError{Status: resp.StatusCode}
		var body errorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&body); err == nil {
			upstream.Code = body.Error
			upstream.Description = body.ErrorDescription
		}
		return nil, upstream
	}

	var out tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &UpstreamError{Status: http.StatusOK, Code: "invalid_response", Description: err.Error()}
	}
	if out.AccessToken == "" {
		return nil, &UpstreamError{Status: http.StatusOK, Code: "invalid_response", Description: "response missing access_token"}
	}
	return &out, nil
}
