package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/apexwealth/agentgate/resilience"
	"github.com/apexwealth/agentgate/token"
)

// vaultServer fakes the token vault endpoint, splitting step A and
// step B by grant type.
type vaultServer struct {
	*httptest.Server
	t *testing.T

	mu              sync.Mutex
	vaultCalls      int
	connectionCalls int
	vaultForms      []url.Values
	connectionForms []url.Values
	vaultTransient  int
	vaultDelay      time.Duration
	vaultExpiresIn  int64
	denyVault       *errorResponse
	denyVaultStatus int
	denyConn        *errorResponse
	denyConnStatus  int
}

func newVaultServer(t *testing.T) *vaultServer {
	t.Helper()
	s := &vaultServer{t: t, vaultExpiresIn: 3600}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", s.handleToken)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *vaultServer) handleToken(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()

	switch r.PostForm.Get("grant_type") {
	case grantTypeTokenExchange:
		s.handleVaultExchange(w, r)
	case grantTypeFederatedConnection:
		s.handleConnectionExchange(w, r)
	default:
		s.t.Errorf("unexpected grant_type %q", r.PostForm.Get("grant_type"))
		w.WriteHeader(http.StatusBadRequest)
	}
}

func (s *vaultServer) handleVaultExchange(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.vaultCalls++
	calls := s.vaultCalls
	s.vaultForms = append(s.vaultForms, r.PostForm)
	transient := s.vaultTransient > 0
	if transient {
		s.vaultTransient--
	}
	denyStatus, denyBody := s.denyVaultStatus, s.denyVault
	delay := s.vaultDelay
	expiresIn := s.vaultExpiresIn
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if transient {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if denyStatus != 0 {
		w.WriteHeader(denyStatus)
		_ = json.NewEncoder(w).Encode(denyBody)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": fmt.Sprintf("vault-token-%d", calls),
		"token_type":   "Bearer",
		"expires_in":   expiresIn,
	})
}

func (s *vaultServer) handleConnectionExchange(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.connectionCalls++
	s.connectionForms = append(s.connectionForms, r.PostForm)
	denyStatus, denyBody := s.denyConnStatus, s.denyConn
	s.mu.Unlock()

	if denyStatus != 0 {
		w.WriteHeader(denyStatus)
		_ = json.NewEncoder(w).Encode(denyBody)
		return
	}

	connection := r.PostForm.Get("connection")
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": "provider-token-" + connection,
		"token_type":   "Bearer",
		"expires_in":   1800,
		"scope":        "calendar.readonly",
	})
}

func (s *vaultServer) bridge(t *testing.T) *Bridge {
	t.Helper()
	return NewBridge(testConfig(s))
}

func testConfig(s *vaultServer) Config {
	return Config{
		Domain:       s.URL,
		ClientID:     "vault-client",
		ClientSecret: "vault-secret",
		Audience:     "https://vault.apexwealth.dev",
		Retry:        resilience.RetryConfig{BaseDelay: time.Millisecond, NoJitter: true},
	}
}

// TestConfig_TokenEndpoint verifies bare domains get the https scheme
// and explicit schemes are kept.
func TestConfig_TokenEndpoint(t *testing.T) {
	tests := []struct {
		domain string
		want   string
	}{
		{"vault.apexwealth.dev", "https://vault.apexwealth.dev/oauth/token"},
		{"vault.apexwealth.dev/", "https://vault.apexwealth.dev/oauth/token"},
		{"http://127.0.0.1:9999", "http://127.0.0.1:9999/oauth/token"},
	}
	for _, tt := range tests {
		c := Config{Domain: tt.domain}
		if got := c.TokenEndpoint(); got != tt.want {
			t.Errorf("TokenEndpoint(%q) = %q, want %q", tt.domain, got, tt.want)
		}
	}
}

// TestBridge_ExchangeForVaultToken_FormFields verifies the step A wire
// fields.
func TestBridge_ExchangeForVaultToken_FormFields(t *testing.T) {
	srv := newVaultServer(t)
	b := srv.bridge(t)

	tok, err := b.ExchangeForVaultToken(context.Background(), "okta-access-token")
	if err != nil {
		t.Fatalf("ExchangeForVaultToken() error: %v", err)
	}
	if bearer, ok := tok.Bearer(); !ok || bearer != "vault-token-1" {
		t.Errorf("Bearer() = %q, %v", bearer, ok)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if len(srv.vaultForms) != 1 {
		t.Fatalf("vault calls = %d, want 1", len(srv.vaultForms))
	}
	form := srv.vaultForms[0]
	want := map[string]string{
		"grant_type":         "urn:ietf:params:oauth:grant-type:token-exchange",
		"audience":           "https://vault.apexwealth.dev",
		"client_id":          "vault-client",
		"client_secret":      "vault-secret",
		"subject_token_type": "urn:apexwealth:okta-token",
		"subject_token":      "okta-access-token",
		"scope":              "read:vault",
	}
	for k, v := range want {
		if got := form.Get(k); got != v {
			t.Errorf("form %s = %q, want %q", k, got, v)
		}
	}
}

// TestBridge_ExchangeForVaultToken_Caching verifies per-source-token
// caching with the safety margin under the token lifetime.
func TestBridge_ExchangeForVaultToken_Caching(t *testing.T) {
	srv := newVaultServer(t)
	b := srv.bridge(t)
	ctx := context.Background()

	before := time.Now()
	first, err := b.ExchangeForVaultToken(ctx, "okta-token-a")
	if err != nil {
		t.Fatalf("ExchangeForVaultToken() error: %v", err)
	}

	// Below the full lifetime by at least the margin.
	latest := before.Add(time.Duration(srv.vaultExpiresIn)*time.Second - 30*time.Second)
	if !first.ExpiresAt().Before(latest) {
		t.Errorf("ExpiresAt = %v, want safety margin applied", first.ExpiresAt())
	}

	second, err := b.ExchangeForVaultToken(ctx, "okta-token-a")
	if err != nil {
		t.Fatalf("ExchangeForVaultToken() error: %v", err)
	}
	b1, _ := first.Bearer()
	b2, _ := second.Bearer()
	if b1 != b2 {
		t.Error("repeat exchange should reuse the cached vault token")
	}

	if _, err := b.ExchangeForVaultToken(ctx, "okta-token-b"); err != nil {
		t.Fatalf("ExchangeForVaultToken() error: %v", err)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.vaultCalls != 2 {
		t.Errorf("vault calls = %d, want 2 (one per source token)", srv.vaultCalls)
	}
}

// TestBridge_ExchangeForVaultToken_ShortLifetime verifies lifetimes
// under the margin keep their real expiry.
func TestBridge_ExchangeForVaultToken_ShortLifetime(t *testing.T) {
	srv := newVaultServer(t)
	srv.vaultExpiresIn = 30
	b := srv.bridge(t)

	tok, err := b.ExchangeForVaultToken(context.Background(), "okta-token")
	if err != nil {
		t.Fatalf("ExchangeForVaultToken() error: %v", err)
	}
	if _, ok := tok.Bearer(); !ok {
		t.Fatal("short-lived vault token should still be usable")
	}
	if !tok.ExpiresAt().After(time.Now()) {
		t.Errorf("ExpiresAt = %v, want future", tok.ExpiresAt())
	}
}

// TestBridge_ExchangeForVaultToken_Failures verifies the precondition
// failure classes.
func TestBridge_ExchangeForVaultToken_Failures(t *testing.T) {
	srv := newVaultServer(t)

	t.Run("not configured", func(t *testing.T) {
		b := NewBridge(Config{})
		tok, err := b.ExchangeForVaultToken(context.Background(), "okta-token")
		if !errors.Is(err, ErrConfigMissing) {
			t.Fatalf("err = %v, want ErrConfigMissing", err)
		}
		if tok.Ok() {
			t.Error("expected unavailable token")
		}
	})

	t.Run("no source token", func(t *testing.T) {
		b := srv.bridge(t)
		tok, err := b.ExchangeForVaultToken(context.Background(), "")
		if !errors.Is(err, ErrSourceTokenMissing) {
			t.Fatalf("err = %v, want ErrSourceTokenMissing", err)
		}
		if tok.Ok() {
			t.Error("expected unavailable token")
		}
	})

	t.Run("denied", func(t *testing.T) {
		deny := newVaultServer(t)
		deny.denyVaultStatus = http.StatusForbidden
		deny.denyVault = &errorResponse{Error: "invalid_request", ErrorDescription: "exchange profile mismatch"}
		b := deny.bridge(t)

		_, err := b.ExchangeForVaultToken(context.Background(), "okta-token")
		if !errors.Is(err, ErrExchangeDenied) {
			t.Fatalf("err = %v, want ErrExchangeDenied", err)
		}
		var upstream *UpstreamError
		if !errors.As(err, &upstream) || upstream.Code != "invalid_request" {
			t.Errorf("err = %v, want wire fields surfaced", err)
		}
		deny.mu.Lock()
		defer deny.mu.Unlock()
		if deny.vaultCalls != 1 {
			t.Errorf("vault calls = %d, want 1 (no retry)", deny.vaultCalls)
		}
	})
}

// TestBridge_ExchangeForVaultToken_TransientRetried verifies 5xx
// responses retry and fill the cache once recovered.
func TestBridge_ExchangeForVaultToken_TransientRetried(t *testing.T) {
	srv := newVaultServer(t)
	srv.vaultTransient = 2
	b := srv.bridge(t)

	tok, err := b.ExchangeForVaultToken(context.Background(), "okta-token")
	if err != nil {
		t.Fatalf("ExchangeForVaultToken() error: %v", err)
	}
	if !tok.Ok() {
		t.Fatal("expected usable token after retries")
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.vaultCalls != 3 {
		t.Errorf("vault calls = %d, want 3", srv.vaultCalls)
	}
}

// TestBridge_ConcurrentVaultExchange verifies concurrent step A calls
// for one source token collapse into a single upstream exchange.
func TestBridge_ConcurrentVaultExchange(t *testing.T) {
	srv := newVaultServer(t)
	srv.vaultDelay = 50 * time.Millisecond
	b := srv.bridge(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := b.ExchangeForVaultToken(context.Background(), "okta-token"); err != nil {
				t.Errorf("ExchangeForVaultToken() error: %v", err)
			}
		}()
	}
	wg.Wait()

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.vaultCalls != 1 {
		t.Errorf("vault calls = %d, want 1", srv.vaultCalls)
	}
}

// TestBridge_ExchangeForConnectionToken_FormFields verifies the step B
// wire fields carry the vault token as subject.
func TestBridge_ExchangeForConnectionToken_FormFields(t *testing.T) {
	srv := newVaultServer(t)
	b := srv.bridge(t)
	ctx := context.Background()

	vaultToken, err := b.ExchangeForVaultToken(ctx, "okta-token")
	if err != nil {
		t.Fatalf("ExchangeForVaultToken() error: %v", err)
	}

	pt, err := b.ExchangeForConnectionToken(ctx, "google-oauth2", vaultToken)
	if err != nil {
		t.Fatalf("ExchangeForConnectionToken() error: %v", err)
	}
	if !pt.Ok() {
		t.Fatal("expected usable provider token")
	}
	if bearer, _ := pt.Token.Bearer(); bearer != "provider-token-google-oauth2" {
		t.Errorf("Bearer() = %q", bearer)
	}
	if pt.Connection != "google-oauth2" || pt.TokenType != "Bearer" || pt.Scope != "calendar.readonly" {
		t.Errorf("ProviderToken = %+v", pt)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if len(srv.connectionForms) != 1 {
		t.Fatalf("connection calls = %d, want 1", len(srv.connectionForms))
	}
	form := srv.connectionForms[0]
	vaultBearer, _ := vaultToken.Bearer()
	want := map[string]string{
		"grant_type":           "urn:auth0:params:oauth:grant-type:token-exchange:federated-connection-access-token",
		"client_id":            "vault-client",
		"client_secret":        "vault-secret",
		"subject_token_type":   "urn:ietf:params:oauth:token-type:access_token",
		"subject_token":        vaultBearer,
		"connection":           "google-oauth2",
		"requested_token_type": "http://auth0.com/oauth/token-type/federated-connection-access-token",
	}
	for k, v := range want {
		if got := form.Get(k); got != v {
			t.Errorf("form %s = %q, want %q", k, got, v)
		}
	}
}

// TestBridge_ExchangeForConnectionToken_FallbackToCached verifies a
// zero vault token falls back to the most recently minted one.
func TestBridge_ExchangeForConnectionToken_FallbackToCached(t *testing.T) {
	srv := newVaultServer(t)
	b := srv.bridge(t)
	ctx := context.Background()

	minted, err := b.ExchangeForVaultToken(ctx, "okta-token")
	if err != nil {
		t.Fatalf("ExchangeForVaultToken() error: %v", err)
	}

	pt, err := b.ExchangeForConnectionToken(ctx, "salesforce", token.Token{})
	if err != nil {
		t.Fatalf("ExchangeForConnectionToken() error: %v", err)
	}
	if !pt.Ok() {
		t.Fatal("expected usable provider token")
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	mintedBearer, _ := minted.Bearer()
	if got := srv.connectionForms[0].Get("subject_token"); got != mintedBearer {
		t.Errorf("subject_token = %q, want cached vault token", got)
	}
}

// TestBridge_ExchangeForConnectionToken_Failures verifies the failure
// classes for step B.
func TestBridge_ExchangeForConnectionToken_Failures(t *testing.T) {
	t.Run("unknown connection", func(t *testing.T) {
		srv := newVaultServer(t)
		b := srv.bridge(t)
		pt, err := b.ExchangeForConnectionToken(context.Background(), "github", token.Token{})
		if !errors.Is(err, ErrConfigMissing) {
			t.Fatalf("err = %v, want ErrConfigMissing", err)
		}
		if pt.Ok() {
			t.Error("expected unavailable provider token")
		}
	})

	t.Run("no vault token anywhere", func(t *testing.T) {
		srv := newVaultServer(t)
		b := srv.bridge(t)
		_, err := b.ExchangeForConnectionToken(context.Background(), "google-oauth2", token.Token{})
		if !errors.Is(err, ErrSourceTokenMissing) {
			t.Fatalf("err = %v, want ErrSourceTokenMissing", err)
		}
	})

	t.Run("tokenset not found", func(t *testing.T) {
		srv := newVaultServer(t)
		srv.denyConnStatus = http.StatusForbidden
		srv.denyConn = &errorResponse{Error: "tokenset_not_found"}
		b := srv.bridge(t)

		if _, err := b.ExchangeForVaultToken(context.Background(), "okta-token"); err != nil {
			t.Fatalf("ExchangeForVaultToken() error: %v", err)
		}
		pt, err := b.ExchangeForConnectionToken(context.Background(), "google-oauth2", token.Token{})
		if !errors.Is(err, ErrNotLinked) {
			t.Fatalf("err = %v, want ErrNotLinked", err)
		}
		if !errors.Is(pt.Token.Reason(), ErrNotLinked) {
			t.Errorf("reason = %v, want ErrNotLinked", pt.Token.Reason())
		}
	})

	t.Run("access denied naming tokenset", func(t *testing.T) {
		srv := newVaultServer(t)
		srv.denyConnStatus = http.StatusForbidden
		srv.denyConn = &errorResponse{Error: "access_denied", ErrorDescription: "No TokenSet exists for this user"}
		b := srv.bridge(t)

		if _, err := b.ExchangeForVaultToken(context.Background(), "okta-token"); err != nil {
			t.Fatalf("ExchangeForVaultToken() error: %v", err)
		}
		if _, err := b.ExchangeForConnectionToken(context.Background(), "google-oauth2", token.Token{}); !errors.Is(err, ErrNotLinked) {
			t.Fatalf("err = %v, want ErrNotLinked", err)
		}
	})

	t.Run("plain denial", func(t *testing.T) {
		srv := newVaultServer(t)
		srv.denyConnStatus = http.StatusForbidden
		srv.denyConn = &errorResponse{Error: "access_denied", ErrorDescription: "connection disabled"}
		b := srv.bridge(t)

		if _, err := b.ExchangeForVaultToken(context.Background(), "okta-token"); err != nil {
			t.Fatalf("ExchangeForVaultToken() error: %v", err)
		}
		_, err := b.ExchangeForConnectionToken(context.Background(), "google-oauth2", token.Token{})
		if !errors.Is(err, ErrExchangeDenied) {
			t.Fatalf("err = %v, want ErrExchangeDenied", err)
		}
		if errors.Is(err, ErrNotLinked) {
			t.Error("plain denial must not classify as not-linked")
		}
	})
}

// TestBridge_GetProviderToken verifies the two-step composition and
// step A failure propagation.
func TestBridge_GetProviderToken(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := newVaultServer(t)
		b := srv.bridge(t)

		pt, err := b.GetProviderToken(context.Background(), "google-oauth2", "okta-token")
		if err != nil {
			t.Fatalf("GetProviderToken() error: %v", err)
		}
		if !pt.Ok() {
			t.Fatal("expected usable provider token")
		}

		srv.mu.Lock()
		defer srv.mu.Unlock()
		if srv.vaultCalls != 1 || srv.connectionCalls != 1 {
			t.Errorf("calls = vault %d connection %d, want 1 and 1", srv.vaultCalls, srv.connectionCalls)
		}
	})

	t.Run("step A failure propagates", func(t *testing.T) {
		srv := newVaultServer(t)
		srv.denyVaultStatus = http.StatusForbidden
		srv.denyVault = &errorResponse{Error: "invalid_request"}
		b := srv.bridge(t)

		pt, err := b.GetProviderToken(context.Background(), "google-oauth2", "okta-token")
		if !errors.Is(err, ErrExchangeDenied) {
			t.Fatalf("err = %v, want ErrExchangeDenied", err)
		}
		if pt.Ok() {
			t.Error("expected unavailable provider token")
		}

		srv.mu.Lock()
		defer srv.mu.Unlock()
		if srv.connectionCalls != 0 {
			t.Errorf("connection calls = %d, want 0 (fail fast)", srv.connectionCalls)
		}
	})
}
