package identity

import (
	"context"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testIssuer   = "https://acme.okta.com"
	testClientID = "0oa1client"
)

func signAssertion(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	raw, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign assertion: %v", err)
	}
	return raw
}

func baseClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":    testIssuer,
		"aud":    testClientID,
		"sub":    "00u1subject",
		"email":  "marcus.thompson@apexwealth.com",
		"name":   "Marcus Thompson",
		"groups": []any{"advisors", "premium"},
		"iat":    now.Unix(),
		"exp":    now.Add(time.Hour).Unix(),
	}
}

func newTestVerifier(t *testing.T, key *rsa.PrivateKey, kid string) *Verifier {
	t.Helper()
	srv := newJWKSServer(t)
	srv.setKey(kid, &key.PublicKey)
	return NewVerifier(Config{
		Issuer:   testIssuer,
		ClientID: testClientID,
		JWKSURL:  srv.URL,
	})
}

// TestVerifier_Verify_Valid verifies a well-formed assertion passes and
// all claims surface.
func TestVerifier_Verify_Valid(t *testing.T) {
	key := generateKey(t)
	v := newTestVerifier(t, key, "kid-1")

	raw := signAssertion(t, key, "kid-1", baseClaims())

	a, err := v.Verify(context.Background(), raw)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}

	if !a.Valid() {
		t.Error("expected valid assertion")
	}
	if a.Subject != "00u1subject" {
		t.Errorf("Subject = %q, want 00u1subject", a.Subject)
	}
	if a.Email != "marcus.thompson@apexwealth.com" {
		t.Errorf("Email = %q, want marcus.thompson@apexwealth.com", a.Email)
	}
	if a.Name != "Marcus Thompson" {
		t.Errorf("Name = %q, want Marcus Thompson", a.Name)
	}
	if !a.HasGroup("advisors") || !a.HasGroup("premium") {
		t.Errorf("Groups = %v, want advisors+premium", a.Groups)
	}
	if a.HasGroup("admins") {
		t.Error("HasGroup(admins) should be false")
	}
	if a.Issuer != testIssuer {
		t.Errorf("Issuer = %q, want %q", a.Issuer, testIssuer)
	}
	if a.Raw() != raw {
		t.Error("Raw() should return the original compact assertion")
	}
	if a.Expired() {
		t.Error("assertion should not be expired")
	}
}

// TestVerifier_Verify_Rejections verifies every rejection class maps to
// its sentinel and the umbrella.
func TestVerifier_Verify_Rejections(t *testing.T) {
	key := generateKey(t)
	otherKey := generateKey(t)
	v := newTestVerifier(t, key, "kid-1")

	expired := baseClaims()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()

	wrongIss := baseClaims()
	wrongIss["iss"] = "https://evil.example.com"

	wrongAud := baseClaims()
	wrongAud["aud"] = "someone-else"

	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"empty", "", ErrMissingAssertion},
		{"whitespace", "   ", ErrMissingAssertion},
		{"garbage", "not.a.jwt", ErrAssertionMalformed},
		{"expired", signAssertion(t, key, "kid-1", expired), ErrAssertionExpired},
		{"wrong issuer", signAssertion(t, key, "kid-1", wrongIss), ErrIssuerMismatch},
		{"wrong audience", signAssertion(t, key, "kid-1", wrongAud), ErrAudienceMismatch},
		{"unknown kid", signAssertion(t, otherKey, "kid-ghost", baseClaims()), ErrKeyNotFound},
		{"wrong key", signAssertion(t, otherKey, "kid-1", baseClaims()), ErrAssertionMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.raw)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify() = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrIdentityInvalid) {
				t.Errorf("rejection should match ErrIdentityInvalid, got %v", err)
			}
		})
	}
}

// TestVerifier_Verify_RejectsNonRSA verifies HMAC-signed tokens are
// refused before any key lookup.
func TestVerifier_Verify_RejectsNonRSA(t *testing.T) {
	key := generateKey(t)
	v := newTestVerifier(t, key, "kid-1")

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, baseClaims())
	raw, err := tok.SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("failed to sign HS256 token: %v", err)
	}

	_, err = v.Verify(context.Background(), raw)
	if !errors.Is(err, ErrAssertionMalformed) {
		t.Errorf("Verify() = %v, want ErrAssertionMalformed", err)
	}
}

// TestVerifier_Verify_AudienceList verifies the aud claim may be a list
// containing the client.
func TestVerifier_Verify_AudienceList(t *testing.T) {
	key := generateKey(t)
	v := newTestVerifier(t, key, "kid-1")

	claims := baseClaims()
	claims["aud"] = []any{"other-app", testClientID}

	a, err := v.Verify(context.Background(), signAssertion(t, key, "kid-1", claims))
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if a.Subject != "00u1subject" {
		t.Errorf("Subject = %q, want 00u1subject", a.Subject)
	}
}

// TestNewVerifier_DefaultJWKSURL verifies the Okta org key endpoint is
// derived from the issuer.
func TestNewVerifier_DefaultJWKSURL(t *testing.T) {
	v := NewVerifier(Config{Issuer: "https://acme.okta.com/"})
	if got := v.keys.config.URL; got != "https://acme.okta.com/oauth2/v1/keys" {
		t.Errorf("derived JWKS URL = %q, want https://acme.okta.com/oauth2/v1/keys", got)
	}
}

// TestAssertion_String verifies the raw token never leaks through
// String.
func TestAssertion_String(t *testing.T) {
	key := generateKey(t)
	v := newTestVerifier(t, key, "kid-1")

	raw := signAssertion(t, key, "kid-1", baseClaims())
	a, err := v.Verify(context.Background(), raw)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}

	if got := a.String(); got != "assertion(00u1subject)" {
		t.Errorf("String() = %q, want assertion(00u1subject)", got)
	}

	var zero Assertion
	if got := zero.String(); got != "assertion(invalid)" {
		t.Errorf("zero String() = %q, want assertion(invalid)", got)
	}
}
