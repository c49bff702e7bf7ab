package secret

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"testing"
)

func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func TestParseRSAPrivateKeyPKCS1(t *testing.T) {
	key := generateTestKey(t)
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	parsed, err := ParseRSAPrivateKey(string(pemBytes))
	if err != nil {
		t.Fatalf("ParseRSAPrivateKey() error = %v", err)
	}
	if parsed.N.Cmp(key.N) != 0 {
		t.Error("parsed modulus differs from original")
	}
}

func TestParseRSAPrivateKeyPKCS8(t *testing.T) {
	key := generateTestKey(t)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	parsed, err := ParseRSAPrivateKey(string(pemBytes))
	if err != nil {
		t.Fatalf("ParseRSAPrivateKey() error = %v", err)
	}
	if parsed.N.Cmp(key.N) != 0 {
		t.Error("parsed modulus differs from original")
	}
}

func TestParseRSAPrivateKeyJWK(t *testing.T) {
	key := generateTestKey(t)
	jwk := map[string]string{
		"kty": "RSA",
		"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString([]byte{1, 0, 1}),
		"d":   base64.RawURLEncoding.EncodeToString(key.D.Bytes()),
		"p":   base64.RawURLEncoding.EncodeToString(key.Primes[0].Bytes()),
		"q":   base64.RawURLEncoding.EncodeToString(key.Primes[1].Bytes()),
	}
	data, err := json.Marshal(jwk)
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := ParseRSAPrivateKey(string(data))
	if err != nil {
		t.Fatalf("ParseRSAPrivateKey() error = %v", err)
	}
	if parsed.N.Cmp(key.N) != 0 {
		t.Error("parsed modulus differs from original")
	}
	if parsed.D.Cmp(key.D) != 0 {
		t.Error("parsed private exponent differs from original")
	}
}

func TestParseRSAPrivateKeyInvalid(t *testing.T) {
	tests := []struct {
		name     string
		material string
	}{
		{name: "empty", material: ""},
		{name: "whitespace", material: "   \n"},
		{name: "garbage", material: "not a key at all"},
		{name: "jwk wrong kty", material: `{"kty":"EC","n":"x","e":"y"}`},
		{name: "jwk missing d", material: `{"kty":"RSA","n":"AQAB","e":"AQAB"}`},
		{name: "jwk bad json", material: `{"kty":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRSAPrivateKey(tt.material)
			if !errors.Is(err, ErrNotPrivateKey) {
				t.Errorf("ParseRSAPrivateKey() error = %v, want ErrNotPrivateKey", err)
			}
		})
	}
}
