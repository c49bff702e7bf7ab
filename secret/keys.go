package secret

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrNotPrivateKey indicates material that is neither a PEM-encoded
// RSA private key nor a private RSA JWK.
var ErrNotPrivateKey = errors.New("secret: not an RSA private key")

// ParseRSAPrivateKey parses signing-key material in either PEM form
// (PKCS#1 or PKCS#8) or private RSA JWK form (the format identity
// providers hand out when registering an agent).
func ParseRSAPrivateKey(material string) (*rsa.PrivateKey, error) {
	material = strings.TrimSpace(material)
	if material == "" {
		return nil, ErrNotPrivateKey
	}

	if strings.HasPrefix(material, "{") {
		return parseRSAPrivateJWK([]byte(material))
	}
	return parseRSAPrivatePEM([]byte(material))
}

func parseRSAPrivatePEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrNotPrivateKey)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPrivateKey, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: PKCS#8 key is %T", ErrNotPrivateKey, parsed)
	}
	return key, nil
}

// privateJWK is the subset of RFC 7518 §6.3 needed to rebuild an RSA
// private key.
type privateJWK struct {
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
	D   string `json:"d"`
	P   string `json:"p"`
	Q   string `json:"q"`
}

func parseRSAPrivateJWK(data []byte) (*rsa.PrivateKey, error) {
	var jwk privateJWK
	if err := json.Unmarshal(data, &jwk); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPrivateKey, err)
	}
	if jwk.Kty != "RSA" {
		return nil, fmt.Errorf("%w: kty is %q", ErrNotPrivateKey, jwk.Kty)
	}

	n, err := decodeJWKInt(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("%w: n: %v", ErrNotPrivateKey, err)
	}
	e, err := decodeJWKInt(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("%w: e: %v", ErrNotPrivateKey, err)
	}
	d, err := decodeJWKInt(jwk.D)
	if err != nil {
		return nil, fmt.Errorf("%w: d: %v", ErrNotPrivateKey, err)
	}
	p, err := decodeJWKInt(jwk.P)
	if err != nil {
		return nil, fmt.Errorf("%w: p: %v", ErrNotPrivateKey, err)
	}
	q, err := decodeJWKInt(jwk.Q)
	if err != nil {
		return nil, fmt.Errorf("%w: q: %v", ErrNotPrivateKey, err)
	}

	key := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{N: n, E: int(e.Int64())},
		D:         d,
		Primes:    []*big.Int{p, q},
	}
	key.Precompute()
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPrivateKey, err)
	}
	return key, nil
}

func decodeJWKInt(s string) (*big.Int, error) {
	if s == "" {
		return nil, errors.New("missing parameter")
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}
