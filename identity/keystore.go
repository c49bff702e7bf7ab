package identity

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// KeystoreConfig configures the JWKS key store.
type KeystoreConfig struct {
	// URL is the JWKS endpoint URL.
	URL string

	// CacheTTL is how long fetched keys stay fresh before a background
	// refresh is attempted. Default: 1 hour.
	CacheTTL time.Duration

	// HTTPClient is the client used to fetch the key set.
	// If nil, a default client with a 10s timeout is used.
	HTTPClient *http.Client
}

// Keystore fetches and caches RSA signing keys from a JWKS endpoint.
//
// Contract:
// - Concurrency: safe for concurrent use; refreshes collapse via singleflight.
// - Errors: a failed refresh degrades to previously fetched keys when any exist.
type Keystore struct {
	config KeystoreConfig

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetched   map[string]*rsa.PublicKey // survives failed refreshes
	cacheTime time.Time
	group     singleflight.Group
}

// NewKeystore creates a key store for the given JWKS endpoint.
func NewKeystore(config KeystoreConfig) *Keystore {
	if config.CacheTTL == 0 {
		config.CacheTTL = time.Hour
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Keystore{
		config:  config,
		keys:    make(map[string]*rsa.PublicKey),
		fetched: make(map[string]*rsa.PublicKey),
	}
}

// Key returns the RSA public key for the given key ID. An unknown kid
// forces a refresh before giving up; an empty kid selects the sole key
// when exactly one is cached.
func (s *Keystore) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	s.mu.RLock()
	fresh := time.Since(s.cacheTime) < s.config.CacheTTL
	if fresh {
		if key := s.lookupLocked(kid); key != nil {
			s.mu.RUnlock()
			return key, nil
		}
	}
	s.mu.RUnlock()

	_, err, _ := s.group.Do("refresh", func() (any, error) {
		return nil, s.refresh(ctx)
	})
	if err != nil {
		// Serve stale keys rather than failing verification outright.
		s.mu.RLock()
		key := s.lookupLocked(kid)
		if key == nil {
			key = s.lookupFetchedLocked(kid)
		}
		s.mu.RUnlock()

		if key != nil {
			return key, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrKeystoreUnavailable, err)
	}

	s.mu.RLock()
	key := s.lookupLocked(kid)
	s.mu.RUnlock()

	if key == nil {
		return nil, ErrKeyNotFound
	}
	return key, nil
}

// lookupLocked finds a key by ID. Caller must hold at least RLock.
func (s *Keystore) lookupLocked(kid string) *rsa.PublicKey {
	if kid == "" {
		if len(s.keys) == 1 {
			for _, key := range s.keys {
				return key
			}
		}
		return nil
	}
	return s.keys[kid]
}

// lookupFetchedLocked consults the degradation backup. Caller must hold
// at least RLock.
func (s *Keystore) lookupFetchedLocked(kid string) *rsa.PublicKey {
	if kid == "" {
		if len(s.fetched) == 1 {
			for _, key := range s.fetched {
				return key
			}
		}
		return nil
	}
	return s.fetched[kid]
}

func (s *Keystore) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.URL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := s.config.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey)
	for _, jwk := range doc.Keys {
		if jwk.Kty != "RSA" {
			continue
		}
		pub, err := parseRSAPublicJWK(jwk)
		if err != nil {
			continue // skip unparseable entries, keep the rest
		}
		keys[jwk.Kid] = pub
	}

	s.mu.Lock()
	s.keys = keys
	s.cacheTime = time.Now()
	for kid, key := range keys {
		s.fetched[kid] = key
	}
	s.mu.Unlock()

	return nil
}

type jwksDocument struct {
	Keys []publicJWK `json:"keys"`
}

type publicJWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func parseRSAPublicJWK(jwk publicJWK) (*rsa.PublicKey, error) {
	if jwk.N == "" {
		return nil, fmt.Errorf("missing n parameter")
	}
	if jwk.E == "" {
		return nil, fmt.Errorf("missing e parameter")
	}

	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("decode n: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("decode e: %w", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}
