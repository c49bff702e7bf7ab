package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Keyer derives cache keys from token derivation coordinates.
//
// Keys embed only a hash of the coordinates, never the coordinates
// themselves, so audience identifiers and similar configuration do not
// leak through cache introspection or logs.
//
// Contract:
// - Determinism: the same parts always produce the same key.
// - Concurrency: safe for concurrent use.
type Keyer struct {
	// Prefix namespaces the derived keys. Default: "tok".
	Prefix string
}

// NewKeyer creates a keyer with the given prefix.
func NewKeyer(prefix string) *Keyer {
	if prefix == "" {
		prefix = "tok"
	}
	return &Keyer{Prefix: prefix}
}

// Key derives a deterministic key from the ordered parts.
// Format: <prefix>:<hash> where hash is the first 16 hex characters of
// SHA-256 over the NUL-joined parts.
func (k *Keyer) Key(parts ...string) string {
	h := sha256.New()
	for i, part := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(part))
	}
	sum := h.Sum(nil)
	return k.Prefix + ":" + hex.EncodeToString(sum[:8])
}
