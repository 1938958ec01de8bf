package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// keyVersion is mixed into every generated key. Bump it when the encoding
// of cached layouts or artifacts changes so that old entries stop matching.
const keyVersion = 1

// hashKey returns prefix + ":" + the SHA-256 of the key version and the
// JSON encoding of each part.
func hashKey(prefix string, parts ...any) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	_ = enc.Encode(keyVersion)
	for _, p := range parts {
		_ = enc.Encode(p)
	}
	return prefix + ":" + hex.EncodeToString(h.Sum(nil))
}

// Hash returns the hex SHA-256 of data (64 characters). FileCache shards
// entries by its first two characters.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
