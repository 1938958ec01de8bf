// Package cache stores rendered layouts and artifacts.
//
// The [Cache] interface has three implementations: [NullCache] (caching
// disabled), [FileCache] (the CLI default, under the XDG cache directory)
// and [RedisCache] (shared by `downline serve` instances). Keys come from a
// [Keyer] so that different front ends agree on them.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// TTLs for cached entries.
const (
	// TTLLayout is how long a computed layout is kept.
	TTLLayout = 24 * time.Hour

	// TTLArtifact is how long a rendered artifact is kept.
	TTLArtifact = 24 * time.Hour
)

// Cache is a byte-oriented key/value cache with expiry.
type Cache interface {
	// Get returns the value and true on a hit. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}

// GetJSON reads key and decodes it into v. A miss, or an entry that no
// longer decodes, returns [ErrCacheMiss].
func GetJSON(ctx context.Context, c Cache, key string, v any) error {
	data, hit, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if !hit {
		return ErrCacheMiss
	}
	if err := json.Unmarshal(data, v); err != nil {
		_ = c.Delete(ctx, key)
		return ErrCacheMiss
	}
	return nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, ttl)
}
