package cache

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL is how long an upstream response stays fresh when no TTL is given.
const DefaultTTL = 600 * time.Second

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is a time-bounded store of raw upstream payloads.
//
// Implementations must be safe for concurrent use. Get returns ErrCacheMiss
// for keys that were never set or whose entry has expired. Set overwrites
// any previous entry; a ttl <= 0 selects DefaultTTL.
type Store interface {
	Get(ctx context.Context, key CacheKey) (*CacheEntry, error)
	Set(ctx context.Context, key CacheKey, data []byte, ttl time.Duration) error
}

// Clock returns the current time. Stores take one so tests can move time.
type Clock func() time.Time

func effectiveTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
