package cache

import (
	"bytes"
	"time"
)

// CacheEntry represents a cached upstream response.
// Entries are never mutated after creation; Set replaces them.
type CacheEntry struct {
	// Key is the canonical cache key the entry was stored under
	Key string `json:"key"`

	// Data is the raw upstream payload
	Data []byte `json:"data"`

	// Expires is when the cache entry becomes stale
	Expires time.Time `json:"expires"`

	// CachedAt is when we cached this response
	CachedAt time.Time `json:"cached_at"`
}

// newEntry builds an entry that expires ttl after now.
// The payload is copied so later writes to data cannot reach the cache.
func newEntry(key string, data []byte, ttl time.Duration, now time.Time) *CacheEntry {
	return &CacheEntry{
		Key:      key,
		Data:     bytes.Clone(data),
		Expires:  now.Add(ttl),
		CachedAt: now,
	}
}

// clone returns a copy that shares nothing with e.
func (e *CacheEntry) clone() *CacheEntry {
	c := *e
	c.Data = bytes.Clone(e.Data)
	return &c
}

// IsExpired returns true if the cache entry has expired.
func (e *CacheEntry) IsExpired() bool {
	return e.IsExpiredAt(time.Now())
}

// IsExpiredAt reports whether the entry is stale at the given instant.
// An entry is stale from its Expires instant onwards.
func (e *CacheEntry) IsExpiredAt(now time.Time) bool {
	return !now.Before(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
