package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/maypok86/otter/v2"
)

const (
	// DefaultMaxEntries bounds the in-memory store when no size is configured.
	DefaultMaxEntries = 10_000

	// DefaultMaxTTL is the longest lifetime an in-memory entry can have.
	DefaultMaxTTL = time.Hour
)

// MemoryStore is an in-process Store backed by otter (W-TinyLFU).
//
// otter evicts by size and expires each entry after its own TTL. Freshness
// is also checked on Get against the store's clock, so an entry is a miss
// from its Expires instant onwards even if otter has not evicted it yet.
type MemoryStore struct {
	cache  *otter.Cache[string, *CacheEntry]
	maxTTL time.Duration
	now    Clock
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces the wall clock used for expiry decisions.
func WithClock(now Clock) MemoryOption {
	return func(m *MemoryStore) {
		if now != nil {
			m.now = now
		}
	}
}

// WithMaxTTL caps per-entry TTLs. Longer TTLs are shortened to this value.
func WithMaxTTL(ttl time.Duration) MemoryOption {
	return func(m *MemoryStore) {
		if ttl > 0 {
			m.maxTTL = ttl
		}
	}
}

// NewMemoryStore creates an in-memory store holding at most maxEntries entries.
// maxEntries <= 0 selects DefaultMaxEntries.
func NewMemoryStore(maxEntries int, opts ...MemoryOption) (*MemoryStore, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	m := &MemoryStore{
		maxTTL: DefaultMaxTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	c, err := otter.New(&otter.Options[string, *CacheEntry]{
		MaximumSize: maxEntries,
		ExpiryCalculator: otter.ExpiryWritingFunc(func(e otter.Entry[string, *CacheEntry]) time.Duration {
			return e.Value.Expires.Sub(e.Value.CachedAt)
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}
	m.cache = c

	return m, nil
}

// Get returns a copy of the entry stored under key.
// Returns ErrCacheMiss if the key was never set or the entry has expired.
func (m *MemoryStore) Get(_ context.Context, key CacheKey) (*CacheEntry, error) {
	k := key.String()

	entry, ok := m.cache.GetIfPresent(k)
	if !ok {
		CacheMisses.WithLabelValues("memory").Inc()
		return nil, ErrCacheMiss
	}

	if entry.IsExpiredAt(m.now()) {
		m.dropExpired(k, entry)
		CacheMisses.WithLabelValues("memory").Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues("memory").Inc()
	return entry.clone(), nil
}

// dropExpired removes expired unless a concurrent Set has already replaced it.
func (m *MemoryStore) dropExpired(k string, expired *CacheEntry) {
	m.cache.ComputeIfPresent(k, func(current *CacheEntry) (*CacheEntry, otter.ComputeOp) {
		if current != expired {
			return current, otter.CancelOp
		}
		return nil, otter.InvalidateOp
	})
}

// Set stores a copy of data under key, replacing any previous entry.
func (m *MemoryStore) Set(_ context.Context, key CacheKey, data []byte, ttl time.Duration) error {
	ttl = effectiveTTL(ttl)
	if ttl > m.maxTTL {
		ttl = m.maxTTL
	}

	k := key.String()
	m.cache.Set(k, newEntry(k, data, ttl, m.now()))
	CacheSets.WithLabelValues("memory").Inc()

	return nil
}

// Len returns the number of entries currently held, including expired
// entries not yet reclaimed.
func (m *MemoryStore) Len() int {
	return m.cache.EstimatedSize()
}

// Purge drops every entry.
func (m *MemoryStore) Purge() {
	m.cache.InvalidateAll()
}
