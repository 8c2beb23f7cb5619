// Package cache stores raw NASA upstream payloads for a bounded time.
//
// Two Store implementations are provided:
//
//   - MemoryStore: in-process, bounded by entry count (otter W-TinyLFU)
//   - RedisStore: shared across processes, JSON entries with a Redis TTL
//
// Both expire lazily: Get returns ErrCacheMiss from an entry's Expires
// instant onwards. Entries are immutable; Set replaces them.
//
// # Basic Usage
//
//	store, err := cache.NewMemoryStore(10_000)
//	if err != nil {
//		return err
//	}
//
//	key := cache.CacheKey{
//		Upstream:    "images",
//		Endpoint:    "/search",
//		QueryParams: url.Values{"q": {"apollo"}, "page": {"1"}},
//	}
//
//	entry, err := store.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from upstream, then
//		err = store.Set(ctx, key, payload, cache.DefaultTTL)
//	}
//
// # Cache Keys
//
// CacheKey.String produces a canonical key: parameters are sorted, empty
// values dropped and the api_key credential never included. Two requests
// that differ only in parameter order share an entry.
//
// # Metrics
//
//   - nasa_cache_hits_total{layer} - Cache hits
//   - nasa_cache_misses_total{layer} - Cache misses (absent or expired)
//   - nasa_cache_sets_total{layer} - Entries written
//   - nasa_cache_errors_total{operation} - Backend errors
package cache
