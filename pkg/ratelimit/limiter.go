package ratelimit

import (
	"sync"
	"time"
)

// Limits holds the per-client request rate. RPM of 0 means unlimited.
type Limits struct {
	RPM   int64
	Burst int64
}

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed           bool
	Limit             int64
	Remaining         int64
	RetryAfterSeconds float64
}

// bucket is a token bucket with lazy refill (no background goroutine).
type bucket struct {
	tokens   float64
	max      float64
	rate     float64 // tokens per second
	lastFill time.Time
}

func newBucket(limits Limits, now time.Time) *bucket {
	burst := limits.Burst
	if burst <= 0 {
		burst = limits.RPM
	}
	return &bucket{
		tokens:   float64(burst),
		max:      float64(burst),
		rate:     float64(limits.RPM) / 60.0,
		lastFill: now,
	}
}

func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastFill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = min(b.max, b.tokens+elapsed*b.rate)
	b.lastFill = now
}

func (b *bucket) tryConsume(now time.Time) (remaining int64, allowed bool) {
	b.refill(now)
	if b.tokens >= 1 {
		b.tokens--
		return int64(b.tokens), true
	}
	return 0, false
}

// retryAfter returns seconds until one token is available.
func (b *bucket) retryAfter() float64 {
	if b.tokens >= 1 {
		return 0
	}
	return (1 - b.tokens) / b.rate
}

// limiter is the bucket for one client.
type limiter struct {
	mu       sync.Mutex
	bucket   *bucket
	lastUsed time.Time
}

// Registry manages per-client limiters.
type Registry struct {
	mu       sync.RWMutex
	limiters map[string]*limiter
	limits   Limits
	now      func() time.Time
}

// NewRegistry creates a registry applying limits to every client key.
func NewRegistry(limits Limits) *Registry {
	return &Registry{
		limiters: make(map[string]*limiter),
		limits:   limits,
		now:      time.Now,
	}
}

// Allow consumes one token for key.
func (r *Registry) Allow(key string) Result {
	if r.limits.RPM <= 0 {
		return Result{Allowed: true}
	}

	now := r.now()
	l := r.getOrCreate(key, now)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastUsed = now

	limit := int64(l.bucket.max)
	if remaining, ok := l.bucket.tryConsume(now); ok {
		return Result{Allowed: true, Limit: limit, Remaining: remaining}
	}
	return Result{
		Allowed:           false,
		Limit:             limit,
		RetryAfterSeconds: l.bucket.retryAfter(),
	}
}

func (r *Registry) getOrCreate(key string, now time.Time) *limiter {
	r.mu.RLock()
	l, ok := r.limiters[key]
	r.mu.RUnlock()
	if ok {
		return l
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters[key]; ok {
		return l
	}
	l = &limiter{bucket: newBucket(r.limits, now), lastUsed: now}
	r.limiters[key] = l
	return l
}

// EvictStale removes limiters not used since cutoff.
func (r *Registry) EvictStale(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for k, l := range r.limiters {
		l.mu.Lock()
		stale := l.lastUsed.Before(cutoff)
		l.mu.Unlock()
		if stale {
			delete(r.limiters, k)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of tracked clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.limiters)
}
