package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateStore persists the quota state. Load returns nil, nil when nothing
// has been observed yet.
type StateStore interface {
	Load(ctx context.Context) (*QuotaState, error)
	Save(ctx context.Context, state *QuotaState) error
}

// MemoryStateStore keeps the state in process.
type MemoryStateStore struct {
	mu    sync.RWMutex
	state *QuotaState
}

// NewMemoryStateStore creates an empty in-process state store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{}
}

// Load implements StateStore.
func (m *MemoryStateStore) Load(context.Context) (*QuotaState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == nil {
		return nil, nil
	}
	s := *m.state
	return &s, nil
}

// Save implements StateStore.
func (m *MemoryStateStore) Save(_ context.Context, state *QuotaState) error {
	s := *state
	m.mu.Lock()
	m.state = &s
	m.mu.Unlock()
	return nil
}

// RedisStateStore shares the state between proxy instances using one key.
type RedisStateStore struct {
	redis *redis.Client
}

// NewRedisStateStore creates a Redis-backed state store.
func NewRedisStateStore(redisClient *redis.Client) *RedisStateStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStateStore{redis: redisClient}
}

// Load implements StateStore.
func (r *RedisStateStore) Load(ctx context.Context) (*QuotaState, error) {
	remaining, err := r.redis.Get(ctx, RedisKeyRemaining).Int()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get remaining: %w", err)
	}

	limit, err := r.redis.Get(ctx, RedisKeyLimit).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get limit: %w", err)
	}

	lastUpdateStr, err := r.redis.Get(ctx, RedisKeyLastUpdate).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	var lastUpdate time.Time
	if lastUpdateStr != "" {
		if err := json.Unmarshal([]byte(lastUpdateStr), &lastUpdate); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}

	return &QuotaState{
		Remaining:  remaining,
		Limit:      limit,
		LastUpdate: lastUpdate,
	}, nil
}

// Save implements StateStore. Keys expire after one quota window.
func (r *RedisStateStore) Save(ctx context.Context, state *QuotaState) error {
	lastUpdateJSON, err := json.Marshal(state.LastUpdate)
	if err != nil {
		return fmt.Errorf("marshal last update: %w", err)
	}

	pipe := r.redis.TxPipeline()
	pipe.Set(ctx, RedisKeyRemaining, state.Remaining, QuotaWindow)
	pipe.Set(ctx, RedisKeyLimit, state.Limit, QuotaWindow)
	pipe.Set(ctx, RedisKeyLastUpdate, lastUpdateJSON, QuotaWindow)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store quota state in redis: %w", err)
	}
	return nil
}
