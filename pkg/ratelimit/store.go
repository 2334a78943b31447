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

// Redis keys for call-limit state, suffixed with the shop name.
const (
	RedisKeyUsed       = "shopify:call_limit:used"
	RedisKeySize       = "shopify:call_limit:size"
	RedisKeyLastUpdate = "shopify:call_limit:last_update"
)

// StateTTL bounds how long stored state is kept. A full bucket drains well
// within this window, so older state carries no information.
const StateTTL = 5 * time.Minute

// StateStore persists the last observed call-limit state.
// Load returns (nil, nil) when nothing has been observed yet.
type StateStore interface {
	Load(ctx context.Context) (*CallLimitState, error)
	Save(ctx context.Context, state *CallLimitState) error
}

// MemoryStore keeps state in process.
type MemoryStore struct {
	mu    sync.Mutex
	state *CallLimitState
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(_ context.Context) (*CallLimitState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, nil
	}
	s := *m.state
	return &s, nil
}

func (m *MemoryStore) Save(_ context.Context, state *CallLimitState) error {
	if state == nil {
		return errors.New("call limit state cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := *state
	m.state = &s
	return nil
}

// RedisStore shares state between repricer processes working on the same
// shop, since they all draw from one bucket.
type RedisStore struct {
	redis *redis.Client
	shop  string
}

// NewRedisStore creates a store scoped to shop.
func NewRedisStore(redisClient *redis.Client, shop string) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{redis: redisClient, shop: shop}
}

func (r *RedisStore) key(base string) string {
	return base + ":" + r.shop
}

// Load reads the state. Missing keys mean nothing has been observed.
func (r *RedisStore) Load(ctx context.Context) (*CallLimitState, error) {
	used, err := r.redis.Get(ctx, r.key(RedisKeyUsed)).Int()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get calls used: %w", err)
	}

	size, err := r.redis.Get(ctx, r.key(RedisKeySize)).Int()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bucket size: %w", err)
	}

	lastUpdateStr, err := r.redis.Get(ctx, r.key(RedisKeyLastUpdate)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	state := &CallLimitState{Used: used, Size: size}
	if lastUpdateStr != "" {
		if err := json.Unmarshal([]byte(lastUpdateStr), &state.LastUpdate); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}
	return state, nil
}

// Save writes all fields in one pipeline.
func (r *RedisStore) Save(ctx context.Context, state *CallLimitState) error {
	if state == nil {
		return errors.New("call limit state cannot be nil")
	}

	lastUpdateJSON, err := json.Marshal(state.LastUpdate)
	if err != nil {
		return fmt.Errorf("marshal last update: %w", err)
	}

	pipe := r.redis.Pipeline()
	pipe.Set(ctx, r.key(RedisKeyUsed), state.Used, StateTTL)
	pipe.Set(ctx, r.key(RedisKeySize), state.Size, StateTTL)
	pipe.Set(ctx, r.key(RedisKeyLastUpdate), lastUpdateJSON, StateTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store call limit state in redis: %w", err)
	}
	return nil
}
