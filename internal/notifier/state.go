package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dwsmith1983/chia-monitor/pkg/types"
)

// Supported state backends.
const (
	StateBackendMemory = "memory"
	StateBackendRedis  = "redis"
)

const defaultKeyPrefix = "chia-monitor:"

// StateStore keeps check state between engine restarts. Load returns nil
// when nothing is stored for the check.
type StateStore interface {
	Load(ctx context.Context, check string) (*State, error)
	Save(ctx context.Context, check string, st *State) error
}

// MemoryStateStore keeps state for the life of the process only.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string][]byte
}

// NewMemoryStateStore creates an empty in-memory store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string][]byte)}
}

// Load returns a copy of the stored state.
func (m *MemoryStateStore) Load(_ context.Context, check string) (*State, error) {
	m.mu.Lock()
	data, ok := m.states[check]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Save stores a copy of st.
func (m *MemoryStateStore) Save(_ context.Context, check string, st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.states[check] = data
	m.mu.Unlock()
	return nil
}

// RedisStateStore keeps state as JSON strings in Redis/Valkey.
type RedisStateStore struct {
	client *goredis.Client
	prefix string
}

// NewRedisStateStore creates a store from connection settings.
func NewRedisStateStore(cfg *types.RedisConfig) *RedisStateStore {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisStateStoreFromClient(client, cfg.KeyPrefix)
}

// NewRedisStateStoreFromClient creates a store from an existing client (useful for testing).
func NewRedisStateStoreFromClient(client *goredis.Client, prefix string) *RedisStateStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStateStore{client: client, prefix: prefix}
}

func (r *RedisStateStore) key(check string) string {
	return r.prefix + "check-state:" + check
}

// Ping checks connectivity to the Redis server.
func (r *RedisStateStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Load reads the check's state.
func (r *RedisStateStore) Load(ctx context.Context, check string) (*State, error) {
	data, err := r.client.Get(ctx, r.key(check)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decoding state for %s: %w", check, err)
	}
	return &st, nil
}

// Save writes the check's state without expiry.
func (r *RedisStateStore) Save(ctx context.Context, check string, st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(check), data, 0).Err()
}

// Close closes the Redis client.
func (r *RedisStateStore) Close() error {
	return r.client.Close()
}

// NewStateStore builds the store selected by cfg.
func NewStateStore(ctx context.Context, cfg types.StateConfig) (StateStore, error) {
	switch cfg.Backend {
	case "", StateBackendMemory:
		return NewMemoryStateStore(), nil
	case StateBackendRedis:
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis state backend requires redis settings")
		}
		s := NewRedisStateStore(cfg.Redis)
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.Backend)
	}
}
