package otp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrMissing is returned by a Store when the key is absent or expired.
	ErrMissing = errors.New("otp: key not found")
	// ErrUnavailable is returned when the backing store cannot be reached.
	ErrUnavailable = errors.New("otp: store unavailable")
)

// Store is an expiring key-value store holding pending OTP state.
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, key string) error
}

// Gate reports whether a dependency is currently believed healthy.
type Gate interface {
	Healthy() bool
}

// RedisStore implements Store on Redis.
type RedisStore struct {
	client *redis.Client
	gate   Gate
}

// NewRedisStore wraps client. When gate is non-nil every call fails fast with
// ErrUnavailable while the gate reports unhealthy.
func NewRedisStore(client *redis.Client, gate Gate) *RedisStore {
	return &RedisStore{client: client, gate: gate}
}

func (s *RedisStore) ready() error {
	if s.client == nil || (s.gate != nil && !s.gate.Healthy()) {
		return ErrUnavailable
	}
	return nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMissing
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get: %v", ErrUnavailable, err)
	}
	return value, nil
}

func (s *RedisStore) Del(ctx context.Context, key string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: del: %v", ErrUnavailable, err)
	}
	return nil
}

type memoryEntry struct {
	value    []byte
	deadline time.Time
}

// MemoryStore is an in-process Store used when no Redis is configured.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

// WithClock replaces the time source, letting tests step past TTLs.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{value: append([]byte(nil), value...), deadline: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, ErrMissing
	}
	if !s.now().Before(entry.deadline) {
		delete(s.entries, key)
		return nil, ErrMissing
	}
	return append([]byte(nil), entry.value...), nil
}

func (s *MemoryStore) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
