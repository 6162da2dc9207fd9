package otp

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flag struct{ healthy atomic.Bool }

func (f *flag) Healthy() bool { return f.healthy.Load() }

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr, client := setupRedis(t)
	store := NewRedisStore(client, nil)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "+15551234567", []byte(`{"otp":"123456"}`), DefaultTTL))
	assert.Equal(t, DefaultTTL, mr.TTL("+15551234567"))

	value, err := store.Get(ctx, "+15551234567")
	require.NoError(t, err)
	assert.JSONEq(t, `{"otp":"123456"}`, string(value))

	require.NoError(t, store.Del(ctx, "+15551234567"))
	_, err = store.Get(ctx, "+15551234567")
	assert.ErrorIs(t, err, ErrMissing)
}

func TestRedisStoreExpiry(t *testing.T) {
	mr, client := setupRedis(t)
	engine := NewEngine(NewRedisStore(client, nil))
	ctx := context.Background()

	code, err := engine.IssueReset(ctx, "+15551234567")
	require.NoError(t, err)
	assert.Equal(t, code, mustGet(t, mr, "reset:+15551234567"))

	mr.FastForward(DefaultTTL + time.Second)
	assert.ErrorIs(t, engine.VerifyReset(ctx, "+15551234567", code), ErrNotFound)
}

func TestRedisKeyspaces(t *testing.T) {
	mr, client := setupRedis(t)
	engine := NewEngine(NewRedisStore(client, nil))
	ctx := context.Background()

	resetCode, err := engine.IssueReset(ctx, "+15551234567")
	require.NoError(t, err)
	_, err = engine.Issue(ctx, "+15551234567", registration{Name: "Ada"})
	require.NoError(t, err)
	assert.True(t, mr.Exists("reg:+15551234567"))

	// A registration keyed by the reset key's text stays in its own namespace.
	_, err = engine.Issue(ctx, "reset:+15551234567", registration{Name: "Mallory"})
	require.NoError(t, err)
	assert.True(t, mr.Exists("reg:reset:+15551234567"))
	assert.Equal(t, resetCode, mustGet(t, mr, "reset:+15551234567"))
	assert.NoError(t, engine.VerifyReset(ctx, "+15551234567", resetCode))
}

func TestRedisStoreFailsFastWhenGateClosed(t *testing.T) {
	mr, client := setupRedis(t)
	gate := &flag{}
	store := NewRedisStore(client, gate)
	ctx := context.Background()

	assert.ErrorIs(t, store.Set(ctx, "k", []byte("v"), time.Minute), ErrUnavailable)
	assert.False(t, mr.Exists("k"))

	gate.healthy.Store(true)
	assert.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
}

func TestRedisStoreReportsOutage(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	engine := NewEngine(NewRedisStore(client, nil))
	mr.Close()

	_, err = engine.Issue(context.Background(), "+15551234567", map[string]string{"name": "Ada"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	value := []byte("abc")

	require.NoError(t, store.Set(ctx, "k", value, time.Minute))
	value[0] = 'z'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}
