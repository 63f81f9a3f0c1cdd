package redisquota_test

import (
	"context"
	"sync"
	"testing"
	"time"

	auth "github.com/goliatone/go-gatekeeper"
	"github.com/goliatone/go-gatekeeper/adapters/redisquota"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storedValue struct {
	raw []byte
	ttl time.Duration
}

// fakeRedis implements the three commands the store issues. The embedded
// interface satisfies redis.UniversalClient; any other command panics.
type fakeRedis struct {
	redis.UniversalClient

	mu     sync.Mutex
	items  map[string]storedValue
	getErr error
	setErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{items: map[string]storedValue{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	item, ok := f.items[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(item.raw), nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = append([]byte(nil), v...)
	case string:
		raw = []byte(v)
	}

	f.items[key] = storedValue{raw: raw, ttl: expiration}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	var removed int64
	for _, key := range keys {
		if _, ok := f.items[key]; ok {
			delete(f.items, key)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

func (f *fakeRedis) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.items[key]
	return ok
}

func (f *fakeRedis) ttl(key string) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[key].ttl
}

func (f *fakeRedis) put(key, raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[key] = storedValue{raw: []byte(raw)}
}

func TestStore_RoundTrip(t *testing.T) {
	client := newFakeRedis()
	store := redisquota.New(client)
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	window := &auth.QuotaWindow{
		Key:        "user:42",
		Timestamps: []time.Time{now, now.Add(time.Second)},
	}

	require.NoError(t, store.Put(ctx, "user:42", window, time.Hour))

	got, err := store.Get(ctx, "user:42")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "user:42", got.Key)
	require.Len(t, got.Timestamps, 2)
	assert.True(t, got.Timestamps[0].Equal(now))
	assert.True(t, got.Timestamps[1].Equal(now.Add(time.Second)))
}

func TestStore_MissingKey(t *testing.T) {
	store := redisquota.New(newFakeRedis())

	got, err := store.Get(context.Background(), "user:nope")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_KeyNamespaceAndTTL(t *testing.T) {
	client := newFakeRedis()
	store := redisquota.New(client)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "user:42", &auth.QuotaWindow{Key: "user:42"}, 90*time.Minute))

	assert.True(t, client.has("quota:user:42"), "keys live under the quota: prefix")
	assert.Equal(t, 90*time.Minute, client.ttl("quota:user:42"))

	custom := redisquota.New(client, redisquota.WithPrefix("rl:"))
	require.NoError(t, custom.Put(ctx, "user:42", &auth.QuotaWindow{Key: "user:42"}, time.Hour))
	assert.True(t, client.has("rl:user:42"))
}

func TestStore_CorruptValueRestartsWindow(t *testing.T) {
	client := newFakeRedis()
	store := redisquota.New(client)
	ctx := context.Background()

	client.put("quota:user:42", "{not json")

	got, err := store.Get(ctx, "user:42")
	assert.NoError(t, err)
	assert.Nil(t, got, "a corrupt window reads as absent")
	assert.False(t, client.has("quota:user:42"), "the corrupt value is deleted")
}

func TestStore_Delete(t *testing.T) {
	client := newFakeRedis()
	store := redisquota.New(client)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "user:42", &auth.QuotaWindow{Key: "user:42"}, time.Hour))
	require.NoError(t, store.Delete(ctx, "user:42"))

	got, err := store.Get(ctx, "user:42")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_BackendErrorsAreWrapped(t *testing.T) {
	client := newFakeRedis()
	store := redisquota.New(client)
	ctx := context.Background()

	client.getErr = context.DeadlineExceeded
	_, err := store.Get(ctx, "user:42")
	assert.Error(t, err)

	client.getErr = nil
	client.setErr = context.DeadlineExceeded
	err = store.Put(ctx, "user:42", &auth.QuotaWindow{Key: "user:42"}, time.Hour)
	assert.Error(t, err)
}
