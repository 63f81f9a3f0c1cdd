package memquota_test

import (
	"context"
	"sync"
	"testing"
	"time"

	auth "github.com/goliatone/go-gatekeeper"
	"github.com/goliatone/go-gatekeeper/adapters/memquota"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RoundTrip(t *testing.T) {
	store := memquota.New()
	ctx := context.Background()
	now := time.Now()

	window := &auth.QuotaWindow{
		Key:        "user:abc",
		Timestamps: []time.Time{now},
	}

	require.NoError(t, store.Put(ctx, "user:abc", window, time.Minute))

	got, err := store.Get(ctx, "user:abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "user:abc", got.Key)
	assert.Len(t, got.Timestamps, 1)
}

func TestStore_MissingKey(t *testing.T) {
	store := memquota.New()

	got, err := store.Get(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_TTLExpiry(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := memquota.New(memquota.WithClock(func() time.Time { return current }))
	ctx := context.Background()

	window := &auth.QuotaWindow{Key: "k", Timestamps: []time.Time{current}}
	require.NoError(t, store.Put(ctx, "k", window, time.Minute))

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.NotNil(t, got)

	current = current.Add(2 * time.Minute)

	got, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got, "expired entries read as absent")
}

func TestStore_Delete(t *testing.T) {
	store := memquota.New()
	ctx := context.Background()

	window := &auth.QuotaWindow{Key: "k"}
	require.NoError(t, store.Put(ctx, "k", window, time.Minute))
	require.NoError(t, store.Delete(ctx, "k"))

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)

	// deleting an absent key is fine
	assert.NoError(t, store.Delete(ctx, "k"))
}

func TestStore_CopiesOnReadAndWrite(t *testing.T) {
	store := memquota.New()
	ctx := context.Background()
	now := time.Now()

	window := &auth.QuotaWindow{Key: "k", Timestamps: []time.Time{now}}
	require.NoError(t, store.Put(ctx, "k", window, time.Minute))

	// mutating the caller's copy must not leak into the store
	window.Timestamps = append(window.Timestamps, now, now, now)

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Len(t, got.Timestamps, 1)

	// and mutating a read result must not either
	got.Timestamps = nil

	again, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Len(t, again.Timestamps, 1)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := memquota.New()
	ctx := context.Background()
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				window := &auth.QuotaWindow{Key: "shared", Timestamps: []time.Time{now}}
				_ = store.Put(ctx, "shared", window, time.Minute)
				_, _ = store.Get(ctx, "shared")
			}
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, "shared")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestStore_Janitor(t *testing.T) {
	store := memquota.New(memquota.WithJanitor(10 * time.Millisecond))
	defer store.Close()

	ctx := context.Background()
	window := &auth.QuotaWindow{Key: "k"}
	require.NoError(t, store.Put(ctx, "k", window, 5*time.Millisecond))

	assert.Eventually(t, func() bool {
		return store.Len() == 0
	}, time.Second, 10*time.Millisecond)
}
