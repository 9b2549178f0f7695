package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/stockledger/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T) (*InMemoryIdempotencyStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := newInMemoryIdempotencyStore(time.Hour, clock.Now)
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	ctx := context.Background()

	t.Run("first claim wins", func(t *testing.T) {
		store, _ := newTestStore(t)

		ok, err := store.MarkProcessed(ctx, "adjust-1", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.MarkProcessed(ctx, "adjust-1", time.Hour)
		require.NoError(t, err)
		assert.False(t, ok, "repeat claim must be rejected")
	})

	t.Run("expired claim is taken over", func(t *testing.T) {
		store, clock := newTestStore(t)

		ok, err := store.MarkProcessed(ctx, "adjust-2", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		clock.Advance(time.Minute)

		ok, err = store.MarkProcessed(ctx, "adjust-2", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("keys are independent", func(t *testing.T) {
		store, _ := newTestStore(t)

		for _, key := range []string{"a", "b", "c"} {
			ok, err := store.MarkProcessed(ctx, key, time.Hour)
			require.NoError(t, err)
			assert.True(t, ok, key)
		}
		assert.Equal(t, 3, store.Size())
	})
}

func TestInMemoryIdempotencyStore_IsProcessed(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)

	held, err := store.IsProcessed(ctx, "adjust-1")
	require.NoError(t, err)
	assert.False(t, held)

	_, err = store.MarkProcessed(ctx, "adjust-1", time.Minute)
	require.NoError(t, err)

	held, err = store.IsProcessed(ctx, "adjust-1")
	require.NoError(t, err)
	assert.True(t, held)

	clock.Advance(2 * time.Minute)
	held, err = store.IsProcessed(ctx, "adjust-1")
	require.NoError(t, err)
	assert.False(t, held)
}

func TestInMemoryIdempotencyStore_Release(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	_, err := store.MarkProcessed(ctx, "adjust-1", time.Hour)
	require.NoError(t, err)

	require.NoError(t, store.Release(ctx, "adjust-1"))

	ok, err := store.MarkProcessed(ctx, "adjust-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "released key can be claimed again")

	assert.NoError(t, store.Release(ctx, "never-claimed"))
}

func TestInMemoryIdempotencyStore_Sweep(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)

	_, _ = store.MarkProcessed(ctx, "short", time.Minute)
	_, _ = store.MarkProcessed(ctx, "long", time.Hour)
	require.Equal(t, 2, store.Size())

	clock.Advance(30 * time.Minute)
	store.sweep()

	assert.Equal(t, 1, store.Size())
	held, _ := store.IsProcessed(ctx, "long")
	assert.True(t, held)
}

func TestInMemoryIdempotencyStore_ConcurrentClaims(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	var winners atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.MarkProcessed(ctx, "contended", time.Hour)
			if err == nil && ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

func TestInMemoryIdempotencyStore_CloseTwice(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestIdempotencyStoreFactory(t *testing.T) {
	ctx := context.Background()

	t.Run("memory backend", func(t *testing.T) {
		cfg := &config.Config{Ledger: config.LedgerConfig{IdempotencyBackend: BackendMemory}}
		store, err := NewIdempotencyStoreFactory(cfg).CreateStore(ctx)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := &config.Config{Ledger: config.LedgerConfig{IdempotencyBackend: "memcached"}}
		_, err := NewIdempotencyStoreFactory(cfg).CreateStore(ctx)
		assert.Error(t, err)
	})

	t.Run("unreachable redis falls back when allowed", func(t *testing.T) {
		cfg := &config.Config{
			Ledger: config.LedgerConfig{IdempotencyBackend: BackendRedis},
			Redis:  config.RedisConfig{Host: "127.0.0.1", Port: 1},
		}

		_, err := NewIdempotencyStoreFactory(cfg).CreateStore(ctx)
		assert.Error(t, err)

		store, err := NewIdempotencyStoreFactory(cfg, WithInMemoryFallback(true)).CreateStore(ctx)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})
}
