package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
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

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()

	store, err := NewMemoryStore(MemoryConfig{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestLimiter_AllowsUpToMaxThenRejects(t *testing.T) {
	for _, maxRequests := range []int{1, 3, 10} {
		clock := newFakeClock()
		limiter := NewLimiter("test", Config{MaxRequests: maxRequests, Window: time.Minute},
			newTestStore(t), WithClock(clock.Now))

		for i := 1; i <= maxRequests; i++ {
			d, err := limiter.Allow(t.Context(), "10.0.0.1")
			require.NoError(t, err)
			assert.True(t, d.Allowed, "call %d of %d should be allowed", i, maxRequests)
			assert.Equal(t, i, d.Count)
			assert.Equal(t, maxRequests-i, d.Remaining)

			clock.Advance(time.Second)
		}

		d, err := limiter.Allow(t.Context(), "10.0.0.1")
		require.NoError(t, err)
		assert.False(t, d.Allowed, "call %d should be rejected", maxRequests+1)
		assert.Positive(t, d.RetryAfter)
	}
}

func TestLimiter_WindowResetRestoresBudget(t *testing.T) {
	clock := newFakeClock()
	limiter := NewLimiter("test", Config{MaxRequests: 2, Window: time.Minute},
		newTestStore(t), WithClock(clock.Now))

	ctx := t.Context()

	for range 2 {
		d, err := limiter.Allow(ctx, "caller")
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	d, err := limiter.Allow(ctx, "caller")
	require.NoError(t, err)
	require.False(t, d.Allowed)

	// At exactly the reset instant the old window still applies.
	clock.Advance(time.Minute)

	d, err = limiter.Allow(ctx, "caller")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	clock.Advance(time.Millisecond)

	for i := 1; i <= 2; i++ {
		d, err = limiter.Allow(ctx, "caller")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, i, d.Count)
	}

	d, err = limiter.Allow(ctx, "caller")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestLimiter_CallersDoNotShareBudget(t *testing.T) {
	clock := newFakeClock()
	limiter := NewLimiter("test", Config{MaxRequests: 1, Window: time.Minute},
		newTestStore(t), WithClock(clock.Now))

	d, err := limiter.Allow(t.Context(), "a")
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = limiter.Allow(t.Context(), "a")
	require.NoError(t, err)
	require.False(t, d.Allowed)

	d, err = limiter.Allow(t.Context(), "b")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestLimiter_LimitersSharingStoreAreIsolated(t *testing.T) {
	store := newTestStore(t)
	strict := NewLimiter("strict", Config{MaxRequests: 1, Window: time.Minute}, store)
	lenient := NewLimiter("lenient", Config{MaxRequests: 5, Window: time.Minute}, store)

	_, err := strict.Allow(t.Context(), "caller")
	require.NoError(t, err)

	d, err := strict.Allow(t.Context(), "caller")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	d, err = lenient.Allow(t.Context(), "caller")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Count)
}

func TestLimiter_Defaults(t *testing.T) {
	limiter := NewLimiter("defaults", Config{}, newTestStore(t))

	assert.Equal(t, DefaultMaxRequests, limiter.MaxRequests())
	assert.Equal(t, DefaultWindow, limiter.Window())
	assert.Equal(t, "defaults", limiter.Name())
}

func TestLimiter_ConcurrentCallsDoNotLoseUpdates(t *testing.T) {
	const (
		maxRequests = 50
		goroutines  = 200
	)

	limiter := NewLimiter("concurrent", Config{MaxRequests: maxRequests, Window: time.Hour}, newTestStore(t))

	var (
		allowed atomic.Int64
		wg      sync.WaitGroup
	)

	for range goroutines {
		wg.Add(1)

		go func() {
			defer wg.Done()

			d, err := limiter.Allow(context.Background(), "shared")
			if err == nil && d.Allowed {
				allowed.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int64(maxRequests), allowed.Load())
}

type failingStore struct{}

func (failingStore) Update(context.Context, string, UpdateFunc) error {
	return errors.New("store unavailable")
}

func TestLimiter_StoreErrorIsReturned(t *testing.T) {
	limiter := NewLimiter("broken", Config{}, failingStore{})

	_, err := limiter.Allow(t.Context(), "caller")
	assert.EqualError(t, err, "store unavailable")
}
