package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripwell/tripgate/internal/auth"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
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

func TestTokenBucket_AllowsUpToCapacity(t *testing.T) {
	clock := newFakeClock()
	l := NewTokenBucketLimiter(WithClock(clock.Now))
	defer func() { _ = l.Close() }()

	policy := Policy{Capacity: 5, RefillPerSecond: 1}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := l.Acquire(ctx, "k", policy)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d should be allowed", i+1)
	}

	d, err := l.Acquire(ctx, "k", policy)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.InDelta(t, time.Second.Seconds(), d.RetryAfter.Seconds(), 0.01)
}

func TestTokenBucket_ContinuousRefill(t *testing.T) {
	clock := newFakeClock()
	l := NewTokenBucketLimiter(WithClock(clock.Now))
	defer func() { _ = l.Close() }()

	policy := Policy{Capacity: 5, RefillPerSecond: 1}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := l.Acquire(ctx, "k", policy)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	// After one second exactly one token has accrued.
	clock.Advance(time.Second)

	d, err := l.Acquire(ctx, "k", policy)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = l.Acquire(ctx, "k", policy)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestTokenBucket_RefillCappedAtCapacity(t *testing.T) {
	clock := newFakeClock()
	l := NewTokenBucketLimiter(WithClock(clock.Now))
	defer func() { _ = l.Close() }()

	policy := Policy{Capacity: 3, RefillPerSecond: 10}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Acquire(ctx, "k", policy)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	// A long idle period refills to capacity, not beyond.
	clock.Advance(time.Hour)

	allowed := 0
	for i := 0; i < 5; i++ {
		d, err := l.Acquire(ctx, "k", policy)
		require.NoError(t, err)
		if d.Allowed {
			allowed++
		}
	}
	assert.Equal(t, 3, allowed)
}

func TestTokenBucket_KeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	l := NewTokenBucketLimiter(WithClock(clock.Now))
	defer func() { _ = l.Close() }()

	policy := Policy{Capacity: 1, RefillPerSecond: 1}
	ctx := context.Background()

	d, err := l.Acquire(ctx, "a", policy)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = l.Acquire(ctx, "a", policy)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	d, err = l.Acquire(ctx, "b", policy)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestTokenBucket_Reset(t *testing.T) {
	clock := newFakeClock()
	l := NewTokenBucketLimiter(WithClock(clock.Now))
	defer func() { _ = l.Close() }()

	policy := Policy{Capacity: 1, RefillPerSecond: 0.1}
	ctx := context.Background()

	d, err := l.Acquire(ctx, "k", policy)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	require.NoError(t, l.Reset(ctx, "k"))

	d, err = l.Acquire(ctx, "k", policy)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestTokenBucket_EvictsIdleBuckets(t *testing.T) {
	clock := newFakeClock()
	l := NewTokenBucketLimiter(WithClock(clock.Now), WithIdleTTL(time.Minute))
	defer func() { _ = l.Close() }()

	policy := Policy{Capacity: 2, RefillPerSecond: 0.001}
	ctx := context.Background()

	_, err := l.Acquire(ctx, "k", policy)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	l.evictIdle(time.Minute)

	_, ok := l.buckets.Load("k")
	assert.False(t, ok)
}

func TestTokenBucket_ConcurrentAcquire(t *testing.T) {
	l := NewTokenBucketLimiter()
	defer func() { _ = l.Close() }()

	policy := Policy{Capacity: 50, RefillPerSecond: 0.0001}
	ctx := context.Background()

	var allowed int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Acquire(ctx, "k", policy)
			if err == nil && d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// No more than capacity may be admitted in a burst.
	assert.LessOrEqual(t, allowed, int64(50))
	assert.Greater(t, allowed, int64(0))
}

func TestKeyFor(t *testing.T) {
	id := &auth.Identity{Subject: "user-42"}

	assert.Equal(t, "bookings:sub:user-42", KeyFor("bookings", id, "1.2.3.4"))
	assert.Equal(t, "bookings:ip:1.2.3.4", KeyFor("bookings", nil, "1.2.3.4"))
}
