package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisLimiter(t *testing.T) (*RedisBucketLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisBucketLimiter(client)
	t.Cleanup(func() { _ = l.Close() })

	return l, mr
}

func TestRedisBucket_AllowsUpToCapacity(t *testing.T) {
	l, _ := setupRedisLimiter(t)

	policy := Policy{Capacity: 3, RefillPerSecond: 1}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Acquire(ctx, "k", policy)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d should be allowed", i+1)
	}

	d, err := l.Acquire(ctx, "k", policy)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
}

func TestRedisBucket_RefillOverTime(t *testing.T) {
	l, mr := setupRedisLimiter(t)

	policy := Policy{Capacity: 2, RefillPerSecond: 1}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := l.Acquire(ctx, "k", policy)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	d, err := l.Acquire(ctx, "k", policy)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	// miniredis time is frozen; the script reads the now argument, which is
	// wall clock, so sleeping refills the bucket.
	mr.FastForward(time.Second)
	time.Sleep(1100 * time.Millisecond)

	d, err = l.Acquire(ctx, "k", policy)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisBucket_StateSharedAcrossLimiters(t *testing.T) {
	l1, mr := setupRedisLimiter(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	l2 := NewRedisBucketLimiter(client)
	t.Cleanup(func() { _ = l2.Close() })

	policy := Policy{Capacity: 2, RefillPerSecond: 0.001}
	ctx := context.Background()

	d, err := l1.Acquire(ctx, "k", policy)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = l2.Acquire(ctx, "k", policy)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	// Both instances drained the same bucket.
	d, err = l1.Acquire(ctx, "k", policy)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestRedisBucket_FallsBackWhenStoreDown(t *testing.T) {
	l, mr := setupRedisLimiter(t)

	policy := Policy{Capacity: 2, RefillPerSecond: 0.001}
	ctx := context.Background()

	mr.Close()

	// The limiter degrades to local buckets instead of failing requests.
	d, err := l.Acquire(ctx, "k", policy)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = l.Acquire(ctx, "k", policy)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = l.Acquire(ctx, "k", policy)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestRedisBucket_Reset(t *testing.T) {
	l, _ := setupRedisLimiter(t)

	policy := Policy{Capacity: 1, RefillPerSecond: 0.001}
	ctx := context.Background()

	d, err := l.Acquire(ctx, "k", policy)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	require.NoError(t, l.Reset(ctx, "k"))

	d, err = l.Acquire(ctx, "k", policy)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
