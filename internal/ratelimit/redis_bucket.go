package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tripwell/tripgate/internal/observability"
)

// tokenBucketScript performs refill and take atomically on the shared store,
// keeping per-key updates linearizable across gateway instances. Timestamps
// are milliseconds; the token count is returned as a string to preserve the
// fractional part.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local capacity = tonumber(ARGV[1])
	local rate = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local data = redis.call('HMGET', key, 'tokens', 'last_refill')
	local tokens = tonumber(data[1])
	local last_refill = tonumber(data[2])

	if tokens == nil then
		tokens = capacity
		last_refill = now
	end

	local elapsed = (now - last_refill) / 1000.0
	tokens = math.min(capacity, tokens + (elapsed * rate))

	local allowed = 0
	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill', now)
	redis.call('PEXPIRE', key, ttl)

	return {allowed, tostring(tokens)}
`)

// RedisBucketLimiter implements the token bucket against a shared Redis
// store. On a store error it falls back to an in-process limiter so a Redis
// outage degrades to per-instance enforcement instead of denying traffic.
type RedisBucketLimiter struct {
	client    *redis.Client
	keyPrefix string
	idleTTL   time.Duration
	fallback  *TokenBucketLimiter
	logger    observability.Logger
}

// RedisBucketOption is a functional option for the Redis limiter.
type RedisBucketOption func(*RedisBucketLimiter)

// WithRedisKeyPrefix sets the key prefix for bucket hashes.
func WithRedisKeyPrefix(prefix string) RedisBucketOption {
	return func(l *RedisBucketLimiter) {
		l.keyPrefix = prefix
	}
}

// WithRedisIdleTTL sets the expiry applied to bucket hashes.
func WithRedisIdleTTL(ttl time.Duration) RedisBucketOption {
	return func(l *RedisBucketLimiter) {
		l.idleTTL = ttl
	}
}

// WithRedisLimiterLogger sets the logger.
func WithRedisLimiterLogger(logger observability.Logger) RedisBucketOption {
	return func(l *RedisBucketLimiter) {
		l.logger = logger
	}
}

// NewRedisBucketLimiter creates a Redis-backed token bucket limiter.
func NewRedisBucketLimiter(client *redis.Client, opts ...RedisBucketOption) *RedisBucketLimiter {
	l := &RedisBucketLimiter{
		client:    client,
		keyPrefix: "ratelimit:",
		idleTTL:   10 * time.Minute,
		logger:    observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(l)
	}

	l.fallback = NewTokenBucketLimiter(
		WithIdleTTL(l.idleTTL),
		WithLimiterLogger(l.logger),
	)

	return l
}

// Acquire implements Limiter.
func (l *RedisBucketLimiter) Acquire(ctx context.Context, key string, policy Policy) (*Decision, error) {
	nowMs := time.Now().UnixMilli()

	result, err := tokenBucketScript.Run(ctx, l.client,
		[]string{l.keyPrefix + key},
		policy.Capacity,
		policy.RefillPerSecond,
		nowMs,
		l.idleTTL.Milliseconds(),
	).Slice()
	if err != nil {
		l.logger.Warn("redis bucket unavailable, using local bucket",
			observability.String("key", key),
			observability.Error(err),
		)
		recordStoreFallback()
		return l.fallback.Acquire(ctx, key, policy)
	}

	allowed := result[0].(int64) == 1
	tokens, _ := strconv.ParseFloat(result[1].(string), 64)

	if allowed {
		return &Decision{
			Allowed:   true,
			Remaining: int(tokens),
		}, nil
	}

	retryAfter := time.Duration((1 - tokens) / policy.RefillPerSecond * float64(time.Second))
	return &Decision{
		Allowed:    false,
		Remaining:  0,
		RetryAfter: retryAfter,
	}, nil
}

// Reset implements Limiter.
func (l *RedisBucketLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.keyPrefix+key).Err(); err != nil {
		return err
	}
	return l.fallback.Reset(ctx, key)
}

// Close implements Limiter. The Redis client is owned by the caller.
func (l *RedisBucketLimiter) Close() error {
	return l.fallback.Close()
}
