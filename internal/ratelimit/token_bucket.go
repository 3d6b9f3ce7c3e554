package ratelimit

import (
	"context"
	"io"
	"math"
	"sync"
	"time"

	"github.com/tripwell/tripgate/internal/observability"
)

var _ io.Closer = (*TokenBucketLimiter)(nil)

// TokenBucketLimiter implements the continuous token-bucket algorithm with
// in-process state. Buckets are created lazily per key, each guarded by its
// own mutex, and swept after an idle TTL to bound memory.
type TokenBucketLimiter struct {
	logger observability.Logger

	buckets sync.Map

	cleanupInterval time.Duration
	idleTTL         time.Duration
	stopCleanup     chan struct{}
	cleanupOnce     sync.Once

	// now is swappable for tests.
	now func() time.Time
}

// bucket holds the token state for a single key.
type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// TokenBucketOption is a functional option for the limiter.
type TokenBucketOption func(*TokenBucketLimiter)

// WithIdleTTL sets the idle duration after which a bucket is evicted.
func WithIdleTTL(ttl time.Duration) TokenBucketOption {
	return func(l *TokenBucketLimiter) {
		l.idleTTL = ttl
	}
}

// WithCleanupInterval sets the sweep interval for idle buckets.
func WithCleanupInterval(interval time.Duration) TokenBucketOption {
	return func(l *TokenBucketLimiter) {
		l.cleanupInterval = interval
	}
}

// WithLimiterLogger sets the logger.
func WithLimiterLogger(logger observability.Logger) TokenBucketOption {
	return func(l *TokenBucketLimiter) {
		l.logger = logger
	}
}

// WithClock sets the time source. Tests use this to step through refills
// without sleeping.
func WithClock(now func() time.Time) TokenBucketOption {
	return func(l *TokenBucketLimiter) {
		l.now = now
	}
}

// NewTokenBucketLimiter creates a new in-process token bucket limiter.
// Call Close when done to stop the background sweep goroutine.
func NewTokenBucketLimiter(opts ...TokenBucketOption) *TokenBucketLimiter {
	l := &TokenBucketLimiter{
		logger:          observability.NopLogger(),
		cleanupInterval: 5 * time.Minute,
		idleTTL:         10 * time.Minute,
		stopCleanup:     make(chan struct{}),
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	go l.cleanupLoop()

	return l
}

func (l *TokenBucketLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.evictIdle(l.idleTTL)
		case <-l.stopCleanup:
			return
		}
	}
}

// Close stops the sweep goroutine. Safe to call multiple times.
func (l *TokenBucketLimiter) Close() error {
	l.cleanupOnce.Do(func() {
		close(l.stopCleanup)
	})
	return nil
}

// Acquire implements Limiter.
func (l *TokenBucketLimiter) Acquire(ctx context.Context, key string, policy Policy) (*Decision, error) {
	now := l.now()

	value, _ := l.buckets.LoadOrStore(key, &bucket{
		tokens:     float64(policy.Capacity),
		lastRefill: now,
	})
	b := value.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()

	// Refill proportionally to elapsed time, capped at capacity.
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens = math.Min(float64(policy.Capacity), b.tokens+elapsed*policy.RefillPerSecond)
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return &Decision{
			Allowed:   true,
			Remaining: int(b.tokens),
		}, nil
	}

	retryAfter := time.Duration((1 - b.tokens) / policy.RefillPerSecond * float64(time.Second))
	return &Decision{
		Allowed:    false,
		Remaining:  0,
		RetryAfter: retryAfter,
	}, nil
}

// Reset implements Limiter.
func (l *TokenBucketLimiter) Reset(ctx context.Context, key string) error {
	l.buckets.Delete(key)
	return nil
}

// evictIdle removes buckets untouched for longer than maxIdle.
func (l *TokenBucketLimiter) evictIdle(maxIdle time.Duration) {
	now := l.now()

	l.buckets.Range(func(key, value interface{}) bool {
		b := value.(*bucket)
		b.mu.Lock()
		idle := now.Sub(b.lastRefill) > maxIdle
		b.mu.Unlock()
		if idle {
			l.buckets.Delete(key)
		}
		return true
	})
}
