// Package ratelimit implements per-key continuous token-bucket rate limiting.
// Buckets live in process by default; with Redis enabled the bucket state is
// shared across gateway instances via an atomic Lua script.
package ratelimit

import (
	"context"
	"time"
)

// Policy is a token-bucket policy attached to a route.
type Policy struct {
	// Capacity is the maximum bucket size.
	Capacity int

	// RefillPerSecond is the continuous refill rate.
	RefillPerSecond float64
}

// Decision is the result of an acquisition attempt.
type Decision struct {
	// Allowed indicates whether the request may proceed.
	Allowed bool

	// Remaining is the number of whole tokens left in the bucket.
	Remaining int

	// RetryAfter is the wait until one token is available (when denied).
	RetryAfter time.Duration
}

// Limiter is the interface for rate limiting.
type Limiter interface {
	// Acquire attempts to take one token from the bucket for key under the
	// given policy.
	Acquire(ctx context.Context, key string, policy Policy) (*Decision, error)

	// Reset clears the bucket state for key.
	Reset(ctx context.Context, key string) error

	// Close releases limiter resources.
	Close() error
}

// NoopLimiter always allows requests.
type NoopLimiter struct{}

// Acquire implements Limiter.
func (NoopLimiter) Acquire(ctx context.Context, key string, policy Policy) (*Decision, error) {
	return &Decision{Allowed: true, Remaining: policy.Capacity}, nil
}

// Reset implements Limiter.
func (NoopLimiter) Reset(ctx context.Context, key string) error { return nil }

// Close implements Limiter.
func (NoopLimiter) Close() error { return nil }
