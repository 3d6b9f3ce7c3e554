package auth

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/tripwell/tripgate/internal/cache"
	"github.com/tripwell/tripgate/internal/observability"
)

// RevocationSet consults the shared cache for revoked token IDs. Lookups run
// behind a gobreaker so a cache outage fast-fails instead of stalling every
// authenticated request.
type RevocationSet struct {
	cache   cache.Cache
	prefix  string
	breaker *gobreaker.CircuitBreaker
	logger  observability.Logger
}

// NewRevocationSet creates a revocation set over the given cache.
func NewRevocationSet(c cache.Cache, prefix string, logger observability.Logger) *RevocationSet {
	if logger == nil {
		logger = observability.NopLogger()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "revocation-cache",
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("revocation cache breaker state changed",
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
		},
	})

	return &RevocationSet{
		cache:   c,
		prefix:  prefix,
		breaker: breaker,
		logger:  logger,
	}
}

// IsRevoked reports whether the token ID is in the revocation set.
func (r *RevocationSet) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.cache.Exists(ctx, r.prefix+tokenID)
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

// Revoke adds a token ID to the revocation set. The TTL should cover the
// remaining token lifetime; entries past expiry are harmless.
func (r *RevocationSet) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	return r.cache.Set(ctx, r.prefix+tokenID, []byte("1"), ttl)
}
