package circuitbreaker

import (
	"sync"

	"github.com/tripwell/tripgate/internal/observability"
)

// Registry manages the per-route breakers. Cardinality equals the route
// count, so breakers are created up front or lazily and never evicted.
type Registry struct {
	breakers sync.Map
	logger   observability.Logger
}

// NewRegistry creates a new circuit breaker registry.
func NewRegistry(logger observability.Logger) *Registry {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Registry{logger: logger}
}

// Get returns a breaker by name, or nil if not found.
func (r *Registry) Get(name string) *Breaker {
	value, ok := r.breakers.Load(name)
	if !ok {
		return nil
	}
	return value.(*Breaker)
}

// GetOrCreate returns an existing breaker or creates one with the given config.
func (r *Registry) GetOrCreate(name string, config *Config) *Breaker {
	if value, ok := r.breakers.Load(name); ok {
		return value.(*Breaker)
	}

	b := NewBreaker(name, config, WithBreakerLogger(r.logger))

	actual, loaded := r.breakers.LoadOrStore(name, b)
	if loaded {
		return actual.(*Breaker)
	}

	r.logger.Debug("created circuit breaker",
		observability.String("breaker", name),
	)

	return b
}

// Stats returns snapshots for all breakers.
func (r *Registry) Stats() []Stats {
	var stats []Stats
	r.breakers.Range(func(key, value interface{}) bool {
		stats = append(stats, value.(*Breaker).Stats())
		return true
	})
	return stats
}

// ResetAll forces every breaker back to CLOSED.
func (r *Registry) ResetAll() {
	r.breakers.Range(func(key, value interface{}) bool {
		value.(*Breaker).Reset()
		return true
	})
	r.logger.Info("reset all circuit breakers")
}
