// Package circuitbreaker implements the per-route failure-isolation state
// machine (CLOSED/OPEN/HALF_OPEN) with a rolling outcome window and a bounded
// half-open probe budget.
package circuitbreaker

import (
	"time"
)

// Config holds configuration for a circuit breaker.
type Config struct {
	// MinCalls is the minimum number of samples in the window before the
	// failure rate is evaluated.
	MinCalls int

	// FailureRateThreshold is the failure rate (0, 1] at or above which the
	// circuit opens.
	FailureRateThreshold float64

	// WaitDuration is how long the circuit stays open before admitting a
	// half-open probe.
	WaitDuration time.Duration

	// MaxHalfOpenProbes is the hard concurrency budget for half-open probes.
	MaxHalfOpenProbes int

	// RequiredSuccesses is the number of probe successes needed to close the
	// circuit.
	RequiredSuccesses int

	// WindowSize is the size of the rolling outcome ring buffer.
	WindowSize int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		MinCalls:             5,
		FailureRateThreshold: 0.5,
		WaitDuration:         30 * time.Second,
		MaxHalfOpenProbes:    1,
		RequiredSuccesses:    2,
		WindowSize:           10,
	}
}

// Validate replaces out-of-range values with defaults.
func (c *Config) Validate() {
	if c.MinCalls < 1 {
		c.MinCalls = 5
	}
	if c.FailureRateThreshold <= 0 || c.FailureRateThreshold > 1 {
		c.FailureRateThreshold = 0.5
	}
	if c.WaitDuration < time.Millisecond {
		c.WaitDuration = 30 * time.Second
	}
	if c.MaxHalfOpenProbes < 1 {
		c.MaxHalfOpenProbes = 1
	}
	if c.RequiredSuccesses < 1 {
		c.RequiredSuccesses = 1
	}
	if c.WindowSize < c.MinCalls {
		c.WindowSize = c.MinCalls
	}
}
