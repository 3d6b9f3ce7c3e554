package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/tripwell/tripgate/internal/observability"
)

// State represents the state of a circuit breaker.
type State int

const (
	// StateClosed indicates requests pass through and outcomes are sampled.
	StateClosed State = iota

	// StateOpen indicates requests are rejected without contacting the backend.
	StateOpen

	// StateHalfOpen indicates a bounded number of probes are testing the backend.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Admit when the circuit rejects the request.
var ErrOpen = errors.New("circuit breaker open")

// Breaker is a per-route circuit breaker. Call Admit before forwarding; on
// admission, report the outcome with OnSuccess or OnFailure exactly once.
type Breaker struct {
	name   string
	config *Config
	logger observability.Logger

	mu             sync.Mutex
	state          State
	window         *window
	openedAt       time.Time
	probesInFlight int
	probeSuccesses int

	// now is swappable for tests.
	now func() time.Time
}

// BreakerOption is a functional option for a breaker.
type BreakerOption func(*Breaker)

// WithBreakerLogger sets the logger.
func WithBreakerLogger(logger observability.Logger) BreakerOption {
	return func(b *Breaker) {
		b.logger = logger
	}
}

// WithBreakerClock sets the time source.
func WithBreakerClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) {
		b.now = now
	}
}

// NewBreaker creates a new circuit breaker.
func NewBreaker(name string, config *Config, opts ...BreakerOption) *Breaker {
	if config == nil {
		config = DefaultConfig()
	}
	config.Validate()

	b := &Breaker{
		name:   name,
		config: config,
		logger: observability.NopLogger(),
		state:  StateClosed,
		window: newWindow(config.WindowSize),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(b)
	}

	recordState(name, StateClosed)
	return b
}

// Admit decides whether a request may proceed to the backend. When the
// circuit is OPEN past its wait duration, the calling request becomes the
// first half-open probe. Returns ErrOpen when the request must be answered
// with the fallback.
func (b *Breaker) Admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		recordAdmission(b.name, true)
		return nil

	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.config.WaitDuration {
			b.transitionTo(StateHalfOpen)
			b.probesInFlight = 1
			recordAdmission(b.name, true)
			return nil
		}
		recordAdmission(b.name, false)
		return ErrOpen

	case StateHalfOpen:
		if b.probesInFlight < b.config.MaxHalfOpenProbes {
			b.probesInFlight++
			recordAdmission(b.name, true)
			return nil
		}
		recordAdmission(b.name, false)
		return ErrOpen

	default:
		recordAdmission(b.name, false)
		return ErrOpen
	}
}

// OnSuccess records a successful backend call for a previously admitted
// request.
func (b *Breaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	recordOutcome(b.name, true)

	switch b.state {
	case StateClosed:
		b.window.add(true)

	case StateHalfOpen:
		if b.probesInFlight > 0 {
			b.probesInFlight--
		}
		b.probeSuccesses++
		if b.probeSuccesses >= b.config.RequiredSuccesses {
			b.transitionTo(StateClosed)
		}

	case StateOpen:
		// Late result from a call admitted before the trip; the window was
		// reset, nothing to record.
	}
}

// OnFailure records a failed backend call for a previously admitted request.
func (b *Breaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	recordOutcome(b.name, false)

	switch b.state {
	case StateClosed:
		b.window.add(false)
		if b.window.samples() >= b.config.MinCalls &&
			b.window.failureRate() >= b.config.FailureRateThreshold {
			b.transitionTo(StateOpen)
		}

	case StateHalfOpen:
		// Any probe failure re-opens immediately.
		b.transitionTo(StateOpen)

	case StateOpen:
	}
}

// transitionTo moves the breaker to a new state. Must be called with b.mu held.
func (b *Breaker) transitionTo(newState State) {
	oldState := b.state
	b.state = newState

	b.window.reset()
	b.probesInFlight = 0
	b.probeSuccesses = 0

	if newState == StateOpen {
		b.openedAt = b.now()
	}

	recordStateChange(b.name, oldState, newState)

	b.logger.Info("circuit breaker state changed",
		observability.String("breaker", b.name),
		observability.String("from", oldState.String()),
		observability.String("to", newState.String()),
	)
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// Reset forces the breaker back to CLOSED with an empty window.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateClosed {
		b.transitionTo(StateClosed)
		return
	}
	b.window.reset()
}

// Stats is a point-in-time snapshot of a breaker.
type Stats struct {
	Name           string    `json:"name"`
	State          string    `json:"state"`
	Samples        int       `json:"samples"`
	FailureRate    float64   `json:"failureRate"`
	ProbesInFlight int       `json:"probesInFlight"`
	OpenedAt       time.Time `json:"openedAt,omitempty"`
}

// Stats returns a snapshot of the breaker.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		Name:           b.name,
		State:          b.state.String(),
		Samples:        b.window.samples(),
		FailureRate:    b.window.failureRate(),
		ProbesInFlight: b.probesInFlight,
		OpenedAt:       b.openedAt,
	}
}
