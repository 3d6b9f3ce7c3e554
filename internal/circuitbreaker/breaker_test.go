package circuitbreaker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		MinCalls:             5,
		FailureRateThreshold: 0.5,
		WaitDuration:         30 * time.Second,
		MaxHalfOpenProbes:    1,
		RequiredSuccesses:    2,
		WindowSize:           10,
	}
}

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

func TestBreaker_StartsClosed(t *testing.T) {
	b := NewBreaker("test", testConfig())

	assert.Equal(t, StateClosed, b.State())
	assert.NoError(t, b.Admit())
}

func TestBreaker_StaysClosedBelowMinCalls(t *testing.T) {
	b := NewBreaker("test", testConfig())

	// Four failures, all failing, but below the minimum sample count.
	for i := 0; i < 4; i++ {
		require.NoError(t, b.Admit())
		b.OnFailure()
	}

	assert.Equal(t, StateClosed, b.State())
	assert.NoError(t, b.Admit())
}

func TestBreaker_TripsAtThreshold(t *testing.T) {
	b := NewBreaker("test", testConfig())

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Admit())
		b.OnFailure()
	}

	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Admit(), ErrOpen)
}

func TestBreaker_DoesNotTripBelowThreshold(t *testing.T) {
	b := NewBreaker("test", testConfig())

	// 4 failures out of 10 samples is below the 0.5 threshold.
	for i := 0; i < 4; i++ {
		require.NoError(t, b.Admit())
		b.OnFailure()
	}
	for i := 0; i < 6; i++ {
		require.NoError(t, b.Admit())
		b.OnSuccess()
	}

	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_WindowDisplacesOldOutcomes(t *testing.T) {
	cfg := testConfig()
	cfg.WindowSize = 5
	b := NewBreaker("test", cfg)

	// Three old failures followed by five successes displace them entirely.
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Admit())
		b.OnFailure()
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, b.Admit())
		b.OnSuccess()
	}

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0.0, b.Stats().FailureRate)
}

func TestBreaker_OpenRejectsBeforeWaitDuration(t *testing.T) {
	clock := newFakeClock()
	b := NewBreaker("test", testConfig(), WithBreakerClock(clock.Now))

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Admit())
		b.OnFailure()
	}
	require.Equal(t, StateOpen, b.State())

	clock.Advance(29 * time.Second)
	assert.ErrorIs(t, b.Admit(), ErrOpen)
}

func TestBreaker_HalfOpenAdmitsSingleProbe(t *testing.T) {
	clock := newFakeClock()
	b := NewBreaker("test", testConfig(), WithBreakerClock(clock.Now))

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Admit())
		b.OnFailure()
	}

	clock.Advance(31 * time.Second)

	// The admitting request becomes the first probe; a concurrent second
	// request exceeds the probe budget.
	require.NoError(t, b.Admit())
	assert.Equal(t, StateHalfOpen, b.State())
	assert.ErrorIs(t, b.Admit(), ErrOpen)
}

func TestBreaker_ProbeFailureReopens(t *testing.T) {
	clock := newFakeClock()
	b := NewBreaker("test", testConfig(), WithBreakerClock(clock.Now))

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Admit())
		b.OnFailure()
	}

	clock.Advance(31 * time.Second)
	require.NoError(t, b.Admit())
	b.OnFailure()

	assert.Equal(t, StateOpen, b.State())

	// The wait duration restarts from the reopen.
	clock.Advance(29 * time.Second)
	assert.ErrorIs(t, b.Admit(), ErrOpen)
	clock.Advance(2 * time.Second)
	assert.NoError(t, b.Admit())
}

func TestBreaker_ClosesAfterRequiredSuccesses(t *testing.T) {
	clock := newFakeClock()
	b := NewBreaker("test", testConfig(), WithBreakerClock(clock.Now))

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Admit())
		b.OnFailure()
	}

	clock.Advance(31 * time.Second)

	require.NoError(t, b.Admit())
	b.OnSuccess()
	require.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Admit())
	b.OnSuccess()

	assert.Equal(t, StateClosed, b.State())

	// The window restarts empty; earlier failures do not count.
	assert.Equal(t, 0, b.Stats().Samples)
}

func TestBreaker_HalfOpenProbeBudgetUnderConcurrency(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	b := NewBreaker("test", cfg, WithBreakerClock(clock.Now))

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Admit())
		b.OnFailure()
	}
	clock.Advance(31 * time.Second)

	var admitted int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Admit() == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, admitted)
}

func TestBreaker_Reset(t *testing.T) {
	b := NewBreaker("test", testConfig())

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Admit())
		b.OnFailure()
	}
	require.Equal(t, StateOpen, b.State())

	b.Reset()

	assert.Equal(t, StateClosed, b.State())
	assert.NoError(t, b.Admit())
}

func TestRegistry_GetOrCreate(t *testing.T) {
	r := NewRegistry(nil)

	b1 := r.GetOrCreate("payments", testConfig())
	b2 := r.GetOrCreate("payments", testConfig())

	assert.Same(t, b1, b2)
	assert.Nil(t, r.Get("unknown"))
	assert.Len(t, r.Stats(), 1)
}

func TestRegistry_ResetAll(t *testing.T) {
	r := NewRegistry(nil)

	b := r.GetOrCreate("payments", testConfig())
	for i := 0; i < 5; i++ {
		require.NoError(t, b.Admit())
		b.OnFailure()
	}
	require.Equal(t, StateOpen, b.State())

	r.ResetAll()

	assert.Equal(t, StateClosed, b.State())
}
