package circuitbreaker

// window is a fixed-size ring buffer of call outcomes. Not safe for
// concurrent use; the owning breaker holds its lock around every access.
type window struct {
	outcomes []bool
	next     int
	count    int
	failures int
}

func newWindow(size int) *window {
	return &window{outcomes: make([]bool, size)}
}

// add records one outcome, displacing the oldest when full.
func (w *window) add(success bool) {
	if w.count == len(w.outcomes) {
		if !w.outcomes[w.next] {
			w.failures--
		}
	} else {
		w.count++
	}

	w.outcomes[w.next] = success
	if !success {
		w.failures++
	}
	w.next = (w.next + 1) % len(w.outcomes)
}

// failureRate returns the fraction of recorded outcomes that failed.
func (w *window) failureRate() float64 {
	if w.count == 0 {
		return 0
	}
	return float64(w.failures) / float64(w.count)
}

// samples returns the number of recorded outcomes.
func (w *window) samples() int {
	return w.count
}

// reset clears all recorded outcomes.
func (w *window) reset() {
	for i := range w.outcomes {
		w.outcomes[i] = false
	}
	w.next = 0
	w.count = 0
	w.failures = 0
}
