package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=open, 2=half-open)",
		},
		[]string{"breaker"},
	)

	breakerAdmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_circuit_breaker_admissions_total",
			Help: "Total number of admission decisions by breaker and result",
		},
		[]string{"breaker", "result"},
	)

	breakerOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_circuit_breaker_outcomes_total",
			Help: "Total number of recorded call outcomes by breaker",
		},
		[]string{"breaker", "outcome"},
	)

	breakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_circuit_breaker_transitions_total",
			Help: "Total number of breaker state transitions",
		},
		[]string{"breaker", "from", "to"},
	)
)

func recordState(name string, state State) {
	breakerState.WithLabelValues(name).Set(float64(state))
}

func recordAdmission(name string, admitted bool) {
	result := "admitted"
	if !admitted {
		result = "rejected"
	}
	breakerAdmissionsTotal.WithLabelValues(name, result).Inc()
}

func recordOutcome(name string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	breakerOutcomesTotal.WithLabelValues(name, outcome).Inc()
}

func recordStateChange(name string, from, to State) {
	breakerTransitionsTotal.WithLabelValues(name, from.String(), to.String()).Inc()
	recordState(name, to)
}
