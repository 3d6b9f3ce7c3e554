// Package metrics provides the fire-and-forget per-route metrics sink.
// Recording must never block or fail the request pipeline; sink errors are
// swallowed and logged.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tripwell/tripgate/internal/observability"
)

// Outcome classifies how a request left the pipeline.
type Outcome string

const (
	// OutcomeSuccess is a forwarded request answered by the backend without
	// an upstream fault.
	OutcomeSuccess Outcome = "success"

	// OutcomeNoRoute is a 404.
	OutcomeNoRoute Outcome = "no_route"

	// OutcomeUnauthorized is a 401/403 from the auth gate.
	OutcomeUnauthorized Outcome = "unauthorized"

	// OutcomeRateLimited is a 429.
	OutcomeRateLimited Outcome = "rate_limited"

	// OutcomeBreakerRejected is a fallback response served by an open breaker.
	OutcomeBreakerRejected Outcome = "breaker_rejected"

	// OutcomeUpstreamError is a 5xx, timeout, or connection failure from the
	// backend.
	OutcomeUpstreamError Outcome = "upstream_error"
)

// Sample is one recorded request.
type Sample struct {
	Route        string
	Method       string
	Outcome      Outcome
	Status       int
	Latency      time.Duration
	BreakerState string
}

// Sink records request samples.
type Sink interface {
	// Record ingests one sample. Implementations must not block and must
	// not propagate errors.
	Record(s Sample)
}

// NopSink discards all samples.
type NopSink struct{}

// Record implements Sink.
func (NopSink) Record(Sample) {}

// PromSink exports samples as Prometheus metrics.
type PromSink struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	logger   observability.Logger
}

var (
	promRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of requests by route, method, and outcome",
		},
		[]string{"route", "method", "outcome", "status"},
	)

	promRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Request latency by route",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"route"},
	)
)

// NewPromSink creates a Prometheus-backed sink.
func NewPromSink(logger observability.Logger) *PromSink {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &PromSink{
		requests: promRequestsTotal,
		latency:  promRequestDuration,
		logger:   logger,
	}
}

// Record implements Sink. Panics from the metrics library are swallowed so
// observability can never fail a request.
func (s *PromSink) Record(sample Sample) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("metrics sink record failed",
				observability.Any("error", r),
				observability.String("route", sample.Route),
			)
		}
	}()

	s.requests.WithLabelValues(
		sample.Route,
		sample.Method,
		string(sample.Outcome),
		strconv.Itoa(sample.Status),
	).Inc()
	s.latency.WithLabelValues(sample.Route).Observe(sample.Latency.Seconds())
}
