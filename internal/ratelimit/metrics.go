package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_ratelimit_decisions_total",
			Help: "Total number of rate limit decisions by route and result",
		},
		[]string{"route", "result"},
	)

	storeFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_ratelimit_store_fallbacks_total",
			Help: "Total number of Redis bucket failures handled by the local bucket",
		},
	)
)

// RecordDecision records an allow or deny for a route.
func RecordDecision(route string, allowed bool) {
	result := "allowed"
	if !allowed {
		result = "denied"
	}
	decisionsTotal.WithLabelValues(route, result).Inc()
}

func recordStoreFallback() {
	storeFallbacksTotal.Inc()
}
