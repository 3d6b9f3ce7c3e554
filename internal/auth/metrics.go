package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var tokenValidationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gateway_auth_validations_total",
		Help: "Total number of bearer token validations by result",
	},
	[]string{"result"},
)

func recordValidation(result string) {
	tokenValidationsTotal.WithLabelValues(result).Inc()
}
