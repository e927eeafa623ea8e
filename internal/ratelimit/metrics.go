package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var rateLimitDecisions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "shastrarthi",
		Subsystem: "ratelimit",
		Name:      "decisions_total",
		Help:      "Rate limit decisions by driver and outcome",
	},
	[]string{"driver", "decision"},
)

func recordDecision(driver string, allowed bool) {
	decision := "allowed"
	if !allowed {
		decision = "limited"
	}
	rateLimitDecisions.WithLabelValues(driver, decision).Inc()
}
