package publish

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultSkipped = "skipped"
	resultReused  = "reused"
	resultCreated = "created"
	resultFailed  = "failed"
)

var publishResults = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "shastrarthi",
		Subsystem: "publish",
		Name:      "results_total",
		Help:      "Outcomes of public page find-or-create calls",
	},
	[]string{"mode", "result"},
)

func recordResult(mode Mode, result string) {
	publishResults.WithLabelValues(string(mode), result).Inc()
}
