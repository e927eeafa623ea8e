package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	eventContent    = "content"
	eventDone       = "done"
	eventError      = "error"
	eventClientGone = "client_gone"
)

var streamEvents = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "shastrarthi",
		Subsystem: "stream",
		Name:      "events_total",
		Help:      "Server-sent events written, by type",
	},
	[]string{"type"},
)

func recordEvent(eventType string) {
	streamEvents.WithLabelValues(eventType).Inc()
}
