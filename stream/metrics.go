package stream

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_client_stream_events_total",
			Help: "Total number of well-formed notification events received",
		},
		[]string{"type"},
	)

	droppedEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "helpdesk_client_stream_dropped_events_total",
			Help: "Total number of events dropped (malformed payload or lagging subscriber)",
		},
	)

	reconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "helpdesk_client_stream_reconnects_total",
			Help: "Total number of reconnect cycles entered after a transport failure",
		},
	)
)

func init() {
	prometheus.MustRegister(eventsTotal, droppedEventsTotal, reconnectsTotal)
}
