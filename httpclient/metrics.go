package httpclient

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	tokenRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_client_token_refresh_total",
			Help: "Total number of token refresh attempts triggered by unauthorized responses",
		},
		[]string{"result"},
	)

	refreshWaitersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "helpdesk_client_refresh_waiters_total",
			Help: "Total number of requests that waited on an already in-flight token refresh",
		},
	)

	replayedRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_client_replayed_requests_total",
			Help: "Total number of requests replayed once after a token refresh",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(tokenRefreshTotal, refreshWaitersTotal, replayedRequestsTotal)
}
