package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var reconnectRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "incidentgarden",
		Subsystem: "live",
		Name:      "reconnect_requests_total",
		Help:      "Manual reconnect requests by result",
	},
	[]string{"result"},
)

func recordReconnect(result string) {
	reconnectRequests.WithLabelValues(result).Inc()
}
