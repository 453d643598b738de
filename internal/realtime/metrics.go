package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "incidentgarden"

var (
	connectionStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "connection_status",
			Help:      "1 for the current connection status, 0 otherwise",
		},
		[]string{"status"},
	)

	reconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "reconnect_attempts_total",
			Help:      "Total reconnect attempts",
		},
	)

	framesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "frames_received_total",
			Help:      "Frames read from the connection by type",
		},
		[]string{"type"},
	)

	framesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "frames_sent_total",
			Help:      "Frames written to the connection by event",
		},
		[]string{"event"},
	)

	framesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "frames_dropped_total",
			Help:      "Frames ignored by the client by reason",
		},
		[]string{"reason"},
	)
)

func recordStatus(current Status) {
	for _, s := range AllStatuses() {
		v := 0.0
		if s == current {
			v = 1
		}
		connectionStatus.WithLabelValues(string(s)).Set(v)
	}
}

func recordReconnectAttempt() {
	reconnectAttempts.Inc()
}

func recordFrameReceived(t FrameType) {
	framesReceived.WithLabelValues(string(t)).Inc()
}

func recordFrameSent(event string) {
	framesSent.WithLabelValues(event).Inc()
}

func recordFrameDropped(reason string) {
	framesDropped.WithLabelValues(reason).Inc()
}
