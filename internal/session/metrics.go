package session

import (
	"time"

	"github.com/bissquit/incident-garden-live/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "incidentgarden"

var (
	joinsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "room_joins_total",
			Help:      "Organization room joins sent",
		},
	)

	bootstrapDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "bootstrap_duration_seconds",
			Help:      "Time from request to applied snapshot per collection",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"collection"},
	)

	bootstrapFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "bootstrap_failures_total",
			Help:      "Bootstraps abandoned after exhausting attempts",
		},
		[]string{"collection"},
	)

	foreignEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "foreign_events_total",
			Help:      "Push events dropped because they belong to another organization",
		},
		[]string{"event"},
	)
)

func recordJoin() {
	joinsTotal.Inc()
}

func recordBootstrap(c store.Collection, started time.Time) {
	bootstrapDuration.WithLabelValues(string(c)).Observe(time.Since(started).Seconds())
}

func recordBootstrapFailure(c store.Collection) {
	bootstrapFailures.WithLabelValues(string(c)).Inc()
}

func recordForeignEvent(event string) {
	foreignEvents.WithLabelValues(event).Inc()
}
