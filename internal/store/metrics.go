package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "incidentgarden"

var (
	eventsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "events_applied_total",
			Help:      "Push events handled by the store by result",
		},
		[]string{"event", "result"},
	)

	collectionSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "collection_size",
			Help:      "Number of entries held per collection",
		},
		[]string{"collection"},
	)

	collectionStale = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "collection_stale",
			Help:      "1 if the collection could not be bootstrapped",
		},
		[]string{"collection"},
	)
)

func recordEvent(event, result string) {
	eventsApplied.WithLabelValues(event, result).Inc()
}

func recordSizes(components, incidents, maintenances int) {
	collectionSize.WithLabelValues(string(CollectionComponents)).Set(float64(components))
	collectionSize.WithLabelValues(string(CollectionIncidents)).Set(float64(incidents))
	collectionSize.WithLabelValues(string(CollectionMaintenances)).Set(float64(maintenances))
}

func recordStale(c Collection, stale bool) {
	v := 0.0
	if stale {
		v = 1
	}
	collectionStale.WithLabelValues(string(c)).Set(v)
}
