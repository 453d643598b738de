package store

// Push event names consumed from the organization room.
const (
	EventNewComponent     = "new-component"
	EventComponentUpdate  = "component-update"
	EventComponentDeleted = "component-deleted"

	EventNewIncident             = "new-incident"
	EventIncidentUpdated         = "incident-updated"
	EventIncidentDeleted         = "incident-deleted"
	EventIncidentTimelineUpdated = "timeline-updated"
	EventIncidentTimelineDeleted = "incident-timeline-deleted"

	EventNewMaintenance             = "new-maintenance"
	EventMaintenanceUpdated         = "maintenance-updated"
	EventMaintenanceDeleted         = "maintenance-deleted"
	EventMaintenanceTimelineUpdated = "maintenance-timeline-updated"
	EventMaintenanceTimelineDeleted = "maintenance-timeline-deleted"
)

// Collection names one of the bootstrapped collections.
type Collection string

// Collections.
const (
	CollectionComponents   Collection = "components"
	CollectionIncidents    Collection = "incidents"
	CollectionMaintenances Collection = "maintenances"
)

// Collections lists every tracked collection.
func Collections() []Collection {
	return []Collection{CollectionComponents, CollectionIncidents, CollectionMaintenances}
}

// Events returns the names of all push events the store understands.
func Events() []string {
	names := make([]string, 0, len(appliers))
	for name := range appliers {
		names = append(names, name)
	}
	return names
}
