// Package reducer holds the pure state transitions applied to the
// in-memory status collections when push events arrive.
//
// Every function returns the next collection and never mutates its
// input, so previously handed out snapshots stay valid.
package reducer

import "github.com/bissquit/incident-garden-live/internal/domain"

// upsertPrepend replaces the item with the same id in place, or
// prepends it when absent.
func upsertPrepend[T any](items []T, item T, id func(*T) string) []T {
	if idx := indexOf(items, id(&item), id); idx >= 0 {
		return replaceAt(items, idx, item)
	}
	out := make([]T, 0, len(items)+1)
	out = append(out, item)
	return append(out, items...)
}

// replace swaps the item with the same id. The input is returned
// untouched when no item matches.
func replace[T any](items []T, item T, id func(*T) string) []T {
	idx := indexOf(items, id(&item), id)
	if idx < 0 {
		return items
	}
	return replaceAt(items, idx, item)
}

// remove drops the item with the given id. The input is returned
// untouched when no item matches.
func remove[T any](items []T, target string, id func(*T) string) []T {
	idx := indexOf(items, target, id)
	if idx < 0 {
		return items
	}
	out := make([]T, 0, len(items)-1)
	out = append(out, items[:idx]...)
	return append(out, items[idx+1:]...)
}

func replaceAt[T any](items []T, idx int, item T) []T {
	out := make([]T, len(items))
	copy(out, items)
	out[idx] = item
	return out
}

func indexOf[T any](items []T, target string, id func(*T) string) int {
	for i := range items {
		if id(&items[i]) == target {
			return i
		}
	}
	return -1
}

func componentID(c *domain.Component) string { return c.ID }

func incidentID(i *domain.Incident) string { return i.ID }

func maintenanceID(m *domain.Maintenance) string { return m.ID }

func incidentEntryID(e *domain.IncidentTimelineEntry) string { return e.ID }

func maintenanceEntryID(e *domain.MaintenanceTimelineEntry) string { return e.ID }

// NewComponent handles "new-component": prepend, or replace a component
// that is already known.
func NewComponent(components []domain.Component, c domain.Component) []domain.Component {
	return upsertPrepend(components, c, componentID)
}

// UpdateComponent handles "component-update".
func UpdateComponent(components []domain.Component, c domain.Component) []domain.Component {
	return replace(components, c, componentID)
}

// DeleteComponent handles "component-deleted".
func DeleteComponent(components []domain.Component, id string) []domain.Component {
	return remove(components, id, componentID)
}

// NewIncident handles "new-incident".
func NewIncident(incidents []domain.Incident, i domain.Incident) []domain.Incident {
	return upsertPrepend(incidents, i, incidentID)
}

// UpdateIncident handles "incident-updated". The known timeline wins over
// whatever the payload carries, since timeline changes arrive as their own
// events.
func UpdateIncident(incidents []domain.Incident, i domain.Incident) []domain.Incident {
	idx := indexOf(incidents, i.ID, incidentID)
	if idx < 0 {
		return incidents
	}
	i.Timeline = incidents[idx].Timeline
	return replaceAt(incidents, idx, i)
}

// DeleteIncident handles "incident-deleted".
func DeleteIncident(incidents []domain.Incident, id string) []domain.Incident {
	return remove(incidents, id, incidentID)
}

// UpsertIncidentTimeline handles "timeline-updated": the entry is
// prepended to its parent's timeline. Entries for unknown incidents are
// dropped.
func UpsertIncidentTimeline(incidents []domain.Incident, e domain.IncidentTimelineEntry) []domain.Incident {
	idx := indexOf(incidents, e.IncidentID, incidentID)
	if idx < 0 {
		return incidents
	}
	parent := incidents[idx]
	parent.Timeline = upsertPrepend(parent.Timeline, e, incidentEntryID)
	return replaceAt(incidents, idx, parent)
}

// DeleteIncidentTimeline handles "incident-timeline-deleted".
func DeleteIncidentTimeline(incidents []domain.Incident, parentID, entryID string) []domain.Incident {
	idx := indexOf(incidents, parentID, incidentID)
	if idx < 0 {
		return incidents
	}
	parent := incidents[idx]
	timeline := remove(parent.Timeline, entryID, incidentEntryID)
	if len(timeline) == len(parent.Timeline) {
		return incidents
	}
	parent.Timeline = timeline
	return replaceAt(incidents, idx, parent)
}

// NewMaintenance handles "new-maintenance".
func NewMaintenance(maintenances []domain.Maintenance, m domain.Maintenance) []domain.Maintenance {
	return upsertPrepend(maintenances, m, maintenanceID)
}

// UpdateMaintenance handles "maintenance-updated", keeping the known timeline.
func UpdateMaintenance(maintenances []domain.Maintenance, m domain.Maintenance) []domain.Maintenance {
	idx := indexOf(maintenances, m.ID, maintenanceID)
	if idx < 0 {
		return maintenances
	}
	m.Timeline = maintenances[idx].Timeline
	return replaceAt(maintenances, idx, m)
}

// DeleteMaintenance handles "maintenance-deleted".
func DeleteMaintenance(maintenances []domain.Maintenance, id string) []domain.Maintenance {
	return remove(maintenances, id, maintenanceID)
}

// UpsertMaintenanceTimeline handles "maintenance-timeline-updated".
func UpsertMaintenanceTimeline(maintenances []domain.Maintenance, e domain.MaintenanceTimelineEntry) []domain.Maintenance {
	idx := indexOf(maintenances, e.MaintenanceID, maintenanceID)
	if idx < 0 {
		return maintenances
	}
	parent := maintenances[idx]
	parent.Timeline = upsertPrepend(parent.Timeline, e, maintenanceEntryID)
	return replaceAt(maintenances, idx, parent)
}

// DeleteMaintenanceTimeline handles "maintenance-timeline-deleted".
func DeleteMaintenanceTimeline(maintenances []domain.Maintenance, parentID, entryID string) []domain.Maintenance {
	idx := indexOf(maintenances, parentID, maintenanceID)
	if idx < 0 {
		return maintenances
	}
	parent := maintenances[idx]
	timeline := remove(parent.Timeline, entryID, maintenanceEntryID)
	if len(timeline) == len(parent.Timeline) {
		return maintenances
	}
	parent.Timeline = timeline
	return replaceAt(maintenances, idx, parent)
}

// AllOperational reports whether every component is operational.
// An empty collection is operational.
func AllOperational(components []domain.Component) bool {
	for i := range components {
		if !components[i].IsOperational() {
			return false
		}
	}
	return true
}
