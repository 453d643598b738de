package store

import (
	"time"

	"github.com/bissquit/incident-garden-live/internal/domain"
	"github.com/bissquit/incident-garden-live/internal/reducer"
)

// Snapshot is a consistent, read-only view of the collections.
// Derived values are computed on demand and never cached.
type Snapshot struct {
	Components   []domain.Component
	Incidents    []domain.Incident
	Maintenances []domain.Maintenance
	Stale        Staleness
	Revision     uint64
}

// AllOperational drives the "All Systems Operational" banner.
func (s Snapshot) AllOperational() bool {
	return reducer.AllOperational(s.Components)
}

// ActiveIncidents returns incidents that are not resolved, newest first.
func (s Snapshot) ActiveIncidents() []domain.Incident {
	active := make([]domain.Incident, 0, len(s.Incidents))
	for _, i := range s.Incidents {
		if !i.Status.IsResolved() {
			active = append(active, i)
		}
	}
	return active
}

// MaintenancesWithStatus returns the windows whose computed status at now
// is one of the given statuses. No statuses means all windows.
func (s Snapshot) MaintenancesWithStatus(now time.Time, statuses ...domain.MaintenanceStatus) []domain.Maintenance {
	if len(statuses) == 0 {
		return s.Maintenances
	}
	out := make([]domain.Maintenance, 0, len(s.Maintenances))
	for i := range s.Maintenances {
		current := s.Maintenances[i].StatusAt(now)
		for _, want := range statuses {
			if current == want {
				out = append(out, s.Maintenances[i])
				break
			}
		}
	}
	return out
}

// Component looks up a component by id.
func (s Snapshot) Component(id string) (domain.Component, bool) {
	for _, c := range s.Components {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Component{}, false
}

// Incident looks up an incident by id.
func (s Snapshot) Incident(id string) (domain.Incident, bool) {
	for _, i := range s.Incidents {
		if i.ID == id {
			return i, true
		}
	}
	return domain.Incident{}, false
}

// Maintenance looks up a maintenance window by id.
func (s Snapshot) Maintenance(id string) (domain.Maintenance, bool) {
	for _, m := range s.Maintenances {
		if m.ID == id {
			return m, true
		}
	}
	return domain.Maintenance{}, false
}
