// Package store holds the session-scoped, in-memory status collections
// and applies decoded push events to them through the reducer.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bissquit/incident-garden-live/internal/domain"
	"github.com/bissquit/incident-garden-live/internal/reducer"
	"github.com/go-playground/validator/v10"
)

// Staleness flags collections whose last bootstrap never completed.
type Staleness struct {
	Components   bool `json:"components"`
	Incidents    bool `json:"incidents"`
	Maintenances bool `json:"maintenances"`
}

// Any reports whether at least one collection is stale.
func (s Staleness) Any() bool {
	return s.Components || s.Incidents || s.Maintenances
}

func (s *Staleness) set(c Collection, stale bool) {
	switch c {
	case CollectionComponents:
		s.Components = stale
	case CollectionIncidents:
		s.Incidents = stale
	case CollectionMaintenances:
		s.Maintenances = stale
	}
}

// Store is safe for concurrent use. Mutations are expected to come from a
// single goroutine (the connection reader) so they keep wire order.
type Store struct {
	logger   *slog.Logger
	validate *validator.Validate

	mu           sync.RWMutex
	components   []domain.Component
	incidents    []domain.Incident
	maintenances []domain.Maintenance
	stale        Staleness
	revision     uint64
}

// New creates an empty store.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger:   logger.With("component", "store"),
		validate: validator.New(),
	}
}

// Snapshot returns the current state. The returned slices are never
// modified by the store and may be retained.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Components:   s.components,
		Incidents:    s.incidents,
		Maintenances: s.maintenances,
		Stale:        s.stale,
		Revision:     s.revision,
	}
}

// Apply decodes a push event payload and merges it into the collections.
// Unknown events and malformed payloads leave the state untouched.
func (s *Store) Apply(event string, data json.RawMessage) error {
	apply, ok := appliers[event]
	if !ok {
		recordEvent("unknown", "unknown")
		return fmt.Errorf("%w: %s", ErrUnknownEvent, event)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := apply(s, data); err != nil {
		recordEvent(event, "invalid")
		return fmt.Errorf("apply %s: %w", event, err)
	}

	s.commit()
	recordEvent(event, "applied")
	s.logger.Debug("event applied", "event", event, "revision", s.revision)
	return nil
}

// ReplaceComponents installs a bootstrap snapshot of components.
func (s *Store) ReplaceComponents(data json.RawMessage) error {
	components, err := decodeList[domain.Component](s.validate, data)
	if err != nil {
		return fmt.Errorf("replace components: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.components = components
	s.markStale(CollectionComponents, false)
	s.commit()
	return nil
}

// ReplaceIncidents installs a bootstrap snapshot of incidents.
func (s *Store) ReplaceIncidents(data json.RawMessage) error {
	incidents, err := decodeList[domain.Incident](s.validate, data)
	if err != nil {
		return fmt.Errorf("replace incidents: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents = incidents
	s.markStale(CollectionIncidents, false)
	s.commit()
	return nil
}

// ReplaceMaintenances installs a bootstrap snapshot of maintenance windows.
func (s *Store) ReplaceMaintenances(data json.RawMessage) error {
	maintenances, err := decodeList[domain.Maintenance](s.validate, data)
	if err != nil {
		return fmt.Errorf("replace maintenances: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.maintenances = maintenances
	s.markStale(CollectionMaintenances, false)
	s.commit()
	return nil
}

// Replace dispatches a bootstrap response to the matching Replace* method.
func (s *Store) Replace(c Collection, data json.RawMessage) error {
	switch c {
	case CollectionComponents:
		return s.ReplaceComponents(data)
	case CollectionIncidents:
		return s.ReplaceIncidents(data)
	case CollectionMaintenances:
		return s.ReplaceMaintenances(data)
	}
	return fmt.Errorf("replace: unknown collection %q", c)
}

// MarkStale flags a collection whose bootstrap gave up. The flag is cleared
// by the next successful Replace.
func (s *Store) MarkStale(c Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markStale(c, true)
	s.revision++
}

// Reset drops every collection, e.g. when the organization changes.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.components = nil
	s.incidents = nil
	s.maintenances = nil
	s.stale = Staleness{}
	for _, c := range Collections() {
		recordStale(c, false)
	}
	s.commit()
}

func (s *Store) markStale(c Collection, stale bool) {
	s.stale.set(c, stale)
	recordStale(c, stale)
}

// commit must be called with mu held.
func (s *Store) commit() {
	s.revision++
	recordSizes(len(s.components), len(s.incidents), len(s.maintenances))
}

type deletion struct {
	ID string `json:"id" validate:"required"`
}

type applier func(s *Store, data json.RawMessage) error

var appliers = map[string]applier{
	EventNewComponent: func(s *Store, data json.RawMessage) error {
		c, err := decode[domain.Component](s.validate, data)
		if err != nil {
			return err
		}
		s.components = reducer.NewComponent(s.components, c)
		return nil
	},
	EventComponentUpdate: func(s *Store, data json.RawMessage) error {
		c, err := decode[domain.Component](s.validate, data)
		if err != nil {
			return err
		}
		s.components = reducer.UpdateComponent(s.components, c)
		return nil
	},
	EventComponentDeleted: func(s *Store, data json.RawMessage) error {
		d, err := decode[deletion](s.validate, data)
		if err != nil {
			return err
		}
		s.components = reducer.DeleteComponent(s.components, d.ID)
		return nil
	},
	EventNewIncident: func(s *Store, data json.RawMessage) error {
		i, err := decode[domain.Incident](s.validate, data)
		if err != nil {
			return err
		}
		s.incidents = reducer.NewIncident(s.incidents, i)
		return nil
	},
	EventIncidentUpdated: func(s *Store, data json.RawMessage) error {
		i, err := decode[domain.Incident](s.validate, data)
		if err != nil {
			return err
		}
		s.incidents = reducer.UpdateIncident(s.incidents, i)
		return nil
	},
	EventIncidentDeleted: func(s *Store, data json.RawMessage) error {
		d, err := decode[deletion](s.validate, data)
		if err != nil {
			return err
		}
		s.incidents = reducer.DeleteIncident(s.incidents, d.ID)
		return nil
	},
	EventIncidentTimelineUpdated: func(s *Store, data json.RawMessage) error {
		e, err := decode[domain.IncidentTimelineEntry](s.validate, data)
		if err != nil {
			return err
		}
		s.incidents = reducer.UpsertIncidentTimeline(s.incidents, e)
		return nil
	},
	EventIncidentTimelineDeleted: func(s *Store, data json.RawMessage) error {
		e, err := decode[domain.IncidentTimelineEntry](s.validate, data)
		if err != nil {
			return err
		}
		s.incidents = reducer.DeleteIncidentTimeline(s.incidents, e.IncidentID, e.ID)
		return nil
	},
	EventNewMaintenance: func(s *Store, data json.RawMessage) error {
		m, err := decode[domain.Maintenance](s.validate, data)
		if err != nil {
			return err
		}
		s.maintenances = reducer.NewMaintenance(s.maintenances, m)
		return nil
	},
	EventMaintenanceUpdated: func(s *Store, data json.RawMessage) error {
		m, err := decode[domain.Maintenance](s.validate, data)
		if err != nil {
			return err
		}
		s.maintenances = reducer.UpdateMaintenance(s.maintenances, m)
		return nil
	},
	EventMaintenanceDeleted: func(s *Store, data json.RawMessage) error {
		d, err := decode[deletion](s.validate, data)
		if err != nil {
			return err
		}
		s.maintenances = reducer.DeleteMaintenance(s.maintenances, d.ID)
		return nil
	},
	EventMaintenanceTimelineUpdated: func(s *Store, data json.RawMessage) error {
		e, err := decode[domain.MaintenanceTimelineEntry](s.validate, data)
		if err != nil {
			return err
		}
		s.maintenances = reducer.UpsertMaintenanceTimeline(s.maintenances, e)
		return nil
	},
	EventMaintenanceTimelineDeleted: func(s *Store, data json.RawMessage) error {
		e, err := decode[domain.MaintenanceTimelineEntry](s.validate, data)
		if err != nil {
			return err
		}
		s.maintenances = reducer.DeleteMaintenanceTimeline(s.maintenances, e.MaintenanceID, e.ID)
		return nil
	},
}

func decode[T any](v *validator.Validate, data json.RawMessage) (T, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := v.Struct(out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return out, nil
}

func decodeList[T any](v *validator.Validate, data json.RawMessage) ([]T, error) {
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	for i := range out {
		if err := v.Struct(out[i]); err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrInvalidPayload, i, err)
		}
	}
	return out, nil
}
