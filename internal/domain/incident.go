package domain

import "time"

// IncidentStatus represents the lifecycle status of an incident.
type IncidentStatus string

// Incident statuses.
const (
	IncidentStatusInvestigating IncidentStatus = "INVESTIGATING"
	IncidentStatusIdentified    IncidentStatus = "IDENTIFIED"
	IncidentStatusMonitoring    IncidentStatus = "MONITORING"
	IncidentStatusResolved      IncidentStatus = "RESOLVED"
)

// IsValid checks if the incident status is valid.
func (s IncidentStatus) IsValid() bool {
	switch s {
	case IncidentStatusInvestigating, IncidentStatusIdentified,
		IncidentStatusMonitoring, IncidentStatusResolved:
		return true
	}
	return false
}

// Label returns the human readable status.
func (s IncidentStatus) Label() string {
	return label(string(s))
}

// IsResolved checks if the status closes the incident.
func (s IncidentStatus) IsResolved() bool {
	return s == IncidentStatusResolved
}

// Incident represents an unplanned disruption.
// OccurredAt keeps the server's "occuredAt" wire spelling.
type Incident struct {
	ID          string                  `json:"id" validate:"required"`
	OrgID       string                  `json:"orgId"`
	UserID      string                  `json:"userId"`
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Status      IncidentStatus          `json:"status" validate:"omitempty,oneof=INVESTIGATING IDENTIFIED MONITORING RESOLVED"`
	OccurredAt  *time.Time              `json:"occuredAt"`
	ResolvedAt  *time.Time              `json:"resolvedAt"`
	CreatedAt   time.Time               `json:"createdAt"`
	UpdatedAt   time.Time               `json:"updatedAt"`
	Timeline    []IncidentTimelineEntry `json:"timeline"`
}

// IncidentTimelineEntry represents a status update posted on an incident.
type IncidentTimelineEntry struct {
	ID         string         `json:"id" validate:"required"`
	IncidentID string         `json:"incidentId" validate:"required"`
	OrgID      string         `json:"orgId"`
	UserID     string         `json:"userId"`
	Status     IncidentStatus `json:"status" validate:"omitempty,oneof=INVESTIGATING IDENTIFIED MONITORING RESOLVED"`
	Message    string         `json:"message"`
	CreatedAt  time.Time      `json:"createdAt"`
}
