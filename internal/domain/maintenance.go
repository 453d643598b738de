package domain

import "time"

// MaintenanceStatus represents the state of a maintenance window.
type MaintenanceStatus string

// Maintenance statuses.
const (
	MaintenanceStatusScheduled  MaintenanceStatus = "SCHEDULED"
	MaintenanceStatusInProgress MaintenanceStatus = "IN_PROGRESS"
	MaintenanceStatusCompleted  MaintenanceStatus = "COMPLETED"
	MaintenanceStatusCancelled  MaintenanceStatus = "CANCELLED"
)

// IsValid checks if the maintenance status is valid.
func (s MaintenanceStatus) IsValid() bool {
	switch s {
	case MaintenanceStatusScheduled, MaintenanceStatusInProgress,
		MaintenanceStatusCompleted, MaintenanceStatusCancelled:
		return true
	}
	return false
}

// Label returns the human readable status, e.g. "In Progress".
func (s MaintenanceStatus) Label() string {
	return label(string(s))
}

// Maintenance represents a planned maintenance window.
// Its status is not stored; use StatusAt.
type Maintenance struct {
	ID          string                     `json:"id" validate:"required"`
	OrgID       string                     `json:"orgId"`
	Title       string                     `json:"title"`
	Description string                     `json:"description"`
	StartAt     time.Time                  `json:"startAt"`
	EndAt       *time.Time                 `json:"endAt"`
	CreatedAt   time.Time                  `json:"createdAt"`
	UpdatedAt   time.Time                  `json:"updatedAt"`
	Timeline    []MaintenanceTimelineEntry `json:"timeline"`
}

// StatusAt computes the window status at the given instant.
// A window without an end stays in progress once started.
// CANCELLED is never derived here.
func (m *Maintenance) StatusAt(now time.Time) MaintenanceStatus {
	if now.Before(m.StartAt) {
		return MaintenanceStatusScheduled
	}
	if m.EndAt == nil || !now.After(*m.EndAt) {
		return MaintenanceStatusInProgress
	}
	return MaintenanceStatusCompleted
}

// MaintenanceTimelineEntry represents an update posted on a maintenance window.
type MaintenanceTimelineEntry struct {
	ID            string            `json:"id" validate:"required"`
	MaintenanceID string            `json:"maintenanceId" validate:"required"`
	OrgID         string            `json:"orgId"`
	UserID        string            `json:"userId"`
	Status        MaintenanceStatus `json:"status" validate:"omitempty,oneof=SCHEDULED IN_PROGRESS COMPLETED CANCELLED"`
	Message       string            `json:"message"`
	CreatedAt     time.Time         `json:"createdAt"`
}
