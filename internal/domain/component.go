package domain

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ComponentStatus represents the operational status of a component.
type ComponentStatus string

// Component statuses.
const (
	ComponentStatusOperational   ComponentStatus = "OPERATIONAL"
	ComponentStatusDegraded      ComponentStatus = "DEGRADED"
	ComponentStatusPartialOutage ComponentStatus = "PARTIAL_OUTAGE"
	ComponentStatusMajorOutage   ComponentStatus = "MAJOR_OUTAGE"
)

// IsValid checks if the component status is valid.
func (s ComponentStatus) IsValid() bool {
	switch s {
	case ComponentStatusOperational, ComponentStatusDegraded,
		ComponentStatusPartialOutage, ComponentStatusMajorOutage:
		return true
	}
	return false
}

// Label returns the human readable status, e.g. "Partial Outage".
func (s ComponentStatus) Label() string {
	return label(string(s))
}

// Component represents a monitored service shown on the status page.
type Component struct {
	ID          string          `json:"id" validate:"required"`
	OrgID       string          `json:"orgId"`
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	Status      ComponentStatus `json:"status" validate:"required,oneof=OPERATIONAL DEGRADED PARTIAL_OUTAGE MAJOR_OUTAGE"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// IsOperational returns true if the component reports no issues.
func (c *Component) IsOperational() bool {
	return c.Status == ComponentStatusOperational
}

// label converts an upper snake case enum value to title case words.
// A Caser is stateful, so one is created per call.
func label(s string) string {
	words := strings.ReplaceAll(strings.ToLower(s), "_", " ")
	return cases.Title(language.English).String(words)
}
