package api

import "errors"

// API errors.
var (
	ErrComponentNotFound   = errors.New("component not found")
	ErrIncidentNotFound    = errors.New("incident not found")
	ErrMaintenanceNotFound = errors.New("maintenance not found")
)
