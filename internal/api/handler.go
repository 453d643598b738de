// Package api serves the synchronized status state over a read-only HTTP
// API for the presentation layer.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bissquit/incident-garden-live/internal/domain"
	"github.com/bissquit/incident-garden-live/internal/pkg/ctxlog"
	"github.com/bissquit/incident-garden-live/internal/pkg/httputil"
	"github.com/bissquit/incident-garden-live/internal/realtime"
	"github.com/bissquit/incident-garden-live/internal/session"
	"github.com/bissquit/incident-garden-live/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Source is the live state behind the API.
type Source interface {
	Snapshot() store.Snapshot
	Status() realtime.Status
	Organization() string
	Reconnect(ctx context.Context) error
}

// Handler handles HTTP requests for the status API.
type Handler struct {
	source    Source
	validator *validator.Validate
	now       func() time.Time
}

// NewHandler creates a new status API handler.
func NewHandler(source Source) *Handler {
	return &Handler{
		source:    source,
		validator: validator.New(),
		now:       time.Now,
	}
}

// RegisterRoutes registers read routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/status", h.GetStatus)
	r.Get("/components", h.ListComponents)
	r.Get("/components/{id}", h.GetComponent)
	r.Get("/incidents", h.ListIncidents)
	r.Get("/incidents/{id}", h.GetIncident)
	r.Get("/maintenances", h.ListMaintenances)
	r.Get("/maintenances/{id}", h.GetMaintenance)
}

// RegisterControlRoutes registers routes that act on the connection.
func (h *Handler) RegisterControlRoutes(r chi.Router) {
	r.Post("/reconnect", h.Reconnect)
}

// StatusResponse summarizes the connection and the collections.
type StatusResponse struct {
	Connection     realtime.Status `json:"connection"`
	Organization   string          `json:"organization"`
	AllOperational bool            `json:"allOperational"`
	Revision       uint64          `json:"revision"`
	Stale          store.Staleness `json:"stale"`
	Counts         Counts          `json:"counts"`
}

// Counts holds collection sizes.
type Counts struct {
	Components      int `json:"components"`
	Incidents       int `json:"incidents"`
	ActiveIncidents int `json:"activeIncidents"`
	Maintenances    int `json:"maintenances"`
}

// MaintenanceView is a maintenance window with its status at request time.
type MaintenanceView struct {
	domain.Maintenance
	Status      domain.MaintenanceStatus `json:"status"`
	StatusLabel string                   `json:"statusLabel"`
}

// ListIncidentsQuery holds GET /incidents query parameters.
type ListIncidentsQuery struct {
	Active string `validate:"omitempty,oneof=true false"`
}

// ListMaintenancesQuery holds GET /maintenances query parameters.
type ListMaintenancesQuery struct {
	Status string `validate:"omitempty,oneof=SCHEDULED IN_PROGRESS COMPLETED CANCELLED"`
}

// GetStatus handles GET /status request.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	snap := h.source.Snapshot()

	httputil.Success(w, http.StatusOK, StatusResponse{
		Connection:     h.source.Status(),
		Organization:   h.source.Organization(),
		AllOperational: snap.AllOperational(),
		Revision:       snap.Revision,
		Stale:          snap.Stale,
		Counts: Counts{
			Components:      len(snap.Components),
			Incidents:       len(snap.Incidents),
			ActiveIncidents: len(snap.ActiveIncidents()),
			Maintenances:    len(snap.Maintenances),
		},
	})
}

// ListComponents handles GET /components request.
func (h *Handler) ListComponents(w http.ResponseWriter, r *http.Request) {
	httputil.Success(w, http.StatusOK, nonNil(h.source.Snapshot().Components))
}

// GetComponent handles GET /components/{id} request.
func (h *Handler) GetComponent(w http.ResponseWriter, r *http.Request) {
	c, ok := h.source.Snapshot().Component(chi.URLParam(r, "id"))
	if !ok {
		h.handleError(w, r, ErrComponentNotFound)
		return
	}
	httputil.Success(w, http.StatusOK, c)
}

// ListIncidents handles GET /incidents request.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	query := ListIncidentsQuery{Active: r.URL.Query().Get("active")}
	if err := h.validator.Struct(query); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	snap := h.source.Snapshot()
	incidents := snap.Incidents
	if query.Active == "true" {
		incidents = snap.ActiveIncidents()
	}
	httputil.Success(w, http.StatusOK, nonNil(incidents))
}

// GetIncident handles GET /incidents/{id} request.
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	i, ok := h.source.Snapshot().Incident(chi.URLParam(r, "id"))
	if !ok {
		h.handleError(w, r, ErrIncidentNotFound)
		return
	}
	httputil.Success(w, http.StatusOK, i)
}

// ListMaintenances handles GET /maintenances request.
func (h *Handler) ListMaintenances(w http.ResponseWriter, r *http.Request) {
	query := ListMaintenancesQuery{Status: r.URL.Query().Get("status")}
	if err := h.validator.Struct(query); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	now := h.now()
	var statuses []domain.MaintenanceStatus
	if query.Status != "" {
		statuses = append(statuses, domain.MaintenanceStatus(query.Status))
	}

	windows := h.source.Snapshot().MaintenancesWithStatus(now, statuses...)
	views := make([]MaintenanceView, 0, len(windows))
	for _, m := range windows {
		views = append(views, newMaintenanceView(m, now))
	}
	httputil.Success(w, http.StatusOK, views)
}

// GetMaintenance handles GET /maintenances/{id} request.
func (h *Handler) GetMaintenance(w http.ResponseWriter, r *http.Request) {
	m, ok := h.source.Snapshot().Maintenance(chi.URLParam(r, "id"))
	if !ok {
		h.handleError(w, r, ErrMaintenanceNotFound)
		return
	}
	httputil.Success(w, http.StatusOK, newMaintenanceView(m, h.now()))
}

// Reconnect handles POST /reconnect request.
func (h *Handler) Reconnect(w http.ResponseWriter, r *http.Request) {
	subject := httputil.GetSubject(r.Context())
	if subject == "" {
		subject = "anonymous"
	}
	logger := ctxlog.FromContext(r.Context()).With("subject", subject)

	if err := h.source.Reconnect(r.Context()); err != nil {
		recordReconnect(reconnectResult(err))
		logger.Info("reconnect refused", "error", err)
		h.handleError(w, r, err)
		return
	}

	recordReconnect("accepted")
	logger.Info("reconnect requested")
	httputil.Success(w, http.StatusAccepted, map[string]realtime.Status{
		"connection": h.source.Status(),
	})
}

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrComponentNotFound, Status: http.StatusNotFound},
	{Error: ErrIncidentNotFound, Status: http.StatusNotFound},
	{Error: ErrMaintenanceNotFound, Status: http.StatusNotFound},
	{Error: session.ErrAlreadyActive, Status: http.StatusConflict},
	{Error: session.ErrClosed, Status: http.StatusServiceUnavailable},
	{Error: realtime.ErrNotSignedIn, Status: http.StatusUnauthorized},
}

func reconnectResult(err error) string {
	switch {
	case errors.Is(err, session.ErrAlreadyActive):
		return "already_active"
	case errors.Is(err, session.ErrClosed):
		return "closed"
	case errors.Is(err, realtime.ErrNotSignedIn):
		return "signed_out"
	}
	return "error"
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, errorMappings)
}

func newMaintenanceView(m domain.Maintenance, now time.Time) MaintenanceView {
	status := m.StatusAt(now)
	return MaintenanceView{
		Maintenance: m,
		Status:      status,
		StatusLabel: status.Label(),
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
