package httputil

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bissquit/incident-garden-live/internal/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTestNotFound = errors.New("thing not found")

func TestHandleError(t *testing.T) {
	mappings := []ErrorMapping{
		{Error: errTestNotFound, Status: http.StatusNotFound},
		{Error: context.Canceled, Status: http.StatusServiceUnavailable, Message: "try again"},
	}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"mapped with error text", errTestNotFound, http.StatusNotFound, `{"error":{"message":"thing not found"}}`},
		{"wrapped", errors.Join(errors.New("ctx"), errTestNotFound), http.StatusNotFound, ""},
		{"mapped with message", context.Canceled, http.StatusServiceUnavailable, `{"error":{"message":"try again"}}`},
		{"unmapped", errors.New("boom"), http.StatusInternalServerError, `{"error":{"message":"internal error"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleError(context.Background(), rec, tt.err, mappings)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	type query struct {
		Active string `validate:"oneof=true false"`
	}
	err := validator.New().Struct(query{Active: "maybe"})
	require.Error(t, err)

	rec := httptest.NewRecorder()
	ValidationError(rec, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":{"message":"validation error","details":[{"field":"active","message":"oneof"}]}}`, rec.Body.String())
}

func TestAuthMiddleware(t *testing.T) {
	tokens := TokenValidatorFunc(func(_ context.Context, token string) (string, error) {
		if token != "good" {
			return "", errors.New("bad token")
		}
		return "operator", nil
	})

	var subject string
	handler := AuthMiddleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject = GetSubject(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"ok", "Bearer good", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/reconnect", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
	assert.Equal(t, "operator", subject)
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	handler := CORSMiddleware([]string{"https://status.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/status", nil)
	req.Header.Set("Origin", "https://status.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://status.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestRequestLoggerMiddleware_HealthChecksAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	handler := RequestLoggerMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Empty(t, buf.String())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	assert.Contains(t, buf.String(), "path=/api/v1/status")
}

func observations(t *testing.T, method, route, status string) uint64 {
	t.Helper()
	var m dto.Metric
	observer, err := metrics.HTTPRequestDuration.GetMetricWithLabelValues(method, route, status)
	require.NoError(t, err)
	require.NoError(t, observer.(interface{ Write(*dto.Metric) error }).Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func inFlight(t *testing.T) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, metrics.HTTPRequestsInFlight.Write(&m))
	return m.GetGauge().GetValue()
}

func TestMetricsMiddleware(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Get("/api/v1/components/{id}", func(w http.ResponseWriter, _ *http.Request) {
		assert.Equal(t, 1.0, inFlight(t))
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/healthz", func(http.ResponseWriter, *http.Request) {})

	tests := []struct {
		name   string
		path   string
		route  string
		status string
	}{
		{"route pattern", "/api/v1/components/c1", "/api/v1/components/{id}", "404"},
		{"implicit ok", "/healthz", "/healthz", "200"},
		{"no route", "/wp-login.php", unmatchedRoute, "404"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := observations(t, http.MethodGet, tt.route, tt.status)

			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, before+1, observations(t, http.MethodGet, tt.route, tt.status))
			assert.Zero(t, inFlight(t))
		})
	}
}
