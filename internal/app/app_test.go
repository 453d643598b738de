package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bissquit/incident-garden-live/internal/api"
	"github.com/bissquit/incident-garden-live/internal/config"
	"github.com/bissquit/incident-garden-live/internal/domain"
	"github.com/bissquit/incident-garden-live/internal/identity"
	"github.com/bissquit/incident-garden-live/internal/realtime"
	"github.com/bissquit/incident-garden-live/internal/session"
	"github.com/bissquit/incident-garden-live/internal/store"
	"github.com/bissquit/incident-garden-live/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	openAPISpecPath = "../../api/openapi/openapi.yaml"
	waitFor         = 3 * time.Second
	tick            = 10 * time.Millisecond
)

func testConfig(url string) *config.Config {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = "0"
	cfg.Server.MetricsPort = "0"
	cfg.Log.Level = "error"
	cfg.Log.Format = "text"
	cfg.Realtime.URL = url
	cfg.Realtime.ReconnectInitialBackoff = 10 * time.Millisecond
	cfg.Realtime.ReconnectMaxBackoff = 20 * time.Millisecond
	cfg.Realtime.EmitRate = 0
	cfg.Session.OrganizationID = "org1"
	cfg.Session.BootstrapTimeout = time.Second
	cfg.Identity.Token = "viewer-token"
	return cfg
}

type envelope[T any] struct {
	Data T `json:"data"`
}

func TestApp_EndToEnd(t *testing.T) {
	statusServer := testutil.NewStatusServer(t)
	statusServer.SetFixture(session.EventGetComponents, []domain.Component{
		{ID: "c1", OrgID: "org1", Name: "API", Status: domain.ComponentStatusOperational},
		{ID: "c2", OrgID: "org1", Name: "Web", Status: domain.ComponentStatusOperational},
	})
	statusServer.SetFixture(session.EventGetIncidents, []domain.Incident{})
	statusServer.SetFixture(session.EventGetMaintenances, []domain.Maintenance{})

	a, err := New(testConfig(statusServer.URL()))
	require.NoError(t, err)
	a.startSession()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Shutdown(ctx)
	})

	server := httptest.NewServer(a.Router())
	t.Cleanup(server.Close)
	client := testutil.NewClientWithValidation(t, server.URL, openAPISpecPath)

	require.Eventually(t, func() bool {
		resp, err := client.GET("/readyz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, waitFor, tick)

	resp, err := client.GET("/api/v1/status")
	require.NoError(t, err)
	var status envelope[api.StatusResponse]
	testutil.DecodeJSON(t, resp, &status)

	assert.Equal(t, realtime.StatusConnected, status.Data.Connection)
	assert.Equal(t, "org1", status.Data.Organization)
	assert.True(t, status.Data.AllOperational)
	assert.Equal(t, 2, status.Data.Counts.Components)
	assert.Equal(t, []string{"viewer-token"}, statusServer.Tokens())

	statusServer.Push("org1", store.EventComponentUpdate, domain.Component{
		ID: "c1", OrgID: "org1", Name: "API", Status: domain.ComponentStatusMajorOutage,
	})

	require.Eventually(t, func() bool {
		return !a.Session().Snapshot().AllOperational()
	}, waitFor, tick)

	resp, err = client.GET("/api/v1/components/c1")
	require.NoError(t, err)
	var component envelope[domain.Component]
	testutil.DecodeJSON(t, resp, &component)
	assert.Equal(t, domain.ComponentStatusMajorOutage, component.Data.Status)

	resp, err = client.POST("/api/v1/reconnect", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestApp_Readyz_NotConnected(t *testing.T) {
	a, err := New(testConfig("ws://127.0.0.1:1/ws"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Session().Close() })

	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "disconnected")

	rec = httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApp_ControlToken(t *testing.T) {
	statusServer := testutil.NewStatusServer(t)
	cfg := testConfig(statusServer.URL())
	cfg.Server.ControlToken = "operator-secret"

	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Session().Close() })

	server := httptest.NewServer(a.Router())
	t.Cleanup(server.Close)
	client := testutil.NewClientWithValidation(t, server.URL, openAPISpecPath)

	resp, err := client.POST("/api/v1/reconnect", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	client.Token = "wrong"
	resp, err = client.POST("/api/v1/reconnect", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	client.Token = "operator-secret"
	resp, err = client.POST("/api/v1/reconnect", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		return len(statusServer.Joins()) == 1
	}, waitFor, tick)

	// Read routes stay open.
	client.Token = ""
	resp, err = client.GET("/api/v1/components")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestApp_Version(t *testing.T) {
	a, err := New(testConfig("ws://127.0.0.1:1/ws"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Session().Close() })

	server := httptest.NewServer(a.Router())
	t.Cleanup(server.Close)
	client := testutil.NewClientWithValidation(t, server.URL, openAPISpecPath)

	resp, err := client.GET("/version")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewIdentity(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.IdentityConfig
		signedIn bool
		wantErr  bool
	}{
		{"static with token", config.IdentityConfig{Mode: "static", Token: "t"}, true, false},
		{"static without token", config.IdentityConfig{Mode: "static"}, false, false},
		{"jwt", config.IdentityConfig{Mode: "jwt", JWTSecret: "s", JWTTTL: time.Minute}, true, false},
		{"jwt without secret", config.IdentityConfig{Mode: "jwt"}, false, true},
		{"unknown", config.IdentityConfig{Mode: "saml"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := newIdentity(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.signedIn, provider.IsSignedIn())
		})
	}
}

func TestApp_JWTIdentity(t *testing.T) {
	statusServer := testutil.NewStatusServer(t)
	statusServer.SetAuthorizer(func(token string) error {
		_, err := identity.ValidateToken("shared", token)
		return err
	})

	cfg := testConfig(statusServer.URL())
	cfg.Identity = config.IdentityConfig{Mode: "jwt", JWTSecret: "shared", JWTSubject: "dashboard", JWTTTL: time.Minute}
	a, err := New(cfg)
	require.NoError(t, err)
	a.startSession()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Shutdown(ctx)
	})

	require.Eventually(t, func() bool {
		return a.Session().Status() == realtime.StatusConnected
	}, waitFor, tick)

	tokens := statusServer.Tokens()
	require.Len(t, tokens, 1)
	claims, err := identity.ValidateToken("shared", tokens[0])
	require.NoError(t, err)
	assert.Equal(t, "dashboard", claims.Subject)
}
