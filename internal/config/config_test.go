package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 5, cfg.Realtime.ReconnectAttempts)
	assert.Equal(t, 10*time.Second, cfg.Session.BootstrapTimeout)
	assert.Equal(t, 3, cfg.Session.BootstrapAttempts)
	assert.Equal(t, "static", cfg.Identity.Mode)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
log:
  level: debug
  format: text
realtime:
  url: wss://status.example.com/ws
  reconnect_attempts: 8
  reconnect_max_backoff: 30s
session:
  organization_id: org-42
  bootstrap_timeout: 3s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "wss://status.example.com/ws", cfg.Realtime.URL)
	assert.Equal(t, 8, cfg.Realtime.ReconnectAttempts)
	assert.Equal(t, 30*time.Second, cfg.Realtime.ReconnectMaxBackoff)
	assert.Equal(t, "org-42", cfg.Session.OrganizationID)
	assert.Equal(t, 3*time.Second, cfg.Session.BootstrapTimeout)

	// Untouched keys keep their defaults.
	assert.Equal(t, time.Second, cfg.Realtime.ReconnectInitialBackoff)
	assert.Equal(t, 3, cfg.Session.BootstrapAttempts)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  organization_id: from-file\n"), 0o600))

	t.Setenv("LIVE_SESSION__ORGANIZATION_ID", "from-env")
	t.Setenv("LIVE_SERVER__PORT", "18080")
	t.Setenv("LIVE_REALTIME__RECONNECT_ATTEMPTS", "2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Session.OrganizationID)
	assert.Equal(t, "18080", cfg.Server.Port)
	assert.Equal(t, 2, cfg.Realtime.ReconnectAttempts)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "trace" },
			wantErr: "Level",
		},
		{
			name:    "missing url",
			mutate:  func(c *Config) { c.Realtime.URL = "" },
			wantErr: "URL",
		},
		{
			name:    "max backoff below initial",
			mutate:  func(c *Config) { c.Realtime.ReconnectMaxBackoff = time.Millisecond },
			wantErr: "ReconnectMaxBackoff",
		},
		{
			name:    "zero bootstrap attempts",
			mutate:  func(c *Config) { c.Session.BootstrapAttempts = 0 },
			wantErr: "BootstrapAttempts",
		},
		{
			name:    "jwt mode without secret",
			mutate:  func(c *Config) { c.Identity.Mode = "jwt" },
			wantErr: "JWTSecret",
		},
		{
			name: "jwt mode with secret",
			mutate: func(c *Config) {
				c.Identity.Mode = "jwt"
				c.Identity.JWTSecret = "s3cret"
			},
		},
		{
			name:    "unknown identity mode",
			mutate:  func(c *Config) { c.Identity.Mode = "oauth" },
			wantErr: "Mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
