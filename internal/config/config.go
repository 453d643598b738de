// Package config loads application configuration from defaults, an
// optional YAML file and LIVE_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides. A double underscore
// separates nesting levels: LIVE_REALTIME__URL sets realtime.url.
const EnvPrefix = "LIVE_"

// Config is the application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	CORS     CORSConfig     `koanf:"cors"`
	Realtime RealtimeConfig `koanf:"realtime"`
	Session  SessionConfig  `koanf:"session"`
	Identity IdentityConfig `koanf:"identity"`
}

// ServerConfig configures the read API and metrics listeners.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port" validate:"required"`
	MetricsPort       string        `koanf:"metrics_port" validate:"required"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	// ControlToken guards POST /api/v1/reconnect. Empty leaves it open.
	ControlToken      string        `koanf:"control_token"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

// CORSConfig configures cross-origin access to the read API.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// RealtimeConfig configures the push connection.
type RealtimeConfig struct {
	URL                     string        `koanf:"url" validate:"required,url"`
	HandshakeTimeout        time.Duration `koanf:"handshake_timeout" validate:"gt=0"`
	WriteTimeout            time.Duration `koanf:"write_timeout" validate:"gt=0"`
	PingInterval            time.Duration `koanf:"ping_interval" validate:"gte=0"`
	PongTimeout             time.Duration `koanf:"pong_timeout" validate:"gte=0"`
	ReconnectAttempts       int           `koanf:"reconnect_attempts" validate:"gte=0"`
	ReconnectInitialBackoff time.Duration `koanf:"reconnect_initial_backoff" validate:"gt=0"`
	ReconnectMaxBackoff     time.Duration `koanf:"reconnect_max_backoff" validate:"gtefield=ReconnectInitialBackoff"`
	ReconnectMultiplier     float64       `koanf:"reconnect_multiplier" validate:"gte=1"`
	ReconnectJitter         float64       `koanf:"reconnect_jitter" validate:"gte=0,lte=1"`
	EmitRate                float64       `koanf:"emit_rate" validate:"gte=0"`
	EmitBurst               int           `koanf:"emit_burst" validate:"gte=0"`
}

// SessionConfig configures the organization room and bootstrap.
type SessionConfig struct {
	OrganizationID    string        `koanf:"organization_id"`
	BootstrapTimeout  time.Duration `koanf:"bootstrap_timeout" validate:"gt=0"`
	BootstrapAttempts int           `koanf:"bootstrap_attempts" validate:"gte=1"`
}

// IdentityConfig selects the credential source. Mode "static" presents
// Token as is; mode "jwt" mints tokens signed with JWTSecret.
type IdentityConfig struct {
	Mode       string        `koanf:"mode" validate:"oneof=static jwt"`
	Token      string        `koanf:"token"`
	JWTSecret  string        `koanf:"jwt_secret" validate:"required_if=Mode jwt"`
	JWTSubject string        `koanf:"jwt_subject"`
	JWTIssuer  string        `koanf:"jwt_issuer"`
	JWTTTL     time.Duration `koanf:"jwt_ttl" validate:"required_if=Mode jwt"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Realtime: RealtimeConfig{
			URL:                     "ws://localhost:8000/ws",
			HandshakeTimeout:        10 * time.Second,
			WriteTimeout:            10 * time.Second,
			PingInterval:            25 * time.Second,
			PongTimeout:             20 * time.Second,
			ReconnectAttempts:       5,
			ReconnectInitialBackoff: time.Second,
			ReconnectMaxBackoff:     5 * time.Second,
			ReconnectMultiplier:     2.0,
			ReconnectJitter:         0.5,
			EmitRate:                50,
			EmitBurst:               20,
		},
		Session: SessionConfig{
			BootstrapTimeout:  10 * time.Second,
			BootstrapAttempts: 3,
		},
		Identity: IdentityConfig{
			Mode:      "static",
			JWTIssuer: "incident-garden",
			JWTTTL:    15 * time.Minute,
		},
	}
}

// Load reads configuration. path may be empty, in which case only
// defaults and environment variables apply.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("stat config file: %w", err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps LIVE_SESSION__ORGANIZATION_ID to session.organization_id.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
