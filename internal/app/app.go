// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bissquit/incident-garden-live/internal/api"
	"github.com/bissquit/incident-garden-live/internal/config"
	"github.com/bissquit/incident-garden-live/internal/identity"
	"github.com/bissquit/incident-garden-live/internal/pkg/ctxlog"
	"github.com/bissquit/incident-garden-live/internal/pkg/httputil"
	"github.com/bissquit/incident-garden-live/internal/realtime"
	"github.com/bissquit/incident-garden-live/internal/session"
	"github.com/bissquit/incident-garden-live/internal/store"
	"github.com/bissquit/incident-garden-live/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var errInvalidControlToken = errors.New("invalid control token")

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	session       *session.Session
	server        *http.Server
	metricsServer *http.Server

	sessionCancel context.CancelFunc
	sessionDone   chan struct{}
}

// New creates a new application instance. The realtime connection is not
// opened until Run.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)

	provider, err := newIdentity(cfg.Identity)
	if err != nil {
		return nil, fmt.Errorf("create identity provider: %w", err)
	}

	client := realtime.NewClient(realtime.Config{
		URL:                     cfg.Realtime.URL,
		HandshakeTimeout:        cfg.Realtime.HandshakeTimeout,
		WriteTimeout:            cfg.Realtime.WriteTimeout,
		PingInterval:            cfg.Realtime.PingInterval,
		PongTimeout:             cfg.Realtime.PongTimeout,
		ReconnectAttempts:       cfg.Realtime.ReconnectAttempts,
		ReconnectInitialBackoff: cfg.Realtime.ReconnectInitialBackoff,
		ReconnectMaxBackoff:     cfg.Realtime.ReconnectMaxBackoff,
		ReconnectMultiplier:     cfg.Realtime.ReconnectMultiplier,
		ReconnectJitter:         cfg.Realtime.ReconnectJitter,
		EmitRate:                cfg.Realtime.EmitRate,
		EmitBurst:               cfg.Realtime.EmitBurst,
	}, logger)

	sess := session.New(session.Config{
		OrganizationID:    cfg.Session.OrganizationID,
		BootstrapTimeout:  cfg.Session.BootstrapTimeout,
		BootstrapAttempts: cfg.Session.BootstrapAttempts,
	}, client, provider, store.New(logger), logger)

	app := &App{
		config:  cfg,
		logger:  logger,
		session: sess,
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           app.setupRouter(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

func newIdentity(cfg config.IdentityConfig) (identity.Provider, error) {
	switch cfg.Mode {
	case "jwt":
		jwtCfg := identity.DefaultJWTConfig()
		jwtCfg.Secret = cfg.JWTSecret
		jwtCfg.Subject = cfg.JWTSubject
		if cfg.JWTIssuer != "" {
			jwtCfg.Issuer = cfg.JWTIssuer
		}
		if cfg.JWTTTL > 0 {
			jwtCfg.TTL = cfg.JWTTTL
		}
		return identity.NewJWTProvider(jwtCfg)
	case "static", "":
		return identity.NewStaticProvider(cfg.Token), nil
	}
	return nil, fmt.Errorf("unknown identity mode %q", cfg.Mode)
}

// Run opens the realtime session and starts the HTTP servers.
func (a *App) Run() error {
	a.startSession()

	// Start metrics server in background
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	// Start main server
	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

func (a *App) startSession() {
	ctx, cancel := context.WithCancel(context.Background())
	a.sessionCancel = cancel
	a.sessionDone = make(chan struct{})

	a.logger.Info("starting realtime session",
		"url", a.config.Realtime.URL,
		"org_id", a.config.Session.OrganizationID,
	)

	go func() {
		defer close(a.sessionDone)
		if err := a.session.Run(ctx); err != nil {
			a.logger.Error("session stopped", "error", err)
		}
	}()
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	var errs []error

	if a.sessionCancel != nil {
		a.sessionCancel()
		select {
		case <-a.sessionDone:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("close session: %w", ctx.Err()))
		}
	}

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	return errors.Join(errs...)
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Session returns the realtime session.
func (a *App) Session() *session.Session {
	return a.session
}

func (a *App) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, "api/openapi/openapi.yaml")
	})

	statusHandler := api.NewHandler(a.session)

	r.Route("/api/v1", func(r chi.Router) {
		statusHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			if token := a.config.Server.ControlToken; token != "" {
				r.Use(httputil.AuthMiddleware(controlTokenValidator(token)))
			}
			statusHandler.RegisterControlRoutes(r)
		})
	})

	return r
}

func controlTokenValidator(expected string) httputil.TokenValidator {
	return httputil.TokenValidatorFunc(func(_ context.Context, token string) (string, error) {
		if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			return "", errInvalidControlToken
		}
		return "operator", nil
	})
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

// readyzHandler reports ready once the room is live and every collection
// bootstrapped.
func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	status := a.session.Status()
	if status != realtime.StatusConnected {
		ctxlog.FromContext(r.Context()).Warn("readiness check failed", "connection", status)
		httputil.Text(w, http.StatusServiceUnavailable, "Realtime connection "+string(status))
		return
	}

	if stale := a.session.Snapshot().Stale; stale.Any() {
		ctxlog.FromContext(r.Context()).Warn("readiness check failed", "stale", stale)
		httputil.Text(w, http.StatusServiceUnavailable, "Snapshot stale")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
