package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/doorguard/core/internal/authz"
	"github.com/doorguard/core/internal/conn"
	"github.com/doorguard/core/internal/device"
	"github.com/doorguard/core/internal/infrastructure/config"
	"github.com/doorguard/core/internal/infrastructure/logging"
	"github.com/doorguard/core/internal/infrastructure/mqtt"
	"github.com/doorguard/core/internal/ratelimit"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config             config.APIConfig
	WS                 config.WebSocketConfig
	Logger             *logging.Logger
	Store              *device.Store
	Limiter            *ratelimit.Limiter
	Engine             *authz.Engine
	Registry           *conn.Registry
	MQTT               *mqtt.Client
	AdminUserID        string
	AccessLogRetention int
	Version            string
}

// Server is the coordinator's HTTP and WebSocket ingress surface.
//
// It manages the HTTP listener, routes, and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg                config.APIConfig
	wsCfg              config.WebSocketConfig
	logger             *logging.Logger
	store              *device.Store
	limiter            *ratelimit.Limiter
	engine             *authz.Engine
	registry           *conn.Registry
	mqtt               *mqtt.Client
	adminUserID        string
	accessLogRetention int
	version            string
	startTime          time.Time
	server             *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("device store is required")
	}
	if deps.Limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("authorization engine is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("connection registry is required")
	}
	// MQTT is optional — telemetry republishing is disabled without it.

	adminUserID := deps.AdminUserID
	if adminUserID == "" {
		adminUserID = "admin"
	}
	retention := deps.AccessLogRetention
	if retention <= 0 {
		retention = 10000
	}

	return &Server{
		cfg:                deps.Config,
		wsCfg:               deps.WS,
		logger:              deps.Logger,
		store:               deps.Store,
		limiter:             deps.Limiter,
		engine:              deps.Engine,
		registry:            deps.Registry,
		mqtt:                deps.MQTT,
		adminUserID:         adminUserID,
		accessLogRetention:  retention,
		version:             deps.Version,
		startTime:           time.Now(),
	}, nil
}

// Start begins listening for HTTP and WebSocket connections. The server can
// be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS", "address", s.server.Addr, "cert", s.cfg.TLS.CertFile)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting up to
// gracefulShutdownTimeout for in-flight requests to complete.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// timestamp renders the current time as ISO-8601 UTC, matching every other
// timestamp field in the external API.
func (s *Server) timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
