package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/api/health", s.handleHealth)

	r.Route("/api/devices", func(r chi.Router) {
		r.Get("/status", s.handleDeviceStatus)
		r.Get("/connections", s.handleDeviceConnections)
		r.Get("/{id}/connection", s.handleDeviceConnection)
		r.Get("/{id}", s.handleGetDevice)
	})

	r.Get("/api/access_logs", s.handleListAccessLogs)
	r.Post("/api/access_log", s.handlePostAccessLog)

	r.Route("/api/security/rate_limiter", func(r chi.Router) {
		r.Get("/stats", s.handleRateLimiterStats)
		r.Get("/user_status", s.handleRateLimiterUserStatus)
		r.Delete("/clear", s.handleRateLimiterClear)
	})

	r.Get(s.dashboardEndpoint(), s.handleDashboardWS)
	r.Get("/ws/{device_id}", s.handleControllerWS)

	return r
}

// dashboardEndpoint returns the configured dashboard WebSocket path,
// falling back to the shipped default.
func (s *Server) dashboardEndpoint() string {
	if s.wsCfg.Endpoint == "" {
		return "/ws"
	}
	return s.wsCfg.Endpoint
}
