package server

import (
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/guardianhq/guardian/internal/observability"
	"github.com/guardianhq/guardian/internal/server/handlers"
	servermw "github.com/guardianhq/guardian/internal/server/middleware"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	// Standard health endpoints
	s.router.Get("/health", handlers.HealthHandler)
	s.router.Get("/health/live", handlers.LivenessHandler)
	s.router.Get("/health/ready", handlers.ReadinessHandler)
	s.router.Get("/health/startup", handlers.StartupHandler)

	// Version endpoint
	s.router.Get("/version", handlers.VersionHandler)

	// Prometheus exposition, proxied from the exporter port
	s.router.Get("/metrics", MetricsHandler)

	safeMode := handlers.NewSafeModeHandler(s.opts.Registry.Coordinator().SafeMode(), s.opts.Audit)
	limiters := handlers.NewLimitersHandler(s.opts.Registry)

	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/safe-mode", safeMode.Get)
		r.Get("/limiters", limiters.List)
		r.Get("/limiters/{name}", limiters.Get)

		r.Group(func(r chi.Router) {
			r.Use(s.throttle.Handler)
			r.Use(servermw.BearerToken(s.opts.AdminToken))
			r.Put("/safe-mode", safeMode.Put)
		})
	})

	s.registerAdminEndpoint()
}

// registerAdminEndpoint registers the signal endpoint when an admin token
// is configured.
func (s *Server) registerAdminEndpoint() {
	logger := observability.ServerLogger

	if s.opts.AdminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no server.admin_token set)")
			logger.Warn("PUT /v1/safe-mode is unauthenticated; set server.admin_token to protect it")
		}
		return
	}

	// Create HTTP signal handler with bearer token auth and rate limiting
	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.opts.AdminToken,
		RateLimit: 10,  // 10 requests per minute
		RateBurst: 5,   // burst size
		Manager:   nil, // use default global manager
	})

	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin endpoints protected",
			zap.Strings("paths", []string{"/admin/signal", "/v1/safe-mode"}),
			zap.String("auth", "bearer token"))
	}
}
