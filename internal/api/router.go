// Package api provides the HTTP API for route itinerary timing.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/fleetclock/fleetclock/internal/api/handler"
	"github.com/fleetclock/fleetclock/internal/api/middleware"
	"github.com/fleetclock/fleetclock/internal/api/response"
	"github.com/fleetclock/fleetclock/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	Annotator handler.BatchAnnotator
	Registry  *resilience.Registry

	// Checks are named readiness probes (database, message broker).
	Checks map[string]handler.Pinger

	// Auth protects the batch and status endpoints. A zero value disables auth.
	Auth       middleware.BasicAuthConfig
	RateLimit  middleware.RateLimitConfig
	RequireTLS bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "fleetclock-api"
	}
	rateLimit := cfg.RateLimit
	if rateLimit.RequestLimit == 0 {
		rateLimit = middleware.BatchRateLimit
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement behind a load balancer
	r.Use(middleware.ContentTypeJSON)            // JSON content type

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		response.NotFound(w, req, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		response.MethodNotAllowed(w, req, req.Method+" is not supported here")
	})

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry, cfg.Checks)
	directionsHandler := handler.NewDirectionsHandler(cfg.Annotator, cfg.Logger)

	authenticate := func(next http.Handler) http.Handler { return next }
	if cfg.Auth.Username != "" {
		authenticate = middleware.BasicAuth(cfg.Auth)
	}

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(middleware.StandardRateLimit))
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			// Status exposes provider errors, so it sits behind auth
			r.With(authenticate).Get("/status", opsHandler.SystemStatus)
		})

		// Batch annotation - each batch fans out into many provider calls
		r.With(
			authenticate,
			middleware.RateLimitByPrincipal(rateLimit),
			middleware.RequireJSON,
			middleware.LimitBody(handler.MaxBatchBodyBytes),
		).Post("/route-directions", directionsHandler.AnnotateBatch)
	})

	return r
}
