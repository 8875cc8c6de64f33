// Package main provides the entrypoint for the fleetclock worker, which
// annotates route batches delivered over Pub/Sub.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/fleetclock/fleetclock/internal/api/handler"
	"github.com/fleetclock/fleetclock/internal/api/middleware"
	"github.com/fleetclock/fleetclock/internal/api/response"
	"github.com/fleetclock/fleetclock/internal/app"
	"github.com/fleetclock/fleetclock/internal/config"
	"github.com/fleetclock/fleetclock/internal/telemetry"
	"github.com/fleetclock/fleetclock/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "fleetclock-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	log = log.Level(cfg.LogLevel)

	if cfg.PubSub.ProjectID == "" {
		log.Fatal().Msg("PUBSUB_PROJECT_ID is required for the worker")
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("subscription", cfg.PubSub.Subscription).
		Str("result_topic", cfg.PubSub.ResultTopic).
		Msg("starting fleetclock worker")

	// Create context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	components, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to build annotation service")
		return
	}
	defer components.Close()

	pubsubCfg := worker.PubSubConfig{
		ProjectID:        cfg.PubSub.ProjectID,
		SubscriptionName: cfg.PubSub.Subscription,
		ResultTopic:      cfg.PubSub.ResultTopic,
		Config: worker.Config{
			MaxOutstandingMessages: cfg.PubSub.MaxOutstandingMessages,
			JobTimeout:             cfg.PubSub.JobTimeout,
		},
		Annotator: components.Service,
		Logger:    log,
	}
	if components.CacheStore != nil {
		pubsubCfg.Sweeper = components.CacheStore
	}

	jobs, err := worker.NewPubSubHandler(ctx, pubsubCfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to create pubsub handler")
		return
	}
	defer func() {
		if closeErr := jobs.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close pubsub client")
		}
	}()

	checks := components.Checks()
	opsHandler := handler.NewOpsHandler(Version, BuildTime, components.Registry, checks)

	// The worker exposes health endpoints for Cloud Run.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.ContentTypeJSON)
	r.Get("/health", opsHandler.HealthCheck)
	r.Get("/ready", opsHandler.ReadinessCheck)
	r.Get("/status", opsHandler.SystemStatus)
	r.Get("/jobs", func(w http.ResponseWriter, req *http.Request) {
		response.JSON(w, req, http.StatusOK, jobs.Processor().StatsSnapshot())
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
			cancel()
		}
	}()

	// Receive blocks until the context is cancelled by a signal.
	if err := jobs.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("pubsub receive failed")
	}

	log.Info().Msg("shutting down worker")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
