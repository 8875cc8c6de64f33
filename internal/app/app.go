// Package app wires configuration into a ready-to-use route annotation service.
// Both the API server and the worker build their components here.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/fleetclock/fleetclock/internal/api/handler"
	"github.com/fleetclock/fleetclock/internal/config"
	"github.com/fleetclock/fleetclock/internal/database"
	"github.com/fleetclock/fleetclock/internal/directions"
	"github.com/fleetclock/fleetclock/internal/directions/cache"
	"github.com/fleetclock/fleetclock/internal/directions/googleroutes"
	"github.com/fleetclock/fleetclock/internal/directions/openrouteservice"
	"github.com/fleetclock/fleetclock/internal/itinerary"
	"github.com/fleetclock/fleetclock/internal/provider/resilience"
)

// memoryCleanupInterval is how often the in-memory cache drops expired answers.
const memoryCleanupInterval = 5 * time.Minute

// Components are the long-lived pieces shared by the entrypoints.
type Components struct {
	Service  *itinerary.Service
	Registry *resilience.Registry
	Provider directions.Provider

	// Pool and CacheStore are set only with the postgres cache backend.
	Pool       *pgxpool.Pool
	CacheStore *cache.PostgresStore

	// Valkey is set only with the valkey cache backend.
	Valkey *cache.ValkeyStore
}

// Close releases the database pool and Valkey client, if any.
func (c *Components) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
	if c.Valkey != nil {
		c.Valkey.Close()
	}
}

// Checks returns readiness probes for the configured cache backend.
func (c *Components) Checks() map[string]handler.Pinger {
	checks := map[string]handler.Pinger{}
	if c.Pool != nil {
		checks["database"] = handler.PingFunc(c.Pool.Ping)
	}
	if c.Valkey != nil {
		checks["valkey"] = c.Valkey
	}
	return checks
}

// Build creates the directions provider, optional cache, and itinerary service.
func Build(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Components, error) {
	registry := resilience.NewRegistry()
	c := &Components{Registry: registry}

	provider, err := NewProvider(cfg.Directions, registry, logger)
	if err != nil {
		return nil, err
	}

	switch cfg.Cache.Backend {
	case config.CacheMemory:
		provider, err = withCache(provider, cache.NewMemoryStore(logger, memoryCleanupInterval), cfg.Cache.TTL, logger)
		if err != nil {
			return nil, err
		}
		logger.Info().Dur("ttl", cfg.Cache.TTL).Msg("in-memory directions cache enabled")

	case config.CachePostgres:
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		c.Pool = pool

		store := cache.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		c.CacheStore = store

		provider, err = withCache(provider, store, cfg.Cache.TTL, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info().
			Str("host", cfg.Database.Host).
			Str("database", cfg.Database.Name).
			Dur("ttl", cfg.Cache.TTL).
			Msg("postgres directions cache enabled")

	case config.CacheValkey:
		store, err := cache.NewValkeyStore(cfg.Cache.ValkeyAddr)
		if err != nil {
			return nil, err
		}
		c.Valkey = store

		provider, err = withCache(provider, store, cfg.Cache.TTL, logger)
		if err != nil {
			store.Close()
			return nil, err
		}
		logger.Info().
			Str("addr", cfg.Cache.ValkeyAddr).
			Dur("ttl", cfg.Cache.TTL).
			Msg("valkey directions cache enabled")
	}
	c.Provider = provider

	metrics, err := itinerary.NewMetrics()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("creating itinerary metrics: %w", err)
	}

	sink := itinerary.NewLogSink(logger)
	fetcher := itinerary.NewFetcher(itinerary.FetcherConfig{
		Provider: provider,
		Policy:   cfg.Retry,
		Sink:     sink,
		Registry: registry,
		Metrics:  metrics,
		Logger:   logger,
	})

	c.Service = itinerary.NewService(itinerary.ServiceConfig{
		Fetcher:             fetcher,
		Sink:                sink,
		Metrics:             metrics,
		Logger:              logger,
		MaxConcurrentRoutes: cfg.Itinerary.MaxConcurrentRoutes,
		Propagate: itinerary.PropagateOptions{
			DepartOriginAfterDwell: cfg.Itinerary.DepartOriginAfterDwell,
		},
	})

	return c, nil
}

// NewProvider creates the configured directions provider. Its resilient HTTP
// client registers itself with registry for status reporting.
func NewProvider(cfg config.DirectionsConfig, registry *resilience.Registry, logger zerolog.Logger) (directions.Provider, error) {
	switch cfg.Provider {
	case config.ProviderGoogle:
		return googleroutes.NewClient(googleroutes.ClientConfig{
			APIKey:   cfg.GoogleAPIKey,
			BaseURL:  cfg.BaseURL,
			Timeout:  cfg.Timeout,
			Registry: registry,
			Logger:   logger,
		}), nil
	case config.ProviderOpenRouteService:
		return openrouteservice.NewClient(openrouteservice.ClientConfig{
			APIKey:   cfg.ORSAPIKey,
			BaseURL:  cfg.BaseURL,
			Profile:  cfg.ORSProfile,
			Timeout:  cfg.Timeout,
			Registry: registry,
			Logger:   logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown directions provider %q", cfg.Provider)
	}
}

func withCache(provider directions.Provider, store cache.Store, ttl time.Duration, logger zerolog.Logger) (directions.Provider, error) {
	metrics, err := cache.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("creating cache metrics: %w", err)
	}
	return cache.New(cache.Config{
		Provider: provider,
		Store:    store,
		TTL:      ttl,
		Recorder: metrics,
		Logger:   logger,
	}), nil
}
