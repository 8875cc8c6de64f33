// Package cache provides a caching decorator for directions providers.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetclock/fleetclock/internal/directions"
)

// DefaultTTL is how long a directions answer stays valid.
const DefaultTTL = 6 * time.Hour

// Store persists directions answers by key.
type Store interface {
	// Get returns the cached response, or false when the key is absent or expired.
	Get(ctx context.Context, key string) (*directions.Response, bool, error)
	// Put stores resp under key until ttl elapses.
	Put(ctx context.Context, key string, resp *directions.Response, ttl time.Duration) error
}

// Recorder receives cache hit and miss events.
type Recorder interface {
	RecordCacheHit(provider string)
	RecordCacheMiss(provider string)
}

// Config configures a caching Provider.
type Config struct {
	Provider directions.Provider
	Store    Store
	TTL      time.Duration
	Recorder Recorder
	Logger   zerolog.Logger
}

// Provider wraps a directions.Provider and serves repeated requests from a Store.
// Only 200 answers carrying at least one route are cached.
type Provider struct {
	next     directions.Provider
	store    Store
	ttl      time.Duration
	recorder Recorder
	logger   zerolog.Logger
}

// New creates a caching provider.
func New(cfg Config) *Provider {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Provider{
		next:     cfg.Provider,
		store:    cfg.Store,
		ttl:      ttl,
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
	}
}

// Name returns the wrapped provider's name.
func (p *Provider) Name() string {
	return p.next.Name()
}

// ComputeRoute returns a cached answer when one exists, otherwise asks the
// wrapped provider. Store failures are logged and never fail the request.
func (p *Provider) ComputeRoute(ctx context.Context, req directions.Request) (*directions.Response, error) {
	key := Key(p.next.Name(), req)

	cached, ok, err := p.store.Get(ctx, key)
	if err != nil {
		p.logger.Warn().Err(err).Str("cache_key", key).Msg("directions cache read failed")
	}
	if ok {
		p.logger.Debug().Str("cache_key", key).Msg("cache hit for directions")
		if p.recorder != nil {
			p.recorder.RecordCacheHit(p.next.Name())
		}
		return cached, nil
	}
	if p.recorder != nil {
		p.recorder.RecordCacheMiss(p.next.Name())
	}

	resp, err := p.next.ComputeRoute(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusOK && resp.HasRoutes() {
		if err := p.store.Put(ctx, key, resp, p.ttl); err != nil {
			p.logger.Warn().Err(err).Str("cache_key", key).Msg("directions cache write failed")
		} else {
			p.logger.Debug().Str("cache_key", key).Int("route_count", len(resp.Routes)).Msg("cached directions response")
		}
	}

	return resp, nil
}

// Key derives a stable cache key from the provider name and the ordered coordinates.
// Coordinates are rounded to 6 decimal places (about 0.1 m).
func Key(provider string, req directions.Request) string {
	var b strings.Builder
	b.WriteString(provider)
	for _, c := range req.Coordinates() {
		fmt.Fprintf(&b, "|%.6f,%.6f", c.Lat, c.Lng)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return provider + ":" + hex.EncodeToString(sum[:])
}

func cloneResponse(resp *directions.Response) *directions.Response {
	out := *resp
	out.Routes = make([]directions.Route, len(resp.Routes))
	for i, r := range resp.Routes {
		out.Routes[i] = directions.Route{Legs: append([]directions.Leg(nil), r.Legs...)}
	}
	return &out
}
