package cache

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/fleetclock/fleetclock/internal/directions/cache"

// Metrics counts cache hits and misses. It implements Recorder.
type Metrics struct {
	hits   metric.Int64Counter
	misses metric.Int64Counter
}

// NewMetrics creates the cache instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	hits, err := meter.Int64Counter(
		"directions.cache.hit",
		metric.WithDescription("Number of directions cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	misses, err := meter.Int64Counter(
		"directions.cache.miss",
		metric.WithDescription("Number of directions cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{hits: hits, misses: misses}, nil
}

// RecordCacheHit records a cache hit for a provider.
func (m *Metrics) RecordCacheHit(provider string) {
	m.hits.Add(context.Background(), 1, metric.WithAttributes(attribute.String("provider.name", provider)))
}

// RecordCacheMiss records a cache miss for a provider.
func (m *Metrics) RecordCacheMiss(provider string) {
	m.misses.Add(context.Background(), 1, metric.WithAttributes(attribute.String("provider.name", provider)))
}
