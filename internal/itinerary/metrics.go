package itinerary

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/fleetclock/fleetclock/internal/itinerary"

// Metrics holds the itinerary instruments. A nil *Metrics records nothing.
type Metrics struct {
	routeTotal    metric.Int64Counter
	fetchDuration metric.Float64Histogram
	fetchTotal    metric.Int64Counter
}

// NewMetrics creates the itinerary instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	routeTotal, err := meter.Int64Counter(
		"itinerary.route.total",
		metric.WithDescription("Routes processed, by outcome"),
		metric.WithUnit("{route}"),
	)
	if err != nil {
		return nil, err
	}

	fetchDuration, err := meter.Float64Histogram(
		"itinerary.directions.duration",
		metric.WithDescription("Duration of directions provider attempts in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	fetchTotal, err := meter.Int64Counter(
		"itinerary.directions.total",
		metric.WithDescription("Directions provider attempts, by result"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		routeTotal:    routeTotal,
		fetchDuration: fetchDuration,
		fetchTotal:    fetchTotal,
	}, nil
}

// RecordRoute counts one processed route.
func (m *Metrics) RecordRoute(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.routeTotal.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attribute.String("route.outcome", outcome)))
}

// RecordAttempt records a single directions provider call.
func (m *Metrics) RecordAttempt(ctx context.Context, provider string, duration time.Duration, result string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("provider.name", provider),
		attribute.String("directions.result", result),
	)
	ctx = context.WithoutCancel(ctx)
	m.fetchDuration.Record(ctx, duration.Seconds(), attrs)
	m.fetchTotal.Add(ctx, 1, attrs)
}
