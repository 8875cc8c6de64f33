package itinerary

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fleetclock/fleetclock/internal/directions"
	"github.com/fleetclock/fleetclock/internal/provider/resilience"
)

// ErrRetriesExhausted is returned when every attempt allowed by the retry policy failed.
var ErrRetriesExhausted = errors.New("directions retries exhausted")

// Outcome classifies a fetch.
type Outcome int

const (
	// OutcomeSuccess means legs were obtained.
	OutcomeSuccess Outcome = iota
	// OutcomeSkipped means the route was unroutable and no provider call was made.
	OutcomeSkipped
	// OutcomeTerminal means the provider answered with a final "no result".
	OutcomeTerminal
	// OutcomeFailed means the route could not be timed.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeTerminal:
		return "terminal"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// terminalStatuses are provider answers that will not improve on retry.
var terminalStatuses = map[int]bool{
	http.StatusUnauthorized:    true,
	http.StatusPaymentRequired: true,
	http.StatusForbidden:       true,
	http.StatusNotFound:        true,
}

// StatusError is a retryable non-success provider status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("directions provider returned status %d", e.StatusCode)
}

// Plan is the input of a fetch: a directions request, or a route already known to be unroutable.
type Plan struct {
	RouteID    string
	Request    directions.Request
	Unroutable bool
}

// FetchResult is the classified provider answer.
type FetchResult struct {
	Outcome    Outcome
	StatusCode int
	Attempts   int
	Legs       []directions.Leg
}

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	Provider directions.Provider
	Policy   resilience.RetryPolicy
	Sink     FailureSink
	Registry *resilience.Registry
	Metrics  *Metrics
	Logger   zerolog.Logger

	// NewTimer supplies the timer used between attempts. Nil uses real time.
	NewTimer func() backoff.Timer
}

// Fetcher calls a directions provider with bounded retries and classifies the answer.
type Fetcher struct {
	provider directions.Provider
	policy   resilience.RetryPolicy
	sink     FailureSink
	registry *resilience.Registry
	metrics  *Metrics
	logger   zerolog.Logger
	newTimer func() backoff.Timer
	tracer   trace.Tracer
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	sink := cfg.Sink
	if sink == nil {
		sink = nopSink{}
	}
	return &Fetcher{
		provider: cfg.Provider,
		policy:   cfg.Policy,
		sink:     sink,
		registry: cfg.Registry,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger.With().Str("component", "fetcher").Logger(),
		newTimer: cfg.NewTimer,
		tracer:   otel.Tracer(instrumentationName),
	}
}

// Fetch obtains the legs for plan.
//
// Unroutable plans return OutcomeSkipped without a provider call. Terminal
// answers are reported to the failure sink and returned with no error. When
// retries run out the failure is reported and an error wrapping
// ErrRetriesExhausted is returned.
func (f *Fetcher) Fetch(ctx context.Context, plan Plan) (FetchResult, error) {
	if plan.Unroutable {
		return FetchResult{Outcome: OutcomeSkipped}, nil
	}

	providerName := f.provider.Name()
	ctx, span := f.tracer.Start(ctx, "itinerary.fetch",
		trace.WithAttributes(
			attribute.String("route.id", plan.RouteID),
			attribute.String("provider.name", providerName),
			attribute.Int("route.waypoints", len(plan.Request.Waypoints)),
		),
	)
	defer span.End()

	var result FetchResult
	operation := func() error {
		result.Attempts++
		start := time.Now()
		resp, err := f.provider.ComputeRoute(ctx, plan.Request)
		if err != nil {
			f.metrics.RecordAttempt(ctx, providerName, time.Since(start), "error")
			return err
		}

		result.StatusCode = resp.StatusCode
		switch {
		case resp.StatusCode == http.StatusOK && resp.HasRoutes():
			f.metrics.RecordAttempt(ctx, providerName, time.Since(start), "success")
			result.Outcome = OutcomeSuccess
			result.Legs = resp.Routes[0].Legs
			return nil
		case resp.StatusCode == http.StatusOK || terminalStatuses[resp.StatusCode]:
			f.metrics.RecordAttempt(ctx, providerName, time.Since(start), "terminal")
			result.Outcome = OutcomeTerminal
			result.Legs = nil
			return nil
		default:
			f.metrics.RecordAttempt(ctx, providerName, time.Since(start), "retryable")
			return &StatusError{StatusCode: resp.StatusCode}
		}
	}

	notify := func(err error, wait time.Duration) {
		f.logger.Warn().
			Err(err).
			Str("route_id", plan.RouteID).
			Int("attempt", result.Attempts).
			Dur("retry_in", wait).
			Msg("directions request failed, retrying")
	}

	var timer backoff.Timer
	if f.newTimer != nil {
		timer = f.newTimer()
	}

	err := f.policy.Retry(ctx, operation, notify, timer)
	span.SetAttributes(attribute.Int("fetch.attempts", result.Attempts))

	if err != nil {
		err = fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, result.Attempts, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "retries exhausted")
		f.recordFailure(providerName, err)
		f.sink.Report(ctx, Failure{
			Component: "directions",
			Operation: "fetch",
			Message:   "directions request failed after retries",
			RouteID:   plan.RouteID,
			Err:       err,
		})
		return FetchResult{Outcome: OutcomeFailed, StatusCode: result.StatusCode, Attempts: result.Attempts}, err
	}

	span.SetAttributes(
		attribute.String("fetch.outcome", result.Outcome.String()),
		attribute.Int("http.response.status_code", result.StatusCode),
	)

	if result.Outcome == OutcomeTerminal {
		terminal := &StatusError{StatusCode: result.StatusCode}
		switch result.StatusCode {
		case http.StatusUnauthorized, http.StatusPaymentRequired, http.StatusForbidden:
			f.recordFailure(providerName, terminal)
		default:
			f.recordSuccess(providerName)
		}
		message := "directions provider returned no route"
		if result.StatusCode != http.StatusOK {
			message = terminal.Error()
		}
		f.sink.Report(ctx, Failure{
			Component: "directions",
			Operation: "fetch",
			Message:   message,
			RouteID:   plan.RouteID,
		})
		return result, nil
	}

	f.recordSuccess(providerName)
	return result, nil
}

func (f *Fetcher) recordSuccess(name string) {
	if f.registry != nil {
		f.registry.RecordSuccess(name)
	}
}

func (f *Fetcher) recordFailure(name string, err error) {
	if f.registry != nil {
		f.registry.RecordFailure(name, err)
	}
}
