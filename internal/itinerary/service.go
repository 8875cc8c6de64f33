package itinerary

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrRoutePanic wraps a panic recovered while processing a single route.
var ErrRoutePanic = errors.New("route processing panicked")

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Fetcher *Fetcher
	Sink    FailureSink
	Metrics *Metrics
	Logger  zerolog.Logger

	// MaxConcurrentRoutes bounds in-flight routes per list. Zero means no bound.
	MaxConcurrentRoutes int

	Propagate PropagateOptions
}

// Service annotates route batches.
type Service struct {
	fetcher       *Fetcher
	sink          FailureSink
	metrics       *Metrics
	logger        zerolog.Logger
	maxConcurrent int
	propagate     PropagateOptions
}

// NewService creates a Service.
func NewService(cfg ServiceConfig) *Service {
	sink := cfg.Sink
	if sink == nil {
		sink = nopSink{}
	}
	return &Service{
		fetcher:       cfg.Fetcher,
		sink:          sink,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger.With().Str("component", "itinerary").Logger(),
		maxConcurrent: cfg.MaxConcurrentRoutes,
		propagate:     cfg.Propagate,
	}
}

// RouteResult is the annotated (or degraded) copy of one route.
type RouteResult struct {
	Route   PlannedRoute
	Outcome Outcome
	Err     error
}

// Degraded reports whether the route was returned without annotations because of an error.
func (r RouteResult) Degraded() bool {
	return r.Err != nil
}

// BatchResult is the outcome of a batch.
type BatchResult struct {
	// Status is 200 when the batch was assembled, 500 when assembly itself failed.
	Status   int
	Batch    RouteBatch
	Degraded int
}

// AnnotateBatch annotates both route lists concurrently. The input is not modified.
//
// A failing route degrades to its unannotated copy and never affects its
// siblings. Status is 500 only when the batch could not be assembled.
func (s *Service) AnnotateBatch(ctx context.Context, batch RouteBatch) (result BatchResult) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("batch assembly panicked: %v", r)
			s.logger.Error().
				Str("stack", string(debug.Stack())).
				Err(err).
				Msg("batch failed")
			s.sink.Report(ctx, Failure{Component: "itinerary", Operation: "annotate_batch", Message: "batch assembly failed", Err: err})
			result = BatchResult{Status: http.StatusInternalServerError, Batch: batch.Clone()}
		}
	}()

	var planned, other []RouteResult
	var g errgroup.Group
	g.Go(func() error {
		planned = s.annotateList(ctx, batch.PlannedRoutes)
		return nil
	})
	g.Go(func() error {
		other = s.annotateList(ctx, batch.OtherPlannedRoutes)
		return nil
	})
	_ = g.Wait()

	out := RouteBatch{
		PlannedRoutes:      collectRoutes(batch.PlannedRoutes, planned),
		OtherPlannedRoutes: collectRoutes(batch.OtherPlannedRoutes, other),
		Extra:              cloneFields(batch.Extra),
	}

	degraded := countDegraded(planned) + countDegraded(other)
	if err := ctx.Err(); err != nil {
		s.sink.Report(ctx, Failure{Component: "itinerary", Operation: "annotate_batch", Message: "request ended before the batch completed", Err: err})
		return BatchResult{Status: http.StatusInternalServerError, Batch: out, Degraded: degraded}
	}

	s.logger.Info().
		Int("routes", batch.RouteCount()).
		Int("degraded", degraded).
		Msg("batch annotated")

	return BatchResult{Status: http.StatusOK, Batch: out, Degraded: degraded}
}

func (s *Service) annotateList(ctx context.Context, routes []PlannedRoute) []RouteResult {
	results := make([]RouteResult, len(routes))
	var g errgroup.Group
	if s.maxConcurrent > 0 {
		g.SetLimit(s.maxConcurrent)
	}
	for i := range routes {
		g.Go(func() error {
			results[i] = s.AnnotateRoute(ctx, routes[i])
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// AnnotateRoute times a single route. Errors are reported to the failure sink
// and carried in the result alongside the unannotated copy.
func (s *Service) AnnotateRoute(ctx context.Context, route PlannedRoute) (result RouteResult) {
	routeID := route.ID()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrRoutePanic, r)
			s.logger.Error().
				Str("route_id", routeID).
				Str("stack", string(debug.Stack())).
				Err(err).
				Msg("route failed")
			s.sink.Report(ctx, Failure{Component: "itinerary", Operation: "annotate_route", Message: "route processing panicked", RouteID: routeID, Err: err})
			result = RouteResult{Route: route.Clone(), Outcome: OutcomeFailed, Err: err}
		}
		s.metrics.RecordRoute(ctx, routeOutcome(result))
	}()

	working := route.Clone()
	plan := Plan{RouteID: routeID}

	req, err := ExtractPlan(&working)
	switch {
	case errors.Is(err, ErrUnroutable):
		s.logger.Debug().Str("route_id", routeID).Msg("route is unroutable, skipping directions")
		plan.Unroutable = true
	case err != nil:
		return s.degrade(ctx, working, routeID, err)
	default:
		plan.Request = req
		if err := ValidateStops(working.Stops); err != nil {
			return s.degrade(ctx, working, routeID, err)
		}
		if _, err := ParseTimeOfDay(working.StartTime); err != nil {
			return s.degrade(ctx, working, routeID, fmt.Errorf("%w: %w", ErrInvalidStartTime, err))
		}
	}

	fetched, err := s.fetcher.Fetch(ctx, plan)
	if err != nil {
		// Already reported by the fetcher.
		return RouteResult{Route: working, Outcome: OutcomeFailed, Err: err}
	}

	annotated, err := Propagate(working, fetched.Legs, s.propagate)
	if err != nil {
		return s.degrade(ctx, working, routeID, err)
	}

	return RouteResult{Route: annotated, Outcome: fetched.Outcome}
}

func (s *Service) degrade(ctx context.Context, route PlannedRoute, routeID string, err error) RouteResult {
	s.sink.Report(ctx, Failure{
		Component: "itinerary",
		Operation: "annotate_route",
		Message:   "route could not be timed",
		RouteID:   routeID,
		Err:       err,
	})
	return RouteResult{Route: route, Outcome: OutcomeFailed, Err: err}
}

func routeOutcome(r RouteResult) string {
	if r.Err != nil {
		return OutcomeFailed.String()
	}
	return r.Outcome.String()
}

// collectRoutes keeps the input order; a missing result falls back to the input route.
func collectRoutes(input []PlannedRoute, results []RouteResult) []PlannedRoute {
	if input == nil {
		return nil
	}
	out := make([]PlannedRoute, len(input))
	for i := range input {
		if i < len(results) {
			out[i] = results[i].Route
			continue
		}
		out[i] = input[i].Clone()
	}
	return out
}

func countDegraded(results []RouteResult) int {
	n := 0
	for _, r := range results {
		if r.Degraded() {
			n++
		}
	}
	return n
}
