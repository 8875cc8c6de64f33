package itinerary

import (
	"context"

	"github.com/rs/zerolog"
)

// Failure is a handled error worth an operator's attention.
type Failure struct {
	Component string
	Operation string
	Message   string
	RouteID   string
	Err       error
}

// FailureSink receives handled failures. Implementations must be safe for concurrent use.
type FailureSink interface {
	Report(ctx context.Context, f Failure)
}

// FailureSinkFunc adapts a function to FailureSink.
type FailureSinkFunc func(ctx context.Context, f Failure)

// Report calls fn.
func (fn FailureSinkFunc) Report(ctx context.Context, f Failure) {
	fn(ctx, f)
}

// LogSink writes failures to a zerolog logger at error level.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink that logs through logger.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Report implements FailureSink.
func (s *LogSink) Report(_ context.Context, f Failure) {
	event := s.logger.Error().
		Str("component", f.Component).
		Str("operation", f.Operation)
	if f.RouteID != "" {
		event = event.Str("route_id", f.RouteID)
	}
	if f.Err != nil {
		event = event.Err(f.Err)
	}
	event.Msg(f.Message)
}

type nopSink struct{}

func (nopSink) Report(context.Context, Failure) {}
