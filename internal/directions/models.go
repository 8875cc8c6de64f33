// Package directions defines the leg-level directions provider contract used to time routes.
package directions

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for directions operations.
var (
	// ErrProviderUnavailable indicates the provider could not be reached or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("directions provider unavailable")
	// ErrMalformedResponse indicates the provider answered with a body that could not be decoded.
	ErrMalformedResponse = errors.New("malformed directions response")
)

// Provider fetches leg-level travel metrics for an ordered origin/waypoints/destination triple.
//
// Implementations return a Response for every HTTP answer, whatever its status code,
// and an error only when no usable answer was obtained (transport failure, undecodable body).
type Provider interface {
	// ComputeRoute requests directions visiting every waypoint in order.
	ComputeRoute(ctx context.Context, req Request) (*Response, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// Coordinate represents a geographic point.
type Coordinate struct {
	Lat float64
	Lng float64
}

// Request describes one directions lookup.
type Request struct {
	Origin      Coordinate
	Destination Coordinate
	Waypoints   []Coordinate
}

// Coordinates returns origin, waypoints and destination as one ordered slice.
func (r Request) Coordinates() []Coordinate {
	coords := make([]Coordinate, 0, len(r.Waypoints)+2)
	coords = append(coords, r.Origin)
	coords = append(coords, r.Waypoints...)
	return append(coords, r.Destination)
}

// Response is a provider answer.
type Response struct {
	StatusCode int
	Routes     []Route
	Provider   string
	FetchedAt  time.Time
}

// HasRoutes reports whether the response carries at least one route.
func (r *Response) HasRoutes() bool {
	return r != nil && len(r.Routes) > 0
}

// Route is one route alternative, split into legs between consecutive stops.
type Route struct {
	Legs []Leg
}

// Leg is the segment between two consecutive stops.
type Leg struct {
	DurationSeconds int
	DistanceMeters  int
}

// Error provides detailed error information from a directions provider.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}
