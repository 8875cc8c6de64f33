package itinerary

import (
	"errors"
	"sort"

	"github.com/fleetclock/fleetclock/internal/directions"
)

// ErrUnroutable is returned when a route has fewer than two stops or any stop
// lacks a usable coordinate.
var ErrUnroutable = errors.New("route is unroutable")

// SortStops orders stops by ascending sequence. Stops sharing a sequence keep
// their input order.
func SortStops(stops []Stop) {
	sort.SliceStable(stops, func(i, j int) bool {
		return stops[i].Sequence < stops[j].Sequence
	})
}

// ExtractPlan sorts the route's stops and derives the directions request:
// the first stop is the origin, the last the destination, the rest waypoints.
func ExtractPlan(route *PlannedRoute) (directions.Request, error) {
	SortStops(route.Stops)

	if len(route.Stops) < 2 {
		return directions.Request{}, ErrUnroutable
	}

	coords := make([]directions.Coordinate, len(route.Stops))
	for i, s := range route.Stops {
		lat, ok := s.Lat.Value()
		if !ok {
			return directions.Request{}, ErrUnroutable
		}
		lng, ok := s.Lng.Value()
		if !ok {
			return directions.Request{}, ErrUnroutable
		}
		coords[i] = directions.Coordinate{Lat: lat, Lng: lng}
	}

	return directions.Request{
		Origin:      coords[0],
		Destination: coords[len(coords)-1],
		Waypoints:   coords[1 : len(coords)-1],
	}, nil
}
