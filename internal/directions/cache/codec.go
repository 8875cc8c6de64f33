package cache

import (
	"github.com/fleetclock/fleetclock/internal/directions"
)

// storedLeg is the persisted form of a leg.
type storedLeg struct {
	DurationSeconds int `json:"duration_seconds"`
	DistanceMeters  int `json:"distance_meters"`
}

func encodeRoutes(routes []directions.Route) [][]storedLeg {
	stored := make([][]storedLeg, 0, len(routes))
	for _, r := range routes {
		legs := make([]storedLeg, 0, len(r.Legs))
		for _, l := range r.Legs {
			legs = append(legs, storedLeg(l))
		}
		stored = append(stored, legs)
	}
	return stored
}

func decodeRoutes(stored [][]storedLeg) []directions.Route {
	routes := make([]directions.Route, 0, len(stored))
	for _, legs := range stored {
		route := directions.Route{Legs: make([]directions.Leg, 0, len(legs))}
		for _, l := range legs {
			route.Legs = append(route.Legs, directions.Leg(l))
		}
		routes = append(routes, route)
	}
	return routes
}
