package itinerary

import (
	"errors"
	"fmt"

	"github.com/fleetclock/fleetclock/internal/directions"
)

var (
	// ErrLegCountMismatch is returned when the provider's leg count does not match the stop count.
	ErrLegCountMismatch = errors.New("leg count does not match stop count")

	// ErrInvalidStartTime is returned when routeStartTime is not a valid time of day.
	ErrInvalidStartTime = errors.New("invalid route start time")
)

// PropagateOptions tunes how times are carried along a route.
type PropagateOptions struct {
	// DepartOriginAfterDwell makes the first leg leave at the origin's ETD
	// instead of the route start time.
	DepartOriginAfterDwell bool

	// BaseDistance is written as the first stop's totalDistance.
	BaseDistance float64
}

// Propagate returns a copy of route with ETA, ETD and totalDistance set on
// every stop and the trip summary filled in. The input is not modified.
//
// With no legs the copy is returned unannotated.
func Propagate(route PlannedRoute, legs []directions.Leg, opts PropagateOptions) (PlannedRoute, error) {
	out := route.Clone()
	SortStops(out.Stops)

	if len(legs) == 0 {
		return out, nil
	}
	if len(legs) != len(out.Stops)-1 {
		return route.Clone(), fmt.Errorf("%w: %d legs for %d stops", ErrLegCountMismatch, len(legs), len(out.Stops))
	}

	start, err := ParseTimeOfDay(out.StartTime)
	if err != nil {
		return route.Clone(), fmt.Errorf("%w: %w", ErrInvalidStartTime, err)
	}

	origin := &out.Stops[0]
	originETD, err := Departure(start, *origin)
	if err != nil {
		return route.Clone(), err
	}
	base := opts.BaseDistance
	origin.ETA = start.String()
	origin.ETD = originETD.String()
	origin.TotalDistance = &base

	departure := start
	if opts.DepartOriginAfterDwell {
		departure = originETD
	}

	for i, leg := range legs {
		stop := &out.Stops[i+1]
		eta := departure.Add(float64(leg.DurationSeconds))
		etd, err := Departure(eta, *stop)
		if err != nil {
			return route.Clone(), err
		}
		miles := MetersToMiles(leg.DistanceMeters)

		stop.ETA = eta.String()
		stop.ETD = etd.String()
		stop.TotalDistance = &miles
		departure = etd
	}

	totals := AggregateLegs(legs)
	travelTime := totals.DurationSeconds
	travelDistance := totals.Miles()
	out.TravelTime = &travelTime
	out.TravelDistance = &travelDistance

	return out, nil
}
