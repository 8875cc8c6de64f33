package itinerary

import "github.com/fleetclock/fleetclock/internal/directions"

// milesPerMeter converts provider distances to statute miles.
const milesPerMeter = 0.00062137119

// Totals is the trip-level sum of all legs.
type Totals struct {
	DurationSeconds int
	DistanceMeters  int
}

// Miles returns the total distance in miles.
func (t Totals) Miles() float64 {
	return MetersToMiles(t.DistanceMeters)
}

// AggregateLegs sums leg durations and distances.
func AggregateLegs(legs []directions.Leg) Totals {
	var t Totals
	for _, l := range legs {
		t.DurationSeconds += l.DurationSeconds
		t.DistanceMeters += l.DistanceMeters
	}
	return t
}

// MetersToMiles converts meters to miles.
func MetersToMiles(meters int) float64 {
	return float64(meters) * milesPerMeter
}
