package itinerary

import (
	"errors"
	"fmt"
	"time"
)

// Dwell policy.
const (
	shortDwell        = 30 * time.Minute
	longDwell         = 60 * time.Minute
	customerBaseDwell = 15 * time.Minute

	// secondsPerUnit is the unloading time per planned unit at a customer stop.
	secondsPerUnit = 1.8
)

var (
	// ErrUnknownStopType is returned for a stop type outside the known set.
	ErrUnknownStopType = errors.New("unknown stop type")

	// ErrNegativeQuantity is returned when a customer product line has a negative quantity.
	ErrNegativeQuantity = errors.New("negative planned quantity")
)

// DwellSeconds returns how long a vehicle stays at stop.
func DwellSeconds(stop Stop) (float64, error) {
	stopType, ok := ParseStopType(stop.Type)
	if !ok {
		return 0, fmt.Errorf("%w: %q (stop %v)", ErrUnknownStopType, stop.Type, stop.Sequence)
	}

	switch stopType {
	case StopTypeOrigin, StopTypeHotel:
		return shortDwell.Seconds(), nil
	case StopTypeDestination, StopTypeOffload, StopTypeBranch:
		return longDwell.Seconds(), nil
	}

	var units float64
	for _, p := range stop.ProductDetails {
		if p.PlannedQuantity < 0 {
			return 0, fmt.Errorf("%w: %v (stop %v)", ErrNegativeQuantity, p.PlannedQuantity, stop.Sequence)
		}
		units += p.PlannedQuantity
	}
	return units*secondsPerUnit + customerBaseDwell.Seconds(), nil
}

// Departure returns the departure time from stop for the given arrival.
func Departure(arrival TimeOfDay, stop Stop) (TimeOfDay, error) {
	dwell, err := DwellSeconds(stop)
	if err != nil {
		return 0, err
	}
	return arrival.Add(dwell), nil
}

// ValidateStops checks that every stop can be given a dwell time.
func ValidateStops(stops []Stop) error {
	for _, s := range stops {
		if _, err := DwellSeconds(s); err != nil {
			return err
		}
	}
	return nil
}
