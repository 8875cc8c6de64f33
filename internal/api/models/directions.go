package models

import "github.com/fleetclock/fleetclock/internal/itinerary"

// DirectionsResponse is the body of POST /v1/route-directions. Status mirrors
// the HTTP status code so clients reading only the body see the outcome.
type DirectionsResponse struct {
	Status int                  `json:"status"`
	Data   itinerary.RouteBatch `json:"data"`
}
