package itinerary_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetclock/fleetclock/internal/directions"
	"github.com/fleetclock/fleetclock/internal/itinerary"
)

func TestAggregateLegs(t *testing.T) {
	totals := itinerary.AggregateLegs([]directions.Leg{
		{DurationSeconds: 600, DistanceMeters: 1000},
		{DurationSeconds: 900, DistanceMeters: 2500},
	})

	assert.Equal(t, 1500, totals.DurationSeconds)
	assert.Equal(t, 3500, totals.DistanceMeters)
	assert.InDelta(t, 3500*0.00062137119, totals.Miles(), 1e-9)
}

func TestAggregateLegs_Empty(t *testing.T) {
	assert.Equal(t, itinerary.Totals{}, itinerary.AggregateLegs(nil))
}

func TestMetersToMiles(t *testing.T) {
	assert.InDelta(t, 1.0, itinerary.MetersToMiles(1609), 0.001)
	assert.Equal(t, 0.0, itinerary.MetersToMiles(0))
}

func TestPropagate_OriginToBranch(t *testing.T) {
	route := itinerary.PlannedRoute{
		StartTime: "09:00",
		Stops: []itinerary.Stop{
			stopAt(1, "origin", 1, 1),
			stopAt(2, "branch", 2, 2),
		},
	}

	out, err := itinerary.Propagate(route, []directions.Leg{{DurationSeconds: 3600, DistanceMeters: 1609}}, itinerary.PropagateOptions{})
	require.NoError(t, err)

	origin, branch := out.Stops[0], out.Stops[1]
	assert.Equal(t, "09:00", origin.ETA)
	assert.Equal(t, "09:30", origin.ETD)
	require.NotNil(t, origin.TotalDistance)
	assert.Equal(t, 0.0, *origin.TotalDistance)

	assert.Equal(t, "10:00", branch.ETA)
	assert.Equal(t, "11:00", branch.ETD)
	require.NotNil(t, branch.TotalDistance)
	assert.InDelta(t, 1609*0.00062137119, *branch.TotalDistance, 1e-9)

	require.NotNil(t, out.TravelTime)
	require.NotNil(t, out.TravelDistance)
	assert.Equal(t, 3600, *out.TravelTime)
	assert.InDelta(t, 1609*0.00062137119, *out.TravelDistance, 1e-9)

	assert.Empty(t, route.Stops[1].ETA, "input must not be modified")
	assert.Nil(t, route.TravelTime)
}

func TestPropagate_DepartOriginAfterDwell(t *testing.T) {
	route := itinerary.PlannedRoute{
		StartTime: "09:00",
		Stops:     []itinerary.Stop{stopAt(1, "origin", 1, 1), stopAt(2, "branch", 2, 2)},
	}

	out, err := itinerary.Propagate(route, []directions.Leg{{DurationSeconds: 3600}}, itinerary.PropagateOptions{DepartOriginAfterDwell: true})
	require.NoError(t, err)

	assert.Equal(t, "10:30", out.Stops[1].ETA)
	assert.Equal(t, "11:30", out.Stops[1].ETD)
}

func TestPropagate_LaterLegsLeaveAtPreviousDeparture(t *testing.T) {
	customer := stopAt(2, "customer", 2, 2)
	customer.ProductDetails = []itinerary.ProductDetail{{PlannedQuantity: 100}}

	route := itinerary.PlannedRoute{
		StartTime: "08:00",
		Stops: []itinerary.Stop{
			stopAt(1, "origin", 1, 1),
			customer,
			stopAt(3, "destination", 3, 3),
		},
	}

	legs := []directions.Leg{
		{DurationSeconds: 1200, DistanceMeters: 5000},
		{DurationSeconds: 1800, DistanceMeters: 8000},
	}
	out, err := itinerary.Propagate(route, legs, itinerary.PropagateOptions{})
	require.NoError(t, err)

	// 08:00 + 20 min; dwell 100*1.8 + 900 = 1080 s = 18 min.
	assert.Equal(t, "08:20", out.Stops[1].ETA)
	assert.Equal(t, "08:38", out.Stops[1].ETD)
	assert.Equal(t, "09:08", out.Stops[2].ETA)
	assert.Equal(t, "10:08", out.Stops[2].ETD)

	// Distances are per leg.
	assert.InDelta(t, 8000*0.00062137119, *out.Stops[2].TotalDistance, 1e-9)
	assert.Equal(t, 3000, *out.TravelTime)
	assert.InDelta(t, 13000*0.00062137119, *out.TravelDistance, 1e-9)
}

func TestPropagate_MonotonicTimes(t *testing.T) {
	route := itinerary.PlannedRoute{
		StartTime: "06:00",
		Stops: []itinerary.Stop{
			stopAt(1, "origin", 1, 1),
			stopAt(2, "customer", 2, 2),
			stopAt(3, "hotel", 3, 3),
			stopAt(4, "offload", 4, 4),
			stopAt(5, "destination", 5, 5),
		},
	}
	legs := []directions.Leg{{DurationSeconds: 59}, {DurationSeconds: 0}, {DurationSeconds: 7322}, {DurationSeconds: 45}}

	out, err := itinerary.Propagate(route, legs, itinerary.PropagateOptions{})
	require.NoError(t, err)

	var prev int
	for i, s := range out.Stops {
		eta, err := itinerary.ParseTimeOfDay(s.ETA)
		require.NoError(t, err)
		etd, err := itinerary.ParseTimeOfDay(s.ETD)
		require.NoError(t, err)
		assert.LessOrEqual(t, eta.Seconds(), etd.Seconds(), "stop %d", i)
		if i > 0 {
			assert.LessOrEqual(t, prev, eta.Seconds(), "stop %d", i)
		}
		// The first leg leaves at the start time, not after the origin dwell.
		prev = etd.Seconds()
		if i == 0 {
			prev = eta.Seconds()
		}
	}
}

func TestPropagate_NoLegsLeavesRouteUnannotated(t *testing.T) {
	route := itinerary.PlannedRoute{
		StartTime: "09:00",
		Stops:     []itinerary.Stop{stopAt(2, "branch", 2, 2), stopAt(1, "origin", 1, 1)},
	}

	out, err := itinerary.Propagate(route, nil, itinerary.PropagateOptions{})
	require.NoError(t, err)

	for _, s := range out.Stops {
		assert.Empty(t, s.ETA)
		assert.Empty(t, s.ETD)
		assert.Nil(t, s.TotalDistance)
	}
	assert.Nil(t, out.TravelTime)
	assert.Nil(t, out.TravelDistance)
}

func TestPropagate_LegCountMismatch(t *testing.T) {
	route := itinerary.PlannedRoute{
		StartTime: "09:00",
		Stops:     []itinerary.Stop{stopAt(1, "origin", 1, 1), stopAt(2, "branch", 2, 2)},
	}

	out, err := itinerary.Propagate(route, []directions.Leg{{DurationSeconds: 60}, {DurationSeconds: 60}}, itinerary.PropagateOptions{})
	assert.ErrorIs(t, err, itinerary.ErrLegCountMismatch)
	assert.Empty(t, out.Stops[1].ETA)
}

func TestPropagate_InvalidStartTime(t *testing.T) {
	route := itinerary.PlannedRoute{
		StartTime: "nine",
		Stops:     []itinerary.Stop{stopAt(1, "origin", 1, 1), stopAt(2, "branch", 2, 2)},
	}

	_, err := itinerary.Propagate(route, []directions.Leg{{DurationSeconds: 60}}, itinerary.PropagateOptions{})
	assert.ErrorIs(t, err, itinerary.ErrInvalidStartTime)
	assert.ErrorIs(t, err, itinerary.ErrInvalidTime)
}

func TestPropagate_UnknownStopType(t *testing.T) {
	route := itinerary.PlannedRoute{
		StartTime: "09:00",
		Stops:     []itinerary.Stop{stopAt(1, "origin", 1, 1), stopAt(2, "depot", 2, 2)},
	}

	_, err := itinerary.Propagate(route, []directions.Leg{{DurationSeconds: 60}}, itinerary.PropagateOptions{})
	assert.ErrorIs(t, err, itinerary.ErrUnknownStopType)
}
