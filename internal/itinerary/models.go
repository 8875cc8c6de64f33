// Package itinerary computes arrival and departure times and leg distances for
// multi-stop delivery routes from leg-level directions data.
package itinerary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// StopType is the kind of stop; it drives the dwell-time policy.
type StopType string

// Known stop types. Matching is case-insensitive.
const (
	StopTypeOrigin      StopType = "origin"
	StopTypeHotel       StopType = "hotel"
	StopTypeDestination StopType = "destination"
	StopTypeOffload     StopType = "offload"
	StopTypeBranch      StopType = "branch"
	StopTypeCustomer    StopType = "customer"
)

// ParseStopType normalizes a caller-supplied stop type.
func ParseStopType(s string) (StopType, bool) {
	switch t := StopType(strings.ToLower(strings.TrimSpace(s))); t {
	case StopTypeOrigin, StopTypeHotel, StopTypeDestination, StopTypeOffload, StopTypeBranch, StopTypeCustomer:
		return t, true
	default:
		return "", false
	}
}

// Coordinate is a latitude or longitude as supplied by the caller.
// It accepts a JSON number or a numeric string and is written back exactly as received.
type Coordinate struct {
	raw   json.RawMessage
	value float64
	valid bool
}

// NewCoordinate returns a coordinate holding v.
func NewCoordinate(v float64) Coordinate {
	return Coordinate{
		raw:   json.RawMessage(strconv.FormatFloat(v, 'f', -1, 64)),
		value: v,
		valid: !math.IsNaN(v) && !math.IsInf(v, 0),
	}
}

// Value returns the numeric value and whether it is a finite number.
func (c Coordinate) Value() (float64, bool) {
	return c.value, c.valid
}

// IsZero reports whether the coordinate was absent from the input.
func (c Coordinate) IsZero() bool {
	return c.raw == nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Coordinate) UnmarshalJSON(data []byte) error {
	c.raw = append(json.RawMessage(nil), data...)
	c.value, c.valid = 0, false

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	var num float64
	if err := json.Unmarshal(trimmed, &num); err == nil {
		c.value, c.valid = num, true
		return nil
	}

	var str string
	if err := json.Unmarshal(trimmed, &str); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			c.value, c.valid = v, true
		}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (c Coordinate) MarshalJSON() ([]byte, error) {
	if c.raw == nil {
		return []byte("null"), nil
	}
	return c.raw, nil
}

// ProductDetail is one ordered product line on a customer stop.
type ProductDetail struct {
	PlannedQuantity float64
	Extra           map[string]json.RawMessage
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *ProductDetail) UnmarshalJSON(data []byte) error {
	fields, err := splitFields(data)
	if err != nil {
		return err
	}
	*p = ProductDetail{}
	if err := fields.peek("plannedQuantity", &p.PlannedQuantity); err != nil {
		return err
	}
	p.Extra = fields.rest()
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p ProductDetail) MarshalJSON() ([]byte, error) {
	known := map[string]any{}
	if _, ok := p.Extra["plannedQuantity"]; !ok && p.PlannedQuantity != 0 {
		known["plannedQuantity"] = p.PlannedQuantity
	}
	return mergeFields(p.Extra, known)
}

// Stop is one point on a planned route.
type Stop struct {
	// Sequence orders the stops. Any JSON number is accepted, fractional ones included.
	Sequence       float64
	Type           string
	Lat            Coordinate
	Lng            Coordinate
	ProductDetails []ProductDetail

	// Derived fields written by the propagator.
	ETA           string
	ETD           string
	TotalDistance *float64

	// Extra holds every field this service never rewrites, stopSequence and
	// stopType included; they are echoed back unchanged.
	Extra map[string]json.RawMessage
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Stop) UnmarshalJSON(data []byte) error {
	fields, err := splitFields(data)
	if err != nil {
		return err
	}
	*s = Stop{}
	if s.Sequence, err = parseSequence(fields["stopSequence"]); err != nil {
		return err
	}
	if err := fields.decode(
		field{key: "stopType", dst: &s.Type, keep: true},
		field{key: "lat", dst: &s.Lat},
		field{key: "lng", dst: &s.Lng},
		field{key: "productDetails", dst: &s.ProductDetails},
		field{key: "ETA", dst: &s.ETA, keep: true},
		field{key: "ETD", dst: &s.ETD, keep: true},
		field{key: "totalDistance", dst: &s.TotalDistance, keep: true},
	); err != nil {
		return err
	}
	s.Extra = fields.rest()
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s Stop) MarshalJSON() ([]byte, error) {
	known := map[string]any{}
	if _, ok := s.Extra["stopSequence"]; !ok && s.Sequence != 0 {
		known["stopSequence"] = s.Sequence
	}
	if _, ok := s.Extra["stopType"]; !ok && s.Type != "" {
		known["stopType"] = s.Type
	}
	if !s.Lat.IsZero() {
		known["lat"] = s.Lat
	}
	if !s.Lng.IsZero() {
		known["lng"] = s.Lng
	}
	if s.ProductDetails != nil {
		known["productDetails"] = s.ProductDetails
	}
	if s.ETA != "" {
		known["ETA"] = s.ETA
	}
	if s.ETD != "" {
		known["ETD"] = s.ETD
	}
	if s.TotalDistance != nil {
		known["totalDistance"] = *s.TotalDistance
	}
	return mergeFields(s.Extra, known)
}

// parseSequence reads a stopSequence given as a JSON number or numeric string.
// An absent or null sequence is zero.
func parseSequence(raw json.RawMessage) (float64, error) {
	if raw == nil || string(bytes.TrimSpace(raw)) == "null" {
		return 0, nil
	}
	var c Coordinate
	if err := c.UnmarshalJSON(raw); err != nil {
		return 0, err
	}
	v, ok := c.Value()
	if !ok {
		return 0, fmt.Errorf("field %q: %w", "stopSequence", &json.UnmarshalTypeError{
			Value:  jsonKind(raw),
			Type:   reflect.TypeOf(v),
			Struct: "Stop",
			Field:  "stopSequence",
		})
	}
	return v, nil
}

func jsonKind(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "empty value"
	}
	switch trimmed[0] {
	case '"':
		return "string"
	case 't', 'f':
		return "bool"
	case '{':
		return "object"
	case '[':
		return "array"
	default:
		return "number"
	}
}

// Clone returns a deep copy of the stop.
func (s Stop) Clone() Stop {
	out := s
	if s.ProductDetails != nil {
		out.ProductDetails = make([]ProductDetail, len(s.ProductDetails))
		for i, p := range s.ProductDetails {
			out.ProductDetails[i] = ProductDetail{PlannedQuantity: p.PlannedQuantity, Extra: cloneFields(p.Extra)}
		}
	}
	if s.TotalDistance != nil {
		d := *s.TotalDistance
		out.TotalDistance = &d
	}
	out.Extra = cloneFields(s.Extra)
	return out
}

// PlannedRoute is an ordered sequence of stops with a start time.
type PlannedRoute struct {
	Stops     []Stop
	StartTime string

	// Trip-level summary: seconds and miles.
	TravelTime     *int
	TravelDistance *float64

	Extra map[string]json.RawMessage
}

// ID returns the caller's routeId, if any, for logging.
func (r PlannedRoute) ID() string {
	raw, ok := r.Extra["routeId"]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *PlannedRoute) UnmarshalJSON(data []byte) error {
	fields, err := splitFields(data)
	if err != nil {
		return err
	}
	*r = PlannedRoute{}
	if err := fields.decode(
		field{key: "routeStartTime", dst: &r.StartTime, keep: true},
		field{key: "stopDetails", dst: &r.Stops},
		field{key: "travelTime", dst: &r.TravelTime, keep: true},
		field{key: "travelDistance", dst: &r.TravelDistance, keep: true},
	); err != nil {
		return err
	}
	r.Extra = fields.rest()
	return nil
}

// MarshalJSON implements json.Marshaler. Keys the caller never sent stay absent.
func (r PlannedRoute) MarshalJSON() ([]byte, error) {
	known := map[string]any{}
	if r.Stops != nil {
		known["stopDetails"] = r.Stops
	}
	if _, ok := r.Extra["routeStartTime"]; !ok && r.StartTime != "" {
		known["routeStartTime"] = r.StartTime
	}
	if r.TravelTime != nil {
		known["travelTime"] = *r.TravelTime
	}
	if r.TravelDistance != nil {
		known["travelDistance"] = *r.TravelDistance
	}
	return mergeFields(r.Extra, known)
}

// Clone returns a deep copy of the route.
func (r PlannedRoute) Clone() PlannedRoute {
	out := r
	if r.Stops != nil {
		out.Stops = make([]Stop, len(r.Stops))
		for i, s := range r.Stops {
			out.Stops[i] = s.Clone()
		}
	}
	if r.TravelTime != nil {
		t := *r.TravelTime
		out.TravelTime = &t
	}
	if r.TravelDistance != nil {
		d := *r.TravelDistance
		out.TravelDistance = &d
	}
	out.Extra = cloneFields(r.Extra)
	return out
}

// RouteBatch is the request and response body: two independent route lists.
type RouteBatch struct {
	PlannedRoutes      []PlannedRoute
	OtherPlannedRoutes []PlannedRoute
	Extra              map[string]json.RawMessage
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *RouteBatch) UnmarshalJSON(data []byte) error {
	fields, err := splitFields(data)
	if err != nil {
		return err
	}
	*b = RouteBatch{}
	if err := fields.decode(
		field{key: "planned_routes", dst: &b.PlannedRoutes},
		field{key: "other_planned_routes", dst: &b.OtherPlannedRoutes},
	); err != nil {
		return err
	}
	b.Extra = fields.rest()
	return nil
}

// MarshalJSON implements json.Marshaler. A list the caller never sent stays absent.
func (b RouteBatch) MarshalJSON() ([]byte, error) {
	known := map[string]any{}
	if b.PlannedRoutes != nil {
		known["planned_routes"] = b.PlannedRoutes
	}
	if b.OtherPlannedRoutes != nil {
		known["other_planned_routes"] = b.OtherPlannedRoutes
	}
	return mergeFields(b.Extra, known)
}

// Clone returns a deep copy of the batch.
func (b RouteBatch) Clone() RouteBatch {
	return RouteBatch{
		PlannedRoutes:      cloneRoutes(b.PlannedRoutes),
		OtherPlannedRoutes: cloneRoutes(b.OtherPlannedRoutes),
		Extra:              cloneFields(b.Extra),
	}
}

// RouteCount returns the number of routes across both lists.
func (b RouteBatch) RouteCount() int {
	return len(b.PlannedRoutes) + len(b.OtherPlannedRoutes)
}

func cloneRoutes(routes []PlannedRoute) []PlannedRoute {
	if routes == nil {
		return nil
	}
	out := make([]PlannedRoute, len(routes))
	for i, r := range routes {
		out[i] = r.Clone()
	}
	return out
}
