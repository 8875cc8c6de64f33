package googleroutes

// computeRoutesRequest is the Routes API computeRoutes request body.
type computeRoutesRequest struct {
	Origin            waypoint   `json:"origin"`
	Destination       waypoint   `json:"destination"`
	Intermediates     []waypoint `json:"intermediates,omitempty"`
	TravelMode        string     `json:"travelMode"`
	RoutingPreference string     `json:"routingPreference,omitempty"`
}

type waypoint struct {
	Location location `json:"location"`
}

type location struct {
	LatLng latLng `json:"latLng"`
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// computeRoutesResponse is the subset of the computeRoutes response selected by the field mask.
type computeRoutesResponse struct {
	Routes []route `json:"routes"`
}

type route struct {
	Legs []leg `json:"legs"`
}

// leg durations are encoded as decimal seconds with an "s" suffix, e.g. "3600s".
// Zero-valued fields may be omitted by the API.
type leg struct {
	Duration       string `json:"duration"`
	DistanceMeters int    `json:"distanceMeters"`
}

// errorResponse is the Google API error envelope.
type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
