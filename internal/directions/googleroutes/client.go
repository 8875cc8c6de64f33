// Package googleroutes provides a client for the Google Maps Routes API computeRoutes method.
package googleroutes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetclock/fleetclock/internal/directions"
	"github.com/fleetclock/fleetclock/internal/provider/resilience"
)

const (
	// ProviderName identifies this directions provider.
	ProviderName = "googleroutes"

	// DefaultBaseURL is the Routes API base URL.
	DefaultBaseURL = "https://routes.googleapis.com"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	computeRoutesPath = "/directions/v2:computeRoutes"

	// fieldMask limits the response to leg durations and distances.
	fieldMask = "routes.legs.duration,routes.legs.distanceMeters"

	maxResponseBytes = 10 << 20
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Routes API client.
type ClientConfig struct {
	// APIKey is the Google Maps API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to the Routes API).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 30s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// TravelMode defaults to DRIVE.
	TravelMode string

	// RoutingPreference defaults to TRAFFIC_AWARE.
	RoutingPreference string

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Routes API client. It implements directions.Provider.
type Client struct {
	apiKey            string
	baseURL           string
	httpClient        HTTPDoer
	travelMode        string
	routingPreference string
	logger            zerolog.Logger
	now               func() time.Time
}

// NewClient creates a new Routes API client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.Registry = cfg.Registry
		clientCfg.CircuitBreaker.OnStateChange = resilience.LogStateChanges(cfg.Logger)
		httpClient = resilience.NewClient(clientCfg)
	}

	travelMode := cfg.TravelMode
	if travelMode == "" {
		travelMode = "DRIVE"
	}
	routingPreference := cfg.RoutingPreference
	if routingPreference == "" && travelMode == "DRIVE" {
		routingPreference = "TRAFFIC_AWARE"
	}

	return &Client{
		apiKey:            cfg.APIKey,
		baseURL:           baseURL,
		httpClient:        httpClient,
		travelMode:        travelMode,
		routingPreference: routingPreference,
		logger:            cfg.Logger,
		now:               time.Now,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// ComputeRoute requests a route through every waypoint in order.
//
// Every HTTP answer is returned as a directions.Response carrying its status
// code. Only 200 bodies are decoded; an error is returned when the request
// could not be sent or a 200 body is not valid JSON.
func (c *Client) ComputeRoute(ctx context.Context, req directions.Request) (*directions.Response, error) {
	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+computeRoutesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Key", c.apiKey)
	httpReq.Header.Set("X-Goog-FieldMask", fieldMask)

	c.logger.Debug().
		Float64("origin_lat", req.Origin.Lat).
		Float64("origin_lng", req.Origin.Lng).
		Float64("dest_lat", req.Destination.Lat).
		Float64("dest_lng", req.Destination.Lng).
		Int("waypoints", len(req.Waypoints)).
		Msg("requesting directions from Routes API")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &directions.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach directions provider",
			Err:      fmt.Errorf("%w: %w", directions.ErrProviderUnavailable, err),
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &directions.Error{
			Provider: ProviderName,
			Code:     "READ_FAILED",
			Message:  "failed to read directions response",
			Err:      fmt.Errorf("%w: %w", directions.ErrProviderUnavailable, err),
		}
	}

	result := &directions.Response{
		StatusCode: resp.StatusCode,
		Provider:   ProviderName,
		FetchedAt:  c.now(),
	}

	if resp.StatusCode != http.StatusOK {
		c.logErrorResponse(resp.StatusCode, respBody)
		return result, nil
	}

	var parsed computeRoutesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &directions.Error{
			Provider: ProviderName,
			Code:     "DECODE_FAILED",
			Message:  "failed to decode directions response",
			Err:      fmt.Errorf("%w: %w", directions.ErrMalformedResponse, err),
		}
	}

	routes, err := toRoutes(parsed)
	if err != nil {
		return nil, &directions.Error{
			Provider: ProviderName,
			Code:     "DECODE_FAILED",
			Message:  "failed to decode leg duration",
			Err:      fmt.Errorf("%w: %w", directions.ErrMalformedResponse, err),
		}
	}
	result.Routes = routes

	c.logger.Debug().
		Int("route_count", len(routes)).
		Msg("received directions from Routes API")

	return result, nil
}

func (c *Client) buildRequest(req directions.Request) computeRoutesRequest {
	out := computeRoutesRequest{
		Origin:            toWaypoint(req.Origin),
		Destination:       toWaypoint(req.Destination),
		TravelMode:        c.travelMode,
		RoutingPreference: c.routingPreference,
	}
	for _, w := range req.Waypoints {
		out.Intermediates = append(out.Intermediates, toWaypoint(w))
	}
	return out
}

func (c *Client) logErrorResponse(statusCode int, body []byte) {
	event := c.logger.Warn().Int("status_code", statusCode)
	var apiErr errorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		event = event.Str("api_status", apiErr.Error.Status).Str("api_message", apiErr.Error.Message)
	}
	event.Msg("Routes API returned non-success status")
}

func toWaypoint(c directions.Coordinate) waypoint {
	return waypoint{Location: location{LatLng: latLng{Latitude: c.Lat, Longitude: c.Lng}}}
}

func toRoutes(resp computeRoutesResponse) ([]directions.Route, error) {
	routes := make([]directions.Route, 0, len(resp.Routes))
	for _, r := range resp.Routes {
		legs := make([]directions.Leg, 0, len(r.Legs))
		for _, l := range r.Legs {
			seconds, err := ParseDuration(l.Duration)
			if err != nil {
				return nil, err
			}
			legs = append(legs, directions.Leg{DurationSeconds: seconds, DistanceMeters: l.DistanceMeters})
		}
		routes = append(routes, directions.Route{Legs: legs})
	}
	return routes, nil
}

// ParseDuration reads a protobuf JSON duration such as "3600s" or "12.5s" as
// whole seconds. The fractional part is dropped. An empty string is zero.
func ParseDuration(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	trimmed := strings.TrimSuffix(s, "s")
	if whole, _, found := strings.Cut(trimmed, "."); found {
		trimmed = whole
	}
	seconds, err := strconv.Atoi(trimmed)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return seconds, nil
}
