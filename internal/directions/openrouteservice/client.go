// Package openrouteservice provides a client for the OpenRouteService directions API.
package openrouteservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetclock/fleetclock/internal/directions"
	"github.com/fleetclock/fleetclock/internal/provider/resilience"
)

const (
	// ProviderName identifies this directions provider.
	ProviderName = "openrouteservice"

	// DefaultBaseURL is the OpenRouteService API base URL.
	DefaultBaseURL = "https://api.openrouteservice.org"

	// DefaultProfile is the routing profile used for delivery vehicles.
	DefaultProfile = "driving-hgv"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	maxResponseBytes = 10 << 20
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OpenRouteService client.
type ClientConfig struct {
	// APIKey is the ORS API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to ORS API).
	BaseURL string

	// Profile is the ORS routing profile (optional, defaults to driving-hgv).
	Profile string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenRouteService API client. It implements directions.Provider.
type Client struct {
	apiKey     string
	baseURL    string
	profile    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new OpenRouteService client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	profile := cfg.Profile
	if profile == "" {
		profile = DefaultProfile
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

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		profile:    profile,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// ComputeRoute requests a route through every waypoint in order. Each ORS
// segment becomes one leg.
func (c *Client) ComputeRoute(ctx context.Context, req directions.Request) (*directions.Response, error) {
	coords := req.Coordinates()
	orsReq := orsRequest{
		Coordinates:  make([][]float64, 0, len(coords)),
		Instructions: true,
		Geometry:     false,
		Units:        "m",
	}
	for _, coord := range coords {
		// ORS uses [lon, lat] order (GeoJSON)
		orsReq.Coordinates = append(orsReq.Coordinates, []float64{coord.Lng, coord.Lat})
	}

	body, err := json.Marshal(orsReq)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/v2/directions/%s", c.baseURL, c.profile)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", c.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("profile", c.profile).
		Int("coordinates", len(coords)).
		Msg("requesting directions from ORS")

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
		FetchedAt:  time.Now(),
	}

	if resp.StatusCode != http.StatusOK {
		result.StatusCode = c.normalizeStatus(resp.StatusCode, respBody)
		return result, nil
	}

	var orsResp orsResponse
	if err := json.Unmarshal(respBody, &orsResp); err != nil {
		return nil, &directions.Error{
			Provider: ProviderName,
			Code:     "DECODE_FAILED",
			Message:  "failed to decode directions response",
			Err:      fmt.Errorf("%w: %w", directions.ErrMalformedResponse, err),
		}
	}

	result.Routes = toRoutes(&orsResp)

	c.logger.Debug().
		Int("route_count", len(result.Routes)).
		Msg("received directions from ORS")

	return result, nil
}

// normalizeStatus maps ORS "no route" answers, which come back as 400 with a
// routing error code, to 404.
func (c *Client) normalizeStatus(statusCode int, body []byte) int {
	var orsErr orsErrorResponse
	if err := json.Unmarshal(body, &orsErr); err != nil {
		c.logger.Warn().Int("status_code", statusCode).Msg("ORS returned non-success status")
		return statusCode
	}

	c.logger.Warn().
		Int("status_code", statusCode).
		Int("ors_code", orsErr.Error.Code).
		Str("ors_message", orsErr.Error.Message).
		Msg("ORS returned non-success status")

	if statusCode == http.StatusBadRequest {
		switch orsErr.Error.Code {
		case orsErrorCodeRouteNotFound, orsErrorCodePointNotFound:
			return http.StatusNotFound
		}
	}
	return statusCode
}

// toRoutes converts an ORS response to the directions model.
func toRoutes(resp *orsResponse) []directions.Route {
	routes := make([]directions.Route, 0, len(resp.Routes))

	for i := range resp.Routes {
		orsRoute := &resp.Routes[i]
		legs := make([]directions.Leg, 0, len(orsRoute.Segments))
		for j := range orsRoute.Segments {
			segment := &orsRoute.Segments[j]
			legs = append(legs, directions.Leg{
				DurationSeconds: int(segment.Duration),
				DistanceMeters:  int(segment.Distance),
			})
		}

		// Without segments a two-point route is one leg spanning the summary.
		if len(legs) == 0 && len(orsRoute.WayPoints) <= 2 {
			legs = append(legs, directions.Leg{
				DurationSeconds: int(orsRoute.Summary.Duration),
				DistanceMeters:  int(orsRoute.Summary.Distance),
			})
		}

		routes = append(routes, directions.Route{Legs: legs})
	}

	return routes
}
