// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/fleetclock/fleetclock/internal/provider/resilience"
)

// Directions providers.
const (
	ProviderGoogle           = "google"
	ProviderOpenRouteService = "openrouteservice"
)

// Cache backends.
const (
	CacheOff      = "off"
	CacheMemory   = "memory"
	CachePostgres = "postgres"
	CacheValkey   = "valkey"
)

// Config is the complete service configuration.
type Config struct {
	Port       string
	Env        string
	LogLevel   zerolog.Level
	RequireTLS bool

	Telemetry  TelemetryConfig
	Directions DirectionsConfig
	Retry      resilience.RetryPolicy
	Itinerary  ItineraryConfig
	Auth       AuthConfig
	Cache      CacheConfig
	Database   DatabaseConfig
	PubSub     PubSubConfig
	RateLimit  RateLimitConfig
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SampleRatio  float64
}

// DirectionsConfig selects and configures the directions provider.
type DirectionsConfig struct {
	Provider     string
	GoogleAPIKey string
	ORSAPIKey    string
	ORSProfile   string
	BaseURL      string
	Timeout      time.Duration
}

// ItineraryConfig tunes route annotation.
type ItineraryConfig struct {
	MaxConcurrentRoutes    int
	DepartOriginAfterDwell bool
}

// AuthConfig holds the Basic auth credentials. Production deployments must set
// them unless Disabled is explicitly true.
type AuthConfig struct {
	Username     string
	PasswordHash string
	Disabled     bool
}

// Enabled reports whether Basic auth guards the protected endpoints.
func (c AuthConfig) Enabled() bool {
	return !c.Disabled && c.Username != ""
}

// CacheConfig configures the directions cache.
type CacheConfig struct {
	Backend    string
	TTL        time.Duration
	ValkeyAddr string
}

// DatabaseConfig holds the PostgreSQL settings for the persistent directions cache.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
}

// PubSubConfig configures the asynchronous worker.
type PubSubConfig struct {
	ProjectID              string
	Subscription           string
	ResultTopic            string
	MaxOutstandingMessages int
	JobTimeout             time.Duration
}

// RateLimitConfig limits batch requests per client IP.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables with defaults applied.
func FromEnv() (Config, error) {
	var errs []error

	level, err := zerolog.ParseLevel(strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")))
	if err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	retry := resilience.DefaultRetryPolicy()
	retry.MaxRetries = uint64(getInt("RETRY_MAX_RETRIES", int(retry.MaxRetries), &errs)) //nolint:gosec // validated below
	retry.InitialInterval = getDuration("RETRY_INITIAL_INTERVAL", retry.InitialInterval, &errs)
	retry.MaxInterval = getDuration("RETRY_MAX_INTERVAL", retry.MaxInterval, &errs)
	retry.Multiplier = getFloat("RETRY_MULTIPLIER", retry.Multiplier, &errs)

	cfg := Config{
		Port:       getEnvOrDefault("APP_PORT", "8080"),
		Env:        getEnvOrDefault("APP_ENV", "development"),
		LogLevel:   level,
		RequireTLS: getBool("REQUIRE_TLS", false, &errs),
		Telemetry: TelemetryConfig{
			Enabled:      getBool("OTEL_ENABLED", false, &errs),
			OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRatio:  getFloat("OTEL_SAMPLE_RATIO", 1, &errs),
		},
		Directions: DirectionsConfig{
			Provider:     strings.ToLower(getEnvOrDefault("DIRECTIONS_PROVIDER", ProviderGoogle)),
			GoogleAPIKey: os.Getenv("GOOGLE_MAPS_API_KEY"),
			ORSAPIKey:    os.Getenv("ORS_API_KEY"),
			ORSProfile:   os.Getenv("ORS_PROFILE"),
			BaseURL:      os.Getenv("DIRECTIONS_BASE_URL"),
			Timeout:      getDuration("DIRECTIONS_TIMEOUT", 30*time.Second, &errs),
		},
		Retry: retry,
		Itinerary: ItineraryConfig{
			MaxConcurrentRoutes:    getInt("MAX_CONCURRENT_ROUTES", 0, &errs),
			DepartOriginAfterDwell: getBool("DEPART_ORIGIN_AFTER_DWELL", false, &errs),
		},
		Auth: AuthConfig{
			Username:     os.Getenv("AUTH_USERNAME"),
			PasswordHash: os.Getenv("AUTH_PASSWORD_HASH"),
			Disabled:     getBool("AUTH_DISABLED", false, &errs),
		},
		Cache: CacheConfig{
			Backend:    strings.ToLower(getEnvOrDefault("CACHE_BACKEND", CacheOff)),
			TTL:        getDuration("CACHE_TTL", 6*time.Hour, &errs),
			ValkeyAddr: getEnvOrDefault("VALKEY_ADDR", "localhost:6379"),
		},
		Database: DatabaseConfig{
			Host:            getEnvOrDefault("DB_HOST", "localhost"),
			Port:            getInt("DB_PORT", 5432, &errs),
			User:            getEnvOrDefault("DB_USER", "fleetclock"),
			Password:        getEnvOrDefault("DB_PASSWORD", "localdev"),
			Name:            getEnvOrDefault("DB_NAME", "fleetclock"),
			SSLMode:         getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns:        getInt("DB_MAX_CONNS", 10, &errs),
			MinConns:        getInt("DB_MIN_CONNS", 2, &errs),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute, &errs),
		},
		PubSub: PubSubConfig{
			ProjectID:              os.Getenv("PUBSUB_PROJECT_ID"),
			Subscription:           getEnvOrDefault("PUBSUB_SUBSCRIPTION", "route-directions-jobs"),
			ResultTopic:            getEnvOrDefault("PUBSUB_RESULT_TOPIC", "route-directions-results"),
			MaxOutstandingMessages: getInt("PUBSUB_MAX_OUTSTANDING_MESSAGES", 10, &errs),
			JobTimeout:             getDuration("WORKER_JOB_TIMEOUT", 5*time.Minute, &errs),
		},
		RateLimit: RateLimitConfig{
			Requests: getInt("RATE_LIMIT_REQUESTS", 60, &errs),
			Window:   getDuration("RATE_LIMIT_WINDOW", time.Minute, &errs),
		},
	}

	if len(errs) == 0 {
		errs = append(errs, cfg.Validate())
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error

	switch c.Directions.Provider {
	case ProviderGoogle:
		if c.Directions.GoogleAPIKey == "" {
			errs = append(errs, errors.New("GOOGLE_MAPS_API_KEY is required for the google provider"))
		}
	case ProviderOpenRouteService:
		if c.Directions.ORSAPIKey == "" {
			errs = append(errs, errors.New("ORS_API_KEY is required for the openrouteservice provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("DIRECTIONS_PROVIDER: unknown provider %q", c.Directions.Provider))
	}

	switch c.Cache.Backend {
	case CacheOff, CacheMemory, CachePostgres, CacheValkey:
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND: unknown backend %q", c.Cache.Backend))
	}

	if c.Auth.Enabled() && c.Auth.PasswordHash == "" {
		errs = append(errs, errors.New("AUTH_PASSWORD_HASH is required when AUTH_USERNAME is set"))
	}
	if c.IsProduction() && !c.Auth.Disabled && c.Auth.Username == "" {
		errs = append(errs, errors.New("AUTH_USERNAME is required in production; set AUTH_DISABLED=true to serve without auth"))
	}
	if c.Retry.InitialInterval <= 0 {
		errs = append(errs, errors.New("RETRY_INITIAL_INTERVAL must be positive"))
	}
	if c.Retry.MaxInterval < c.Retry.InitialInterval {
		errs = append(errs, errors.New("RETRY_MAX_INTERVAL must not be below RETRY_INITIAL_INTERVAL"))
	}
	if c.Cache.Backend != CacheOff && c.Cache.TTL < time.Second {
		errs = append(errs, errors.New("CACHE_TTL must be at least one second"))
	}
	if c.Itinerary.MaxConcurrentRoutes < 0 {
		errs = append(errs, errors.New("MAX_CONCURRENT_ROUTES must not be negative"))
	}
	if c.Cache.Backend == CachePostgres {
		errs = append(errs, c.Database.validate())
	}

	return errors.Join(errs...)
}

func (c DatabaseConfig) validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT: %d is not a valid port", c.Port))
	}
	if c.MaxConns < 1 || c.MaxConns > math.MaxInt32 {
		errs = append(errs, errors.New("DB_MAX_CONNS must be between 1 and 2147483647"))
	}
	if c.MinConns > c.MaxConns {
		errs = append(errs, errors.New("DB_MIN_CONNS must not exceed DB_MAX_CONNS"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int, errs *[]error) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid non-negative integer %q", key, raw))
		return defaultValue
	}
	return v
}

func getFloat(key string, defaultValue float64, errs *[]error) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid number %q", key, raw))
		return defaultValue
	}
	return v
}

func getBool(key string, defaultValue bool, errs *[]error) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid boolean %q", key, raw))
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		return defaultValue
	}
	return v
}
