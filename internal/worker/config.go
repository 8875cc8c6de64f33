// Package worker processes asynchronous route annotation jobs delivered over Pub/Sub.
package worker

import (
	"time"
)

// Job types carried in the job_type field. An empty type means JobTypeRouteDirections.
const (
	JobTypeRouteDirections = "route_directions"
	JobTypeCacheSweep      = "cache_sweep"
)

// Config holds configuration for job processing.
type Config struct {
	// MaxOutstandingMessages bounds the number of jobs processed concurrently.
	// Default: 10
	MaxOutstandingMessages int

	// MaxExtension is how long a job may hold its message lease.
	// Default: 10 minutes
	MaxExtension time.Duration

	// JobTimeout bounds a single job, provider calls included.
	// Default: 5 minutes
	JobTimeout time.Duration
}

// DefaultConfig returns the default worker configuration.
func DefaultConfig() Config {
	return Config{
		MaxOutstandingMessages: 10,
		MaxExtension:           10 * time.Minute,
		JobTimeout:             5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxOutstandingMessages <= 0 {
		c.MaxOutstandingMessages = d.MaxOutstandingMessages
	}
	if c.MaxExtension <= 0 {
		c.MaxExtension = d.MaxExtension
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = d.JobTimeout
	}
	return c
}
