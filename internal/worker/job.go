package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fleetclock/fleetclock/internal/itinerary"
)

// ErrMalformedJob marks a message that can never be processed. Redelivery
// would not help, so such messages are acknowledged and dropped.
var ErrMalformedJob = errors.New("malformed job")

// Annotator annotates a route batch; *itinerary.Service implements it.
type Annotator interface {
	AnnotateBatch(ctx context.Context, batch itinerary.RouteBatch) itinerary.BatchResult
}

// Sweeper removes expired directions cache entries; *cache.PostgresStore implements it.
type Sweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Publisher delivers job results.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attributes map[string]string) error
}

// JobMessage is the payload of an incoming job.
type JobMessage struct {
	JobID   string          `json:"job_id"`
	JobType string          `json:"job_type,omitempty"`
	Batch   json.RawMessage `json:"batch,omitempty"`
}

// JobResult is the payload published for a finished route_directions job.
// Status and Data carry the same values as the synchronous endpoint's body.
type JobResult struct {
	JobID  string               `json:"job_id"`
	Status int                  `json:"status"`
	Data   itinerary.RouteBatch `json:"data"`
}

// JobStats tracks processing statistics.
type JobStats struct {
	mu sync.RWMutex

	// Counters
	TotalJobs      int64
	SucceededJobs  int64
	FailedJobs     int64
	MalformedJobs  int64
	DegradedRoutes int64
	SweptEntries   int64

	// Timings
	LastJobAt       time.Time
	LastJobDuration time.Duration
	TotalDuration   time.Duration
}

// ProcessorConfig holds configuration for creating a Processor.
type ProcessorConfig struct {
	Config    Config
	Annotator Annotator
	Publisher Publisher
	Logger    zerolog.Logger

	// Sweeper is optional; cache_sweep jobs are acknowledged as no-ops without it.
	Sweeper Sweeper
}

// Processor runs jobs decoded from messages.
type Processor struct {
	config    Config
	annotator Annotator
	publisher Publisher
	sweeper   Sweeper
	logger    zerolog.Logger
	stats     *JobStats
	now       func() time.Time
}

// NewProcessor creates a new job processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	return &Processor{
		config:    cfg.Config.withDefaults(),
		annotator: cfg.Annotator,
		publisher: cfg.Publisher,
		sweeper:   cfg.Sweeper,
		logger:    cfg.Logger.With().Str("component", "worker").Logger(),
		stats:     &JobStats{},
		now:       time.Now,
	}
}

// Process decodes and runs one job. Errors wrapping ErrMalformedJob must not
// be retried; any other error is transient.
func (p *Processor) Process(ctx context.Context, data []byte) error {
	start := p.now()

	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		p.recordMalformed()
		return fmt.Errorf("%w: %w", ErrMalformedJob, err)
	}
	if msg.JobID == "" {
		msg.JobID = uuid.NewString()
	}

	logger := p.logger.With().Str("job_id", msg.JobID).Logger()

	jobCtx, cancel := context.WithTimeout(ctx, p.config.JobTimeout)
	defer cancel()

	var err error
	switch msg.JobType {
	case "", JobTypeRouteDirections:
		err = p.runRouteDirections(jobCtx, msg, logger)
	case JobTypeCacheSweep:
		err = p.runCacheSweep(jobCtx, logger)
	default:
		err = fmt.Errorf("%w: unknown job type %q", ErrMalformedJob, msg.JobType)
	}

	duration := p.now().Sub(start)
	switch {
	case errors.Is(err, ErrMalformedJob):
		p.recordMalformed()
	case err != nil:
		p.recordJob(false, duration)
	default:
		p.recordJob(true, duration)
		logger.Info().
			Str("job_type", msg.JobType).
			Dur("duration", duration).
			Msg("job completed")
	}
	return err
}

func (p *Processor) runRouteDirections(ctx context.Context, msg JobMessage, logger zerolog.Logger) error {
	if len(msg.Batch) == 0 {
		return fmt.Errorf("%w: batch is required", ErrMalformedJob)
	}

	var batch itinerary.RouteBatch
	if err := json.Unmarshal(msg.Batch, &batch); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedJob, err)
	}

	result := p.annotator.AnnotateBatch(ctx, batch)

	logger.Debug().
		Int("routes", batch.RouteCount()).
		Int("degraded_routes", result.Degraded).
		Int("status", result.Status).
		Msg("batch annotated")

	payload, err := json.Marshal(JobResult{JobID: msg.JobID, Status: result.Status, Data: result.Batch})
	if err != nil {
		return fmt.Errorf("encoding job result: %w", err)
	}

	attributes := map[string]string{
		"job_id": msg.JobID,
		"status": strconv.Itoa(result.Status),
	}
	if err := p.publisher.Publish(ctx, payload, attributes); err != nil {
		return fmt.Errorf("publishing job result: %w", err)
	}

	p.stats.mu.Lock()
	p.stats.DegradedRoutes += int64(result.Degraded)
	p.stats.mu.Unlock()

	return nil
}

func (p *Processor) runCacheSweep(ctx context.Context, logger zerolog.Logger) error {
	if p.sweeper == nil {
		logger.Debug().Msg("no persistent cache configured, skipping sweep")
		return nil
	}

	n, err := p.sweeper.DeleteExpired(ctx)
	if err != nil {
		return fmt.Errorf("sweeping directions cache: %w", err)
	}

	logger.Info().Int64("deleted", n).Msg("directions cache swept")

	p.stats.mu.Lock()
	p.stats.SweptEntries += n
	p.stats.mu.Unlock()

	return nil
}

func (p *Processor) recordJob(success bool, duration time.Duration) {
	p.stats.mu.Lock()
	defer p.stats.mu.Unlock()

	p.stats.TotalJobs++
	if success {
		p.stats.SucceededJobs++
	} else {
		p.stats.FailedJobs++
	}
	p.stats.LastJobAt = p.now()
	p.stats.LastJobDuration = duration
	p.stats.TotalDuration += duration
}

func (p *Processor) recordMalformed() {
	p.stats.mu.Lock()
	defer p.stats.mu.Unlock()

	p.stats.TotalJobs++
	p.stats.MalformedJobs++
}

// GetStats returns a copy of the current statistics.
func (p *Processor) GetStats() JobStats {
	p.stats.mu.RLock()
	defer p.stats.mu.RUnlock()

	return JobStats{
		TotalJobs:       p.stats.TotalJobs,
		SucceededJobs:   p.stats.SucceededJobs,
		FailedJobs:      p.stats.FailedJobs,
		MalformedJobs:   p.stats.MalformedJobs,
		DegradedRoutes:  p.stats.DegradedRoutes,
		SweptEntries:    p.stats.SweptEntries,
		LastJobAt:       p.stats.LastJobAt,
		LastJobDuration: p.stats.LastJobDuration,
		TotalDuration:   p.stats.TotalDuration,
	}
}

// StatsSnapshot returns a snapshot of the current statistics as a map.
func (p *Processor) StatsSnapshot() map[string]any {
	s := p.GetStats()
	return map[string]any{
		"total_jobs":        s.TotalJobs,
		"succeeded_jobs":    s.SucceededJobs,
		"failed_jobs":       s.FailedJobs,
		"malformed_jobs":    s.MalformedJobs,
		"degraded_routes":   s.DegradedRoutes,
		"swept_entries":     s.SweptEntries,
		"last_job_at":       s.LastJobAt,
		"last_job_duration": s.LastJobDuration.String(),
		"total_duration":    s.TotalDuration.String(),
	}
}
