// Package handler provides HTTP handlers for the route directions API.
package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/fleetclock/fleetclock/internal/api/models"
	"github.com/fleetclock/fleetclock/internal/api/response"
	"github.com/fleetclock/fleetclock/internal/provider/resilience"
)

// readinessTimeout bounds every dependency check.
const readinessTimeout = 2 * time.Second

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping implements Pinger.
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	checks    map[string]Pinger
	now       func() time.Time
}

// NewOpsHandler creates a new OpsHandler. checks are named subsystem probes
// used by the readiness and status endpoints; registry may be nil.
func NewOpsHandler(version, buildTime string, registry *resilience.Registry, checks map[string]Pinger) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		registry:  registry,
		checks:    checks,
		now:       time.Now,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. It answers 503 while any
// subsystem probe fails.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.probe(r.Context())

	status := models.HealthStatusOK
	code := http.StatusOK
	details := make(map[string]any, len(subsystems))
	for _, s := range subsystems {
		details[s.Name] = s.Status
		if s.Status != models.HealthStatusOK {
			status = models.HealthStatusFail
			code = http.StatusServiceUnavailable
		}
	}

	response.JSON(w, r, code, models.Health{
		Status:  status,
		Time:    models.Timestamp(h.now()),
		Details: details,
	})
}

// SystemStatus handles GET /v1/ops/status - directions provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(h.now()),
		Subsystems: h.probe(r.Context()),
		Providers:  h.providers(),
	}

	for _, s := range status.Subsystems {
		status.Status = worst(status.Status, s.Status)
	}
	for _, p := range status.Providers {
		status.Status = worst(status.Status, p.Status)
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) probe(ctx context.Context) []models.SubsystemStatus {
	subsystems := make([]models.SubsystemStatus, 0, len(h.checks))
	for name, check := range h.checks {
		s := models.SubsystemStatus{Name: name, Status: models.HealthStatusOK}

		checkCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
		if err := check.Ping(checkCtx); err != nil {
			detail := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &detail
		}
		cancel()

		subsystems = append(subsystems, s)
	}
	sort.Slice(subsystems, func(i, j int) bool { return subsystems[i].Name < subsystems[j].Name })
	return subsystems
}

func (h *OpsHandler) providers() []models.ProviderStatus {
	if h.registry == nil {
		return []models.ProviderStatus{}
	}

	health := h.registry.GetAllHealth()
	out := make([]models.ProviderStatus, 0, len(health))
	for _, ph := range health {
		p := models.ProviderStatus{
			Provider:      ph.Name,
			Status:        providerStatus(ph),
			CircuitState:  ph.CircuitState.String(),
			LastSuccessAt: models.TimestampPtr(ph.LastSuccessAt),
			LastFailureAt: models.TimestampPtr(ph.LastFailureAt),
		}
		if ph.LastError != "" {
			msg := ph.LastError
			p.Message = &msg
		}
		out = append(out, p)
	}
	return out
}

func providerStatus(h *resilience.ProviderHealth) models.HealthStatus {
	switch h.CircuitState {
	case gobreaker.StateOpen:
		return models.HealthStatusFail
	case gobreaker.StateHalfOpen:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}

// worst combines two statuses; a failing dependency degrades the service
// rather than failing it, since routes still come back unannotated.
func worst(current, next models.HealthStatus) models.HealthStatus {
	if next != models.HealthStatusOK {
		return models.HealthStatusDegraded
	}
	return current
}
