package http

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"shrimp/internal/ratelimit"
	"shrimp/internal/repository"
)

// MaintenanceStats reports background job counters.
type MaintenanceStats interface {
	GetStats() map[string]interface{}
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	storage     repository.Pinger
	maintenance MaintenanceStats
	limiters    []*ratelimit.Limiter
	log         *zap.Logger
	version     string
	started     time.Time
}

// NewHealthHandler creates a health handler. maintenance may be nil; the
// limiters' tracked key counts are reported by /ready.
func NewHealthHandler(storage repository.Pinger, maintenance MaintenanceStats, log *zap.Logger, version string, limiters ...*ratelimit.Limiter) *HealthHandler {
	return &HealthHandler{
		storage:     storage,
		maintenance: maintenance,
		limiters:    limiters,
		log:         log,
		version:     version,
		started:     time.Now(),
	}
}

// ReadyResponse is the body of /ready.
type ReadyResponse struct {
	Status        string                 `json:"status"`
	Maintenance   map[string]interface{} `json:"maintenance,omitempty"`
	RateLimitKeys map[string]int         `json:"rate_limit_keys,omitempty"`
}

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	Version        string    `json:"version"`
	DatabaseStatus string    `json:"database_status"`
	Uptime         string    `json:"uptime,omitempty"`
}

func (h *HealthHandler) databaseStatus(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := h.storage.Ping(ctx); err != nil {
		h.log.Error("database health check failed", zap.Error(err))
		return "unhealthy"
	}
	return "healthy"
}

// Health reports process and database health.
//
//	@Summary	Health check
//	@Tags		System
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Failure	503	{object}	HealthResponse
//	@Router		/health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	dbStatus := h.databaseStatus(r.Context())

	status := "healthy"
	statusCode := http.StatusOK
	if dbStatus != "healthy" {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, h.log, HealthResponse{
		Status:         status,
		Timestamp:      time.Now().UTC(),
		Version:        h.version,
		DatabaseStatus: dbStatus,
		Uptime:         time.Since(h.started).Round(time.Second).String(),
	}, statusCode)
}

// Ready reports whether requests can be served.
//
//	@Summary	Readiness probe
//	@Tags		System
//	@Produce	json
//	@Success	200	{object}	ReadyResponse
//	@Failure	503	{object}	ReadyResponse
//	@Router		/ready [get]
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.databaseStatus(r.Context()) != "healthy" {
		writeJSON(w, h.log, ReadyResponse{Status: "not ready"}, http.StatusServiceUnavailable)
		return
	}

	resp := ReadyResponse{Status: "ready"}
	if h.maintenance != nil {
		resp.Maintenance = h.maintenance.GetStats()
	}
	if len(h.limiters) > 0 {
		resp.RateLimitKeys = make(map[string]int, len(h.limiters))
		for _, l := range h.limiters {
			resp.RateLimitKeys[l.Name()] = l.Len()
		}
	}
	writeJSON(w, h.log, resp, http.StatusOK)
}
