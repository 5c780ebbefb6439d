package http

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Pinger checks a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	db      Pinger
	version string
	started time.Time
	log     *zap.Logger
}

func NewHealthHandler(db Pinger, version string, log *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:      db,
		version: version,
		started: time.Now(),
		log:     log.With(zap.String("component", "http.health")),
	}
}

type HealthResponse struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	Version        string    `json:"version"`
	DatabaseStatus string    `json:"database_status"`
	Uptime         string    `json:"uptime"`
}

// Health reports process and database health.
//
//	@Summary	Health check
//	@Tags		Health
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Failure	503	{object}	HealthResponse
//	@Router		/health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:         "healthy",
		Timestamp:      time.Now().UTC(),
		Version:        h.version,
		DatabaseStatus: "healthy",
		Uptime:         time.Since(h.started).Round(time.Second).String(),
	}
	status := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		h.log.Error("database health check failed", zap.Error(err))
		resp.Status = "unhealthy"
		resp.DatabaseStatus = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, h.log, resp, status)
}

// Ready reports whether the process accepts traffic.
//
//	@Summary	Readiness probe
//	@Tags		Health
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Router		/ready [get]
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.log, map[string]string{"status": "ready"}, http.StatusOK)
}
