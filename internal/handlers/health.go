package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/newoon/backoffice-server/internal/models"
)

const version = "1.0.0"

var startTime = time.Now()

// PingFunc checks one backing service
type PingFunc func(ctx context.Context) error

// HealthHandler provides health check endpoints
type HealthHandler struct {
	db     PingFunc
	redis  PingFunc
	logger *zap.SugaredLogger
}

// NewHealthHandler creates a new health handler. A nil ping marks the
// dependency as not configured.
func NewHealthHandler(db, redis PingFunc, logger *zap.SugaredLogger) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, logger: logger}
}

// Check handles GET /api/health (liveness probe)
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.HealthStatus{
		Status:  "ok",
		Version: version,
		Uptime:  time.Since(startTime).String(),
	})
}

// Ready handles GET /api/health/ready (readiness probe)
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := models.HealthStatus{
		Status:   "ready",
		Version:  version,
		Uptime:   time.Since(startTime).String(),
		Database: h.probe(ctx, "database", h.db, "memory"),
		Redis:    h.probe(ctx, "redis", h.redis, "disabled"),
	}
	if status.Database == "disconnected" || status.Redis == "disconnected" {
		status.Status = "not ready"
		respondJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (h *HealthHandler) probe(ctx context.Context, name string, ping PingFunc, absent string) string {
	if ping == nil {
		return absent
	}
	if err := ping(ctx); err != nil {
		h.logger.Warnw("Readiness check failed", "dependency", name, "error", err)
		return "disconnected"
	}
	return "connected"
}
