package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/clinicore/advisor-gateway/utils"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Pinger checks connectivity to the durable store
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db     Pinger
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		logger: logger,
	}
}

// HandleHealth handles GET /healthz.
// Basic liveness check - always returns 200 if the service is running.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness handles GET /readyz.
// Validates that the durable tenant store is reachable.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.db.HealthCheck(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		checks["database"] = "unhealthy"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "healthy"
	}

	_ = utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}})
}
