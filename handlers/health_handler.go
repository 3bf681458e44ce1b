package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/amoreldmija/hospital/utils"
	"go.uber.org/zap"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status        string            `json:"status"`
	Timestamp     string            `json:"timestamp"`
	PolicyVersion string            `json:"policyVersion,omitempty"`
	Checks        map[string]string `json:"checks,omitempty"`
}

// PolicyVersioner reports the version of the loaded policy table
type PolicyVersioner interface {
	Version() string
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db     *sql.DB
	policy PolicyVersioner
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db is nil when records live
// in memory.
func NewHealthHandler(db *sql.DB, policy PolicyVersioner, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		policy: policy,
		logger: logger,
	}
}

// HandleHealth handles GET /health
// Basic health check - always returns 200 if service is running
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:        "healthy",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		PolicyVersion: h.policyVersion(),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /health/ready
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if err := h.checkDatabase(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		checks["database"] = "unhealthy"
		allHealthy = false
	} else {
		checks["database"] = "healthy"
	}

	if h.policyVersion() == "" {
		checks["policy"] = "unhealthy"
		allHealthy = false
	} else {
		checks["policy"] = "healthy"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:        status,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		PolicyVersion: h.policyVersion(),
		Checks:        checks,
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

func (h *HealthHandler) policyVersion() string {
	if h.policy == nil {
		return ""
	}
	return h.policy.Version()
}

// checkDatabase checks database connectivity
func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if h.db == nil {
		return nil
	}

	if err := h.db.PingContext(ctx); err != nil {
		return err
	}

	var result int
	return h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
}
