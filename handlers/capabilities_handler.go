package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/amoreldmija/hospital/middleware"
	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/services"
	"github.com/amoreldmija/hospital/services/policy"
	"go.uber.org/zap"
)

// CapabilityEvaluator evaluates the policy table for a principal
type CapabilityEvaluator interface {
	Version() string
	Capabilities(p *models.Principal) []policy.Capability
}

// CapabilitiesResponse lists every reachable action with its decision
type CapabilitiesResponse struct {
	PolicyVersion string              `json:"policyVersion"`
	Role          models.Role         `json:"role,omitempty"`
	Capabilities  []policy.Capability `json:"capabilities"`
}

// CapabilitiesHandler lets front ends render affordances from the policy
// table instead of hard-coded roles
type CapabilitiesHandler struct {
	engine CapabilityEvaluator
	logger *zap.Logger
}

// NewCapabilitiesHandler creates a new CapabilitiesHandler
func NewCapabilitiesHandler(engine CapabilityEvaluator, logger *zap.Logger) *CapabilitiesHandler {
	return &CapabilitiesHandler{
		engine: engine,
		logger: logger,
	}
}

// HandleCapabilities handles GET /api/v1/me/capabilities
func (h *CapabilitiesHandler) HandleCapabilities(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipalFromContext(r.Context())

	response := CapabilitiesResponse{
		PolicyVersion: h.engine.Version(),
		Capabilities:  h.engine.Capabilities(principal),
	}
	if !principal.IsAnonymous() {
		response.Role = principal.Role
	}
	writeResult(w, http.StatusOK, response, h.logger)
}

// AuditReader lists recorded audit entries
type AuditReader interface {
	Recent(ctx context.Context, uid string, limit, offset int) ([]*models.AuditLog, error)
}

// AuditHandler exposes the audit trail
type AuditHandler struct {
	audit  AuditReader
	logger *zap.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(audit AuditReader, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		audit:  audit,
		logger: logger,
	}
}

// HandleList handles GET /api/v1/audit?uid=&limit=&offset=
func (h *AuditHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := intParam(q.Get("limit"), 50)
	if err != nil || limit > 500 {
		WriteServiceError(w, services.ErrInvalidInput.WithDetail("limit", "must be a number between 1 and 500"), h.logger)
		return
	}
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil {
		WriteServiceError(w, services.ErrInvalidInput.WithDetail("offset", "must be a non-negative number"), h.logger)
		return
	}

	logs, err := h.audit.Recent(r.Context(), q.Get("uid"), limit, offset)
	if err != nil {
		WriteServiceError(w, services.FromStoreError(err, "audit log"), h.logger)
		return
	}
	writeResult(w, http.StatusOK, logs, h.logger)
}

// intParam parses a non-negative query parameter, using def when absent
func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
