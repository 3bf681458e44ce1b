package handlers

import (
	"context"
	"net/http"

	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/utils"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// PrescriptionService manages prescriptions
type PrescriptionService interface {
	List(ctx context.Context) ([]*models.Prescription, error)
	Get(ctx context.Context, id string) (*models.Prescription, error)
	Create(ctx context.Context, p *models.Prescription) (*models.Prescription, error)
	Update(ctx context.Context, id string, p *models.Prescription) (*models.Prescription, error)
	Delete(ctx context.Context, id string) error
}

// PrescriptionHandler serves the prescriptions collection
type PrescriptionHandler struct {
	prescriptions PrescriptionService
	audit         MutationRecorder
	logger        *zap.Logger
}

// NewPrescriptionHandler creates a new PrescriptionHandler
func NewPrescriptionHandler(prescriptions PrescriptionService, audit MutationRecorder, logger *zap.Logger) *PrescriptionHandler {
	return &PrescriptionHandler{
		prescriptions: prescriptions,
		audit:         audit,
		logger:        logger,
	}
}

// HandleList handles GET /api/v1/prescriptions
func (h *PrescriptionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	prescriptions, err := h.prescriptions.List(r.Context())
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	writeResult(w, http.StatusOK, prescriptions, h.logger)
}

// HandleGet handles GET /api/v1/prescriptions/{id}
func (h *PrescriptionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	prescription, err := h.prescriptions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	writeResult(w, http.StatusOK, prescription, h.logger)
}

// HandleCreate handles POST /api/v1/prescriptions
func (h *PrescriptionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.Prescription
	if err := decodeJSON(w, r, &req); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	prescription, err := h.prescriptions.Create(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	recordMutation(h.audit, r, models.Action(models.ResourcePrescriptions, models.OpCreate), prescription.ID)
	writeResult(w, http.StatusCreated, prescription, h.logger)
}

// HandleUpdate handles PUT /api/v1/prescriptions/{id}
func (h *PrescriptionHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req models.Prescription
	if err := decodeJSON(w, r, &req); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	prescription, err := h.prescriptions.Update(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	recordMutation(h.audit, r, models.Action(models.ResourcePrescriptions, models.OpUpdate), prescription.ID)
	writeResult(w, http.StatusOK, prescription, h.logger)
}

// HandleDelete handles DELETE /api/v1/prescriptions/{id}
func (h *PrescriptionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.prescriptions.Delete(r.Context(), id); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	recordMutation(h.audit, r, models.Action(models.ResourcePrescriptions, models.OpDelete), id)
	utils.WriteNoContent(w)
}
