package handlers

import (
	"context"
	"net/http"

	"github.com/amoreldmija/hospital/middleware"
	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/utils"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AppointmentService books and approves appointments
type AppointmentService interface {
	List(ctx context.Context) ([]*models.Appointment, error)
	Get(ctx context.Context, id string) (*models.Appointment, error)
	Create(ctx context.Context, caller *models.Principal, a *models.Appointment) (*models.Appointment, error)
	Update(ctx context.Context, caller *models.Principal, id string, a *models.Appointment) (*models.Appointment, error)
	Delete(ctx context.Context, id string) error
	Approve(ctx context.Context, id string) (*models.Appointment, error)
}

// AppointmentHandler serves the appointments collection
type AppointmentHandler struct {
	appointments AppointmentService
	audit        MutationRecorder
	logger       *zap.Logger
}

// NewAppointmentHandler creates a new AppointmentHandler
func NewAppointmentHandler(appointments AppointmentService, audit MutationRecorder, logger *zap.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		appointments: appointments,
		audit:        audit,
		logger:       logger,
	}
}

// HandleList handles GET /api/v1/appointments
func (h *AppointmentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	appointments, err := h.appointments.List(r.Context())
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	writeResult(w, http.StatusOK, appointments, h.logger)
}

// HandleGet handles GET /api/v1/appointments/{id}
func (h *AppointmentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	appointment, err := h.appointments.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	writeResult(w, http.StatusOK, appointment, h.logger)
}

// HandleCreate handles POST /api/v1/appointments
func (h *AppointmentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.Appointment
	if err := decodeJSON(w, r, &req); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	caller := middleware.GetPrincipalFromContext(r.Context())
	appointment, err := h.appointments.Create(r.Context(), caller, &req)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	recordMutation(h.audit, r, models.Action(models.ResourceAppointments, models.OpCreate), appointment.ID)
	writeResult(w, http.StatusCreated, appointment, h.logger)
}

// HandleUpdate handles PUT /api/v1/appointments/{id}
func (h *AppointmentHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req models.Appointment
	if err := decodeJSON(w, r, &req); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	caller := middleware.GetPrincipalFromContext(r.Context())
	appointment, err := h.appointments.Update(r.Context(), caller, chi.URLParam(r, "id"), &req)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	recordMutation(h.audit, r, models.Action(models.ResourceAppointments, models.OpUpdate), appointment.ID)
	writeResult(w, http.StatusOK, appointment, h.logger)
}

// HandleDelete handles DELETE /api/v1/appointments/{id}
func (h *AppointmentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.appointments.Delete(r.Context(), id); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	recordMutation(h.audit, r, models.Action(models.ResourceAppointments, models.OpDelete), id)
	utils.WriteNoContent(w)
}

// HandleApprove handles POST /api/v1/appointments/{id}/approve
func (h *AppointmentHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	appointment, err := h.appointments.Approve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	recordMutation(h.audit, r, models.Action(models.ResourceAppointments, models.OpApprove), appointment.ID)
	writeResult(w, http.StatusOK, appointment, h.logger)
}
