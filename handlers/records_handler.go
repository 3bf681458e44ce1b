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

// MutationRecorder audits successful changes
type MutationRecorder interface {
	RecordMutation(ctx context.Context, p *models.Principal, action models.ResourceAction, resourceID, requestID string)
}

// recordMutation audits a change made by the caller of r
func recordMutation(rec MutationRecorder, r *http.Request, action models.ResourceAction, id string) {
	if rec == nil {
		return
	}
	ctx := r.Context()
	rec.RecordMutation(ctx, middleware.GetPrincipalFromContext(ctx), action, id, middleware.GetRequestIDFromContext(ctx))
}

// RecordsService manages patients, doctors and billing
type RecordsService interface {
	ListPatients(ctx context.Context) ([]*models.Patient, error)
	GetPatient(ctx context.Context, id string) (*models.Patient, error)
	CreatePatient(ctx context.Context, p *models.Patient) (*models.Patient, error)
	UpdatePatient(ctx context.Context, id string, p *models.Patient) (*models.Patient, error)
	DeletePatient(ctx context.Context, id string) error
	Chart(ctx context.Context, id string) (*models.PatientChart, error)

	ListDoctors(ctx context.Context) ([]*models.Doctor, error)
	GetDoctor(ctx context.Context, id string) (*models.Doctor, error)
	CreateDoctor(ctx context.Context, d *models.Doctor) (*models.Doctor, error)
	UpdateDoctor(ctx context.Context, id string, d *models.Doctor) (*models.Doctor, error)
	DeleteDoctor(ctx context.Context, id string) error

	ListBills(ctx context.Context) ([]*models.Bill, error)
	GetBill(ctx context.Context, id string) (*models.Bill, error)
	CreateBill(ctx context.Context, b *models.Bill) (*models.Bill, error)
	UpdateBill(ctx context.Context, id string, b *models.Bill) (*models.Bill, error)
	DeleteBill(ctx context.Context, id string) error
}

// RecordsHandler serves the patients, doctors and billing collections
type RecordsHandler struct {
	records RecordsService
	audit   MutationRecorder
	logger  *zap.Logger
}

// NewRecordsHandler creates a new RecordsHandler
func NewRecordsHandler(records RecordsService, audit MutationRecorder, logger *zap.Logger) *RecordsHandler {
	return &RecordsHandler{
		records: records,
		audit:   audit,
		logger:  logger,
	}
}

// HandleListPatients handles GET /api/v1/patients
func (h *RecordsHandler) HandleListPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := h.records.ListPatients(r.Context())
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	writeResult(w, http.StatusOK, patients, h.logger)
}

// HandleGetPatient handles GET /api/v1/patients/{id}
func (h *RecordsHandler) HandleGetPatient(w http.ResponseWriter, r *http.Request) {
	patient, err := h.records.GetPatient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	writeResult(w, http.StatusOK, patient, h.logger)
}

// HandleGetChart handles GET /api/v1/patients/{id}/chart
func (h *RecordsHandler) HandleGetChart(w http.ResponseWriter, r *http.Request) {
	chart, err := h.records.Chart(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	writeResult(w, http.StatusOK, chart, h.logger)
}

// HandleCreatePatient handles POST /api/v1/patients
func (h *RecordsHandler) HandleCreatePatient(w http.ResponseWriter, r *http.Request) {
	var req models.Patient
	if err := decodeJSON(w, r, &req); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	patient, err := h.records.CreatePatient(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	recordMutation(h.audit, r, models.Action(models.ResourcePatients, models.OpCreate), patient.ID)
	writeResult(w, http.StatusCreated, patient, h.logger)
}

// HandleUpdatePatient handles PUT /api/v1/patients/{id}
func (h *RecordsHandler) HandleUpdatePatient(w http.ResponseWriter, r *http.Request) {
	var req models.Patient
	if err := decodeJSON(w, r, &req); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	patient, err := h.records.UpdatePatient(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	recordMutation(h.audit, r, models.Action(models.ResourcePatients, models.OpUpdate), patient.ID)
	writeResult(w, http.StatusOK, patient, h.logger)
}

// HandleDeletePatient handles DELETE /api/v1/patients/{id}
func (h *RecordsHandler) HandleDeletePatient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.records.DeletePatient(r.Context(), id); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	recordMutation(h.audit, r, models.Action(models.ResourcePatients, models.OpDelete), id)
	utils.WriteNoContent(w)
}

// HandleListDoctors handles GET /api/v1/doctors
func (h *RecordsHandler) HandleListDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.records.ListDoctors(r.Context())
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	writeResult(w, http.StatusOK, doctors, h.logger)
}

// HandleGetDoctor handles GET /api/v1/doctors/{id}
func (h *RecordsHandler) HandleGetDoctor(w http.ResponseWriter, r *http.Request) {
	doctor, err := h.records.GetDoctor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	writeResult(w, http.StatusOK, doctor, h.logger)
}

// HandleCreateDoctor handles POST /api/v1/doctors
func (h *RecordsHandler) HandleCreateDoctor(w http.ResponseWriter, r *http.Request) {
	var req models.Doctor
	if err := decodeJSON(w, r, &req); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	doctor, err := h.records.CreateDoctor(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	recordMutation(h.audit, r, models.Action(models.ResourceDoctors, models.OpCreate), doctor.ID)
	writeResult(w, http.StatusCreated, doctor, h.logger)
}

// HandleUpdateDoctor handles PUT /api/v1/doctors/{id}
func (h *RecordsHandler) HandleUpdateDoctor(w http.ResponseWriter, r *http.Request) {
	var req models.Doctor
	if err := decodeJSON(w, r, &req); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	doctor, err := h.records.UpdateDoctor(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	recordMutation(h.audit, r, models.Action(models.ResourceDoctors, models.OpUpdate), doctor.ID)
	writeResult(w, http.StatusOK, doctor, h.logger)
}

// HandleDeleteDoctor handles DELETE /api/v1/doctors/{id}
func (h *RecordsHandler) HandleDeleteDoctor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.records.DeleteDoctor(r.Context(), id); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	recordMutation(h.audit, r, models.Action(models.ResourceDoctors, models.OpDelete), id)
	utils.WriteNoContent(w)
}

// HandleListBills handles GET /api/v1/billing
func (h *RecordsHandler) HandleListBills(w http.ResponseWriter, r *http.Request) {
	bills, err := h.records.ListBills(r.Context())
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	writeResult(w, http.StatusOK, bills, h.logger)
}

// HandleGetBill handles GET /api/v1/billing/{id}
func (h *RecordsHandler) HandleGetBill(w http.ResponseWriter, r *http.Request) {
	bill, err := h.records.GetBill(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	writeResult(w, http.StatusOK, bill, h.logger)
}

// HandleCreateBill handles POST /api/v1/billing
func (h *RecordsHandler) HandleCreateBill(w http.ResponseWriter, r *http.Request) {
	var req models.Bill
	if err := decodeJSON(w, r, &req); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	bill, err := h.records.CreateBill(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	recordMutation(h.audit, r, models.Action(models.ResourceBilling, models.OpCreate), bill.ID)
	writeResult(w, http.StatusCreated, bill, h.logger)
}

// HandleUpdateBill handles PUT /api/v1/billing/{id}
func (h *RecordsHandler) HandleUpdateBill(w http.ResponseWriter, r *http.Request) {
	var req models.Bill
	if err := decodeJSON(w, r, &req); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	bill, err := h.records.UpdateBill(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	recordMutation(h.audit, r, models.Action(models.ResourceBilling, models.OpUpdate), bill.ID)
	writeResult(w, http.StatusOK, bill, h.logger)
}

// HandleDeleteBill handles DELETE /api/v1/billing/{id}
func (h *RecordsHandler) HandleDeleteBill(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.records.DeleteBill(r.Context(), id); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	recordMutation(h.audit, r, models.Action(models.ResourceBilling, models.OpDelete), id)
	utils.WriteNoContent(w)
}
