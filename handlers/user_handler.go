package handlers

import (
	"context"
	"net/http"

	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/services/users"
	"github.com/amoreldmija/hospital/utils"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UserService administers user profiles
type UserService interface {
	List(ctx context.Context) ([]*models.UserProfile, error)
	Get(ctx context.Context, uid string) (*models.UserProfile, error)
	Create(ctx context.Context, req *users.CreateRequest) (*models.UserProfile, error)
	Update(ctx context.Context, uid string, req *users.UpdateRequest) (*models.UserProfile, error)
	Delete(ctx context.Context, uid string) error
}

// UserHandler serves user administration
type UserHandler struct {
	users  UserService
	audit  MutationRecorder
	logger *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(users UserService, audit MutationRecorder, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		audit:  audit,
		logger: logger,
	}
}

// HandleList handles GET /api/v1/users
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.users.List(r.Context())
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	writeResult(w, http.StatusOK, profiles, h.logger)
}

// HandleGet handles GET /api/v1/users/{uid}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	profile, err := h.users.Get(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	writeResult(w, http.StatusOK, profile, h.logger)
}

// HandleCreate handles POST /api/v1/users
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req users.CreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	profile, err := h.users.Create(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	recordMutation(h.audit, r, models.Action(models.ResourceUsers, models.OpCreate), profile.UID)
	writeResult(w, http.StatusCreated, profile, h.logger)
}

// HandleUpdate handles PUT /api/v1/users/{uid}
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req users.UpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	profile, err := h.users.Update(r.Context(), chi.URLParam(r, "uid"), &req)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	recordMutation(h.audit, r, models.Action(models.ResourceUsers, models.OpUpdate), profile.UID)
	writeResult(w, http.StatusOK, profile, h.logger)
}

// HandleDelete handles DELETE /api/v1/users/{uid}
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if err := h.users.Delete(r.Context(), uid); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	recordMutation(h.audit, r, models.Action(models.ResourceUsers, models.OpDelete), uid)
	utils.WriteNoContent(w)
}
