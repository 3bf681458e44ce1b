package handlers

import (
	"net/http"

	"github.com/amoreldmija/hospital/auth"
	"github.com/amoreldmija/hospital/middleware"
	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/services"
	"github.com/amoreldmija/hospital/services/session"
	"github.com/amoreldmija/hospital/utils"
	"go.uber.org/zap"
)

// SignInRequest is the body of POST /auth/signin
type SignInRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// SessionResponse is returned after a successful sign-in or sign-up.
// Principal is null when the account has no usable profile.
type SessionResponse struct {
	Credentials *models.Credentials `json:"credentials"`
	Principal   *models.Principal   `json:"principal"`
}

// AuthHandler serves sign-in, sign-up and sign-out
type AuthHandler struct {
	auth          session.Authenticator
	resolver      session.Resolver
	secureCookies bool
	logger        *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authenticator session.Authenticator, resolver session.Resolver, secureCookies bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:          authenticator,
		resolver:      resolver,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// HandleSignIn handles POST /auth/signin
func (h *AuthHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	if err := services.ValidateInput(&req); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	creds, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Info("sign-in failed",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.Error(err))
		WriteServiceError(w, err, h.logger)
		return
	}

	h.establish(w, r, creds, http.StatusOK)
}

// HandleSignUp handles POST /auth/signup
func (h *AuthHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req models.Registration
	if err := decodeJSON(w, r, &req); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	creds, err := h.auth.SignUp(r.Context(), req)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	h.establish(w, r, creds, http.StatusCreated)
}

// HandleSignOut handles POST /auth/signout. The cookie is cleared even when
// the provider fails to close the session.
func (h *AuthHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if token := middleware.GetTokenFromContext(ctx); token != "" {
		if err := h.auth.SignOut(ctx, token); err != nil {
			h.logger.Warn("sign-out failed at the provider",
				zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
				zap.Error(err))
		}
	}

	auth.ClearSessionCookie(w, h.secureCookies)
	utils.WriteNoContent(w)
}

// HandleMe handles GET /api/v1/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal.IsAnonymous() {
		principal = nil
	}
	writeResult(w, http.StatusOK, map[string]interface{}{"principal": principal}, h.logger)
}

func (h *AuthHandler) establish(w http.ResponseWriter, r *http.Request, creds *models.Credentials, status int) {
	principal, err := h.resolver.Resolve(r.Context(), creds.Token)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	if principal.IsAnonymous() {
		principal = nil
	}

	auth.SetSessionCookie(w, creds.Token, creds.ExpiresAt, h.secureCookies)
	writeResult(w, status, SessionResponse{Credentials: creds, Principal: principal}, h.logger)
}
