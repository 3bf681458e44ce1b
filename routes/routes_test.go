package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amoreldmija/hospital/app"
	"github.com/amoreldmija/hospital/config"
	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/services/users"
	"github.com/amoreldmija/hospital/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			RequestTimeout: 10 * time.Second,
			AllowedOrigins: []string{"http://localhost:*"},
		},
		DocumentStore: config.DocumentStoreConfig{Driver: config.DriverMemory},
		Auth: config.AuthConfig{
			Provider:        config.AuthProviderLocal,
			TokenSecret:     "routes-test-secret-routes-test-secret",
			TokenIssuer:     "hospital-test",
			SessionTTL:      time.Hour,
			BcryptCost:      4,
			SignInRateLimit: 100,
		},
		Identity: config.IdentityConfig{ProfileCacheSize: 16, ProfileCacheTTL: time.Minute},
		Audit:    config.AuditConfig{Enabled: true, BufferSize: 64, Workers: 1},
		Observability: config.ObservabilityConfig{
			LogLevel:  "debug",
			LogFormat: "json",
		},
	}
}

type server struct {
	t       *testing.T
	deps    *app.Dependencies
	handler http.Handler
}

func newServer(t *testing.T, cfg *config.Config) *server {
	t.Helper()
	ctx := context.Background()
	deps, err := app.NewDependencies(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close(ctx) })
	return &server{t: t, deps: deps, handler: SetupRoutes(deps)}
}

func (s *server) do(method, target, token string, body interface{}, header ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

// signUp registers a patient and returns its session token
func (s *server) signUp(email string) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/auth/signup", "", models.Registration{
		Email: email, Password: "secret1", FirstName: "Pat", LastName: "Ient",
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			Credentials models.Credentials `json:"credentials"`
		} `json:"data"`
	}
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(s.t, resp.Data.Credentials.Token)
	return resp.Data.Credentials.Token
}

// signInAs provisions an account with role and signs it in
func (s *server) signInAs(email string, role models.Role) string {
	s.t.Helper()
	ctx := context.Background()
	_, err := s.deps.Users.Create(ctx, &users.CreateRequest{
		Registration: models.Registration{Email: email, Password: "secret1", FirstName: "Staff", LastName: string(role)},
		Role:         role,
	})
	require.NoError(s.t, err)
	creds, err := s.deps.Users.SignIn(ctx, email, "secret1")
	require.NoError(s.t, err)
	return creds.Token
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) utils.ErrorResponse {
	t.Helper()
	var resp utils.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthRoutes(t *testing.T) {
	s := newServer(t, testConfig())

	w := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = s.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAnonymousIsSentToLogin(t *testing.T) {
	s := newServer(t, testConfig())

	t.Run("api client", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/v1/patients", "", nil)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "/login", errorBody(t, w).Details["redirect"])
	})

	t.Run("browser", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/v1/patients", "", nil, "Accept", "text/html")
		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/login?next=%2Fapi%2Fv1%2Fpatients", w.Header().Get("Location"))
	})

	t.Run("invalid token stays anonymous", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/v1/doctors", "not-a-token", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestPatientRoutes(t *testing.T) {
	s := newServer(t, testConfig())
	token := s.signUp("pat@example.com")

	// Role refused: patients are clinical staff data
	w := s.do(http.MethodGet, "/api/v1/patients", token, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "/", errorBody(t, w).Details["redirect"])

	w = s.do(http.MethodGet, "/api/v1/users", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Allowed
	w = s.do(http.MethodGet, "/api/v1/doctors", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/v1/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		Data struct {
			Principal *models.Principal `json:"principal"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	require.NotNil(t, me.Data.Principal)
	assert.Equal(t, models.RolePatient, me.Data.Principal.Role)

	w = s.do(http.MethodGet, "/api/v1/me/capabilities", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Signed out, the token no longer works
	w = s.do(http.MethodPost, "/auth/signout", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(http.MethodGet, "/api/v1/doctors", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoutes(t *testing.T) {
	s := newServer(t, testConfig())
	admin := s.signInAs("admin@example.com", models.RoleAdmin)
	patient := s.signUp("pat@example.com")

	w := s.do(http.MethodPost, "/api/v1/doctors", admin, models.Doctor{
		Name: "Greg House", Specialization: "Diagnostics", Contact: "555-0100",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/users", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// The patient's refusal lands in the audit trail
	w = s.do(http.MethodDelete, "/api/v1/users/someone", patient, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	assert.Eventually(t, func() bool {
		w := s.do(http.MethodGet, "/api/v1/audit", admin, nil)
		if w.Code != http.StatusOK {
			return false
		}
		var resp struct {
			Data []models.AuditLog `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			return false
		}
		for _, entry := range resp.Data {
			if entry.Resource == models.ResourceUsers && entry.Operation == models.OpDelete && entry.Outcome == models.AuditOutcomeRedirectToHome {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)
}

func TestDoctorApprovesAppointments(t *testing.T) {
	s := newServer(t, testConfig())
	doctor := s.signInAs("doc@example.com", models.RoleDoctor)
	patient := s.signUp("pat@example.com")

	w := s.do(http.MethodPost, "/api/v1/appointments/1/approve", patient, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Missing appointment, but the doctor got past the guard
	w = s.do(http.MethodPost, "/api/v1/appointments/missing/approve", doctor, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSignInRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.SignInRateLimit = 2
	s := newServer(t, cfg)

	creds := map[string]string{"email": "nobody@example.com", "password": "wrong-password"}
	for i := 0; i < 2; i++ {
		w := s.do(http.MethodPost, "/auth/signin", "", creds)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := s.do(http.MethodPost, "/auth/signin", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestNotFound(t *testing.T) {
	s := newServer(t, testConfig())

	w := s.do(http.MethodGet, "/api/v1/wards", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}
