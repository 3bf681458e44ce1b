package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amoreldmija/hospital/auth"
	"github.com/amoreldmija/hospital/middleware"
	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/repositories/memory"
	"github.com/amoreldmija/hospital/services/appointments"
	"github.com/amoreldmija/hospital/services/identity"
	"github.com/amoreldmija/hospital/services/prescriptions"
	"github.com/amoreldmija/hospital/services/records"
	"github.com/amoreldmija/hospital/services/users"
	"github.com/amoreldmija/hospital/utils"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// MockRecorder is a mock implementation of MutationRecorder
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordMutation(ctx context.Context, p *models.Principal, action models.ResourceAction, resourceID, requestID string) {
	m.Called(p, action, resourceID, requestID)
}

type testEnv struct {
	docs          *memory.DocumentStore
	provider      *auth.LocalProvider
	resolver      *identity.Resolver
	records       *records.Service
	appointments  *appointments.Service
	prescriptions *prescriptions.Service
	users         *users.Service
	recorder      *MockRecorder
	logger        *zap.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	docs := memory.NewDocumentStore()
	accounts := memory.NewAccountStore()

	provider, err := auth.NewLocalProvider(accounts.Accounts(), accounts.Sessions(), nil, auth.Config{
		Secret:     []byte("0123456789abcdef0123456789abcdef"),
		BcryptCost: bcrypt.MinCost,
	}, logger)
	require.NoError(t, err)

	resolver := identity.NewResolver(provider, docs, identity.NewProfileCache(16, time.Minute), logger)

	return &testEnv{
		docs:          docs,
		provider:      provider,
		resolver:      resolver,
		records:       records.NewService(docs, logger),
		appointments:  appointments.NewService(docs, logger),
		prescriptions: prescriptions.NewService(docs, logger),
		users:         users.NewService(docs, provider, resolver, logger),
		recorder:      new(MockRecorder),
		logger:        logger,
	}
}

// expectMutation accepts one audited change of action by anyone
func (e *testEnv) expectMutation(action models.ResourceAction) {
	e.recorder.On("RecordMutation", mock.Anything, action, mock.AnythingOfType("string"), mock.Anything).Once()
}

func jsonBody(t *testing.T, v interface{}) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

// newRequest builds a request carrying the caller and chi URL params
func newRequest(t *testing.T, method, target string, body interface{}, caller *models.Principal, params map[string]string) *http.Request {
	t.Helper()

	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, jsonBody(t, body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = middleware.WithPrincipal(ctx, caller)
	ctx = middleware.WithRequestID(ctx, "req-test")
	return req.WithContext(ctx)
}

// decodeInto unmarshals the data member of a success response
func decodeInto(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, v))
}

var (
	adminCaller   = &models.Principal{UID: "admin-1", Email: "admin@example.com", Role: models.RoleAdmin, FirstName: "Ada", LastName: "Admin"}
	doctorCaller  = &models.Principal{UID: "doc-1", Email: "doc@example.com", Role: models.RoleDoctor, FirstName: "Greg", LastName: "House"}
	patientCaller = &models.Principal{UID: "pat-1", Email: "jane@example.com", Role: models.RolePatient, FirstName: "Jane", LastName: "Doe"}
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder, v *utils.ErrorResponse) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v))
}
