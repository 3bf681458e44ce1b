package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/services/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCapabilitiesHandler(t *testing.T) {
	engine, err := policy.NewEngine(policy.DefaultTable(), zap.NewNop())
	require.NoError(t, err)
	h := NewCapabilitiesHandler(engine, zap.NewNop())

	decisions := func(t *testing.T, caller *models.Principal) (CapabilitiesResponse, map[string]models.AuthzDecision) {
		w := httptest.NewRecorder()
		h.HandleCapabilities(w, newRequest(t, http.MethodGet, "/api/v1/me/capabilities", nil, caller, nil))
		require.Equal(t, http.StatusOK, w.Code)

		var resp CapabilitiesResponse
		decodeInto(t, w, &resp)
		byAction := make(map[string]models.AuthzDecision, len(resp.Capabilities))
		for _, c := range resp.Capabilities {
			byAction[c.Action.String()] = c.Decision
		}
		return resp, byAction
	}

	t.Run("every reachable action is listed", func(t *testing.T) {
		resp, byAction := decisions(t, adminCaller)
		assert.Equal(t, engine.Version(), resp.PolicyVersion)
		assert.Equal(t, models.RoleAdmin, resp.Role)
		assert.Len(t, byAction, len(models.ReachableActions()))
		assert.True(t, byAction["users.delete"].Allowed)
	})

	t.Run("patient is refused user administration", func(t *testing.T) {
		_, byAction := decisions(t, patientCaller)
		assert.False(t, byAction["users.view"].Allowed)
		assert.NotEmpty(t, byAction["users.view"].Reason)
	})

	t.Run("anonymous is refused everything", func(t *testing.T) {
		resp, byAction := decisions(t, models.Anonymous)
		assert.Empty(t, resp.Role)
		for action, d := range byAction {
			assert.False(t, d.Allowed, action)
		}
	})
}

// MockAuditReader is a mock implementation of AuditReader
type MockAuditReader struct {
	mock.Mock
}

func (m *MockAuditReader) Recent(ctx context.Context, uid string, limit, offset int) ([]*models.AuditLog, error) {
	args := m.Called(ctx, uid, limit, offset)
	if logs := args.Get(0); logs != nil {
		return logs.([]*models.AuditLog), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestAuditHandler(t *testing.T) {
	logger := zap.NewNop()

	t.Run("filters by uid with paging", func(t *testing.T) {
		reader := new(MockAuditReader)
		entry := models.NewAuditLog(patientCaller, models.Action(models.ResourceUsers, models.OpView), models.AuditOutcomeRedirectToHome)
		reader.On("Recent", mock.Anything, "pat-1", 10, 20).Return([]*models.AuditLog{entry}, nil)

		w := httptest.NewRecorder()
		NewAuditHandler(reader, logger).HandleList(w, newRequest(t, http.MethodGet, "/api/v1/audit?uid=pat-1&limit=10&offset=20", nil, adminCaller, nil))
		require.Equal(t, http.StatusOK, w.Code)

		var logs []models.AuditLog
		decodeInto(t, w, &logs)
		require.Len(t, logs, 1)
		assert.Equal(t, "pat-1", logs[0].UID)
		reader.AssertExpectations(t)
	})

	t.Run("defaults", func(t *testing.T) {
		reader := new(MockAuditReader)
		reader.On("Recent", mock.Anything, "", 50, 0).Return([]*models.AuditLog{}, nil)

		w := httptest.NewRecorder()
		NewAuditHandler(reader, logger).HandleList(w, newRequest(t, http.MethodGet, "/api/v1/audit", nil, adminCaller, nil))
		assert.Equal(t, http.StatusOK, w.Code)
		reader.AssertExpectations(t)
	})

	t.Run("bad paging", func(t *testing.T) {
		for _, query := range []string{"limit=abc", "limit=1000", "offset=-1"} {
			reader := new(MockAuditReader)
			w := httptest.NewRecorder()
			NewAuditHandler(reader, logger).HandleList(w, newRequest(t, http.MethodGet, "/api/v1/audit?"+query, nil, adminCaller, nil))
			assert.Equal(t, http.StatusBadRequest, w.Code, query)
			reader.AssertNotCalled(t, "Recent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		}
	})

	t.Run("store down", func(t *testing.T) {
		reader := new(MockAuditReader)
		reader.On("Recent", mock.Anything, "", 50, 0).Return(nil, errors.New("connection refused"))

		w := httptest.NewRecorder()
		NewAuditHandler(reader, logger).HandleList(w, newRequest(t, http.MethodGet, "/api/v1/audit", nil, adminCaller, nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
