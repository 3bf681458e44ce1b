package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/services"
	"github.com/amoreldmija/hospital/services/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserHandler_Lifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	h := NewUserHandler(env.users, env.recorder, env.logger)

	req := users.CreateRequest{
		Registration: models.Registration{
			Email:     "House@Example.com",
			Password:  "vicodin1",
			FirstName: "Greg",
			LastName:  "House",
		},
		Role: models.RoleDoctor,
	}

	env.expectMutation(models.Action(models.ResourceUsers, models.OpCreate))
	w := httptest.NewRecorder()
	h.HandleCreate(w, newRequest(t, http.MethodPost, "/api/v1/users", req, adminCaller, nil))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var profile models.UserProfile
	decodeInto(t, w, &profile)
	require.NotEmpty(t, profile.UID)
	assert.Equal(t, "house@example.com", profile.Email)
	assert.Equal(t, models.RoleDoctor, profile.Role)

	t.Run("duplicate email", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.HandleCreate(w, newRequest(t, http.MethodPost, "/api/v1/users", req, adminCaller, nil))
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("unknown role", func(t *testing.T) {
		bad := req
		bad.Email = "nurse@example.com"
		bad.Role = models.Role("nurse")
		w := httptest.NewRecorder()
		h.HandleCreate(w, newRequest(t, http.MethodPost, "/api/v1/users", bad, adminCaller, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	env.expectMutation(models.Action(models.ResourceUsers, models.OpUpdate))
	w = httptest.NewRecorder()
	h.HandleUpdate(w, newRequest(t, http.MethodPut, "/api/v1/users/"+profile.UID, users.UpdateRequest{
		FirstName: "Gregory",
		LastName:  "House",
		Role:      models.RoleAdmin,
	}, adminCaller, map[string]string{"uid": profile.UID}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	principal, err := env.resolver.ResolveUID(ctx, profile.UID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, principal.Role)

	w = httptest.NewRecorder()
	h.HandleList(w, newRequest(t, http.MethodGet, "/api/v1/users", nil, adminCaller, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.UserProfile
	decodeInto(t, w, &list)
	assert.Len(t, list, 1)

	env.expectMutation(models.Action(models.ResourceUsers, models.OpDelete))
	w = httptest.NewRecorder()
	h.HandleDelete(w, newRequest(t, http.MethodDelete, "/api/v1/users/"+profile.UID, nil, adminCaller, map[string]string{"uid": profile.UID}))
	assert.Equal(t, http.StatusNoContent, w.Code)

	// The account went with the profile.
	_, err = env.provider.SignIn(ctx, "house@example.com", "vicodin1")
	assert.True(t, services.IsAuthenticationError(err))

	w = httptest.NewRecorder()
	h.HandleGet(w, newRequest(t, http.MethodGet, "/api/v1/users/"+profile.UID, nil, adminCaller, map[string]string{"uid": profile.UID}))
	assert.Equal(t, http.StatusNotFound, w.Code)

	env.recorder.AssertExpectations(t)
}
