package memory

import (
	"context"
	"testing"
	"time"

	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountStore_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	store := NewAccountStore()

	require.NoError(t, store.Create(ctx, &models.Account{UID: "u1", Email: "Jane@Example.com", PasswordHash: "h"}))

	got, err := store.GetByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UID)

	got, err = store.GetByUID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "h", got.PasswordHash)

	err = store.Create(ctx, &models.Account{UID: "u2", Email: "jane@example.com"})
	assert.ErrorIs(t, err, repositories.ErrDuplicate)

	_, err = store.GetByUID(ctx, "missing")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestAccountStore_Sessions(t *testing.T) {
	ctx := context.Background()
	store := NewAccountStore()
	sessions := store.Sessions()
	now := time.Now()

	require.NoError(t, store.Create(ctx, &models.Account{UID: "u1", Email: "a@example.com"}))
	require.NoError(t, sessions.Create(ctx, &models.AuthSession{ID: "s1", UID: "u1", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, sessions.Create(ctx, &models.AuthSession{ID: "s2", UID: "u1", ExpiresAt: now.Add(-time.Hour)}))

	err := sessions.Create(ctx, &models.AuthSession{ID: "s3", UID: "ghost"})
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	n, err := sessions.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := sessions.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UID)

	require.NoError(t, sessions.Delete(ctx, "s1"))
	require.NoError(t, sessions.Delete(ctx, "s1"))
	_, err = sessions.Get(ctx, "s1")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestAccountStore_DeleteCascadesSessions(t *testing.T) {
	ctx := context.Background()
	store := NewAccountStore()
	sessions := store.Sessions()

	require.NoError(t, store.Create(ctx, &models.Account{UID: "u1", Email: "a@example.com"}))
	require.NoError(t, sessions.Create(ctx, &models.AuthSession{ID: "s1", UID: "u1", ExpiresAt: time.Now().Add(time.Hour)}))

	require.NoError(t, store.Delete(ctx, "u1"))

	_, err := sessions.Get(ctx, "s1")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	_, err = store.GetByEmail(ctx, "a@example.com")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "u1"), repositories.ErrNotFound)

	// The email is free again.
	assert.NoError(t, store.Create(ctx, &models.Account{UID: "u2", Email: "a@example.com"}))
}
