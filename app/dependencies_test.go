package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/amoreldmija/hospital/config"
	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/services/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewDependencies(t *testing.T) {
	t.Run("memory driver with local provider", func(t *testing.T) {
		ctx := context.Background()
		deps, err := NewDependencies(ctx, testConfig(t), zaptest.NewLogger(t))
		require.NoError(t, err)
		require.NotNil(t, deps)

		// Infrastructure
		assert.Nil(t, deps.DB)
		assert.Nil(t, deps.RepoFactory)
		assert.NotNil(t, deps.Documents)
		assert.NotNil(t, deps.Accounts)
		assert.NotNil(t, deps.Sessions)
		assert.NotNil(t, deps.AuditLogs)

		// Access control core
		assert.Equal(t, policy.DefaultVersion, deps.Policy.Version())
		assert.NotNil(t, deps.Local)
		assert.NotNil(t, deps.Resolver)
		assert.NotNil(t, deps.Guard)
		assert.True(t, deps.Audit.GetStats().Started)

		// HTTP
		assert.NotNil(t, deps.AuthMiddleware)
		assert.NotNil(t, deps.GuardMiddleware)
		require.NotNil(t, deps.Handlers)
		assert.NotNil(t, deps.Handlers.Auth)
		assert.NotNil(t, deps.Handlers.Audit)

		require.NoError(t, deps.Close(ctx))
	})

	t.Run("signed up account resolves to a patient", func(t *testing.T) {
		ctx := context.Background()
		deps, err := NewDependencies(ctx, testConfig(t), zaptest.NewLogger(t))
		require.NoError(t, err)
		defer deps.Close(ctx)

		creds, err := deps.Users.SignUp(ctx, models.Registration{
			Email: "jane@example.com", Password: "secret1", FirstName: "Jane", LastName: "Doe",
		})
		require.NoError(t, err)

		p, err := deps.Resolver.Resolve(ctx, creds.Token)
		require.NoError(t, err)
		assert.Equal(t, models.RolePatient, p.Role)
		assert.True(t, deps.Policy.Authorize(p, models.Action(models.ResourceAppointments, models.OpCreate)).Allowed)
	})

	t.Run("audit disabled", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig(t)
		cfg.Audit.Enabled = false

		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.False(t, deps.Audit.GetStats().Started)
		assert.NoError(t, deps.Close(ctx))
	})

	t.Run("cognito provider has no local accounts", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig(t)
		cfg.Auth.Provider = config.AuthProviderCognito

		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		defer deps.Close(ctx)

		assert.Nil(t, deps.Local)
		assert.NotNil(t, deps.Verifier)
	})

	t.Run("policy file replaces the built-in table", func(t *testing.T) {
		ctx := context.Background()
		table := policy.DefaultTable()
		table.Version = "clinic-test"
		for i, r := range table.Rules {
			if r.Action() == models.Action(models.ResourcePatients, models.OpView) {
				table.Rules[i].Roles = []models.Role{models.RoleAdmin}
			}
		}
		data, err := policy.Marshal(table)
		require.NoError(t, err)
		path := filepath.Join(t.TempDir(), "policy.yaml")
		require.NoError(t, os.WriteFile(path, data, 0o600))

		cfg := testConfig(t)
		cfg.Policy.File = path

		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		defer deps.Close(ctx)

		assert.Equal(t, "clinic-test", deps.Policy.Version())
		doctor := &models.Principal{UID: "d1", Role: models.RoleDoctor}
		assert.False(t, deps.Policy.Authorize(doctor, models.Action(models.ResourcePatients, models.OpView)).Allowed)
	})

	t.Run("unreadable policy file", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Policy.File = filepath.Join(t.TempDir(), "missing.yaml")

		deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
		assert.Error(t, err)
		assert.Nil(t, deps)
		assert.Contains(t, err.Error(), "failed to initialize policy")
	})

	t.Run("database connection failure", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.DocumentStore.Driver = config.DriverPostgres
		cfg.Database.Host = "invalid-host-that-does-not-exist"

		deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
		assert.Error(t, err)
		assert.Nil(t, deps)
		assert.Contains(t, err.Error(), "failed to initialize database")
	})
}

func TestDependenciesClose(t *testing.T) {
	ctx := context.Background()
	deps, err := NewDependencies(ctx, testConfig(t), zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.NoError(t, deps.Close(ctx))
	// Second close is a no-op
	assert.NoError(t, deps.Close(ctx))
}

// Test helpers

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: config.DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "hms",
			Database:        "hospital_test",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		DocumentStore: config.DocumentStoreConfig{Driver: config.DriverMemory},
		Auth: config.AuthConfig{
			Provider:    config.AuthProviderLocal,
			TokenSecret: "test-secret-test-secret-test-secret",
			TokenIssuer: "hospital-test",
			SessionTTL:  time.Hour,
			BcryptCost:  4,
		},
		Cognito: config.CognitoConfig{
			Region:     "us-east-1",
			UserPoolID: "us-east-1_test",
			ClientID:   "test-client",
		},
		Identity: config.IdentityConfig{
			ProfileCacheSize: 16,
			ProfileCacheTTL:  time.Minute,
		},
		Audit: config.AuditConfig{
			Enabled:    true,
			BufferSize: 16,
			Workers:    1,
		},
		Observability: config.ObservabilityConfig{
			LogLevel:  "debug",
			LogFormat: "json",
		},
	}
}
