package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/amoreldmija/hospital/config"
	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/services/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            0,
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			RequestTimeout:  5 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		DocumentStore: config.DocumentStoreConfig{Driver: config.DriverMemory},
		Auth: config.AuthConfig{
			Provider:    config.AuthProviderLocal,
			TokenSecret: "cli-test-secret-cli-test-secret-cli",
			TokenIssuer: "hospital-test",
			SessionTTL:  time.Hour,
			BcryptCost:  4,
		},
		Identity: config.IdentityConfig{ProfileCacheSize: 16, ProfileCacheTTL: time.Minute},
		Audit:    config.AuditConfig{Enabled: true, BufferSize: 64, Workers: 1},
		Client:   config.ClientConfig{SessionFile: filepath.Join(t.TempDir(), "session")},
		Observability: config.ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

func newTestCLI(t *testing.T, cfg *config.Config) *cli {
	t.Helper()
	c := &cli{
		loadConfig: func(context.Context) (*config.Config, error) { return cfg, nil },
		newLogger:  func(string, string) (*zap.Logger, error) { return zap.NewNop(), nil },
	}
	t.Cleanup(c.close)
	return c
}

// run executes one command line against c, keeping c's dependencies
func run(t *testing.T, c *cli, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := c.rootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPolicyCommands(t *testing.T) {
	c := newTestCLI(t, testConfig(t))

	t.Run("validate built-in table", func(t *testing.T) {
		out, err := run(t, c, "policy", "validate")
		require.NoError(t, err)
		assert.Contains(t, out, "policy 2024-source-latest is valid")
	})

	t.Run("validate rejects an incomplete table", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "policy.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`version: broken
rules:
  - resource: users
    operation: view
    roles: [admin]
`), 0o600))

		_, err := run(t, c, "policy", "validate", "--file", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no rule for patients.view")
	})

	t.Run("show matrix", func(t *testing.T) {
		out, err := run(t, c, "policy", "show")
		require.NoError(t, err)
		assert.Contains(t, out, "policy version: 2024-source-latest")
		assert.Contains(t, out, "RESOURCE")
		assert.Contains(t, out, "appointments")
		assert.Contains(t, out, "admin,doctor,patient")
	})

	t.Run("show yaml", func(t *testing.T) {
		out, err := run(t, c, "policy", "show", "-o", "yaml")
		require.NoError(t, err)
		assert.Contains(t, out, "version: 2024-source-latest")
	})

	t.Run("unknown output", func(t *testing.T) {
		_, err := run(t, c, "policy", "show", "-o", "xml")
		assert.Error(t, err)
	})
}

func TestSessionLifecycle(t *testing.T) {
	cfg := testConfig(t)
	c := newTestCLI(t, cfg)
	sessionFile := cfg.Client.SessionFile

	out, err := run(t, c, "whoami")
	require.NoError(t, err)
	assert.Equal(t, "anonymous\n", out)

	out, err = run(t, c, "signup", "--email", "jane@example.com", "--password", "secret1",
		"--first-name", "Jane", "--last-name", "Doe")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as jane@example.com (patient)")
	assert.FileExists(t, sessionFile)

	out, err = run(t, c, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "jane@example.com")
	assert.Contains(t, out, "Jane Doe")

	out, err = run(t, c, "can", "appointments", "create")
	require.NoError(t, err)
	assert.Contains(t, out, "appointments.create: proceed")

	out, err = run(t, c, "can", "users", "view")
	require.NoError(t, err)
	assert.Contains(t, out, "users.view: redirect_to_home")
	assert.Contains(t, out, "reason:")

	_, err = run(t, c, "audit")
	assert.Error(t, err)

	out, err = run(t, c, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out successfully")
	assert.NoFileExists(t, sessionFile)

	out, err = run(t, c, "can", "patients", "view")
	require.NoError(t, err)
	assert.Contains(t, out, "patients.view: redirect_to_login")

	out, err = run(t, c, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Not signed in")

	_, err = run(t, c, "login", "--email", "jane@example.com", "--password", "wrong-one")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sign-in failed")

	out, err = run(t, c, "login", "--email", "jane@example.com", "--password", "secret1")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as jane@example.com")
	assert.FileExists(t, sessionFile)
}

func TestSignupValidation(t *testing.T) {
	c := newTestCLI(t, testConfig(t))

	_, err := run(t, c, "signup", "--email", "not-an-email", "--password", "secret1",
		"--first-name", "Jane", "--last-name", "Doe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid input")
}

func TestStaleSessionFileIsForgotten(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Client.SessionFile, []byte("revoked-token\n"), 0o600))
	c := newTestCLI(t, cfg)

	out, err := run(t, c, "whoami")
	require.NoError(t, err)
	assert.Equal(t, "anonymous\n", out)
	assert.NoFileExists(t, cfg.Client.SessionFile)
}

func TestAdminAudit(t *testing.T) {
	cfg := testConfig(t)
	c := newTestCLI(t, cfg)
	ctx := context.Background()

	deps, err := c.dependencies(ctx, false)
	require.NoError(t, err)
	_, err = deps.Users.Create(ctx, &users.CreateRequest{
		Registration: models.Registration{
			Email: "root@example.com", Password: "secret1", FirstName: "Ada", LastName: "Admin",
		},
		Role: models.RoleAdmin,
	})
	require.NoError(t, err)

	_, err = run(t, c, "login", "--email", "root@example.com", "--password", "secret1")
	require.NoError(t, err)

	out, err := run(t, c, "audit", "--limit", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "OUTCOME")
}

func TestCanRejectsUnknownActions(t *testing.T) {
	c := newTestCLI(t, testConfig(t))

	_, err := run(t, c, "can", "wards", "view")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action wards.view")

	_, err = run(t, c, "can", "users", "approve")
	assert.Error(t, err)
}

func TestServeStopsOnCancel(t *testing.T) {
	c := newTestCLI(t, testConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.serve(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestTokenFile(t *testing.T) {
	ctx := context.Background()
	f := tokenFile{path: filepath.Join(t.TempDir(), "nested", "session")}

	token, err := f.CurrentSessionToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, f.Save("abc"))
	token, err = f.CurrentSessionToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	require.NoError(t, f.Save(""))
	assert.NoFileExists(t, f.path)
	require.NoError(t, f.Save(""))
}
