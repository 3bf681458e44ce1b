package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Document store drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Authentication providers
const (
	AuthProviderLocal   = "local"
	AuthProviderCognito = "cognito"
)

// MinProductionSecretLength is the shortest token secret accepted in production
const MinProductionSecretLength = 32

// developmentTokenSecret signs local sessions when no secret is configured
// outside production.
const developmentTokenSecret = "hms-development-secret-do-not-use-in-production"

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	AuditDatabase *DatabaseConfig // optional separate database for audit_logs
	DocumentStore DocumentStoreConfig
	Auth          AuthConfig
	Cognito       CognitoConfig
	Policy        PolicyConfig
	Identity      IdentityConfig
	Audit         AuditConfig
	Client        ClientConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// DocumentStoreConfig selects where hospital records live
type DocumentStoreConfig struct {
	Driver string
}

// AuthConfig configures the authentication provider
type AuthConfig struct {
	Provider        string
	TokenSecret     string
	TokenIssuer     string
	SessionTTL      time.Duration
	BcryptCost      int
	SignInRateLimit int // attempts per minute and client IP
	CleanupInterval time.Duration
	SecureCookies   bool
}

// CognitoConfig holds AWS Cognito token verification settings
type CognitoConfig struct {
	Region       string
	UserPoolID   string
	ClientID     string
	JWKSCacheTTL time.Duration
}

// PolicyConfig locates an optional YAML replacement of the built-in policy table
type PolicyConfig struct {
	File string
}

// IdentityConfig tunes the profile cache of the identity resolver
type IdentityConfig struct {
	ProfileCacheSize int
	ProfileCacheTTL  time.Duration
}

// AuditConfig sizes the asynchronous audit pipeline
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	Workers    int
}

// ClientConfig configures the console client
type ClientConfig struct {
	SessionFile string
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:*"}),
			TLS: struct {
				Enabled  bool
				CertFile string
				KeyFile  string
			}{
				Enabled:  getEnvAsBool("SERVER_TLS_ENABLED", false),
				CertFile: getEnv("SERVER_TLS_CERT_FILE", "certs/cert.pem"),
				KeyFile:  getEnv("SERVER_TLS_KEY_FILE", "certs/key.pem"),
			},
		},
		Database:      loadDatabaseConfig(),
		AuditDatabase: loadAuditDatabaseConfig(),
		DocumentStore: DocumentStoreConfig{
			Driver: strings.ToLower(getEnv("DOCSTORE_DRIVER", DriverMemory)),
		},
		Auth: AuthConfig{
			Provider:        strings.ToLower(getEnv("AUTH_PROVIDER", AuthProviderLocal)),
			TokenSecret:     getEnv("AUTH_TOKEN_SECRET", ""),
			TokenIssuer:     getEnv("AUTH_TOKEN_ISSUER", "hospital"),
			SessionTTL:      getEnvAsDuration("AUTH_SESSION_TTL", 24*time.Hour),
			BcryptCost:      getEnvAsInt("AUTH_BCRYPT_COST", 10),
			SignInRateLimit: getEnvAsInt("AUTH_SIGNIN_RATE_LIMIT", 10),
			CleanupInterval: getEnvAsDuration("AUTH_SESSION_CLEANUP_INTERVAL", time.Hour),
			SecureCookies:   getEnvAsBool("AUTH_SECURE_COOKIES", false),
		},
		Cognito: CognitoConfig{
			Region:       getEnv("COGNITO_REGION", "us-east-1"),
			UserPoolID:   getEnv("COGNITO_USER_POOL_ID", ""),
			ClientID:     getEnv("COGNITO_CLIENT_ID", ""),
			JWKSCacheTTL: getEnvAsDuration("COGNITO_JWKS_CACHE_TTL", time.Hour),
		},
		Policy: PolicyConfig{
			File: getEnv("POLICY_FILE", ""),
		},
		Identity: IdentityConfig{
			ProfileCacheSize: getEnvAsInt("PROFILE_CACHE_SIZE", 1000),
			ProfileCacheTTL:  getEnvAsDuration("PROFILE_CACHE_TTL", 5*time.Minute),
		},
		Audit: AuditConfig{
			Enabled:    getEnvAsBool("AUDIT_ENABLED", true),
			BufferSize: getEnvAsInt("AUDIT_BUFFER_SIZE", 1000),
			Workers:    getEnvAsInt("AUDIT_WORKERS", 2),
		},
		Client: ClientConfig{
			SessionFile: getEnv("HMS_SESSION_FILE", defaultSessionFile()),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	if cfg.Auth.TokenSecret == "" && !cfg.IsProduction() {
		cfg.Auth.TokenSecret = developmentTokenSecret
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	switch c.DocumentStore.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.ConnectionString == "" && c.Database.Host == "" {
			return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
		}
		if c.Database.ConnectionString == "" {
			if c.Database.User == "" {
				return fmt.Errorf("database user is required")
			}
			if c.Database.Database == "" {
				return fmt.Errorf("database name is required")
			}
		}
	default:
		return fmt.Errorf("unknown document store driver %q", c.DocumentStore.Driver)
	}

	switch c.Auth.Provider {
	case AuthProviderLocal:
		if c.Auth.TokenSecret == "" {
			return fmt.Errorf("auth token secret is required")
		}
		if c.IsProduction() && len(c.Auth.TokenSecret) < MinProductionSecretLength {
			return fmt.Errorf("auth token secret must be at least %d bytes in production", MinProductionSecretLength)
		}
	case AuthProviderCognito:
		if c.Cognito.UserPoolID == "" {
			return fmt.Errorf("cognito user pool ID is required")
		}
		if c.IsProduction() && c.Cognito.ClientID == "" {
			return fmt.Errorf("cognito client ID is required in production")
		}
	default:
		return fmt.Errorf("unknown auth provider %q", c.Auth.Provider)
	}

	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth session TTL must be positive")
	}

	if c.Audit.Enabled && (c.Audit.BufferSize <= 0 || c.Audit.Workers <= 0) {
		return fmt.Errorf("audit buffer size and workers must be positive")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "hms"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "hospital"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// loadAuditDatabaseConfig returns the audit database from DATABASE_URL_AUDIT, or nil
func loadAuditDatabaseConfig() *DatabaseConfig {
	dbURL := getEnv("DATABASE_URL_AUDIT", "")
	if dbURL == "" {
		return nil
	}
	return &DatabaseConfig{
		ConnectionString: dbURL,
		MaxOpenConns:     getEnvAsInt("DB_AUDIT_MAX_OPEN_CONNS", 5),
		MaxIdleConns:     getEnvAsInt("DB_AUDIT_MAX_IDLE_CONNS", 2),
		ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hms_session"
	}
	return filepath.Join(home, ".hms_session")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice splits a comma-separated variable, dropping empty items
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
