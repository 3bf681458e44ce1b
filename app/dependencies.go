package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/amoreldmija/hospital/auth"
	"github.com/amoreldmija/hospital/cognito"
	"github.com/amoreldmija/hospital/config"
	"github.com/amoreldmija/hospital/handlers"
	"github.com/amoreldmija/hospital/middleware"
	"github.com/amoreldmija/hospital/repositories"
	"github.com/amoreldmija/hospital/repositories/memory"
	"github.com/amoreldmija/hospital/repositories/postgres"
	"github.com/amoreldmija/hospital/services/appointments"
	"github.com/amoreldmija/hospital/services/audit"
	"github.com/amoreldmija/hospital/services/guard"
	"github.com/amoreldmija/hospital/services/identity"
	"github.com/amoreldmija/hospital/services/policy"
	"github.com/amoreldmija/hospital/services/prescriptions"
	"github.com/amoreldmija/hospital/services/records"
	"github.com/amoreldmija/hospital/services/users"
	"go.uber.org/zap"
)

// memoryAuditCapacity bounds the audit trail kept without a database
const memoryAuditCapacity = 10000

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB // nil with the memory driver
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Documents repositories.DocumentStore
	Accounts  repositories.AccountRepository
	Sessions  repositories.SessionRepository
	AuditLogs repositories.AuditRepository
	TxManager repositories.TransactionManager

	// Access control core
	Policy       *policy.Engine
	ProfileCache *identity.ProfileCache
	Resolver     *identity.Resolver
	Verifier     identity.TokenVerifier
	Local        *auth.LocalProvider // nil with the cognito provider
	Audit        *audit.AuditService
	Guard        *guard.Guard

	// Domain services
	Users         *users.Service
	Records       *records.Service
	Appointments  *appointments.Service
	Prescriptions *prescriptions.Service

	// HTTP
	AuthMiddleware  *middleware.AuthMiddleware
	GuardMiddleware *middleware.GuardMiddleware
	Handlers        *Handlers

	auditRunning bool
	closed       bool
}

// Handlers groups the HTTP handlers for route wiring
type Handlers struct {
	Health        *handlers.HealthHandler
	Auth          *handlers.AuthHandler
	Capabilities  *handlers.CapabilitiesHandler
	Records       *handlers.RecordsHandler
	Appointments  *handlers.AppointmentHandler
	Prescriptions *handlers.PrescriptionHandler
	Users         *handlers.UserHandler
	Audit         *handlers.AuditHandler
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initStorage(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initPolicy(cfg); err != nil {
		deps.closeStorage()
		return nil, fmt.Errorf("failed to initialize policy: %w", err)
	}

	if err := deps.initAuth(cfg); err != nil {
		deps.closeStorage()
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	if err := deps.initServices(cfg); err != nil {
		deps.closeStorage()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	deps.initHTTP(cfg)

	logger.Info("all dependencies initialized successfully",
		zap.String("docstore", cfg.DocumentStore.Driver),
		zap.String("auth_provider", cfg.Auth.Provider),
		zap.String("policy_version", deps.Policy.Version()))
	return deps, nil
}

// initStorage opens the configured document store and its companions
func (d *Dependencies) initStorage(ctx context.Context, cfg *config.Config) error {
	if cfg.DocumentStore.Driver == config.DriverPostgres {
		return d.initDatabase(ctx, cfg)
	}

	accounts := memory.NewAccountStore()
	d.Documents = memory.NewDocumentStore()
	d.Accounts = accounts.Accounts()
	d.Sessions = accounts.Sessions()
	d.AuditLogs = memory.NewAuditLog(memoryAuditCapacity)
	d.Logger.Info("using in-memory document store")
	return nil
}

// initDatabase initializes the PostgreSQL database connection and factory
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := factory.InitSchema(ctx); err != nil {
		_ = factory.Close()
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	repos := factory.NewRepositories()
	d.Documents = repos.Documents
	d.Accounts = repos.Accounts
	d.Sessions = repos.Sessions
	d.AuditLogs = repos.AuditLogs
	d.TxManager = factory.GetTransactionManager()

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))
	return nil
}

// initPolicy loads the policy table, replacing the built-in one wholesale
// when a file is configured
func (d *Dependencies) initPolicy(cfg *config.Config) error {
	table, err := policy.Load(cfg.Policy.File)
	if err != nil {
		return err
	}
	engine, err := policy.NewEngine(table, d.Logger)
	if err != nil {
		return err
	}
	d.Policy = engine
	return nil
}

// initAuth builds the token verifier and, for the local provider, the
// account side used by sign-up and user administration
func (d *Dependencies) initAuth(cfg *config.Config) error {
	switch cfg.Auth.Provider {
	case config.AuthProviderCognito:
		d.Verifier = cognito.NewCognitoValidator(cognito.Config{
			Region:      cfg.Cognito.Region,
			UserPoolID:  cfg.Cognito.UserPoolID,
			ClientID:    cfg.Cognito.ClientID,
			CacheTTL:    cfg.Cognito.JWKSCacheTTL,
			HTTPTimeout: 10 * time.Second,
		})
		d.Logger.Info("cognito token verification enabled",
			zap.String("region", cfg.Cognito.Region),
			zap.String("user_pool_id", cfg.Cognito.UserPoolID))
	default:
		provider, err := auth.NewLocalProvider(d.Accounts, d.Sessions, d.TxManager, auth.Config{
			Secret:     []byte(cfg.Auth.TokenSecret),
			Issuer:     cfg.Auth.TokenIssuer,
			SessionTTL: cfg.Auth.SessionTTL,
			BcryptCost: cfg.Auth.BcryptCost,
		}, d.Logger)
		if err != nil {
			return err
		}
		d.Local = provider
		d.Verifier = provider
	}

	d.ProfileCache = identity.NewProfileCache(cfg.Identity.ProfileCacheSize, cfg.Identity.ProfileCacheTTL)
	d.Resolver = identity.NewResolver(d.Verifier, d.Documents, d.ProfileCache, d.Logger)
	return nil
}

// initServices builds the domain services, the audit pipeline and the guard
func (d *Dependencies) initServices(cfg *config.Config) error {
	var accounts users.AccountProvider
	if d.Local != nil {
		accounts = d.Local
	}
	d.Users = users.NewService(d.Documents, accounts, d.Resolver, d.Logger)
	d.Records = records.NewService(d.Documents, d.Logger)
	d.Appointments = appointments.NewService(d.Documents, d.Logger)
	d.Prescriptions = prescriptions.NewService(d.Documents, d.Logger)

	d.Audit = audit.NewAuditService(d.AuditLogs, d.Logger, audit.Config{
		BufferSize:  cfg.Audit.BufferSize,
		WorkerCount: cfg.Audit.Workers,
	})

	var opts []guard.Option
	if cfg.Audit.Enabled {
		if err := d.Audit.Start(); err != nil {
			return err
		}
		d.auditRunning = true
		opts = append(opts, guard.WithRecorder(d.Audit))
	}
	d.Guard = guard.New(d.Policy, d.Logger, opts...)
	return nil
}

// initHTTP builds the middleware and handlers served by the routes package
func (d *Dependencies) initHTTP(cfg *config.Config) {
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Resolver, d.Logger)
	d.GuardMiddleware = middleware.NewGuardMiddleware(d.Guard, d.Logger)

	var recorder handlers.MutationRecorder
	if d.auditRunning {
		recorder = d.Audit
	}

	var db *sql.DB
	if d.DB != nil {
		db = d.DB.DB
	}

	d.Handlers = &Handlers{
		Health:        handlers.NewHealthHandler(db, d.Policy, d.Logger),
		Auth:          handlers.NewAuthHandler(d.Users, d.Resolver, cfg.Auth.SecureCookies, d.Logger),
		Capabilities:  handlers.NewCapabilitiesHandler(d.Policy, d.Logger),
		Records:       handlers.NewRecordsHandler(d.Records, recorder, d.Logger),
		Appointments:  handlers.NewAppointmentHandler(d.Appointments, recorder, d.Logger),
		Prescriptions: handlers.NewPrescriptionHandler(d.Prescriptions, recorder, d.Logger),
		Users:         handlers.NewUserHandler(d.Users, recorder, d.Logger),
		Audit:         handlers.NewAuditHandler(d.Audit, d.Logger),
	}
}

// StartBackground runs the periodic maintenance jobs until ctx is done
func (d *Dependencies) StartBackground(ctx context.Context) {
	if d.Local != nil && d.Config.Auth.CleanupInterval > 0 {
		d.Local.StartCleanupWorker(ctx, d.Config.Auth.CleanupInterval)
	}

	if ttl := d.Config.Identity.ProfileCacheTTL; ttl > 0 {
		stop := make(chan struct{})
		d.ProfileCache.StartCleanupWorker(ttl, stop)
		go func() {
			<-ctx.Done()
			close(stop)
		}()
	}
}

func (d *Dependencies) closeStorage() {
	if d.RepoFactory != nil {
		_ = d.RepoFactory.Close()
	}
}

// Close gracefully shuts down all dependencies. Calling it twice is a no-op.
func (d *Dependencies) Close(ctx context.Context) error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Drain queued audit events before the store goes away
	if d.auditRunning {
		timeout := 5 * time.Second
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.Audit.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	// Close database connection
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
