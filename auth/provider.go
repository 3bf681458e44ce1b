// Package auth is the local authentication provider: password accounts,
// signed session tokens and the server-side session rows behind them.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/repositories"
	"github.com/amoreldmija/hospital/services"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength matches the identity pool's password policy.
const MinPasswordLength = 6

// Config holds the local provider settings
type Config struct {
	Secret     []byte
	Issuer     string
	SessionTTL time.Duration
	BcryptCost int
}

// LocalProvider authenticates email/password accounts and issues session
// tokens. A token is valid only while its session row exists and has not
// expired, so signing out revokes it everywhere.
type LocalProvider struct {
	accounts repositories.AccountRepository
	sessions repositories.SessionRepository
	txMgr    repositories.TransactionManager
	tokens   *tokenSigner
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewLocalProvider creates a local provider. txMgr may be nil for stores
// without transactions.
func NewLocalProvider(
	accounts repositories.AccountRepository,
	sessions repositories.SessionRepository,
	txMgr repositories.TransactionManager,
	cfg Config,
	logger *zap.Logger,
) (*LocalProvider, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("auth: token secret is required")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "hospital"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}

	return &LocalProvider{
		accounts: accounts,
		sessions: sessions,
		txMgr:    txMgr,
		tokens:   newTokenSigner(cfg.Secret, cfg.Issuer),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Register creates an account. It does not sign the account in.
func (p *LocalProvider) Register(ctx context.Context, email, password string) (*models.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, services.ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return nil, services.ErrWeakPassword.WithDetail("min_length", MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cfg.BcryptCost)
	if err != nil {
		return nil, services.WrapInternal("failed to hash password", err)
	}

	account := &models.Account{
		UID:          uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    p.now().UTC(),
	}
	if err := p.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, services.ErrDuplicateEmail
		}
		return nil, services.WrapBackend("failed to create account", err)
	}

	p.logger.Info("account registered", zap.String("uid", account.UID))
	return account, nil
}

// SignIn checks the password and opens a session.
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*models.Credentials, error) {
	account, err := p.accounts.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrInvalidCredentials
		}
		return nil, services.WrapBackend("failed to look up account", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		p.logger.Debug("password mismatch", zap.String("uid", account.UID))
		return nil, services.ErrInvalidCredentials
	}

	return p.IssueSession(ctx, account.UID)
}

// IssueSession opens a session for uid and returns its signed token.
func (p *LocalProvider) IssueSession(ctx context.Context, uid string) (*models.Credentials, error) {
	now := p.now().UTC()
	session := &models.AuthSession{
		ID:        uuid.New().String(),
		UID:       uid,
		CreatedAt: now,
		ExpiresAt: now.Add(p.cfg.SessionTTL),
	}

	token, err := p.tokens.sign(session)
	if err != nil {
		return nil, services.WrapInternal("failed to sign session token", err)
	}

	if err := p.sessions.Create(ctx, session); err != nil {
		return nil, services.WrapBackend("failed to create session", err)
	}

	p.logger.Debug("session opened", zap.String("uid", uid), zap.String("session_id", session.ID))
	return &models.Credentials{Token: token, UID: uid, ExpiresAt: session.ExpiresAt}, nil
}

// SignOut closes the session behind token. Expired tokens are accepted so
// that their rows are still removed.
func (p *LocalProvider) SignOut(ctx context.Context, token string) error {
	claims, err := p.tokens.parse(token, false)
	if err != nil {
		return err
	}

	if err := p.sessions.Delete(ctx, claims.ID); err != nil {
		return services.WrapBackend("failed to close session", err)
	}

	p.logger.Debug("session closed", zap.String("uid", claims.Subject), zap.String("session_id", claims.ID))
	return nil
}

// Verify returns the uid the token was issued to.
func (p *LocalProvider) Verify(ctx context.Context, token string) (string, error) {
	claims, err := p.tokens.parse(token, true)
	if err != nil {
		return "", err
	}

	session, err := p.sessions.Get(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", services.ErrInvalidToken
		}
		return "", services.WrapBackend("failed to load session", err)
	}

	if session.UID != claims.Subject {
		p.logger.Warn("session token subject mismatch",
			zap.String("session_id", session.ID),
			zap.String("uid", claims.Subject))
		return "", services.ErrInvalidToken
	}
	if session.Expired(p.now()) {
		return "", services.ErrTokenExpired
	}

	return session.UID, nil
}

// DeleteAccount removes an account and all of its sessions.
func (p *LocalProvider) DeleteAccount(ctx context.Context, uid string) error {
	err := services.WithTransaction(ctx, p.txMgr, func(ctx context.Context, _ repositories.Transaction) error {
		if err := p.sessions.DeleteByUID(ctx, uid); err != nil {
			return err
		}
		return p.accounts.Delete(ctx, uid)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return services.ErrUserNotFound
		}
		return services.WrapBackend("failed to delete account", err)
	}

	p.logger.Info("account deleted", zap.String("uid", uid))
	return nil
}

// CleanupExpired removes expired session rows
func (p *LocalProvider) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := p.sessions.DeleteExpired(ctx, p.now())
	if err != nil {
		return 0, services.WrapBackend("failed to remove expired sessions", err)
	}
	if n > 0 {
		p.logger.Debug("expired sessions removed", zap.Int64("count", n))
	}
	return n, nil
}

// StartCleanupWorker removes expired sessions every interval until ctx is done
func (p *LocalProvider) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := p.CleanupExpired(ctx); err != nil {
					p.logger.Warn("session cleanup failed", zap.Error(err))
				}
			}
		}
	}()
}
