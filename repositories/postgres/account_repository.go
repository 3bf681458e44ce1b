package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/repositories"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const pqUniqueViolation = "23505"

// AccountRepository implements the repositories.AccountRepository interface
type AccountRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *DB, logger *zap.Logger) repositories.AccountRepository {
	return &AccountRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new account
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (uid, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		account.UID,
		account.Email,
		account.PasswordHash,
		account.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("account %s: %w", account.Email, repositories.ErrDuplicate)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	r.logger.Debug("account created", zap.String("uid", account.UID))
	return nil
}

// GetByEmail retrieves an account by email
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `
		SELECT uid, email, password_hash, created_at
		FROM accounts
		WHERE email = $1
	`
	return r.getOne(ctx, query, email)
}

// GetByUID retrieves an account by uid
func (r *AccountRepository) GetByUID(ctx context.Context, uid string) (*models.Account, error) {
	query := `
		SELECT uid, email, password_hash, created_at
		FROM accounts
		WHERE uid = $1
	`
	return r.getOne(ctx, query, uid)
}

// Delete deletes an account. Its sessions go with it.
func (r *AccountRepository) Delete(ctx context.Context, uid string) error {
	query := `DELETE FROM accounts WHERE uid = $1`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, uid)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("account %s: %w", uid, repositories.ErrNotFound)
	}

	r.logger.Debug("account deleted", zap.String("uid", uid))
	return nil
}

func (r *AccountRepository) getOne(ctx context.Context, query string, arg string) (*models.Account, error) {
	executor := GetExecutor(ctx, r.db)
	account := &models.Account{}

	err := executor.QueryRowContext(ctx, query, arg).Scan(
		&account.UID,
		&account.Email,
		&account.PasswordHash,
		&account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %s: %w", arg, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
