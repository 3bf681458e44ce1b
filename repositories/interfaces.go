package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/amoreldmija/hospital/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a unique key is already taken
	ErrDuplicate = errors.New("duplicate record")
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// DocumentStore is the document database collaborator. Each call is atomic
// for a single document; nothing spans collections.
type DocumentStore interface {
	// GetDocument returns ErrNotFound when the document does not exist
	GetDocument(ctx context.Context, collection, id string) (*Document, error)

	// QueryDocuments returns the documents of a collection matching q
	QueryDocuments(ctx context.Context, collection string, q Query) ([]*Document, error)

	// SetDocument creates or replaces a document
	SetDocument(ctx context.Context, collection, id string, fields map[string]interface{}) error

	// UpdateDocument merges fields into an existing document.
	// Returns ErrNotFound when the document does not exist.
	UpdateDocument(ctx context.Context, collection, id string, fields map[string]interface{}) error

	// DeleteDocument removes a document. Deleting a missing document is not an error.
	DeleteDocument(ctx context.Context, collection, id string) error
}

// AccountRepository stores authentication accounts for the local provider
type AccountRepository interface {
	// Create returns ErrDuplicate when the email is taken
	Create(ctx context.Context, account *models.Account) error

	// GetByEmail retrieves an account by email
	GetByEmail(ctx context.Context, email string) (*models.Account, error)

	// GetByUID retrieves an account by uid
	GetByUID(ctx context.Context, uid string) (*models.Account, error)

	// Delete deletes an account
	Delete(ctx context.Context, uid string) error
}

// SessionRepository stores server-side session rows
type SessionRepository interface {
	// Create inserts a new session
	Create(ctx context.Context, session *models.AuthSession) error

	// Get retrieves a session by id
	Get(ctx context.Context, id string) (*models.AuthSession, error)

	// Delete removes one session
	Delete(ctx context.Context, id string) error

	// DeleteByUID removes every session of an account
	DeleteByUID(ctx context.Context, uid string) error

	// DeleteExpired removes sessions that expired before the given time
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// AuditRepository handles audit log data operations
type AuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// List retrieves audit logs, newest first
	List(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)

	// GetByUID retrieves audit logs for one identity, newest first
	GetByUID(ctx context.Context, uid string, limit, offset int) ([]*models.AuditLog, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Documents DocumentStore
	Accounts  AccountRepository
	Sessions  SessionRepository
	AuditLogs AuditRepository
}
