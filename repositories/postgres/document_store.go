package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amoreldmija/hospital/repositories"
	"go.uber.org/zap"
)

// DocumentStore implements repositories.DocumentStore on a JSONB table
type DocumentStore struct {
	db     *DB
	logger *zap.Logger
	now    func() time.Time
}

// NewDocumentStore creates a new document store
func NewDocumentStore(db *DB, logger *zap.Logger) repositories.DocumentStore {
	return &DocumentStore{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// GetDocument retrieves one document
func (s *DocumentStore) GetDocument(ctx context.Context, collection, id string) (*repositories.Document, error) {
	query := `
		SELECT id, data, created_at, updated_at
		FROM documents
		WHERE collection = $1 AND id = $2
	`

	executor := GetExecutor(ctx, s.db)
	doc, err := scanDocument(executor.QueryRowContext(ctx, query, collection, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}

	return doc, nil
}

// QueryDocuments retrieves the documents of a collection matching q.
// Without an order field, documents come back in creation order.
func (s *DocumentStore) QueryDocuments(ctx context.Context, collection string, q repositories.Query) ([]*repositories.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT id, data, created_at, updated_at FROM documents WHERE collection = $1")
	args := []interface{}{collection}

	for _, cond := range q.Where {
		args = append(args, cond.Field, repositories.TextValue(cond.Value))
		fmt.Fprintf(&sb, " AND data->>$%d = $%d", len(args)-1, len(args))
	}

	dir := "ASC"
	if q.Descending {
		dir = "DESC"
	}
	if q.OrderBy != "" {
		args = append(args, q.OrderBy)
		fmt.Fprintf(&sb, " ORDER BY data->$%d %s, id %s", len(args), dir, dir)
	} else {
		fmt.Fprintf(&sb, " ORDER BY created_at %s, id %s", dir, dir)
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}

	executor := GetExecutor(ctx, s.db)
	rows, err := executor.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []*repositories.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s document: %w", collection, err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s documents: %w", collection, err)
	}

	return docs, nil
}

// SetDocument creates or replaces a document
func (s *DocumentStore) SetDocument(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode document %s/%s: %w", collection, id, err)
	}

	query := `
		INSERT INTO documents (collection, id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (collection, id) DO UPDATE
		SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`

	executor := GetExecutor(ctx, s.db)
	if _, err := executor.ExecContext(ctx, query, collection, id, data, s.now()); err != nil {
		return fmt.Errorf("failed to set document %s/%s: %w", collection, id, err)
	}

	s.logger.Debug("document set", zap.String("collection", collection), zap.String("id", id))
	return nil
}

// UpdateDocument merges fields into an existing document
func (s *DocumentStore) UpdateDocument(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode document %s/%s: %w", collection, id, err)
	}

	query := `
		UPDATE documents
		SET data = data || $3::jsonb, updated_at = $4
		WHERE collection = $1 AND id = $2
	`

	executor := GetExecutor(ctx, s.db)
	result, err := executor.ExecContext(ctx, query, collection, id, data, s.now())
	if err != nil {
		return fmt.Errorf("failed to update document %s/%s: %w", collection, id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, repositories.ErrNotFound)
	}

	s.logger.Debug("document updated", zap.String("collection", collection), zap.String("id", id))
	return nil
}

// DeleteDocument removes a document
func (s *DocumentStore) DeleteDocument(ctx context.Context, collection, id string) error {
	query := `DELETE FROM documents WHERE collection = $1 AND id = $2`

	executor := GetExecutor(ctx, s.db)
	if _, err := executor.ExecContext(ctx, query, collection, id); err != nil {
		return fmt.Errorf("failed to delete document %s/%s: %w", collection, id, err)
	}

	s.logger.Debug("document deleted", zap.String("collection", collection), zap.String("id", id))
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*repositories.Document, error) {
	var (
		doc  repositories.Document
		data []byte
	)
	if err := row.Scan(&doc.ID, &data, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	doc.Fields = make(map[string]interface{})
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", doc.ID, err)
		}
	}
	return &doc, nil
}
