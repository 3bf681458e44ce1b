// Package memory provides an in-process DocumentStore used in development
// mode and by service tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/amoreldmija/hospital/repositories"
)

type entry struct {
	data      []byte
	createdAt time.Time
	updatedAt time.Time
	seq       uint64
}

// DocumentStore keeps documents in memory. Stored fields are JSON encoded so
// callers never share maps with the store.
type DocumentStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]*entry
	seq         uint64
	now         func() time.Time
}

// NewDocumentStore creates an empty store
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		collections: make(map[string]map[string]*entry),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

var _ repositories.DocumentStore = (*DocumentStore)(nil)

// GetDocument retrieves one document
func (s *DocumentStore) GetDocument(ctx context.Context, collection, id string) (*repositories.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.collections[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, repositories.ErrNotFound)
	}
	return e.document(id)
}

// QueryDocuments retrieves the documents of a collection matching q
func (s *DocumentStore) QueryDocuments(ctx context.Context, collection string, q repositories.Query) ([]*repositories.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	type hit struct {
		doc *repositories.Document
		seq uint64
	}
	var hits []hit
	for id, e := range s.collections[collection] {
		doc, err := e.document(id)
		if err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		if matches(doc, q.Where) {
			hits = append(hits, hit{doc: doc, seq: e.seq})
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if q.OrderBy != "" {
			if c := compare(a.doc.Fields[q.OrderBy], b.doc.Fields[q.OrderBy]); c != 0 {
				if q.Descending {
					return c > 0
				}
				return c < 0
			}
		}
		if q.Descending {
			return a.seq > b.seq
		}
		return a.seq < b.seq
	})

	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}

	docs := make([]*repositories.Document, 0, len(hits))
	for _, h := range hits {
		docs = append(docs, h.doc)
	}
	return docs, nil
}

// SetDocument creates or replaces a document
func (s *DocumentStore) SetDocument(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode document %s/%s: %w", collection, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]*entry)
		s.collections[collection] = docs
	}
	if e, ok := docs[id]; ok {
		e.data = data
		e.updatedAt = now
		return nil
	}
	s.seq++
	docs[id] = &entry{data: data, createdAt: now, updatedAt: now, seq: s.seq}
	return nil
}

// UpdateDocument merges fields into an existing document
func (s *DocumentStore) UpdateDocument(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.collections[collection][id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, repositories.ErrNotFound)
	}

	current := make(map[string]interface{})
	if err := json.Unmarshal(e.data, &current); err != nil {
		return fmt.Errorf("decode document %s/%s: %w", collection, id, err)
	}
	for k, v := range fields {
		current[k] = v
	}
	data, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("encode document %s/%s: %w", collection, id, err)
	}
	e.data = data
	e.updatedAt = s.now()
	return nil
}

// DeleteDocument removes a document
func (s *DocumentStore) DeleteDocument(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections[collection], id)
	return nil
}

func (e *entry) document(id string) (*repositories.Document, error) {
	fields := make(map[string]interface{})
	if err := json.Unmarshal(e.data, &fields); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	return &repositories.Document{
		ID:        id,
		Fields:    fields,
		CreatedAt: e.createdAt,
		UpdatedAt: e.updatedAt,
	}, nil
}

func matches(doc *repositories.Document, where []repositories.Condition) bool {
	for _, c := range where {
		v, ok := doc.Fields[c.Field]
		if !ok || repositories.TextValue(v) != repositories.TextValue(c.Value) {
			return false
		}
	}
	return true
}

// compare orders numbers numerically and everything else by text form.
// Missing values sort first.
func compare(a, b interface{}) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	as, bs := repositories.TextValue(a), repositories.TextValue(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}
