package records

import (
	"context"

	"github.com/amoreldmija/hospital/repositories"
	"github.com/amoreldmija/hospital/services"
	"github.com/google/uuid"
)

// Collection is a typed view of one document collection. Store failures come
// back as DomainErrors: missing documents as notFound, anything else as
// backend_unavailable.
type Collection[T any] struct {
	docs     repositories.DocumentStore
	name     string
	notFound *services.DomainError
}

// NewCollection binds a collection name to a record type
func NewCollection[T any](docs repositories.DocumentStore, name string, notFound *services.DomainError) Collection[T] {
	return Collection[T]{docs: docs, name: name, notFound: notFound}
}

// Name returns the collection name
func (c Collection[T]) Name() string { return c.name }

// Get loads one record
func (c Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	doc, err := c.docs.GetDocument(ctx, c.name, id)
	if err != nil {
		return nil, c.storeError(err)
	}
	return decode[T](doc)
}

// Find returns the records matching q
func (c Collection[T]) Find(ctx context.Context, q repositories.Query) ([]*T, error) {
	docs, err := c.docs.QueryDocuments(ctx, c.name, q)
	if err != nil {
		return nil, c.storeError(err)
	}

	out := make([]*T, 0, len(docs))
	for _, doc := range docs {
		v, err := decode[T](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Insert stores v under a new id and returns the id
func (c Collection[T]) Insert(ctx context.Context, v *T) (string, error) {
	id := uuid.New().String()
	return id, c.Put(ctx, id, v)
}

// Put creates or replaces the record stored under id
func (c Collection[T]) Put(ctx context.Context, id string, v *T) error {
	fields, err := repositories.ToFields(v)
	if err != nil {
		return services.WrapInternal("failed to encode "+c.name, err)
	}
	if err := c.docs.SetDocument(ctx, c.name, id, fields); err != nil {
		return c.storeError(err)
	}
	return nil
}

// Merge writes fields into an existing record
func (c Collection[T]) Merge(ctx context.Context, id string, fields map[string]interface{}) error {
	if err := c.docs.UpdateDocument(ctx, c.name, id, fields); err != nil {
		return c.storeError(err)
	}
	return nil
}

// Delete removes a record, reporting notFound when it does not exist
func (c Collection[T]) Delete(ctx context.Context, id string) error {
	if _, err := c.docs.GetDocument(ctx, c.name, id); err != nil {
		return c.storeError(err)
	}
	if err := c.docs.DeleteDocument(ctx, c.name, id); err != nil {
		return c.storeError(err)
	}
	return nil
}

func (c Collection[T]) storeError(err error) error {
	err = services.FromStoreError(err, c.name)
	if c.notFound != nil && services.IsNotFoundError(err) {
		return c.notFound
	}
	return err
}

func decode[T any](doc *repositories.Document) (*T, error) {
	v := new(T)
	if err := doc.Decode(v); err != nil {
		return nil, services.WrapInternal("failed to decode document "+doc.ID, err)
	}
	return v, nil
}
