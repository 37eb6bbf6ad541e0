package memory

import (
	"context"

	"github.com/totegamma/ethsign/internal/domain"
	"github.com/totegamma/ethsign/internal/usecase"
)

type SchemaRepository struct {
	store *Store
}

func NewSchemaRepository(store *Store) *SchemaRepository {
	return &SchemaRepository{store: store}
}

func (r *SchemaRepository) Create(ctx context.Context, schema domain.Schema, hook usecase.SchemaHook) (domain.Schema, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	schema = cloneSchema(schema)
	schema.ID = s.schemaSeq + 1

	var collection *domain.TokenCollection
	if hook != nil {
		var err error
		collection, err = hook(ctx, cloneSchema(schema))
		if err != nil {
			return domain.Schema{}, err
		}
	}

	s.schemaSeq = schema.ID
	s.schemas[schema.ID] = schema
	if collection != nil {
		collection.SchemaID = schema.ID
		s.collections[schema.ID] = *collection
	}

	return cloneSchema(schema), nil
}

func (r *SchemaRepository) Get(ctx context.Context, id uint64) (domain.Schema, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	schema, ok := s.schemas[id]
	if !ok {
		return domain.Schema{}, domain.ErrSchemaNotFound
	}
	return cloneSchema(schema), nil
}

func (r *SchemaRepository) GetCollection(ctx context.Context, schemaID uint64) (domain.TokenCollection, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	collection, ok := s.collections[schemaID]
	if !ok {
		return domain.TokenCollection{}, domain.ErrCollectionNotFound
	}
	return collection, nil
}
