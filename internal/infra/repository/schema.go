package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/totegamma/ethsign/internal/domain"
	"github.com/totegamma/ethsign/internal/infra/database/models"
	"github.com/totegamma/ethsign/internal/usecase"
)

// SchemaRepository stores schemas in postgres. Schemas never change once
// written, so reads go through memcached without invalidation.
type SchemaRepository struct {
	db *gorm.DB
	mc *memcache.Client
}

func NewSchemaRepository(db *gorm.DB, mc *memcache.Client) *SchemaRepository {
	return &SchemaRepository{db: db, mc: mc}
}

func schemaCacheKey(id uint64) string {
	return "schema:" + strconv.FormatUint(id, 10)
}

func (r *SchemaRepository) Create(ctx context.Context, schema domain.Schema, hook usecase.SchemaHook) (domain.Schema, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := nextID(tx, sequenceSchema)
		if err != nil {
			return errors.Wrap(err, "Schema.Repository.Create: nextID failed")
		}
		schema.ID = id

		model, err := schemaToModel(schema)
		if err != nil {
			return err
		}
		if err := tx.Create(&model).Error; err != nil {
			return errors.Wrap(err, "Schema.Repository.Create: insert failed")
		}

		if hook == nil {
			return nil
		}
		collection, err := hook(ctx, schema)
		if err != nil {
			return err
		}
		if collection == nil {
			return nil
		}

		return tx.Create(&models.TokenCollection{
			SchemaID: int64(schema.ID),
			Handle:   collection.Handle,
		}).Error
	})
	if err != nil {
		return domain.Schema{}, err
	}

	return schema, nil
}

func (r *SchemaRepository) Get(ctx context.Context, id uint64) (domain.Schema, error) {
	if r.mc != nil {
		item, err := r.mc.Get(schemaCacheKey(id))
		if err == nil {
			var cached domain.Schema
			if err := json.Unmarshal(item.Value, &cached); err == nil {
				return cached, nil
			}
		} else if !errors.Is(err, memcache.ErrCacheMiss) {
			slog.WarnContext(ctx, "schema cache read failed", slog.String("error", err.Error()), slog.String("module", "repository"))
		}
	}

	var model models.Schema
	err := r.db.WithContext(ctx).Where("id = ?", int64(id)).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Schema{}, domain.ErrSchemaNotFound
		}
		return domain.Schema{}, errors.Wrap(err, "Schema.Repository.Get: select failed")
	}

	schema, err := schemaFromModel(model)
	if err != nil {
		return domain.Schema{}, err
	}

	if r.mc != nil {
		if value, err := json.Marshal(schema); err == nil {
			if err := r.mc.Set(&memcache.Item{Key: schemaCacheKey(id), Value: value}); err != nil {
				slog.WarnContext(ctx, "schema cache write failed", slog.String("error", err.Error()), slog.String("module", "repository"))
			}
		}
	}

	return schema, nil
}

func (r *SchemaRepository) GetCollection(ctx context.Context, schemaID uint64) (domain.TokenCollection, error) {
	var model models.TokenCollection
	err := r.db.WithContext(ctx).Where("schema_id = ?", int64(schemaID)).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.TokenCollection{}, domain.ErrCollectionNotFound
		}
		return domain.TokenCollection{}, errors.Wrap(err, "Schema.Repository.GetCollection: select failed")
	}
	return domain.TokenCollection{SchemaID: uint64(model.SchemaID), Handle: model.Handle}, nil
}
