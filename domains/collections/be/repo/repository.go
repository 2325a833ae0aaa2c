package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/marmoreal/stonecms/platform/go/persistence"
)

// Repository exposes persistence operations required by the collections service.
type Repository interface {
	List(ctx context.Context, includeDeleted bool) ([]persistence.Collection, error)
	Create(ctx context.Context, id uuid.UUID, params persistence.CollectionParams) (persistence.Collection, error)
	Get(ctx context.Context, id uuid.UUID) (persistence.Collection, error)
	GetBySlug(ctx context.Context, slug string) (persistence.Collection, error)
	Update(ctx context.Context, id uuid.UUID, params persistence.CollectionParams) (persistence.Collection, error)
	SoftDelete(ctx context.Context, id uuid.UUID, deletedAt time.Time) error
	SlugExists(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error)
}

type postgresRepository struct {
	store *persistence.CollectionStore
}

// NewPostgresRepository builds a Repository backed by the shared persistence layer.
func NewPostgresRepository(store *persistence.CollectionStore) Repository {
	if store == nil {
		panic("collection store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) List(ctx context.Context, includeDeleted bool) ([]persistence.Collection, error) {
	return r.store.ListCollections(ctx, includeDeleted)
}

func (r *postgresRepository) Create(ctx context.Context, id uuid.UUID, params persistence.CollectionParams) (persistence.Collection, error) {
	return r.store.CreateCollection(ctx, id, params)
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (persistence.Collection, error) {
	return r.store.GetCollection(ctx, id)
}

func (r *postgresRepository) GetBySlug(ctx context.Context, slug string) (persistence.Collection, error) {
	return r.store.GetCollectionBySlug(ctx, slug)
}

func (r *postgresRepository) Update(ctx context.Context, id uuid.UUID, params persistence.CollectionParams) (persistence.Collection, error) {
	return r.store.UpdateCollection(ctx, id, params)
}

func (r *postgresRepository) SoftDelete(ctx context.Context, id uuid.UUID, deletedAt time.Time) error {
	return r.store.SoftDeleteCollection(ctx, id, deletedAt)
}

func (r *postgresRepository) SlugExists(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error) {
	return r.store.CollectionSlugExists(ctx, slug, excludeID)
}
