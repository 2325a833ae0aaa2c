package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/marmoreal/stonecms/platform/go/persistence"
)

// Repository exposes the media metadata operations. Blobs live in storage.BlobStore.
type Repository interface {
	List(ctx context.Context, page, pageSize int) (persistence.PageResult[persistence.Media], error)
	Create(ctx context.Context, id uuid.UUID, params persistence.CreateMediaParams) (persistence.Media, error)
	Get(ctx context.Context, id uuid.UUID) (persistence.Media, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type postgresRepository struct {
	store *persistence.MediaStore
}

// NewPostgresRepository builds a Repository backed by the shared persistence layer.
func NewPostgresRepository(store *persistence.MediaStore) Repository {
	if store == nil {
		panic("media store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) List(ctx context.Context, page, pageSize int) (persistence.PageResult[persistence.Media], error) {
	return r.store.ListMedia(ctx, page, pageSize)
}

func (r *postgresRepository) Create(ctx context.Context, id uuid.UUID, params persistence.CreateMediaParams) (persistence.Media, error) {
	return r.store.CreateMedia(ctx, id, params)
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (persistence.Media, error) {
	return r.store.GetMedia(ctx, id)
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.store.DeleteMedia(ctx, id)
}
