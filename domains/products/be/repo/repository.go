package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/marmoreal/stonecms/platform/go/persistence"
)

// Repository exposes persistence operations required by the products service.
type Repository interface {
	List(ctx context.Context, params persistence.ListProductsParams) (persistence.PageResult[persistence.Product], error)
	Create(ctx context.Context, id uuid.UUID, params persistence.ProductParams) (persistence.Product, error)
	Get(ctx context.Context, id uuid.UUID) (persistence.Product, error)
	GetBySlug(ctx context.Context, slug string) (persistence.Product, error)
	Update(ctx context.Context, id uuid.UUID, params persistence.ProductParams) (persistence.Product, error)
	SoftDelete(ctx context.Context, id uuid.UUID, deletedAt time.Time) error
	SlugExists(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error)
}

type postgresRepository struct {
	store *persistence.ProductStore
}

// NewPostgresRepository builds a Repository backed by the shared persistence layer.
func NewPostgresRepository(store *persistence.ProductStore) Repository {
	if store == nil {
		panic("product store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) List(ctx context.Context, params persistence.ListProductsParams) (persistence.PageResult[persistence.Product], error) {
	return r.store.ListProducts(ctx, params)
}

func (r *postgresRepository) Create(ctx context.Context, id uuid.UUID, params persistence.ProductParams) (persistence.Product, error) {
	return r.store.CreateProduct(ctx, id, params)
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (persistence.Product, error) {
	return r.store.GetProduct(ctx, id)
}

func (r *postgresRepository) GetBySlug(ctx context.Context, slug string) (persistence.Product, error) {
	return r.store.GetProductBySlug(ctx, slug)
}

func (r *postgresRepository) Update(ctx context.Context, id uuid.UUID, params persistence.ProductParams) (persistence.Product, error) {
	return r.store.UpdateProduct(ctx, id, params)
}

func (r *postgresRepository) SoftDelete(ctx context.Context, id uuid.UUID, deletedAt time.Time) error {
	return r.store.SoftDeleteProduct(ctx, id, deletedAt)
}

func (r *postgresRepository) SlugExists(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error) {
	return r.store.ProductSlugExists(ctx, slug, excludeID)
}
