package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/marmoreal/stonecms/platform/go/persistence"
)

// Repository exposes persistence operations required by the posts service.
type Repository interface {
	List(ctx context.Context, params persistence.ListPostsParams) (persistence.PageResult[persistence.Post], error)
	Create(ctx context.Context, id uuid.UUID, params persistence.PostParams) (persistence.Post, error)
	Get(ctx context.Context, id uuid.UUID) (persistence.Post, error)
	GetBySlug(ctx context.Context, slug string) (persistence.Post, error)
	Update(ctx context.Context, id uuid.UUID, params persistence.PostParams) (persistence.Post, error)
	SoftDelete(ctx context.Context, id uuid.UUID, deletedAt time.Time) error
	SlugExists(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error)
}

type postgresRepository struct {
	store *persistence.PostStore
}

// NewPostgresRepository builds a Repository backed by the shared persistence layer.
func NewPostgresRepository(store *persistence.PostStore) Repository {
	if store == nil {
		panic("post store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) List(ctx context.Context, params persistence.ListPostsParams) (persistence.PageResult[persistence.Post], error) {
	return r.store.ListPosts(ctx, params)
}

func (r *postgresRepository) Create(ctx context.Context, id uuid.UUID, params persistence.PostParams) (persistence.Post, error) {
	return r.store.CreatePost(ctx, id, params)
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (persistence.Post, error) {
	return r.store.GetPost(ctx, id)
}

func (r *postgresRepository) GetBySlug(ctx context.Context, slug string) (persistence.Post, error) {
	return r.store.GetPostBySlug(ctx, slug)
}

func (r *postgresRepository) Update(ctx context.Context, id uuid.UUID, params persistence.PostParams) (persistence.Post, error) {
	return r.store.UpdatePost(ctx, id, params)
}

func (r *postgresRepository) SoftDelete(ctx context.Context, id uuid.UUID, deletedAt time.Time) error {
	return r.store.SoftDeletePost(ctx, id, deletedAt)
}

func (r *postgresRepository) SlugExists(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error) {
	return r.store.PostSlugExists(ctx, slug, excludeID)
}
