package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/marmoreal/stonecms/platform/go/persistence"
)

// Repository exposes persistence operations required by the projects service.
type Repository interface {
	List(ctx context.Context, params persistence.ListProjectsParams) (persistence.PageResult[persistence.Project], error)
	Create(ctx context.Context, id uuid.UUID, params persistence.ProjectParams) (persistence.Project, error)
	Get(ctx context.Context, id uuid.UUID) (persistence.Project, error)
	GetBySlug(ctx context.Context, slug string) (persistence.Project, error)
	Update(ctx context.Context, id uuid.UUID, params persistence.ProjectParams) (persistence.Project, error)
	SoftDelete(ctx context.Context, id uuid.UUID, deletedAt time.Time) error
	SlugExists(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error)
	// ProductsExist reports which of ids reference live products.
	ProductsExist(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)
}

type postgresRepository struct {
	projects *persistence.ProjectStore
	products *persistence.ProductStore
}

// NewPostgresRepository builds a Repository backed by the shared persistence layer.
func NewPostgresRepository(projects *persistence.ProjectStore, products *persistence.ProductStore) Repository {
	if projects == nil {
		panic("project store is required")
	}
	if products == nil {
		panic("product store is required")
	}
	return &postgresRepository{projects: projects, products: products}
}

func (r *postgresRepository) List(ctx context.Context, params persistence.ListProjectsParams) (persistence.PageResult[persistence.Project], error) {
	return r.projects.ListProjects(ctx, params)
}

func (r *postgresRepository) Create(ctx context.Context, id uuid.UUID, params persistence.ProjectParams) (persistence.Project, error) {
	return r.projects.CreateProject(ctx, id, params)
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (persistence.Project, error) {
	return r.projects.GetProject(ctx, id)
}

func (r *postgresRepository) GetBySlug(ctx context.Context, slug string) (persistence.Project, error) {
	return r.projects.GetProjectBySlug(ctx, slug)
}

func (r *postgresRepository) Update(ctx context.Context, id uuid.UUID, params persistence.ProjectParams) (persistence.Project, error) {
	return r.projects.UpdateProject(ctx, id, params)
}

func (r *postgresRepository) SoftDelete(ctx context.Context, id uuid.UUID, deletedAt time.Time) error {
	return r.projects.SoftDeleteProject(ctx, id, deletedAt)
}

func (r *postgresRepository) SlugExists(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error) {
	return r.projects.ProjectSlugExists(ctx, slug, excludeID)
}

func (r *postgresRepository) ProductsExist(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	return r.products.ProductsExist(ctx, ids)
}
