package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/marmoreal/stonecms/platform/go/persistence"
)

// Repository exposes the admin account operations.
type Repository interface {
	Create(ctx context.Context, id uuid.UUID, params persistence.CreateAdminParams) (persistence.Admin, error)
	Get(ctx context.Context, id uuid.UUID) (persistence.Admin, error)
	GetByEmail(ctx context.Context, email string) (persistence.Admin, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type postgresRepository struct {
	store *persistence.AdminStore
}

// NewPostgresRepository builds a Repository backed by the shared persistence layer.
func NewPostgresRepository(store *persistence.AdminStore) Repository {
	if store == nil {
		panic("admin store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) Create(ctx context.Context, id uuid.UUID, params persistence.CreateAdminParams) (persistence.Admin, error) {
	return r.store.CreateAdmin(ctx, id, params)
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (persistence.Admin, error) {
	return r.store.GetAdmin(ctx, id)
}

func (r *postgresRepository) GetByEmail(ctx context.Context, email string) (persistence.Admin, error) {
	return r.store.GetAdminByEmail(ctx, email)
}

func (r *postgresRepository) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.store.TouchLastLogin(ctx, id, at)
}
