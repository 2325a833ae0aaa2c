package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/marmoreal/stonecms/platform/go/persistence"
)

// Repository exposes persistence operations required by the enquiries service.
type Repository interface {
	List(ctx context.Context, params persistence.ListEnquiriesParams) (persistence.PageResult[persistence.Enquiry], error)
	Create(ctx context.Context, id uuid.UUID, params persistence.CreateEnquiryParams) (persistence.Enquiry, error)
	Get(ctx context.Context, id uuid.UUID) (persistence.Enquiry, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (persistence.Enquiry, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type postgresRepository struct {
	store *persistence.EnquiryStore
}

// NewPostgresRepository builds a Repository backed by the shared persistence layer.
func NewPostgresRepository(store *persistence.EnquiryStore) Repository {
	if store == nil {
		panic("enquiry store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) List(ctx context.Context, params persistence.ListEnquiriesParams) (persistence.PageResult[persistence.Enquiry], error) {
	return r.store.ListEnquiries(ctx, params)
}

func (r *postgresRepository) Create(ctx context.Context, id uuid.UUID, params persistence.CreateEnquiryParams) (persistence.Enquiry, error) {
	return r.store.CreateEnquiry(ctx, id, params)
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (persistence.Enquiry, error) {
	return r.store.GetEnquiry(ctx, id)
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (persistence.Enquiry, error) {
	return r.store.UpdateEnquiryStatus(ctx, id, status)
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.store.DeleteEnquiry(ctx, id)
}
