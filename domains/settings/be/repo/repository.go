package repo

import (
	"context"
	"encoding/json"

	"github.com/marmoreal/stonecms/platform/go/persistence"
)

// Repository exposes the site settings document.
type Repository interface {
	Get(ctx context.Context) (persistence.SettingsDocument, error)
	Put(ctx context.Context, document json.RawMessage, updatedBy string) (persistence.SettingsDocument, error)
	InsertIfAbsent(ctx context.Context, document json.RawMessage, updatedBy string) (persistence.SettingsDocument, error)
}

type postgresRepository struct {
	store *persistence.SettingsStore
}

// NewPostgresRepository builds a Repository over the "site" settings row.
func NewPostgresRepository(store *persistence.SettingsStore) Repository {
	if store == nil {
		panic("settings store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) Get(ctx context.Context) (persistence.SettingsDocument, error) {
	return r.store.GetSettings(ctx, persistence.SiteSettingsKey)
}

func (r *postgresRepository) Put(ctx context.Context, document json.RawMessage, updatedBy string) (persistence.SettingsDocument, error) {
	return r.store.PutSettings(ctx, persistence.SiteSettingsKey, document, updatedBy)
}

func (r *postgresRepository) InsertIfAbsent(ctx context.Context, document json.RawMessage, updatedBy string) (persistence.SettingsDocument, error) {
	return r.store.InsertSettingsIfAbsent(ctx, persistence.SiteSettingsKey, document, updatedBy)
}
