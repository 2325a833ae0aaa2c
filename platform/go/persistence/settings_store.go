package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SiteSettingsKey is the row holding the public site settings document.
const SiteSettingsKey = "site"

// SettingsDocument is a stored settings row.
type SettingsDocument struct {
	Key       string          `json:"key"`
	Document  json.RawMessage `json:"document"`
	UpdatedBy string          `json:"updatedBy"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

var ErrSettingsNotFound = errors.New("settings not found")

type SettingsStore struct {
	pool      *pgxpool.Pool
	documents *DocumentValidator
}

func NewSettingsStore(ctx context.Context, pool *pgxpool.Pool, documents *DocumentValidator) (*SettingsStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if documents == nil {
		return nil, errors.New("document validator is required")
	}
	return &SettingsStore{pool: pool, documents: documents}, nil
}

func (s *SettingsStore) GetSettings(ctx context.Context, key string) (SettingsDocument, error) {
	var doc SettingsDocument
	var raw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT key, document, updated_by, updated_at FROM site_settings WHERE key = $1
	`, key).Scan(&doc.Key, &raw, &doc.UpdatedBy, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SettingsDocument{}, ErrSettingsNotFound
		}
		return SettingsDocument{}, fmt.Errorf("get settings: %w", err)
	}
	doc.Document = json.RawMessage(raw)
	return doc, nil
}

// PutSettings validates and replaces the document stored under key.
func (s *SettingsStore) PutSettings(ctx context.Context, key string, document json.RawMessage, updatedBy string) (SettingsDocument, error) {
	if err := s.documents.Validate(DocumentSiteSettings, document); err != nil {
		return SettingsDocument{}, err
	}
	return s.upsert(ctx, key, document, updatedBy, true)
}

// InsertSettingsIfAbsent stores document only when key has no row yet and returns whatever is
// stored afterwards. Concurrent first reads therefore agree on a single document.
func (s *SettingsStore) InsertSettingsIfAbsent(ctx context.Context, key string, document json.RawMessage, updatedBy string) (SettingsDocument, error) {
	if err := s.documents.Validate(DocumentSiteSettings, document); err != nil {
		return SettingsDocument{}, err
	}
	if _, err := s.upsert(ctx, key, document, updatedBy, false); err != nil && !errors.Is(err, ErrSettingsNotFound) {
		return SettingsDocument{}, err
	}
	return s.GetSettings(ctx, key)
}

func (s *SettingsStore) upsert(ctx context.Context, key string, document json.RawMessage, updatedBy string, overwrite bool) (SettingsDocument, error) {
	if updatedBy == "" {
		updatedBy = "system"
	}

	conflict := `DO NOTHING`
	if overwrite {
		conflict = `DO UPDATE SET document = EXCLUDED.document, updated_by = EXCLUDED.updated_by, updated_at = NOW()`
	}

	var doc SettingsDocument
	var raw []byte
	err := s.pool.QueryRow(ctx, `
		INSERT INTO site_settings (key, document, updated_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) `+conflict+`
		RETURNING key, document, updated_by, updated_at
	`, key, []byte(document), updatedBy).Scan(&doc.Key, &raw, &doc.UpdatedBy, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SettingsDocument{}, ErrSettingsNotFound
		}
		return SettingsDocument{}, fmt.Errorf("upsert settings: %w", err)
	}
	doc.Document = json.RawMessage(raw)
	return doc, nil
}
