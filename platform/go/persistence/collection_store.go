package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const CollectionsTable = "collections"

// Collection is a named grouping of products, e.g. "Marble".
type Collection struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Slug          string     `json:"slug"`
	Description   *string    `json:"description,omitempty"`
	CoverImageURL *string    `json:"coverImageUrl,omitempty"`
	SortOrder     int        `json:"sortOrder"`
	IsFeatured    bool       `json:"isFeatured"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	DeletedAt     *time.Time `json:"deletedAt,omitempty"`
}

var (
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrCollectionConflict indicates another live collection already holds the slug.
	ErrCollectionConflict = errors.New("collection conflict")
)

// CollectionParams holds every writable column. Slug must already be resolved by the caller.
type CollectionParams struct {
	Name          string
	Slug          string
	Description   *string
	CoverImageURL *string
	SortOrder     int
	IsFeatured    bool
}

type CollectionStore struct {
	pool *pgxpool.Pool
}

func NewCollectionStore(ctx context.Context, pool *pgxpool.Pool) (*CollectionStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &CollectionStore{pool: pool}, nil
}

const collectionColumns = `id, name, slug, description, cover_image_url, sort_order, is_featured, created_at, updated_at, deleted_at`

func (s *CollectionStore) CreateCollection(ctx context.Context, id uuid.UUID, params CollectionParams) (Collection, error) {
	if id == uuid.Nil {
		return Collection{}, errors.New("collection id is required")
	}
	if err := validateSluggedName(params.Name, params.Slug); err != nil {
		return Collection{}, err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO collections (id, name, slug, description, cover_image_url, sort_order, is_featured)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+collectionColumns,
		id, strings.TrimSpace(params.Name), params.Slug, params.Description, params.CoverImageURL, params.SortOrder, params.IsFeatured,
	)

	collection, err := scanCollection(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Collection{}, ErrCollectionConflict
		}
		return Collection{}, fmt.Errorf("insert collection: %w", err)
	}
	return collection, nil
}

func (s *CollectionStore) UpdateCollection(ctx context.Context, id uuid.UUID, params CollectionParams) (Collection, error) {
	if err := validateSluggedName(params.Name, params.Slug); err != nil {
		return Collection{}, err
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE collections
		SET name = $2,
		    slug = $3,
		    description = $4,
		    cover_image_url = $5,
		    sort_order = $6,
		    is_featured = $7,
		    updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+collectionColumns,
		id, strings.TrimSpace(params.Name), params.Slug, params.Description, params.CoverImageURL, params.SortOrder, params.IsFeatured,
	)

	collection, err := scanCollection(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Collection{}, ErrCollectionNotFound
		}
		if isUniqueViolation(err) {
			return Collection{}, ErrCollectionConflict
		}
		return Collection{}, fmt.Errorf("update collection: %w", err)
	}
	return collection, nil
}

func (s *CollectionStore) GetCollection(ctx context.Context, id uuid.UUID) (Collection, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+collectionColumns+` FROM collections WHERE id = $1 AND deleted_at IS NULL`, id)
	collection, err := scanCollection(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Collection{}, ErrCollectionNotFound
		}
		return Collection{}, fmt.Errorf("get collection: %w", err)
	}
	return collection, nil
}

func (s *CollectionStore) GetCollectionBySlug(ctx context.Context, slug string) (Collection, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+collectionColumns+` FROM collections WHERE slug = $1 AND deleted_at IS NULL`, slug)
	collection, err := scanCollection(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Collection{}, ErrCollectionNotFound
		}
		return Collection{}, fmt.Errorf("get collection by slug: %w", err)
	}
	return collection, nil
}

// ListCollections orders by sort_order then name.
func (s *CollectionStore) ListCollections(ctx context.Context, includeDeleted bool) ([]Collection, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+collectionColumns+`
		FROM collections
		WHERE ($1::bool = TRUE OR deleted_at IS NULL)
		ORDER BY sort_order ASC, name ASC
	`, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	collections := make([]Collection, 0)
	for rows.Next() {
		collection, scanErr := scanCollection(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan collection: %w", scanErr)
		}
		collections = append(collections, collection)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return collections, nil
}

func (s *CollectionStore) SoftDeleteCollection(ctx context.Context, id uuid.UUID, deletedAt time.Time) error {
	if deletedAt.IsZero() {
		deletedAt = time.Now().UTC()
	}

	result, err := s.pool.Exec(ctx, `
		UPDATE collections
		SET deleted_at = $2,
		    updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`, id, deletedAt)
	if err != nil {
		return fmt.Errorf("soft delete collection: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrCollectionNotFound
	}
	return nil
}

// CollectionSlugExists reports whether a live collection other than excludeID holds slug.
func (s *CollectionStore) CollectionSlugExists(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error) {
	return slugExists(ctx, s.pool, CollectionsTable, slug, excludeID)
}

func scanCollection(scanner rowScanner) (Collection, error) {
	var (
		c             Collection
		description   pgtype.Text
		coverImageURL pgtype.Text
		deletedAt     pgtype.Timestamptz
	)

	if err := scanner.Scan(&c.ID, &c.Name, &c.Slug, &description, &coverImageURL, &c.SortOrder, &c.IsFeatured, &c.CreatedAt, &c.UpdatedAt, &deletedAt); err != nil {
		return Collection{}, err
	}

	c.Description = textPtr(description)
	c.CoverImageURL = textPtr(coverImageURL)
	c.DeletedAt = timePtr(deletedAt)
	return c, nil
}
