package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Media is an uploaded file kept in blob storage.
type Media struct {
	ID          uuid.UUID `json:"id"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	ObjectKey   string    `json:"objectKey"`
	URL         string    `json:"url"`
	Alt         *string   `json:"alt,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

var (
	ErrMediaNotFound = errors.New("media not found")
	ErrMediaConflict = errors.New("media conflict")
)

type CreateMediaParams struct {
	FileName    string
	ContentType string
	SizeBytes   int64
	ObjectKey   string
	URL         string
	Alt         *string
}

type MediaStore struct {
	pool *pgxpool.Pool
}

func NewMediaStore(ctx context.Context, pool *pgxpool.Pool) (*MediaStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &MediaStore{pool: pool}, nil
}

const mediaColumns = `id, file_name, content_type, size_bytes, object_key, url, alt, created_at`

func (s *MediaStore) CreateMedia(ctx context.Context, id uuid.UUID, params CreateMediaParams) (Media, error) {
	if id == uuid.Nil {
		return Media{}, errors.New("media id is required")
	}
	if params.ObjectKey == "" {
		return Media{}, errors.New("object key is required")
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO media (id, file_name, content_type, size_bytes, object_key, url, alt)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+mediaColumns,
		id, params.FileName, params.ContentType, params.SizeBytes, params.ObjectKey, params.URL, params.Alt,
	)

	media, err := scanMedia(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Media{}, ErrMediaConflict
		}
		return Media{}, fmt.Errorf("insert media: %w", err)
	}
	return media, nil
}

func (s *MediaStore) GetMedia(ctx context.Context, id uuid.UUID) (Media, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+mediaColumns+` FROM media WHERE id = $1`, id)
	media, err := scanMedia(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Media{}, ErrMediaNotFound
		}
		return Media{}, fmt.Errorf("get media: %w", err)
	}
	return media, nil
}

// ListMedia returns uploads newest first.
func (s *MediaStore) ListMedia(ctx context.Context, page, pageSize int) (PageResult[Media], error) {
	page, pageSize = NormalizePage(page, pageSize)

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM media`).Scan(&total); err != nil {
		return PageResult[Media]{}, fmt.Errorf("count media: %w", err)
	}

	result := PageResult[Media]{Items: []Media{}, TotalItems: total, Page: page, PageSize: pageSize}
	if total == 0 {
		return result, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+mediaColumns+`
		FROM media
		ORDER BY created_at DESC, id ASC
		LIMIT $1 OFFSET $2
	`, pageSize, (page-1)*pageSize)
	if err != nil {
		return PageResult[Media]{}, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		media, scanErr := scanMedia(rows)
		if scanErr != nil {
			return PageResult[Media]{}, fmt.Errorf("scan media: %w", scanErr)
		}
		result.Items = append(result.Items, media)
	}
	if err = rows.Err(); err != nil {
		return PageResult[Media]{}, fmt.Errorf("iterate media: %w", err)
	}
	return result, nil
}

func (s *MediaStore) DeleteMedia(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM media WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMediaNotFound
	}
	return nil
}

func scanMedia(scanner rowScanner) (Media, error) {
	var (
		m   Media
		alt pgtype.Text
	)
	if err := scanner.Scan(&m.ID, &m.FileName, &m.ContentType, &m.SizeBytes, &m.ObjectKey, &m.URL, &alt, &m.CreatedAt); err != nil {
		return Media{}, err
	}
	m.Alt = textPtr(alt)
	return m, nil
}
