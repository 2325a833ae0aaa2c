package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const PostsTable = "posts"

const (
	PostStatusDraft     = "draft"
	PostStatusPublished = "published"
)

// Post is a blog article. Content is an ordered list of typed blocks stored as JSON.
type Post struct {
	ID            uuid.UUID       `json:"id"`
	Title         string          `json:"title"`
	Slug          string          `json:"slug"`
	Excerpt       *string         `json:"excerpt,omitempty"`
	CoverImageURL *string         `json:"coverImageUrl,omitempty"`
	Content       json.RawMessage `json:"content"`
	Tags          []string        `json:"tags"`
	Status        string          `json:"status"`
	PublishedAt   *time.Time      `json:"publishedAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	DeletedAt     *time.Time      `json:"deletedAt,omitempty"`
}

var (
	ErrPostNotFound = errors.New("post not found")
	// ErrPostConflict indicates another live post already holds the slug.
	ErrPostConflict = errors.New("post conflict")
)

// PostParams holds every writable column. Slug and PublishedAt are decided by the caller.
type PostParams struct {
	Title         string
	Slug          string
	Excerpt       *string
	CoverImageURL *string
	Content       json.RawMessage
	Tags          []string
	Status        string
	PublishedAt   *time.Time
}

type ListPostsParams struct {
	Status   *string
	Tag      *string
	Page     int
	PageSize int
}

type PostStore struct {
	pool      *pgxpool.Pool
	documents *DocumentValidator
}

func NewPostStore(ctx context.Context, pool *pgxpool.Pool, documents *DocumentValidator) (*PostStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if documents == nil {
		return nil, errors.New("document validator is required")
	}
	return &PostStore{pool: pool, documents: documents}, nil
}

const postColumns = `id, title, slug, excerpt, cover_image_url, content, tags, status, published_at, created_at, updated_at, deleted_at`

func (s *PostStore) CreatePost(ctx context.Context, id uuid.UUID, params PostParams) (Post, error) {
	if id == uuid.Nil {
		return Post{}, errors.New("post id is required")
	}
	content, err := s.prepare(params)
	if err != nil {
		return Post{}, err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO posts (id, title, slug, excerpt, cover_image_url, content, tags, status, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+postColumns,
		id, strings.TrimSpace(params.Title), params.Slug, params.Excerpt, params.CoverImageURL,
		content, nonNilStrings(params.Tags), params.Status, params.PublishedAt,
	)

	post, err := scanPost(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Post{}, ErrPostConflict
		}
		return Post{}, fmt.Errorf("insert post: %w", err)
	}
	return post, nil
}

func (s *PostStore) UpdatePost(ctx context.Context, id uuid.UUID, params PostParams) (Post, error) {
	content, err := s.prepare(params)
	if err != nil {
		return Post{}, err
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE posts
		SET title = $2,
		    slug = $3,
		    excerpt = $4,
		    cover_image_url = $5,
		    content = $6,
		    tags = $7,
		    status = $8,
		    published_at = $9,
		    updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+postColumns,
		id, strings.TrimSpace(params.Title), params.Slug, params.Excerpt, params.CoverImageURL,
		content, nonNilStrings(params.Tags), params.Status, params.PublishedAt,
	)

	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Post{}, ErrPostNotFound
		}
		if isUniqueViolation(err) {
			return Post{}, ErrPostConflict
		}
		return Post{}, fmt.Errorf("update post: %w", err)
	}
	return post, nil
}

func (s *PostStore) GetPost(ctx context.Context, id uuid.UUID) (Post, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1 AND deleted_at IS NULL`, id)
	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Post{}, ErrPostNotFound
		}
		return Post{}, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

func (s *PostStore) GetPostBySlug(ctx context.Context, slug string) (Post, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE slug = $1 AND deleted_at IS NULL`, slug)
	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Post{}, ErrPostNotFound
		}
		return Post{}, fmt.Errorf("get post by slug: %w", err)
	}
	return post, nil
}

// ListPosts returns live posts, newest publication first; drafts sort after published posts.
func (s *PostStore) ListPosts(ctx context.Context, params ListPostsParams) (PageResult[Post], error) {
	page, pageSize := NormalizePage(params.Page, params.PageSize)

	whereParts := []string{"deleted_at IS NULL"}
	var args []any
	if params.Status != nil {
		args = append(args, *params.Status)
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}
	if params.Tag != nil && strings.TrimSpace(*params.Tag) != "" {
		args = append(args, strings.TrimSpace(*params.Tag))
		whereParts = append(whereParts, fmt.Sprintf("$%d = ANY(tags)", len(args)))
	}
	whereSQL := strings.Join(whereParts, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM posts WHERE "+whereSQL, args...).Scan(&total); err != nil {
		return PageResult[Post]{}, fmt.Errorf("count posts: %w", err)
	}

	result := PageResult[Post]{Items: []Post{}, TotalItems: total, Page: page, PageSize: pageSize}
	if total == 0 {
		return result, nil
	}

	dataArgs := append([]any{}, args...)
	dataArgs = append(dataArgs, pageSize, (page-1)*pageSize)

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM posts
		WHERE %s
		ORDER BY published_at DESC NULLS LAST, created_at DESC
		LIMIT $%d OFFSET $%d
	`, postColumns, whereSQL, len(dataArgs)-1, len(dataArgs)), dataArgs...)
	if err != nil {
		return PageResult[Post]{}, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		post, scanErr := scanPost(rows)
		if scanErr != nil {
			return PageResult[Post]{}, fmt.Errorf("scan post: %w", scanErr)
		}
		result.Items = append(result.Items, post)
	}
	if err = rows.Err(); err != nil {
		return PageResult[Post]{}, fmt.Errorf("iterate posts: %w", err)
	}
	return result, nil
}

func (s *PostStore) SoftDeletePost(ctx context.Context, id uuid.UUID, deletedAt time.Time) error {
	if deletedAt.IsZero() {
		deletedAt = time.Now().UTC()
	}

	result, err := s.pool.Exec(ctx, `
		UPDATE posts
		SET deleted_at = $2,
		    updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`, id, deletedAt)
	if err != nil {
		return fmt.Errorf("soft delete post: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrPostNotFound
	}
	return nil
}

// PostSlugExists reports whether a live post other than excludeID holds slug.
func (s *PostStore) PostSlugExists(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error) {
	return slugExists(ctx, s.pool, PostsTable, slug, excludeID)
}

func (s *PostStore) prepare(params PostParams) ([]byte, error) {
	if err := validateSluggedName(params.Title, params.Slug); err != nil {
		return nil, err
	}
	if params.Status != PostStatusDraft && params.Status != PostStatusPublished {
		return nil, fmt.Errorf("invalid post status %q", params.Status)
	}
	content := []byte(params.Content)
	if len(content) == 0 {
		content = []byte(`[]`)
	}
	if err := s.documents.Validate(DocumentPostContent, content); err != nil {
		return nil, err
	}
	return content, nil
}

func scanPost(scanner rowScanner) (Post, error) {
	var (
		p             Post
		excerpt       pgtype.Text
		coverImageURL pgtype.Text
		content       []byte
		publishedAt   pgtype.Timestamptz
		deletedAt     pgtype.Timestamptz
	)

	if err := scanner.Scan(
		&p.ID, &p.Title, &p.Slug, &excerpt, &coverImageURL, &content, &p.Tags, &p.Status,
		&publishedAt, &p.CreatedAt, &p.UpdatedAt, &deletedAt,
	); err != nil {
		return Post{}, err
	}

	p.Excerpt = textPtr(excerpt)
	p.CoverImageURL = textPtr(coverImageURL)
	p.Content = json.RawMessage(content)
	p.PublishedAt = timePtr(publishedAt)
	p.DeletedAt = timePtr(deletedAt)
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return p, nil
}
