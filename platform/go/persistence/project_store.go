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

const ProjectsTable = "projects"

// Project is a completed installation showcased on the site.
type Project struct {
	ID          uuid.UUID   `json:"id"`
	Title       string      `json:"title"`
	Slug        string      `json:"slug"`
	Summary     *string     `json:"summary,omitempty"`
	Location    *string     `json:"location,omitempty"`
	Client      *string     `json:"client,omitempty"`
	CompletedOn *time.Time  `json:"completedOn,omitempty"`
	Images      []string    `json:"images"`
	ProductIDs  []uuid.UUID `json:"productIds"`
	IsFeatured  bool        `json:"isFeatured"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	DeletedAt   *time.Time  `json:"deletedAt,omitempty"`
}

var (
	ErrProjectNotFound = errors.New("project not found")
	// ErrProjectConflict indicates another live project already holds the slug.
	ErrProjectConflict = errors.New("project conflict")
)

// ProjectParams holds every writable column. Slug must already be resolved by the caller.
type ProjectParams struct {
	Title       string
	Slug        string
	Summary     *string
	Location    *string
	Client      *string
	CompletedOn *time.Time
	Images      []string
	ProductIDs  []uuid.UUID
	IsFeatured  bool
}

type ListProjectsParams struct {
	Featured *bool
	Page     int
	PageSize int
}

type ProjectStore struct {
	pool *pgxpool.Pool
}

func NewProjectStore(ctx context.Context, pool *pgxpool.Pool) (*ProjectStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &ProjectStore{pool: pool}, nil
}

const projectColumns = `id, title, slug, summary, location, client, completed_on, images, product_ids::text[], is_featured, created_at, updated_at, deleted_at`

func (s *ProjectStore) CreateProject(ctx context.Context, id uuid.UUID, params ProjectParams) (Project, error) {
	if id == uuid.Nil {
		return Project{}, errors.New("project id is required")
	}
	if err := validateSluggedName(params.Title, params.Slug); err != nil {
		return Project{}, err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO projects (id, title, slug, summary, location, client, completed_on, images, product_ids, is_featured)
		VALUES ($1, $2, $3, $4, $5, $6, $7::date, $8, $9::text[]::uuid[], $10)
		RETURNING `+projectColumns,
		id, strings.TrimSpace(params.Title), params.Slug, params.Summary, params.Location, params.Client,
		params.CompletedOn, nonNilStrings(params.Images), uuidStrings(params.ProductIDs), params.IsFeatured,
	)

	project, err := scanProject(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Project{}, ErrProjectConflict
		}
		return Project{}, fmt.Errorf("insert project: %w", err)
	}
	return project, nil
}

func (s *ProjectStore) UpdateProject(ctx context.Context, id uuid.UUID, params ProjectParams) (Project, error) {
	if err := validateSluggedName(params.Title, params.Slug); err != nil {
		return Project{}, err
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE projects
		SET title = $2,
		    slug = $3,
		    summary = $4,
		    location = $5,
		    client = $6,
		    completed_on = $7::date,
		    images = $8,
		    product_ids = $9::text[]::uuid[],
		    is_featured = $10,
		    updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+projectColumns,
		id, strings.TrimSpace(params.Title), params.Slug, params.Summary, params.Location, params.Client,
		params.CompletedOn, nonNilStrings(params.Images), uuidStrings(params.ProductIDs), params.IsFeatured,
	)

	project, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, ErrProjectNotFound
		}
		if isUniqueViolation(err) {
			return Project{}, ErrProjectConflict
		}
		return Project{}, fmt.Errorf("update project: %w", err)
	}
	return project, nil
}

func (s *ProjectStore) GetProject(ctx context.Context, id uuid.UUID) (Project, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1 AND deleted_at IS NULL`, id)
	project, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, ErrProjectNotFound
		}
		return Project{}, fmt.Errorf("get project: %w", err)
	}
	return project, nil
}

func (s *ProjectStore) GetProjectBySlug(ctx context.Context, slug string) (Project, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE slug = $1 AND deleted_at IS NULL`, slug)
	project, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, ErrProjectNotFound
		}
		return Project{}, fmt.Errorf("get project by slug: %w", err)
	}
	return project, nil
}

// ListProjects returns live projects, most recently completed first.
func (s *ProjectStore) ListProjects(ctx context.Context, params ListProjectsParams) (PageResult[Project], error) {
	page, pageSize := NormalizePage(params.Page, params.PageSize)

	whereSQL := "deleted_at IS NULL"
	var args []any
	if params.Featured != nil {
		args = append(args, *params.Featured)
		whereSQL += fmt.Sprintf(" AND is_featured = $%d", len(args))
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM projects WHERE "+whereSQL, args...).Scan(&total); err != nil {
		return PageResult[Project]{}, fmt.Errorf("count projects: %w", err)
	}

	result := PageResult[Project]{Items: []Project{}, TotalItems: total, Page: page, PageSize: pageSize}
	if total == 0 {
		return result, nil
	}

	dataArgs := append([]any{}, args...)
	dataArgs = append(dataArgs, pageSize, (page-1)*pageSize)

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM projects
		WHERE %s
		ORDER BY completed_on DESC NULLS LAST, created_at DESC
		LIMIT $%d OFFSET $%d
	`, projectColumns, whereSQL, len(dataArgs)-1, len(dataArgs)), dataArgs...)
	if err != nil {
		return PageResult[Project]{}, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		project, scanErr := scanProject(rows)
		if scanErr != nil {
			return PageResult[Project]{}, fmt.Errorf("scan project: %w", scanErr)
		}
		result.Items = append(result.Items, project)
	}
	if err = rows.Err(); err != nil {
		return PageResult[Project]{}, fmt.Errorf("iterate projects: %w", err)
	}
	return result, nil
}

func (s *ProjectStore) SoftDeleteProject(ctx context.Context, id uuid.UUID, deletedAt time.Time) error {
	if deletedAt.IsZero() {
		deletedAt = time.Now().UTC()
	}

	result, err := s.pool.Exec(ctx, `
		UPDATE projects
		SET deleted_at = $2,
		    updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`, id, deletedAt)
	if err != nil {
		return fmt.Errorf("soft delete project: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// ProjectSlugExists reports whether a live project other than excludeID holds slug.
func (s *ProjectStore) ProjectSlugExists(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error) {
	return slugExists(ctx, s.pool, ProjectsTable, slug, excludeID)
}

func scanProject(scanner rowScanner) (Project, error) {
	var (
		p           Project
		summary     pgtype.Text
		location    pgtype.Text
		client      pgtype.Text
		completedOn pgtype.Date
		productIDs  []string
		deletedAt   pgtype.Timestamptz
	)

	if err := scanner.Scan(
		&p.ID, &p.Title, &p.Slug, &summary, &location, &client, &completedOn,
		&p.Images, &productIDs, &p.IsFeatured, &p.CreatedAt, &p.UpdatedAt, &deletedAt,
	); err != nil {
		return Project{}, err
	}

	ids, err := parseUUIDs(productIDs)
	if err != nil {
		return Project{}, err
	}

	p.Summary = textPtr(summary)
	p.Location = textPtr(location)
	p.Client = textPtr(client)
	if completedOn.Valid {
		day := completedOn.Time
		p.CompletedOn = &day
	}
	p.ProductIDs = ids
	p.DeletedAt = timePtr(deletedAt)
	if p.Images == nil {
		p.Images = []string{}
	}
	return p, nil
}
