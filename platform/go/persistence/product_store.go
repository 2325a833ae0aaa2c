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

const ProductsTable = "products"

// Product is a stone product, usually a slab or tile line, optionally inside a collection.
type Product struct {
	ID             uuid.UUID       `json:"id"`
	CollectionID   *uuid.UUID      `json:"collectionId,omitempty"`
	Name           string          `json:"name"`
	Slug           string          `json:"slug"`
	Description    *string         `json:"description,omitempty"`
	Origin         *string         `json:"origin,omitempty"`
	Finish         *string         `json:"finish,omitempty"`
	Color          *string         `json:"color,omitempty"`
	Thickness      *string         `json:"thickness,omitempty"`
	Specifications json.RawMessage `json:"specifications"`
	Images         []string        `json:"images"`
	IsFeatured     bool            `json:"isFeatured"`
	IsPublished    bool            `json:"isPublished"`
	Price          *string         `json:"price,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	DeletedAt      *time.Time      `json:"deletedAt,omitempty"`
}

var (
	ErrProductNotFound = errors.New("product not found")
	// ErrProductConflict indicates another live product already holds the slug.
	ErrProductConflict = errors.New("product conflict")
	// ErrUnknownCollection is returned when a product references a missing or deleted collection.
	ErrUnknownCollection = errors.New("unknown collection")
)

// ProductParams holds every writable column. Slug must already be resolved by the caller.
type ProductParams struct {
	CollectionID   *uuid.UUID
	Name           string
	Slug           string
	Description    *string
	Origin         *string
	Finish         *string
	Color          *string
	Thickness      *string
	Specifications json.RawMessage
	Images         []string
	IsFeatured     bool
	IsPublished    bool
	Price          *string
}

// ListProductsParams captures filters and pagination for ListProducts.
type ListProductsParams struct {
	CollectionID  *uuid.UUID
	Featured      *bool
	PublishedOnly bool
	Search        *string
	Page          int
	PageSize      int
}

type ProductStore struct {
	pool      *pgxpool.Pool
	documents *DocumentValidator
}

func NewProductStore(ctx context.Context, pool *pgxpool.Pool, documents *DocumentValidator) (*ProductStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if documents == nil {
		return nil, errors.New("document validator is required")
	}
	return &ProductStore{pool: pool, documents: documents}, nil
}

const productColumns = `id, collection_id, name, slug, description, origin, finish, color, thickness, specifications, images, is_featured, is_published, price::text, created_at, updated_at, deleted_at`

func (s *ProductStore) CreateProduct(ctx context.Context, id uuid.UUID, params ProductParams) (Product, error) {
	if id == uuid.Nil {
		return Product{}, errors.New("product id is required")
	}
	specs, err := s.prepare(params)
	if err != nil {
		return Product{}, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Product{}, fmt.Errorf("begin product tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := ensureLiveCollection(ctx, tx, params.CollectionID); err != nil {
		return Product{}, err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO products (
			id, collection_id, name, slug, description, origin, finish, color, thickness,
			specifications, images, is_featured, is_published, price
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14::text::numeric)
		RETURNING `+productColumns,
		id, params.CollectionID, strings.TrimSpace(params.Name), params.Slug, params.Description, params.Origin,
		params.Finish, params.Color, params.Thickness, specs, nonNilStrings(params.Images),
		params.IsFeatured, params.IsPublished, params.Price,
	)

	product, err := scanProduct(row)
	if err != nil {
		return Product{}, mapProductWriteError(err, "insert product")
	}

	if err = tx.Commit(ctx); err != nil {
		return Product{}, fmt.Errorf("commit product tx: %w", err)
	}
	return product, nil
}

func (s *ProductStore) UpdateProduct(ctx context.Context, id uuid.UUID, params ProductParams) (Product, error) {
	specs, err := s.prepare(params)
	if err != nil {
		return Product{}, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Product{}, fmt.Errorf("begin update product tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := ensureLiveCollection(ctx, tx, params.CollectionID); err != nil {
		return Product{}, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE products
		SET collection_id = $2,
		    name = $3,
		    slug = $4,
		    description = $5,
		    origin = $6,
		    finish = $7,
		    color = $8,
		    thickness = $9,
		    specifications = $10,
		    images = $11,
		    is_featured = $12,
		    is_published = $13,
		    price = $14::text::numeric,
		    updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+productColumns,
		id, params.CollectionID, strings.TrimSpace(params.Name), params.Slug, params.Description, params.Origin,
		params.Finish, params.Color, params.Thickness, specs, nonNilStrings(params.Images),
		params.IsFeatured, params.IsPublished, params.Price,
	)

	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, mapProductWriteError(err, "update product")
	}

	if err = tx.Commit(ctx); err != nil {
		return Product{}, fmt.Errorf("commit update product tx: %w", err)
	}
	return product, nil
}

func (s *ProductStore) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 AND deleted_at IS NULL`, id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}

func (s *ProductStore) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE slug = $1 AND deleted_at IS NULL`, slug)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, fmt.Errorf("get product by slug: %w", err)
	}
	return product, nil
}

// ListProducts returns live products matching the filters, featured first then by name.
func (s *ProductStore) ListProducts(ctx context.Context, params ListProductsParams) (PageResult[Product], error) {
	page, pageSize := NormalizePage(params.Page, params.PageSize)

	whereParts := []string{"deleted_at IS NULL"}
	var args []any

	if params.CollectionID != nil {
		args = append(args, *params.CollectionID)
		whereParts = append(whereParts, fmt.Sprintf("collection_id = $%d", len(args)))
	}
	if params.Featured != nil {
		args = append(args, *params.Featured)
		whereParts = append(whereParts, fmt.Sprintf("is_featured = $%d", len(args)))
	}
	if params.PublishedOnly {
		whereParts = append(whereParts, "is_published = TRUE")
	}
	if params.Search != nil && strings.TrimSpace(*params.Search) != "" {
		args = append(args, "%"+escapeLike(strings.ToLower(strings.TrimSpace(*params.Search)))+"%")
		n := len(args)
		whereParts = append(whereParts, fmt.Sprintf(
			"(LOWER(name) LIKE $%d OR LOWER(COALESCE(description, '')) LIKE $%d OR LOWER(COALESCE(origin, '')) LIKE $%d OR LOWER(COALESCE(color, '')) LIKE $%d)",
			n, n, n, n))
	}

	whereSQL := strings.Join(whereParts, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM products WHERE "+whereSQL, args...).Scan(&total); err != nil {
		return PageResult[Product]{}, fmt.Errorf("count products: %w", err)
	}

	result := PageResult[Product]{Items: []Product{}, TotalItems: total, Page: page, PageSize: pageSize}
	if total == 0 {
		return result, nil
	}

	dataArgs := append([]any{}, args...)
	dataArgs = append(dataArgs, pageSize, (page-1)*pageSize)

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM products
		WHERE %s
		ORDER BY is_featured DESC, name ASC, id ASC
		LIMIT $%d OFFSET $%d
	`, productColumns, whereSQL, len(dataArgs)-1, len(dataArgs)), dataArgs...)
	if err != nil {
		return PageResult[Product]{}, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		product, scanErr := scanProduct(rows)
		if scanErr != nil {
			return PageResult[Product]{}, fmt.Errorf("scan product: %w", scanErr)
		}
		result.Items = append(result.Items, product)
	}
	if err = rows.Err(); err != nil {
		return PageResult[Product]{}, fmt.Errorf("iterate products: %w", err)
	}
	return result, nil
}

func (s *ProductStore) SoftDeleteProduct(ctx context.Context, id uuid.UUID, deletedAt time.Time) error {
	if deletedAt.IsZero() {
		deletedAt = time.Now().UTC()
	}

	result, err := s.pool.Exec(ctx, `
		UPDATE products
		SET deleted_at = $2,
		    updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`, id, deletedAt)
	if err != nil {
		return fmt.Errorf("soft delete product: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// ProductSlugExists reports whether a live product other than excludeID holds slug.
func (s *ProductStore) ProductSlugExists(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error) {
	return slugExists(ctx, s.pool, ProductsTable, slug, excludeID)
}

// ProductsExist returns the subset of ids that belong to live products.
func (s *ProductStore) ProductsExist(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	found := make(map[uuid.UUID]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id::text FROM products
		WHERE id = ANY($1::text[]::uuid[]) AND deleted_at IS NULL
	`, uuidStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("check products exist: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan product id: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse product id: %w", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product ids: %w", err)
	}
	return found, nil
}

func (s *ProductStore) prepare(params ProductParams) ([]byte, error) {
	if err := validateSluggedName(params.Name, params.Slug); err != nil {
		return nil, err
	}
	specs := []byte(params.Specifications)
	if len(specs) == 0 {
		specs = []byte(`{}`)
	}
	if err := s.documents.Validate(DocumentProductSpecifications, specs); err != nil {
		return nil, err
	}
	return specs, nil
}

func ensureLiveCollection(ctx context.Context, tx pgx.Tx, collectionID *uuid.UUID) error {
	if collectionID == nil {
		return nil
	}
	var exists bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM collections WHERE id = $1 AND deleted_at IS NULL)
	`, *collectionID).Scan(&exists); err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		return ErrUnknownCollection
	}
	return nil
}

func mapProductWriteError(err error, op string) error {
	switch {
	case isUniqueViolation(err):
		return ErrProductConflict
	case isForeignKeyViolation(err):
		return ErrUnknownCollection
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func scanProduct(scanner rowScanner) (Product, error) {
	var (
		p            Product
		collectionID pgtype.UUID
		description  pgtype.Text
		origin       pgtype.Text
		finish       pgtype.Text
		color        pgtype.Text
		thickness    pgtype.Text
		specs        []byte
		price        pgtype.Text
		deletedAt    pgtype.Timestamptz
	)

	if err := scanner.Scan(
		&p.ID, &collectionID, &p.Name, &p.Slug, &description, &origin, &finish, &color, &thickness,
		&specs, &p.Images, &p.IsFeatured, &p.IsPublished, &price, &p.CreatedAt, &p.UpdatedAt, &deletedAt,
	); err != nil {
		return Product{}, err
	}

	p.CollectionID = uuidPtr(collectionID)
	p.Description = textPtr(description)
	p.Origin = textPtr(origin)
	p.Finish = textPtr(finish)
	p.Color = textPtr(color)
	p.Thickness = textPtr(thickness)
	p.Specifications = json.RawMessage(specs)
	p.Price = textPtr(price)
	p.DeletedAt = timePtr(deletedAt)
	if p.Images == nil {
		p.Images = []string{}
	}
	return p, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
