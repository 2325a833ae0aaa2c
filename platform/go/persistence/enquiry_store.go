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

const (
	EnquiryStatusNew      = "new"
	EnquiryStatusRead     = "read"
	EnquiryStatusReplied  = "replied"
	EnquiryStatusArchived = "archived"
)

// Enquiry is a contact or quote request submitted from the public site.
type Enquiry struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     *string    `json:"phone,omitempty"`
	Company   *string    `json:"company,omitempty"`
	Subject   *string    `json:"subject,omitempty"`
	Message   string     `json:"message"`
	ProductID *uuid.UUID `json:"productId,omitempty"`
	Status    string     `json:"status"`
	ClientIP  *string    `json:"clientIp,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

var (
	ErrEnquiryNotFound = errors.New("enquiry not found")
	// ErrUnknownProduct is returned when an enquiry references a missing or deleted product.
	ErrUnknownProduct = errors.New("unknown product")
)

type CreateEnquiryParams struct {
	Name      string
	Email     string
	Phone     *string
	Company   *string
	Subject   *string
	Message   string
	ProductID *uuid.UUID
	ClientIP  *string
}

type ListEnquiriesParams struct {
	Status   *string
	Page     int
	PageSize int
}

type EnquiryStore struct {
	pool *pgxpool.Pool
}

func NewEnquiryStore(ctx context.Context, pool *pgxpool.Pool) (*EnquiryStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &EnquiryStore{pool: pool}, nil
}

const enquiryColumns = `id, name, email, phone, company, subject, message, product_id, status, client_ip, created_at, updated_at`

func (s *EnquiryStore) CreateEnquiry(ctx context.Context, id uuid.UUID, params CreateEnquiryParams) (Enquiry, error) {
	if id == uuid.Nil {
		return Enquiry{}, errors.New("enquiry id is required")
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Enquiry{}, fmt.Errorf("begin enquiry tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if params.ProductID != nil {
		var exists bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM products WHERE id = $1 AND deleted_at IS NULL)
		`, *params.ProductID).Scan(&exists); err != nil {
			return Enquiry{}, fmt.Errorf("check enquiry product: %w", err)
		}
		if !exists {
			return Enquiry{}, ErrUnknownProduct
		}
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO enquiries (id, name, email, phone, company, subject, message, product_id, status, client_ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+enquiryColumns,
		id, params.Name, params.Email, params.Phone, params.Company, params.Subject, params.Message,
		params.ProductID, EnquiryStatusNew, params.ClientIP,
	)

	enquiry, err := scanEnquiry(row)
	if err != nil {
		if isForeignKeyViolation(err) {
			return Enquiry{}, ErrUnknownProduct
		}
		return Enquiry{}, fmt.Errorf("insert enquiry: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return Enquiry{}, fmt.Errorf("commit enquiry tx: %w", err)
	}
	return enquiry, nil
}

func (s *EnquiryStore) GetEnquiry(ctx context.Context, id uuid.UUID) (Enquiry, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+enquiryColumns+` FROM enquiries WHERE id = $1`, id)
	enquiry, err := scanEnquiry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Enquiry{}, ErrEnquiryNotFound
		}
		return Enquiry{}, fmt.Errorf("get enquiry: %w", err)
	}
	return enquiry, nil
}

// ListEnquiries returns enquiries newest first.
func (s *EnquiryStore) ListEnquiries(ctx context.Context, params ListEnquiriesParams) (PageResult[Enquiry], error) {
	page, pageSize := NormalizePage(params.Page, params.PageSize)

	whereSQL := "TRUE"
	var args []any
	if params.Status != nil {
		args = append(args, *params.Status)
		whereSQL = fmt.Sprintf("status = $%d", len(args))
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM enquiries WHERE "+whereSQL, args...).Scan(&total); err != nil {
		return PageResult[Enquiry]{}, fmt.Errorf("count enquiries: %w", err)
	}

	result := PageResult[Enquiry]{Items: []Enquiry{}, TotalItems: total, Page: page, PageSize: pageSize}
	if total == 0 {
		return result, nil
	}

	dataArgs := append([]any{}, args...)
	dataArgs = append(dataArgs, pageSize, (page-1)*pageSize)

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM enquiries
		WHERE %s
		ORDER BY created_at DESC, id ASC
		LIMIT $%d OFFSET $%d
	`, enquiryColumns, whereSQL, len(dataArgs)-1, len(dataArgs)), dataArgs...)
	if err != nil {
		return PageResult[Enquiry]{}, fmt.Errorf("list enquiries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		enquiry, scanErr := scanEnquiry(rows)
		if scanErr != nil {
			return PageResult[Enquiry]{}, fmt.Errorf("scan enquiry: %w", scanErr)
		}
		result.Items = append(result.Items, enquiry)
	}
	if err = rows.Err(); err != nil {
		return PageResult[Enquiry]{}, fmt.Errorf("iterate enquiries: %w", err)
	}
	return result, nil
}

func (s *EnquiryStore) UpdateEnquiryStatus(ctx context.Context, id uuid.UUID, status string) (Enquiry, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE enquiries
		SET status = $2,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+enquiryColumns, id, status)

	enquiry, err := scanEnquiry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Enquiry{}, ErrEnquiryNotFound
		}
		return Enquiry{}, fmt.Errorf("update enquiry status: %w", err)
	}
	return enquiry, nil
}

func (s *EnquiryStore) DeleteEnquiry(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM enquiries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete enquiry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEnquiryNotFound
	}
	return nil
}

func scanEnquiry(scanner rowScanner) (Enquiry, error) {
	var (
		e         Enquiry
		phone     pgtype.Text
		company   pgtype.Text
		subject   pgtype.Text
		productID pgtype.UUID
		clientIP  pgtype.Text
	)

	if err := scanner.Scan(
		&e.ID, &e.Name, &e.Email, &phone, &company, &subject, &e.Message, &productID,
		&e.Status, &clientIP, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return Enquiry{}, err
	}

	e.Phone = textPtr(phone)
	e.Company = textPtr(company)
	e.Subject = textPtr(subject)
	e.ProductID = uuidPtr(productID)
	e.ClientIP = textPtr(clientIP)
	return e, nil
}
