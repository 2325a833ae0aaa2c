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

// Admin is a back-office user allowed to edit content.
type Admin struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

var (
	ErrAdminNotFound = errors.New("admin not found")
	// ErrAdminConflict indicates the email is already registered.
	ErrAdminConflict = errors.New("admin conflict")
)

type CreateAdminParams struct {
	Email        string
	Name         string
	PasswordHash string
}

type AdminStore struct {
	pool *pgxpool.Pool
}

func NewAdminStore(ctx context.Context, pool *pgxpool.Pool) (*AdminStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &AdminStore{pool: pool}, nil
}

const adminColumns = `id, email, name, password_hash, created_at, updated_at, last_login_at`

func (s *AdminStore) CreateAdmin(ctx context.Context, id uuid.UUID, params CreateAdminParams) (Admin, error) {
	if id == uuid.Nil {
		return Admin{}, errors.New("admin id is required")
	}
	if params.PasswordHash == "" {
		return Admin{}, errors.New("password hash is required")
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO admins (id, email, name, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING `+adminColumns,
		id, strings.TrimSpace(params.Email), strings.TrimSpace(params.Name), params.PasswordHash,
	)

	admin, err := scanAdmin(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Admin{}, ErrAdminConflict
		}
		return Admin{}, fmt.Errorf("insert admin: %w", err)
	}
	return admin, nil
}

func (s *AdminStore) GetAdmin(ctx context.Context, id uuid.UUID) (Admin, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE id = $1`, id)
	admin, err := scanAdmin(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Admin{}, ErrAdminNotFound
		}
		return Admin{}, fmt.Errorf("get admin: %w", err)
	}
	return admin, nil
}

// GetAdminByEmail matches email case-insensitively.
func (s *AdminStore) GetAdminByEmail(ctx context.Context, email string) (Admin, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE LOWER(email) = LOWER($1)`, strings.TrimSpace(email))
	admin, err := scanAdmin(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Admin{}, ErrAdminNotFound
		}
		return Admin{}, fmt.Errorf("get admin by email: %w", err)
	}
	return admin, nil
}

func (s *AdminStore) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE admins SET last_login_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch admin last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAdminNotFound
	}
	return nil
}

func scanAdmin(scanner rowScanner) (Admin, error) {
	var (
		a           Admin
		lastLoginAt pgtype.Timestamptz
	)
	if err := scanner.Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt, &lastLoginAt); err != nil {
		return Admin{}, err
	}
	a.LastLoginAt = timePtr(lastLoginAt)
	return a, nil
}
