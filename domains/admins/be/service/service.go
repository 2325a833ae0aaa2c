package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainrepo "github.com/marmoreal/stonecms/domains/admins/be/repo"
	platformauth "github.com/marmoreal/stonecms/platform/go/auth"
	"github.com/marmoreal/stonecms/platform/go/persistence"
	"github.com/marmoreal/stonecms/platform/go/requesttrace"
)

const (
	maxNameLength     = 120
	maxPasswordLength = 72
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// ValidationError captures input validation problems surfaced by the service.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// Domain-level error sentinel values.
var (
	ErrNotFound        = errors.New("admin not found")
	ErrConflict        = errors.New("admin already exists")
	ErrUnauthenticated = errors.New("not authenticated")
)

// ErrInvalidCredentials never says whether the email or the password was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrLoginDisabled is returned when tokens are issued by an external provider.
var ErrLoginDisabled = errors.New("password login is disabled")

// Admin is a back-office account.
type Admin struct {
	ID          uuid.UUID
	Email       string
	Name        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time
}

// Session is a signed token for an admin.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Admin     Admin
}

// CreateInput defines a new admin account.
type CreateInput struct {
	Email    string
	Name     string
	Password string
}

// Issuer signs session tokens.
type Issuer interface {
	Issue(subject platformauth.Subject) (platformauth.IssuedToken, error)
}

// Service exposes admin authentication.
type Service interface {
	Login(ctx context.Context, audit requesttrace.AuditInfo, email, password string) (Session, error)
	Me(ctx context.Context, audit requesttrace.AuditInfo) (Admin, error)
	Create(ctx context.Context, audit requesttrace.AuditInfo, input CreateInput) (Admin, error)
	// IssueFor mints a token for an existing admin without a password, for operator tooling.
	IssueFor(ctx context.Context, audit requesttrace.AuditInfo, email string) (Session, error)
}

// Config wires the token issuer. A nil Issuer disables Login and IssueFor.
type Config struct {
	Issuer Issuer
	Logger *zap.Logger
}

type service struct {
	repo   domainrepo.Repository
	issuer Issuer
	logger *zap.Logger
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// New builds an admins Service backed by the provided repository.
func New(repo domainrepo.Repository, cfg Config) Service {
	if repo == nil {
		panic("admins repository is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{repo: repo, issuer: cfg.Issuer, logger: logger, now: time.Now}
}

// Login checks the password and issues a session token. Unknown emails still pay for one bcrypt
// comparison so response times do not reveal which accounts exist.
func (s *service) Login(ctx context.Context, audit requesttrace.AuditInfo, email, password string) (Session, error) {
	if s.issuer == nil {
		return Session{}, ErrLoginDisabled
	}
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}

	admin, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, persistence.ErrAdminNotFound) {
			return Session{}, err
		}
		_ = platformauth.ComparePassword(s.dummy(), password)
		s.logger.Info("login rejected", zap.String("reason", "unknown email"), zap.String("client_ip", audit.ClientIP))
		return Session{}, ErrInvalidCredentials
	}

	if err := platformauth.ComparePassword(admin.PasswordHash, password); err != nil {
		if errors.Is(err, platformauth.ErrPasswordMismatch) {
			s.logger.Info("login rejected", zap.String("reason", "password mismatch"), zap.String("client_ip", audit.ClientIP))
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}

	now := s.now().UTC()
	if err := s.repo.TouchLastLogin(ctx, admin.ID, now); err != nil {
		s.logger.Warn("record last login", zap.String("admin_id", admin.ID.String()), zap.Error(err))
	} else {
		admin.LastLoginAt = &now
	}

	return s.issue(admin)
}

func (s *service) Me(ctx context.Context, audit requesttrace.AuditInfo) (Admin, error) {
	if audit.ActorKind != requesttrace.ActorKindAdmin || audit.ActorID == nil {
		return Admin{}, ErrUnauthenticated
	}
	id, err := uuid.Parse(*audit.ActorID)
	if err != nil {
		return Admin{}, ErrNotFound
	}

	admin, err := s.repo.Get(ctx, id)
	if err != nil {
		return Admin{}, mapError(err)
	}
	return mapAdmin(admin), nil
}

func (s *service) Create(ctx context.Context, audit requesttrace.AuditInfo, input CreateInput) (Admin, error) {
	email := strings.TrimSpace(input.Email)
	name := strings.TrimSpace(input.Name)

	errs := FieldErrors{}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		errs.add("email", "email must be a valid address")
	}
	switch {
	case name == "":
		errs.add("name", "name is required")
	case len(name) > maxNameLength:
		errs.add("name", "name must be at most 120 characters")
	}
	switch {
	case len(input.Password) < platformauth.MinPasswordLength:
		errs.add("password", fmt.Sprintf("password must be at least %d characters", platformauth.MinPasswordLength))
	case len(input.Password) > maxPasswordLength:
		errs.add("password", "password must be at most 72 bytes")
	}
	if len(errs) > 0 {
		return Admin{}, &ValidationError{Fields: errs}
	}

	hash, err := platformauth.HashPassword(input.Password)
	if err != nil {
		return Admin{}, err
	}

	admin, err := s.repo.Create(ctx, uuid.New(), persistence.CreateAdminParams{Email: email, Name: name, PasswordHash: hash})
	if err != nil {
		return Admin{}, mapError(err)
	}

	s.logger.Info("admin created", zap.String("admin_id", admin.ID.String()), zap.String("actor", audit.Actor()))
	return mapAdmin(admin), nil
}

func (s *service) IssueFor(ctx context.Context, audit requesttrace.AuditInfo, email string) (Session, error) {
	if s.issuer == nil {
		return Session{}, ErrLoginDisabled
	}
	admin, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return Session{}, mapError(err)
	}
	s.logger.Info("token issued without login", zap.String("admin_id", admin.ID.String()), zap.String("actor", audit.Actor()))
	return s.issue(admin)
}

func (s *service) issue(admin persistence.Admin) (Session, error) {
	token, err := s.issuer.Issue(platformauth.Subject{
		ID:      admin.ID.String(),
		Email:   admin.Email,
		Name:    admin.Name,
		IsAdmin: true,
	})
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{Token: token.Token, ExpiresAt: token.ExpiresAt, Admin: mapAdmin(admin)}, nil
}

// dummy returns a hash that no real password matches, computed on first use.
func (s *service) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := platformauth.HashPassword(uuid.NewString())
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

func mapError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrAdminNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrAdminConflict):
		return ErrConflict
	default:
		return err
	}
}

func mapAdmin(admin persistence.Admin) Admin {
	return Admin{
		ID:          admin.ID,
		Email:       admin.Email,
		Name:        admin.Name,
		CreatedAt:   admin.CreatedAt,
		UpdatedAt:   admin.UpdatedAt,
		LastLoginAt: admin.LastLoginAt,
	}
}

func (f FieldErrors) add(field, message string) {
	f[field] = append(f[field], message)
}
