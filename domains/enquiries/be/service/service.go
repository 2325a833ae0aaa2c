package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainrepo "github.com/marmoreal/stonecms/domains/enquiries/be/repo"
	"github.com/marmoreal/stonecms/platform/go/persistence"
	"github.com/marmoreal/stonecms/platform/go/requesttrace"
)

const (
	maxNameLength    = 120
	maxEmailLength   = 254
	maxPhoneLength   = 40
	maxTextLength    = 160
	maxMessageLength = 5000
)

// Enquiry statuses.
const (
	StatusNew      = persistence.EnquiryStatusNew
	StatusRead     = persistence.EnquiryStatusRead
	StatusReplied  = persistence.EnquiryStatusReplied
	StatusArchived = persistence.EnquiryStatusArchived
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

// ErrNotFound is returned when an enquiry does not exist.
var ErrNotFound = errors.New("enquiry not found")

// Enquiry is a contact or quote request.
type Enquiry struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Phone     *string
	Company   *string
	Subject   *string
	Message   string
	ProductID *uuid.UUID
	Status    string
	ClientIP  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SubmitInput is the public enquiry form.
type SubmitInput struct {
	Name      string
	Email     string
	Phone     *string
	Company   *string
	Subject   *string
	Message   string
	ProductID *uuid.UUID
}

// ListOptions filters and paginates the enquiry inbox.
type ListOptions struct {
	Status   *string
	Page     int
	PageSize int
}

// ListResult wraps a page of enquiries with pagination metadata.
type ListResult struct {
	Enquiries  []Enquiry
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// Service exposes the enquiry inbox operations.
type Service interface {
	Submit(ctx context.Context, audit requesttrace.AuditInfo, input SubmitInput) (Enquiry, error)
	List(ctx context.Context, audit requesttrace.AuditInfo, opts ListOptions) (ListResult, error)
	Get(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID) (Enquiry, error)
	UpdateStatus(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID, status string) (Enquiry, error)
	Delete(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID) error
}

// Config carries optional collaborators.
type Config struct {
	Logger *zap.Logger
}

type service struct {
	repo   domainrepo.Repository
	logger *zap.Logger
}

// New builds an enquiries Service backed by the provided repository.
func New(repo domainrepo.Repository, cfg Config) Service {
	if repo == nil {
		panic("enquiries repository is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{repo: repo, logger: logger}
}

// Submit stores a new enquiry in status "new". The client IP is taken from audit.
func (s *service) Submit(ctx context.Context, audit requesttrace.AuditInfo, input SubmitInput) (Enquiry, error) {
	params := persistence.CreateEnquiryParams{
		Name:      strings.TrimSpace(input.Name),
		Email:     strings.TrimSpace(input.Email),
		Phone:     emptyToNil(input.Phone),
		Company:   emptyToNil(input.Company),
		Subject:   emptyToNil(input.Subject),
		Message:   strings.TrimSpace(input.Message),
		ProductID: input.ProductID,
	}
	if audit.ClientIP != "" {
		ip := audit.ClientIP
		params.ClientIP = &ip
	}
	if err := validateSubmit(params); err != nil {
		return Enquiry{}, err
	}

	record, err := s.repo.Create(ctx, uuid.New(), params)
	if err != nil {
		if errors.Is(err, persistence.ErrUnknownProduct) {
			return Enquiry{}, &ValidationError{Fields: FieldErrors{"productId": []string{"product not found"}}}
		}
		return Enquiry{}, err
	}

	s.logger.Info("enquiry received", zap.String("enquiry_id", record.ID.String()), zap.String("request_id", audit.RequestID))
	return mapEnquiry(record), nil
}

func (s *service) List(ctx context.Context, audit requesttrace.AuditInfo, opts ListOptions) (ListResult, error) { //nolint:revive
	if opts.Status != nil && !ValidStatus(*opts.Status) {
		return ListResult{}, &ValidationError{Fields: FieldErrors{"status": []string{"status must be one of new, read, replied, archived"}}}
	}

	page, pageSize := persistence.NormalizePage(opts.Page, opts.PageSize)
	result, err := s.repo.List(ctx, persistence.ListEnquiriesParams{Status: opts.Status, Page: page, PageSize: pageSize})
	if err != nil {
		return ListResult{}, err
	}

	enquiries := make([]Enquiry, 0, len(result.Items))
	for _, record := range result.Items {
		enquiries = append(enquiries, mapEnquiry(record))
	}

	totalPages := 0
	if result.TotalItems > 0 {
		totalPages = (result.TotalItems + pageSize - 1) / pageSize
	}
	return ListResult{
		Enquiries:  enquiries,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: result.TotalItems,
		TotalPages: totalPages,
	}, nil
}

func (s *service) Get(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID) (Enquiry, error) { //nolint:revive
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return Enquiry{}, mapError(err)
	}
	return mapEnquiry(record), nil
}

func (s *service) UpdateStatus(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID, status string) (Enquiry, error) { //nolint:revive
	status = strings.TrimSpace(status)
	if !ValidStatus(status) {
		return Enquiry{}, &ValidationError{Fields: FieldErrors{"status": []string{"status must be one of new, read, replied, archived"}}}
	}

	record, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return Enquiry{}, mapError(err)
	}
	return mapEnquiry(record), nil
}

// Delete removes the enquiry permanently.
func (s *service) Delete(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID) error { //nolint:revive
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapError(err)
	}
	return nil
}

// ValidStatus reports whether status is a known enquiry status.
func ValidStatus(status string) bool {
	switch status {
	case StatusNew, StatusRead, StatusReplied, StatusArchived:
		return true
	default:
		return false
	}
}

func validateSubmit(params persistence.CreateEnquiryParams) error {
	errs := FieldErrors{}

	switch {
	case params.Name == "":
		errs.add("name", "name is required")
	case utf8.RuneCountInString(params.Name) > maxNameLength:
		errs.add("name", "name must be at most 120 characters")
	}
	switch {
	case params.Email == "":
		errs.add("email", "email is required")
	case len(params.Email) > maxEmailLength || !validEmail(params.Email):
		errs.add("email", "email must be a valid address")
	}
	switch length := utf8.RuneCountInString(params.Message); {
	case length == 0:
		errs.add("message", "message is required")
	case length > maxMessageLength:
		errs.add("message", "message must be at most 5000 characters")
	}
	if params.Phone != nil && len(*params.Phone) > maxPhoneLength {
		errs.add("phone", "phone must be at most 40 characters")
	}
	for field, value := range map[string]*string{"company": params.Company, "subject": params.Subject} {
		if value != nil && utf8.RuneCountInString(*value) > maxTextLength {
			errs.add(field, field+" must be at most 160 characters")
		}
	}
	if params.ProductID != nil && *params.ProductID == uuid.Nil {
		errs.add("productId", "productId must be a valid UUID")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// validEmail accepts a bare addr-spec with a dotted domain. Display names are rejected.
func validEmail(value string) bool {
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value || addr.Name != "" {
		return false
	}
	at := strings.LastIndex(value, "@")
	return at > 0 && strings.Contains(value[at+1:], ".")
}

func mapError(err error) error {
	if errors.Is(err, persistence.ErrEnquiryNotFound) {
		return ErrNotFound
	}
	return err
}

func emptyToNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func mapEnquiry(record persistence.Enquiry) Enquiry {
	return Enquiry{
		ID:        record.ID,
		Name:      record.Name,
		Email:     record.Email,
		Phone:     record.Phone,
		Company:   record.Company,
		Subject:   record.Subject,
		Message:   record.Message,
		ProductID: record.ProductID,
		Status:    record.Status,
		ClientIP:  record.ClientIP,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}

func (f FieldErrors) add(field, message string) {
	f[field] = append(f[field], message)
}
