package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	domainrepo "github.com/marmoreal/stonecms/domains/projects/be/repo"
	"github.com/marmoreal/stonecms/platform/go/metrics"
	"github.com/marmoreal/stonecms/platform/go/persistence"
	"github.com/marmoreal/stonecms/platform/go/requesttrace"
	"github.com/marmoreal/stonecms/platform/go/slug"
)

const (
	maxTitleLength   = 160
	maxTextLength    = 160
	maxSummaryLength = 5000
	maxImages        = 50
	maxProducts      = 100
	maxURLLength     = 2048
	dateLayout       = "2006-01-02"
	slugEntity       = "project"
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
	ErrNotFound = errors.New("project not found")
	ErrConflict = errors.New("project conflict")
)

// Project is a showcased installation.
type Project struct {
	ID          uuid.UUID
	Title       string
	Slug        string
	Summary     *string
	Location    *string
	Client      *string
	CompletedOn *time.Time
	Images      []string
	ProductIDs  []uuid.UUID
	IsFeatured  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// CreateInput defines the payload required to create a project. CompletedOn uses YYYY-MM-DD.
type CreateInput struct {
	Title       string
	Summary     *string
	Location    *string
	Client      *string
	CompletedOn *string
	Images      []string
	ProductIDs  []uuid.UUID
	IsFeatured  bool
}

// UpdateInput defines the fields that can be modified on an existing project.
// An empty CompletedOn clears the date.
type UpdateInput struct {
	Title       *string
	Summary     *string
	Location    *string
	Client      *string
	CompletedOn *string
	Images      *[]string
	ProductIDs  *[]uuid.UUID
	IsFeatured  *bool
}

// ListOptions filters and paginates project listings.
type ListOptions struct {
	Featured *bool
	Page     int
	PageSize int
}

// ListResult wraps a page of projects with pagination metadata.
type ListResult struct {
	Projects   []Project
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// Service exposes the projects domain operations.
type Service interface {
	List(ctx context.Context, audit requesttrace.AuditInfo, opts ListOptions) (ListResult, error)
	Create(ctx context.Context, audit requesttrace.AuditInfo, input CreateInput) (Project, error)
	Get(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID) (Project, error)
	GetBySlug(ctx context.Context, audit requesttrace.AuditInfo, slug string) (Project, error)
	Update(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID, input UpdateInput) (Project, error)
	Delete(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID) error
}

// Config carries optional collaborators.
type Config struct {
	Metrics *metrics.Metrics
}

type service struct {
	repo     domainrepo.Repository
	metrics  *metrics.Metrics
	resolver slug.Resolver
	now      func() time.Time
}

// New builds a projects Service backed by the provided repository.
func New(repo domainrepo.Repository, cfg Config) Service {
	if repo == nil {
		panic("projects repository is required")
	}
	return &service{
		repo:     repo,
		metrics:  cfg.Metrics,
		resolver: slug.Resolver{Observe: cfg.Metrics.ObserveSlug(slugEntity)},
		now:      time.Now,
	}
}

func (s *service) List(ctx context.Context, audit requesttrace.AuditInfo, opts ListOptions) (ListResult, error) { //nolint:revive
	page, pageSize := persistence.NormalizePage(opts.Page, opts.PageSize)
	result, err := s.repo.List(ctx, persistence.ListProjectsParams{
		Featured: opts.Featured,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return ListResult{}, err
	}

	projects := make([]Project, 0, len(result.Items))
	for _, record := range result.Items {
		projects = append(projects, mapProject(record))
	}

	totalPages := 0
	if result.TotalItems > 0 {
		totalPages = (result.TotalItems + pageSize - 1) / pageSize
	}
	return ListResult{
		Projects:   projects,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: result.TotalItems,
		TotalPages: totalPages,
	}, nil
}

func (s *service) Create(ctx context.Context, audit requesttrace.AuditInfo, input CreateInput) (Project, error) { //nolint:revive
	errs := FieldErrors{}
	params := persistence.ProjectParams{
		Title:      strings.TrimSpace(input.Title),
		Summary:    emptyToNil(input.Summary),
		Location:   emptyToNil(input.Location),
		Client:     emptyToNil(input.Client),
		Images:     trimAll(input.Images),
		ProductIDs: dedupe(input.ProductIDs),
		IsFeatured: input.IsFeatured,
	}
	params.CompletedOn = parseDate(input.CompletedOn, errs)
	if err := s.validate(ctx, params, errs); err != nil {
		return Project{}, err
	}

	id := uuid.New()
	record, err := slug.SaveWithRetry(ctx, slug.DefaultSaveAttempts, isSlugConflict, s.onConflict, func(ctx context.Context) (persistence.Project, error) {
		prepared, err := s.prepare(ctx, params, uuid.Nil)
		if err != nil {
			return persistence.Project{}, err
		}
		return s.repo.Create(ctx, id, prepared)
	})
	if err != nil {
		return Project{}, mapWriteError(err)
	}
	return mapProject(record), nil
}

func (s *service) Get(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID) (Project, error) { //nolint:revive
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return Project{}, mapReadError(err)
	}
	return mapProject(record), nil
}

func (s *service) GetBySlug(ctx context.Context, audit requesttrace.AuditInfo, value string) (Project, error) { //nolint:revive
	if !slug.IsCanonical(value) {
		return Project{}, ErrNotFound
	}
	record, err := s.repo.GetBySlug(ctx, value)
	if err != nil {
		return Project{}, mapReadError(err)
	}
	return mapProject(record), nil
}

// Update merges input into the stored project. The slug is re-resolved only when the title changes.
func (s *service) Update(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID, input UpdateInput) (Project, error) { //nolint:revive
	if id == uuid.Nil {
		return Project{}, ErrNotFound
	}
	if input.isEmpty() {
		return Project{}, &ValidationError{Fields: FieldErrors{"body": []string{"at least one field must be provided"}}}
	}

	record, err := slug.SaveWithRetry(ctx, slug.DefaultSaveAttempts, isSlugConflict, s.onConflict, func(ctx context.Context) (persistence.Project, error) {
		current, err := s.repo.Get(ctx, id)
		if err != nil {
			return persistence.Project{}, err
		}

		errs := FieldErrors{}
		params := mergeUpdate(current, input, errs)
		if err := s.validate(ctx, params, errs); err != nil {
			return persistence.Project{}, err
		}

		if params.Title != current.Title {
			if params, err = s.prepare(ctx, params, id); err != nil {
				return persistence.Project{}, err
			}
		}
		return s.repo.Update(ctx, id, params)
	})
	if err != nil {
		return Project{}, mapWriteError(err)
	}
	return mapProject(record), nil
}

func (s *service) Delete(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID) error { //nolint:revive
	if id == uuid.Nil {
		return ErrNotFound
	}
	if err := s.repo.SoftDelete(ctx, id, s.now().UTC()); err != nil {
		return mapReadError(err)
	}
	return nil
}

// prepare fills the derived slug. excludeID is the project being saved, or uuid.Nil on create.
func (s *service) prepare(ctx context.Context, params persistence.ProjectParams, excludeID uuid.UUID) (persistence.ProjectParams, error) {
	base := slug.Derive(params.Title)
	if base == "" {
		return params, &ValidationError{Fields: FieldErrors{"title": []string{"title must contain at least one letter or digit"}}}
	}

	resolved, err := s.resolver.Resolve(ctx, base, func(ctx context.Context, candidate string) (bool, error) {
		return s.repo.SlugExists(ctx, candidate, excludeID)
	})
	if err != nil {
		return params, err
	}
	params.Slug = resolved
	return params, nil
}

// validate checks params and resolves product references. errs may already hold parse failures.
func (s *service) validate(ctx context.Context, params persistence.ProjectParams, errs FieldErrors) error {
	switch {
	case params.Title == "":
		errs.add("title", "title is required")
	case len(params.Title) > maxTitleLength:
		errs.add("title", "title must be at most 160 characters")
	case slug.Derive(params.Title) == "":
		errs.add("title", "title must contain at least one letter or digit")
	}
	if params.Summary != nil && len(*params.Summary) > maxSummaryLength {
		errs.add("summary", "summary must be at most 5000 characters")
	}
	for field, value := range map[string]*string{"location": params.Location, "client": params.Client} {
		if value != nil && len(*value) > maxTextLength {
			errs.add(field, field+" must be at most 160 characters")
		}
	}
	if len(params.Images) > maxImages {
		errs.add("images", "at most 50 images are allowed")
	}
	for _, image := range params.Images {
		if image == "" || len(image) > maxURLLength {
			errs.add("images", "image URLs must be 1 to 2048 characters")
			break
		}
	}
	if len(params.ProductIDs) > maxProducts {
		errs.add("productIds", "at most 100 products can be referenced")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}

	found, err := s.repo.ProductsExist(ctx, params.ProductIDs)
	if err != nil {
		return err
	}
	for _, id := range params.ProductIDs {
		if !found[id] {
			errs.add("productIds", "product "+id.String()+" not found")
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func (s *service) onConflict() {
	s.metrics.SlugConflict(slugEntity)
}

func (in UpdateInput) isEmpty() bool {
	return in.Title == nil && in.Summary == nil && in.Location == nil && in.Client == nil &&
		in.CompletedOn == nil && in.Images == nil && in.ProductIDs == nil && in.IsFeatured == nil
}

func mergeUpdate(current persistence.Project, input UpdateInput, errs FieldErrors) persistence.ProjectParams {
	params := persistence.ProjectParams{
		Title:       current.Title,
		Slug:        current.Slug,
		Summary:     current.Summary,
		Location:    current.Location,
		Client:      current.Client,
		CompletedOn: current.CompletedOn,
		Images:      current.Images,
		ProductIDs:  current.ProductIDs,
		IsFeatured:  current.IsFeatured,
	}
	if input.Title != nil {
		params.Title = strings.TrimSpace(*input.Title)
	}
	if input.Summary != nil {
		params.Summary = emptyToNil(input.Summary)
	}
	if input.Location != nil {
		params.Location = emptyToNil(input.Location)
	}
	if input.Client != nil {
		params.Client = emptyToNil(input.Client)
	}
	if input.CompletedOn != nil {
		params.CompletedOn = parseDate(input.CompletedOn, errs)
	}
	if input.Images != nil {
		params.Images = trimAll(*input.Images)
	}
	if input.ProductIDs != nil {
		params.ProductIDs = dedupe(*input.ProductIDs)
	}
	if input.IsFeatured != nil {
		params.IsFeatured = *input.IsFeatured
	}
	return params
}

func parseDate(value *string, errs FieldErrors) *time.Time {
	trimmed := emptyToNil(value)
	if trimmed == nil {
		return nil
	}
	parsed, err := time.Parse(dateLayout, *trimmed)
	if err != nil {
		errs.add("completedOn", "completedOn must be a date in YYYY-MM-DD format")
		return nil
	}
	return &parsed
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func isSlugConflict(err error) bool {
	return errors.Is(err, persistence.ErrProjectConflict)
}

func mapReadError(err error) error {
	if errors.Is(err, persistence.ErrProjectNotFound) {
		return ErrNotFound
	}
	return err
}

func mapWriteError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrProjectNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrProjectConflict):
		return ErrConflict
	default:
		return err
	}
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

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.TrimSpace(v))
	}
	return out
}

func mapProject(record persistence.Project) Project {
	return Project{
		ID:          record.ID,
		Title:       record.Title,
		Slug:        record.Slug,
		Summary:     record.Summary,
		Location:    record.Location,
		Client:      record.Client,
		CompletedOn: record.CompletedOn,
		Images:      record.Images,
		ProductIDs:  record.ProductIDs,
		IsFeatured:  record.IsFeatured,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
		DeletedAt:   record.DeletedAt,
	}
}

func (f FieldErrors) add(field, message string) {
	f[field] = append(f[field], message)
}
