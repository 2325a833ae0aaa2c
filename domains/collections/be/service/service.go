package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marmoreal/stonecms/database"
	domainrepo "github.com/marmoreal/stonecms/domains/collections/be/repo"
	"github.com/marmoreal/stonecms/platform/go/metrics"
	"github.com/marmoreal/stonecms/platform/go/persistence"
	"github.com/marmoreal/stonecms/platform/go/requesttrace"
	"github.com/marmoreal/stonecms/platform/go/slug"
)

const (
	maxNameLength        = 120
	maxDescriptionLength = 2000
	maxURLLength         = 2048
	slugEntity           = "collection"
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
	ErrNotFound = errors.New("collection not found")
	ErrConflict = errors.New("collection conflict")
)

// Collection groups products under a public landing page.
type Collection struct {
	ID            uuid.UUID
	Name          string
	Slug          string
	Description   *string
	CoverImageURL *string
	SortOrder     int
	IsFeatured    bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

// CreateInput defines the payload required to create a collection.
type CreateInput struct {
	Name          string
	Description   *string
	CoverImageURL *string
	SortOrder     int
	IsFeatured    bool
}

// UpdateInput defines the fields that can be modified on an existing collection.
type UpdateInput struct {
	Name          *string
	Description   *string
	CoverImageURL *string
	SortOrder     *int
	IsFeatured    *bool
}

// Service exposes the collections domain operations.
type Service interface {
	List(ctx context.Context, audit requesttrace.AuditInfo, includeDeleted bool) ([]Collection, error)
	Create(ctx context.Context, audit requesttrace.AuditInfo, input CreateInput) (Collection, error)
	Get(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID) (Collection, error)
	GetBySlug(ctx context.Context, audit requesttrace.AuditInfo, slug string) (Collection, error)
	Update(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID, input UpdateInput) (Collection, error)
	Delete(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID) error
}

// Config carries optional collaborators.
type Config struct {
	// Defaults are created when List finds no live collection.
	Defaults []database.SeedCollection
	Metrics  *metrics.Metrics
}

type service struct {
	repo     domainrepo.Repository
	defaults []database.SeedCollection
	metrics  *metrics.Metrics
	resolver slug.Resolver
	seedMu   sync.Mutex
	now      func() time.Time
}

// New builds a collections Service backed by the provided repository.
func New(repo domainrepo.Repository, cfg Config) Service {
	if repo == nil {
		panic("collections repository is required")
	}
	return &service{
		repo:     repo,
		defaults: cfg.Defaults,
		metrics:  cfg.Metrics,
		resolver: slug.Resolver{Observe: cfg.Metrics.ObserveSlug(slugEntity)},
		now:      time.Now,
	}
}

func (s *service) List(ctx context.Context, audit requesttrace.AuditInfo, includeDeleted bool) ([]Collection, error) { //nolint:revive
	records, err := s.repo.List(ctx, includeDeleted)
	if err != nil {
		return nil, err
	}

	if !hasLive(records) && len(s.defaults) > 0 {
		if records, err = s.seed(ctx, includeDeleted); err != nil {
			return nil, err
		}
	}

	collections := make([]Collection, 0, len(records))
	for _, record := range records {
		collections = append(collections, mapCollection(record))
	}
	return collections, nil
}

// seed creates the default collections under their base slugs. A slug already held by a live
// row means another instance seeded first, so that default is skipped.
func (s *service) seed(ctx context.Context, includeDeleted bool) ([]persistence.Collection, error) {
	s.seedMu.Lock()
	defer s.seedMu.Unlock()

	records, err := s.repo.List(ctx, includeDeleted)
	if err != nil {
		return nil, err
	}
	if hasLive(records) {
		return records, nil
	}

	for _, def := range s.defaults {
		params := persistence.CollectionParams{
			Name:       strings.TrimSpace(def.Name),
			Slug:       slug.Derive(def.Name),
			SortOrder:  def.SortOrder,
			IsFeatured: def.IsFeatured,
		}
		if desc := strings.TrimSpace(def.Description); desc != "" {
			params.Description = &desc
		}
		if params.Slug == "" {
			continue
		}
		if _, err := s.repo.Create(ctx, uuid.New(), params); err != nil && !errors.Is(err, persistence.ErrCollectionConflict) {
			return nil, err
		}
	}

	return s.repo.List(ctx, includeDeleted)
}

func (s *service) Create(ctx context.Context, audit requesttrace.AuditInfo, input CreateInput) (Collection, error) { //nolint:revive
	params := persistence.CollectionParams{
		Name:          strings.TrimSpace(input.Name),
		Description:   emptyToNil(input.Description),
		CoverImageURL: emptyToNil(input.CoverImageURL),
		SortOrder:     input.SortOrder,
		IsFeatured:    input.IsFeatured,
	}
	if err := validateParams(params); err != nil {
		return Collection{}, err
	}

	id := uuid.New()
	record, err := slug.SaveWithRetry(ctx, slug.DefaultSaveAttempts, isSlugConflict, s.onConflict, func(ctx context.Context) (persistence.Collection, error) {
		prepared, err := s.prepare(ctx, params, uuid.Nil)
		if err != nil {
			return persistence.Collection{}, err
		}
		return s.repo.Create(ctx, id, prepared)
	})
	if err != nil {
		return Collection{}, mapWriteError(err)
	}

	return mapCollection(record), nil
}

func (s *service) Get(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID) (Collection, error) { //nolint:revive
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return Collection{}, mapReadError(err)
	}
	return mapCollection(record), nil
}

func (s *service) GetBySlug(ctx context.Context, audit requesttrace.AuditInfo, value string) (Collection, error) { //nolint:revive
	if !slug.IsCanonical(value) {
		return Collection{}, ErrNotFound
	}
	record, err := s.repo.GetBySlug(ctx, value)
	if err != nil {
		return Collection{}, mapReadError(err)
	}
	return mapCollection(record), nil
}

// Update merges input into the stored collection. The slug is re-derived from the name on every
// save, excluding the collection itself from the uniqueness check.
func (s *service) Update(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID, input UpdateInput) (Collection, error) { //nolint:revive
	if id == uuid.Nil {
		return Collection{}, ErrNotFound
	}
	if input.Name == nil && input.Description == nil && input.CoverImageURL == nil && input.SortOrder == nil && input.IsFeatured == nil {
		return Collection{}, &ValidationError{Fields: FieldErrors{"body": []string{"at least one field must be provided"}}}
	}

	record, err := slug.SaveWithRetry(ctx, slug.DefaultSaveAttempts, isSlugConflict, s.onConflict, func(ctx context.Context) (persistence.Collection, error) {
		current, err := s.repo.Get(ctx, id)
		if err != nil {
			return persistence.Collection{}, err
		}

		params := mergeUpdate(current, input)
		if err := validateParams(params); err != nil {
			return persistence.Collection{}, err
		}

		prepared, err := s.prepare(ctx, params, id)
		if err != nil {
			return persistence.Collection{}, err
		}
		return s.repo.Update(ctx, id, prepared)
	})
	if err != nil {
		return Collection{}, mapWriteError(err)
	}

	return mapCollection(record), nil
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

// prepare fills the derived slug. excludeID is the collection being saved, or uuid.Nil on create.
func (s *service) prepare(ctx context.Context, params persistence.CollectionParams, excludeID uuid.UUID) (persistence.CollectionParams, error) {
	base := slug.Derive(params.Name)
	if base == "" {
		return params, &ValidationError{Fields: FieldErrors{"name": []string{"name must contain at least one letter or digit"}}}
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

func (s *service) onConflict() {
	s.metrics.SlugConflict(slugEntity)
}

func mergeUpdate(current persistence.Collection, input UpdateInput) persistence.CollectionParams {
	params := persistence.CollectionParams{
		Name:          current.Name,
		Slug:          current.Slug,
		Description:   current.Description,
		CoverImageURL: current.CoverImageURL,
		SortOrder:     current.SortOrder,
		IsFeatured:    current.IsFeatured,
	}
	if input.Name != nil {
		params.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		params.Description = emptyToNil(input.Description)
	}
	if input.CoverImageURL != nil {
		params.CoverImageURL = emptyToNil(input.CoverImageURL)
	}
	if input.SortOrder != nil {
		params.SortOrder = *input.SortOrder
	}
	if input.IsFeatured != nil {
		params.IsFeatured = *input.IsFeatured
	}
	return params
}

func validateParams(params persistence.CollectionParams) error {
	errs := FieldErrors{}

	switch {
	case params.Name == "":
		errs.add("name", "name is required")
	case len(params.Name) > maxNameLength:
		errs.add("name", "name must be at most 120 characters")
	case slug.Derive(params.Name) == "":
		errs.add("name", "name must contain at least one letter or digit")
	}
	if params.Description != nil && len(*params.Description) > maxDescriptionLength {
		errs.add("description", "description must be at most 2000 characters")
	}
	if params.CoverImageURL != nil && len(*params.CoverImageURL) > maxURLLength {
		errs.add("coverImageUrl", "coverImageUrl must be at most 2048 characters")
	}
	if params.SortOrder < 0 {
		errs.add("sortOrder", "sortOrder must be zero or positive")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func hasLive(records []persistence.Collection) bool {
	for _, record := range records {
		if record.DeletedAt == nil {
			return true
		}
	}
	return false
}

func isSlugConflict(err error) bool {
	return errors.Is(err, persistence.ErrCollectionConflict)
}

func mapReadError(err error) error {
	if errors.Is(err, persistence.ErrCollectionNotFound) {
		return ErrNotFound
	}
	return err
}

func mapWriteError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrCollectionNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrCollectionConflict):
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

func mapCollection(record persistence.Collection) Collection {
	return Collection{
		ID:            record.ID,
		Name:          record.Name,
		Slug:          record.Slug,
		Description:   record.Description,
		CoverImageURL: record.CoverImageURL,
		SortOrder:     record.SortOrder,
		IsFeatured:    record.IsFeatured,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
		DeletedAt:     record.DeletedAt,
	}
}

func (f FieldErrors) add(field, message string) {
	if _, ok := f[field]; !ok {
		f[field] = []string{message}
		return
	}
	f[field] = append(f[field], message)
}
