package service

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainrepo "github.com/marmoreal/stonecms/domains/products/be/repo"
	"github.com/marmoreal/stonecms/platform/go/cache"
	"github.com/marmoreal/stonecms/platform/go/metrics"
	"github.com/marmoreal/stonecms/platform/go/persistence"
	"github.com/marmoreal/stonecms/platform/go/requesttrace"
	"github.com/marmoreal/stonecms/platform/go/slug"
)

const (
	maxNameLength        = 160
	maxTextLength        = 120
	maxDescriptionLength = 10000
	maxImages            = 50
	maxURLLength         = 2048
	maxSearchLength      = 100
	slugEntity           = "product"
	cachePrefix          = "products:slug"
)

var pricePattern = regexp.MustCompile(`^\d{1,10}(\.\d{1,2})?$`)

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
	ErrNotFound = errors.New("product not found")
	ErrConflict = errors.New("product conflict")
)

// Product is a stone product line as presented by the catalog.
type Product struct {
	ID             uuid.UUID
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
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

// CreateInput defines the payload required to create a product.
type CreateInput struct {
	CollectionID   *uuid.UUID
	Name           string
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

// UpdateInput defines the fields that can be modified on an existing product.
// ClearCollection detaches the product from its collection.
type UpdateInput struct {
	CollectionID    *uuid.UUID
	ClearCollection bool
	Name            *string
	Description     *string
	Origin          *string
	Finish          *string
	Color           *string
	Thickness       *string
	Specifications  json.RawMessage
	Images          *[]string
	IsFeatured      *bool
	IsPublished     *bool
	Price           *string
}

// ListOptions filters and paginates product listings.
type ListOptions struct {
	CollectionID  *uuid.UUID
	Featured      *bool
	PublishedOnly bool
	Search        *string
	Page          int
	PageSize      int
}

// ListResult wraps a page of products with pagination metadata.
type ListResult struct {
	Products   []Product
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// Service exposes the products domain operations.
type Service interface {
	List(ctx context.Context, audit requesttrace.AuditInfo, opts ListOptions) (ListResult, error)
	Create(ctx context.Context, audit requesttrace.AuditInfo, input CreateInput) (Product, error)
	Get(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID) (Product, error)
	GetPublishedBySlug(ctx context.Context, audit requesttrace.AuditInfo, slug string) (Product, error)
	Update(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID, input UpdateInput) (Product, error)
	Delete(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID) error
}

// Config carries optional collaborators.
type Config struct {
	Cache   cache.Cache
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

type service struct {
	repo     domainrepo.Repository
	cache    *cache.Typed[persistence.Product]
	metrics  *metrics.Metrics
	logger   *zap.Logger
	resolver slug.Resolver
	now      func() time.Time
}

// New builds a products Service backed by the provided repository.
func New(repo domainrepo.Repository, cfg Config) Service {
	if repo == nil {
		panic("products repository is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var observe func(bool)
	if cfg.Metrics != nil {
		observe = func(hit bool) { cfg.Metrics.CacheResult("products", hit) }
	}
	return &service{
		repo:     repo,
		cache:    cache.NewTyped[persistence.Product](cfg.Cache, cachePrefix, observe),
		metrics:  cfg.Metrics,
		logger:   logger,
		resolver: slug.Resolver{Observe: cfg.Metrics.ObserveSlug(slugEntity)},
		now:      time.Now,
	}
}

func (s *service) List(ctx context.Context, audit requesttrace.AuditInfo, opts ListOptions) (ListResult, error) { //nolint:revive
	if opts.Search != nil && len(*opts.Search) > maxSearchLength {
		return ListResult{}, &ValidationError{Fields: FieldErrors{"q": []string{"search must be at most 100 characters"}}}
	}

	page, pageSize := persistence.NormalizePage(opts.Page, opts.PageSize)
	result, err := s.repo.List(ctx, persistence.ListProductsParams{
		CollectionID:  opts.CollectionID,
		Featured:      opts.Featured,
		PublishedOnly: opts.PublishedOnly,
		Search:        opts.Search,
		Page:          page,
		PageSize:      pageSize,
	})
	if err != nil {
		return ListResult{}, err
	}

	products := make([]Product, 0, len(result.Items))
	for _, record := range result.Items {
		products = append(products, mapProduct(record))
	}

	totalPages := 0
	if result.TotalItems > 0 {
		totalPages = (result.TotalItems + pageSize - 1) / pageSize
	}

	return ListResult{
		Products:   products,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: result.TotalItems,
		TotalPages: totalPages,
	}, nil
}

func (s *service) Create(ctx context.Context, audit requesttrace.AuditInfo, input CreateInput) (Product, error) { //nolint:revive
	params := persistence.ProductParams{
		CollectionID:   input.CollectionID,
		Name:           strings.TrimSpace(input.Name),
		Description:    emptyToNil(input.Description),
		Origin:         emptyToNil(input.Origin),
		Finish:         emptyToNil(input.Finish),
		Color:          emptyToNil(input.Color),
		Thickness:      emptyToNil(input.Thickness),
		Specifications: input.Specifications,
		Images:         trimAll(input.Images),
		IsFeatured:     input.IsFeatured,
		IsPublished:    input.IsPublished,
		Price:          emptyToNil(input.Price),
	}
	if err := validateParams(params); err != nil {
		return Product{}, err
	}

	id := uuid.New()
	record, err := slug.SaveWithRetry(ctx, slug.DefaultSaveAttempts, isSlugConflict, s.onConflict, func(ctx context.Context) (persistence.Product, error) {
		prepared, err := s.prepare(ctx, params, uuid.Nil)
		if err != nil {
			return persistence.Product{}, err
		}
		return s.repo.Create(ctx, id, prepared)
	})
	if err != nil {
		return Product{}, mapWriteError(err)
	}

	return mapProduct(record), nil
}

func (s *service) Get(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID) (Product, error) { //nolint:revive
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, mapReadError(err)
	}
	return mapProduct(record), nil
}

// GetPublishedBySlug serves the storefront product page. Results are cached by slug; writes
// invalidate both the old and the new slug.
func (s *service) GetPublishedBySlug(ctx context.Context, audit requesttrace.AuditInfo, value string) (Product, error) { //nolint:revive
	if !slug.IsCanonical(value) {
		return Product{}, ErrNotFound
	}

	cached, ok, err := s.cache.Get(ctx, value)
	if err != nil {
		s.logger.Warn("product cache read failed", zap.String("slug", value), zap.Error(err))
	}
	if ok {
		return mapProduct(cached), nil
	}

	record, err := s.repo.GetBySlug(ctx, value)
	if err != nil {
		return Product{}, mapReadError(err)
	}
	if !record.IsPublished {
		return Product{}, ErrNotFound
	}

	if err := s.cache.Set(ctx, value, record); err != nil {
		s.logger.Warn("product cache write failed", zap.String("slug", value), zap.Error(err))
	}
	return mapProduct(record), nil
}

// Update merges input into the stored product. The slug is re-resolved only when the name changes.
func (s *service) Update(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID, input UpdateInput) (Product, error) { //nolint:revive
	if id == uuid.Nil {
		return Product{}, ErrNotFound
	}
	if input.isEmpty() {
		return Product{}, &ValidationError{Fields: FieldErrors{"body": []string{"at least one field must be provided"}}}
	}

	var previousSlug string
	record, err := slug.SaveWithRetry(ctx, slug.DefaultSaveAttempts, isSlugConflict, s.onConflict, func(ctx context.Context) (persistence.Product, error) {
		current, err := s.repo.Get(ctx, id)
		if err != nil {
			return persistence.Product{}, err
		}
		previousSlug = current.Slug

		params := mergeUpdate(current, input)
		if err := validateParams(params); err != nil {
			return persistence.Product{}, err
		}

		if params.Name != current.Name {
			if params, err = s.prepare(ctx, params, id); err != nil {
				return persistence.Product{}, err
			}
		}
		return s.repo.Update(ctx, id, params)
	})
	if err != nil {
		return Product{}, mapWriteError(err)
	}

	s.invalidate(ctx, previousSlug, record.Slug)
	return mapProduct(record), nil
}

func (s *service) Delete(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID) error { //nolint:revive
	if id == uuid.Nil {
		return ErrNotFound
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return mapReadError(err)
	}
	if err := s.repo.SoftDelete(ctx, id, s.now().UTC()); err != nil {
		return mapReadError(err)
	}

	s.invalidate(ctx, current.Slug)
	return nil
}

// prepare fills the derived slug. excludeID is the product being saved, or uuid.Nil on create.
func (s *service) prepare(ctx context.Context, params persistence.ProductParams, excludeID uuid.UUID) (persistence.ProductParams, error) {
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

func (s *service) invalidate(ctx context.Context, slugs ...string) {
	if err := s.cache.Invalidate(ctx, slugs...); err != nil {
		s.logger.Warn("product cache invalidation failed", zap.Strings("slugs", slugs), zap.Error(err))
	}
}

func (s *service) onConflict() {
	s.metrics.SlugConflict(slugEntity)
}

func (in UpdateInput) isEmpty() bool {
	return in.CollectionID == nil && !in.ClearCollection && in.Name == nil && in.Description == nil &&
		in.Origin == nil && in.Finish == nil && in.Color == nil && in.Thickness == nil &&
		in.Specifications == nil && in.Images == nil && in.IsFeatured == nil && in.IsPublished == nil && in.Price == nil
}

func mergeUpdate(current persistence.Product, input UpdateInput) persistence.ProductParams {
	params := persistence.ProductParams{
		CollectionID:   current.CollectionID,
		Name:           current.Name,
		Slug:           current.Slug,
		Description:    current.Description,
		Origin:         current.Origin,
		Finish:         current.Finish,
		Color:          current.Color,
		Thickness:      current.Thickness,
		Specifications: current.Specifications,
		Images:         current.Images,
		IsFeatured:     current.IsFeatured,
		IsPublished:    current.IsPublished,
		Price:          current.Price,
	}

	switch {
	case input.ClearCollection:
		params.CollectionID = nil
	case input.CollectionID != nil:
		params.CollectionID = input.CollectionID
	}
	if input.Name != nil {
		params.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		params.Description = emptyToNil(input.Description)
	}
	if input.Origin != nil {
		params.Origin = emptyToNil(input.Origin)
	}
	if input.Finish != nil {
		params.Finish = emptyToNil(input.Finish)
	}
	if input.Color != nil {
		params.Color = emptyToNil(input.Color)
	}
	if input.Thickness != nil {
		params.Thickness = emptyToNil(input.Thickness)
	}
	if input.Specifications != nil {
		params.Specifications = input.Specifications
	}
	if input.Images != nil {
		params.Images = trimAll(*input.Images)
	}
	if input.IsFeatured != nil {
		params.IsFeatured = *input.IsFeatured
	}
	if input.IsPublished != nil {
		params.IsPublished = *input.IsPublished
	}
	if input.Price != nil {
		params.Price = emptyToNil(input.Price)
	}
	return params
}

func validateParams(params persistence.ProductParams) error {
	errs := FieldErrors{}

	switch {
	case params.Name == "":
		errs.add("name", "name is required")
	case len(params.Name) > maxNameLength:
		errs.add("name", "name must be at most 160 characters")
	case slug.Derive(params.Name) == "":
		errs.add("name", "name must contain at least one letter or digit")
	}
	if params.CollectionID != nil && *params.CollectionID == uuid.Nil {
		errs.add("collectionId", "collectionId must be a valid UUID")
	}
	if params.Description != nil && len(*params.Description) > maxDescriptionLength {
		errs.add("description", "description must be at most 10000 characters")
	}
	for field, value := range map[string]*string{
		"origin": params.Origin, "finish": params.Finish, "color": params.Color, "thickness": params.Thickness,
	} {
		if value != nil && len(*value) > maxTextLength {
			errs.add(field, field+" must be at most 120 characters")
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
	if params.Price != nil && !pricePattern.MatchString(*params.Price) {
		errs.add("price", "price must be a decimal with at most two fraction digits")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func isSlugConflict(err error) bool {
	return errors.Is(err, persistence.ErrProductConflict)
}

func mapReadError(err error) error {
	if errors.Is(err, persistence.ErrProductNotFound) {
		return ErrNotFound
	}
	return err
}

func mapWriteError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrProductNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrProductConflict):
		return ErrConflict
	case errors.Is(err, persistence.ErrUnknownCollection):
		return &ValidationError{Fields: FieldErrors{"collectionId": []string{"collection not found"}}}
	case errors.Is(err, persistence.ErrInvalidDocument):
		return &ValidationError{Fields: FieldErrors{"specifications": []string{err.Error()}}}
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

func mapProduct(record persistence.Product) Product {
	return Product{
		ID:             record.ID,
		CollectionID:   record.CollectionID,
		Name:           record.Name,
		Slug:           record.Slug,
		Description:    record.Description,
		Origin:         record.Origin,
		Finish:         record.Finish,
		Color:          record.Color,
		Thickness:      record.Thickness,
		Specifications: record.Specifications,
		Images:         record.Images,
		IsFeatured:     record.IsFeatured,
		IsPublished:    record.IsPublished,
		Price:          record.Price,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
		DeletedAt:      record.DeletedAt,
	}
}

func (f FieldErrors) add(field, message string) {
	if _, ok := f[field]; !ok {
		f[field] = []string{message}
		return
	}
	f[field] = append(f[field], message)
}
