package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	domainrepo "github.com/marmoreal/stonecms/domains/posts/be/repo"
	"github.com/marmoreal/stonecms/platform/go/metrics"
	"github.com/marmoreal/stonecms/platform/go/persistence"
	"github.com/marmoreal/stonecms/platform/go/requesttrace"
	"github.com/marmoreal/stonecms/platform/go/slug"
)

const (
	maxTitleLength   = 200
	maxExcerptLength = 1000
	maxURLLength     = 2048
	maxTags          = 20
	maxTagLength     = 50
	slugEntity       = "post"
)

// Post statuses.
const (
	StatusDraft     = persistence.PostStatusDraft
	StatusPublished = persistence.PostStatusPublished
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
	ErrNotFound = errors.New("post not found")
	ErrConflict = errors.New("post conflict")
)

// Post is a blog article. Content holds the ordered block list as JSON.
type Post struct {
	ID            uuid.UUID
	Title         string
	Slug          string
	Excerpt       *string
	CoverImageURL *string
	Content       json.RawMessage
	Tags          []string
	Status        string
	PublishedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

// CreateInput defines the payload required to create a post. Status defaults to draft.
type CreateInput struct {
	Title         string
	Excerpt       *string
	CoverImageURL *string
	Content       json.RawMessage
	Tags          []string
	Status        *string
}

// UpdateInput defines the fields that can be modified on an existing post.
type UpdateInput struct {
	Title         *string
	Excerpt       *string
	CoverImageURL *string
	Content       json.RawMessage
	Tags          *[]string
	Status        *string
}

// ListOptions filters and paginates post listings.
type ListOptions struct {
	Status   *string
	Tag      *string
	Page     int
	PageSize int
}

// ListResult wraps a page of posts with pagination metadata.
type ListResult struct {
	Posts      []Post
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// Service exposes the blog operations.
type Service interface {
	List(ctx context.Context, audit requesttrace.AuditInfo, opts ListOptions) (ListResult, error)
	Create(ctx context.Context, audit requesttrace.AuditInfo, input CreateInput) (Post, error)
	Get(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID) (Post, error)
	GetPublishedBySlug(ctx context.Context, audit requesttrace.AuditInfo, slug string) (Post, error)
	Update(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID, input UpdateInput) (Post, error)
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

// New builds a posts Service backed by the provided repository.
func New(repo domainrepo.Repository, cfg Config) Service {
	if repo == nil {
		panic("posts repository is required")
	}
	return &service{
		repo:     repo,
		metrics:  cfg.Metrics,
		resolver: slug.Resolver{Observe: cfg.Metrics.ObserveSlug(slugEntity)},
		now:      time.Now,
	}
}

func (s *service) List(ctx context.Context, audit requesttrace.AuditInfo, opts ListOptions) (ListResult, error) { //nolint:revive
	errs := FieldErrors{}
	if opts.Status != nil && !validStatus(*opts.Status) {
		errs.add("status", "status must be draft or published")
	}
	tag := normalizeTag(opts.Tag)
	if tag != nil && len(*tag) > maxTagLength {
		errs.add("tag", "tag must be at most 50 characters")
	}
	if len(errs) > 0 {
		return ListResult{}, &ValidationError{Fields: errs}
	}

	page, pageSize := persistence.NormalizePage(opts.Page, opts.PageSize)
	result, err := s.repo.List(ctx, persistence.ListPostsParams{
		Status:   opts.Status,
		Tag:      tag,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return ListResult{}, err
	}

	posts := make([]Post, 0, len(result.Items))
	for _, record := range result.Items {
		posts = append(posts, mapPost(record))
	}

	totalPages := 0
	if result.TotalItems > 0 {
		totalPages = (result.TotalItems + pageSize - 1) / pageSize
	}
	return ListResult{
		Posts:      posts,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: result.TotalItems,
		TotalPages: totalPages,
	}, nil
}

func (s *service) Create(ctx context.Context, audit requesttrace.AuditInfo, input CreateInput) (Post, error) { //nolint:revive
	status := StatusDraft
	if input.Status != nil {
		status = strings.TrimSpace(*input.Status)
	}
	params := persistence.PostParams{
		Title:         strings.TrimSpace(input.Title),
		Excerpt:       emptyToNil(input.Excerpt),
		CoverImageURL: emptyToNil(input.CoverImageURL),
		Content:       input.Content,
		Tags:          normalizeTags(input.Tags),
		Status:        status,
	}
	if status == StatusPublished {
		publishedAt := s.now().UTC()
		params.PublishedAt = &publishedAt
	}
	if err := validateParams(params); err != nil {
		return Post{}, err
	}

	id := uuid.New()
	record, err := slug.SaveWithRetry(ctx, slug.DefaultSaveAttempts, isSlugConflict, s.onConflict, func(ctx context.Context) (persistence.Post, error) {
		prepared, err := s.prepare(ctx, params, uuid.Nil)
		if err != nil {
			return persistence.Post{}, err
		}
		return s.repo.Create(ctx, id, prepared)
	})
	if err != nil {
		return Post{}, mapWriteError(err)
	}
	return mapPost(record), nil
}

func (s *service) Get(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID) (Post, error) { //nolint:revive
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return Post{}, mapReadError(err)
	}
	return mapPost(record), nil
}

// GetPublishedBySlug hides drafts behind ErrNotFound.
func (s *service) GetPublishedBySlug(ctx context.Context, audit requesttrace.AuditInfo, value string) (Post, error) { //nolint:revive
	if !slug.IsCanonical(value) {
		return Post{}, ErrNotFound
	}
	record, err := s.repo.GetBySlug(ctx, value)
	if err != nil {
		return Post{}, mapReadError(err)
	}
	if record.Status != StatusPublished {
		return Post{}, ErrNotFound
	}
	return mapPost(record), nil
}

// Update merges input into the stored post. The slug is re-resolved only when the title changes.
// PublishedAt is stamped on the first transition to published and kept from then on.
func (s *service) Update(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID, input UpdateInput) (Post, error) { //nolint:revive
	if id == uuid.Nil {
		return Post{}, ErrNotFound
	}
	if input.isEmpty() {
		return Post{}, &ValidationError{Fields: FieldErrors{"body": []string{"at least one field must be provided"}}}
	}

	record, err := slug.SaveWithRetry(ctx, slug.DefaultSaveAttempts, isSlugConflict, s.onConflict, func(ctx context.Context) (persistence.Post, error) {
		current, err := s.repo.Get(ctx, id)
		if err != nil {
			return persistence.Post{}, err
		}

		params := mergeUpdate(current, input)
		if params.Status == StatusPublished && params.PublishedAt == nil {
			publishedAt := s.now().UTC()
			params.PublishedAt = &publishedAt
		}
		if err := validateParams(params); err != nil {
			return persistence.Post{}, err
		}

		if params.Title != current.Title {
			if params, err = s.prepare(ctx, params, id); err != nil {
				return persistence.Post{}, err
			}
		}
		return s.repo.Update(ctx, id, params)
	})
	if err != nil {
		return Post{}, mapWriteError(err)
	}
	return mapPost(record), nil
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

// prepare fills the derived slug. excludeID is the post being saved, or uuid.Nil on create.
func (s *service) prepare(ctx context.Context, params persistence.PostParams, excludeID uuid.UUID) (persistence.PostParams, error) {
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

func (s *service) onConflict() {
	s.metrics.SlugConflict(slugEntity)
}

func (in UpdateInput) isEmpty() bool {
	return in.Title == nil && in.Excerpt == nil && in.CoverImageURL == nil &&
		in.Content == nil && in.Tags == nil && in.Status == nil
}

func mergeUpdate(current persistence.Post, input UpdateInput) persistence.PostParams {
	params := persistence.PostParams{
		Title:         current.Title,
		Slug:          current.Slug,
		Excerpt:       current.Excerpt,
		CoverImageURL: current.CoverImageURL,
		Content:       current.Content,
		Tags:          current.Tags,
		Status:        current.Status,
		PublishedAt:   current.PublishedAt,
	}
	if input.Title != nil {
		params.Title = strings.TrimSpace(*input.Title)
	}
	if input.Excerpt != nil {
		params.Excerpt = emptyToNil(input.Excerpt)
	}
	if input.CoverImageURL != nil {
		params.CoverImageURL = emptyToNil(input.CoverImageURL)
	}
	if input.Content != nil {
		params.Content = input.Content
	}
	if input.Tags != nil {
		params.Tags = normalizeTags(*input.Tags)
	}
	if input.Status != nil {
		params.Status = strings.TrimSpace(*input.Status)
	}
	return params
}

func validateParams(params persistence.PostParams) error {
	errs := FieldErrors{}

	switch {
	case params.Title == "":
		errs.add("title", "title is required")
	case len(params.Title) > maxTitleLength:
		errs.add("title", "title must be at most 200 characters")
	case slug.Derive(params.Title) == "":
		errs.add("title", "title must contain at least one letter or digit")
	}
	if params.Excerpt != nil && len(*params.Excerpt) > maxExcerptLength {
		errs.add("excerpt", "excerpt must be at most 1000 characters")
	}
	if params.CoverImageURL != nil && len(*params.CoverImageURL) > maxURLLength {
		errs.add("coverImageUrl", "coverImageUrl must be at most 2048 characters")
	}
	if !validStatus(params.Status) {
		errs.add("status", "status must be draft or published")
	}
	if len(params.Tags) > maxTags {
		errs.add("tags", "at most 20 tags are allowed")
	}
	for _, tag := range params.Tags {
		if len(tag) > maxTagLength {
			errs.add("tags", "tags must be at most 50 characters")
			break
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func validStatus(status string) bool {
	return status == StatusDraft || status == StatusPublished
}

// normalizeTags lower-cases, trims and de-duplicates tags, dropping empty ones.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		normalized := strings.ToLower(strings.TrimSpace(tag))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

func normalizeTag(tag *string) *string {
	if tag == nil {
		return nil
	}
	normalized := strings.ToLower(strings.TrimSpace(*tag))
	if normalized == "" {
		return nil
	}
	return &normalized
}

func isSlugConflict(err error) bool {
	return errors.Is(err, persistence.ErrPostConflict)
}

func mapReadError(err error) error {
	if errors.Is(err, persistence.ErrPostNotFound) {
		return ErrNotFound
	}
	return err
}

func mapWriteError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrPostNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrPostConflict):
		return ErrConflict
	case errors.Is(err, persistence.ErrInvalidDocument):
		return &ValidationError{Fields: FieldErrors{"content": []string{err.Error()}}}
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

func mapPost(record persistence.Post) Post {
	return Post{
		ID:            record.ID,
		Title:         record.Title,
		Slug:          record.Slug,
		Excerpt:       record.Excerpt,
		CoverImageURL: record.CoverImageURL,
		Content:       record.Content,
		Tags:          record.Tags,
		Status:        record.Status,
		PublishedAt:   record.PublishedAt,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
		DeletedAt:     record.DeletedAt,
	}
}

func (f FieldErrors) add(field, message string) {
	f[field] = append(f[field], message)
}
