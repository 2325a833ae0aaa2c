package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainrepo "github.com/marmoreal/stonecms/domains/media/be/repo"
	"github.com/marmoreal/stonecms/platform/go/persistence"
	"github.com/marmoreal/stonecms/platform/go/requesttrace"
	"github.com/marmoreal/stonecms/platform/go/storage"
)

const (
	// DefaultMaxBytes caps uploads when Config.MaxBytes is unset.
	DefaultMaxBytes   = 10 << 20
	maxFileNameLength = 255
	maxAltLength      = 300
	sniffLength       = 512
)

// allowedTypes maps accepted content types to the extension used when the file name has none.
var allowedTypes = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/webp":      "webp",
	"image/gif":       "gif",
	"image/svg+xml":   "svg",
	"application/pdf": "pdf",
}

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
	ErrNotFound = errors.New("media not found")
	// ErrTooLarge is returned when an upload exceeds the configured limit.
	ErrTooLarge = errors.New("media too large")
)

// Media is an uploaded file.
type Media struct {
	ID          uuid.UUID
	FileName    string
	ContentType string
	SizeBytes   int64
	ObjectKey   string
	URL         string
	Alt         *string
	CreatedAt   time.Time
}

// UploadInput describes one uploaded file. Size is the byte count reported by the client.
type UploadInput struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
	Alt         *string
}

// ListResult wraps a page of media with pagination metadata.
type ListResult struct {
	Media      []Media
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// Service exposes the media library operations.
type Service interface {
	Upload(ctx context.Context, audit requesttrace.AuditInfo, input UploadInput) (Media, error)
	List(ctx context.Context, audit requesttrace.AuditInfo, page, pageSize int) (ListResult, error)
	Get(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID) (Media, error)
	Delete(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID) error
}

// Config wires the blob store and limits.
type Config struct {
	Blobs         storage.BlobStore
	PublicBaseURL string
	MaxBytes      int64
	Logger        *zap.Logger
}

type service struct {
	repo     domainrepo.Repository
	blobs    storage.BlobStore
	baseURL  string
	maxBytes int64
	logger   *zap.Logger
	now      func() time.Time
}

// New builds a media Service storing metadata in repo and blobs in cfg.Blobs.
func New(repo domainrepo.Repository, cfg Config) Service {
	if repo == nil {
		panic("media repository is required")
	}
	if cfg.Blobs == nil {
		panic("blob store is required")
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		repo:     repo,
		blobs:    cfg.Blobs,
		baseURL:  cfg.PublicBaseURL,
		maxBytes: maxBytes,
		logger:   logger,
		now:      time.Now,
	}
}

// Upload writes the blob first and then the metadata row. A failed insert removes the blob again.
func (s *service) Upload(ctx context.Context, audit requesttrace.AuditInfo, input UploadInput) (Media, error) {
	fileName := strings.TrimSpace(input.FileName)
	alt := emptyToNil(input.Alt)
	contentType := normalizeContentType(input.ContentType)

	errs := FieldErrors{}
	switch {
	case fileName == "":
		errs.add("file", "file name is required")
	case len(fileName) > maxFileNameLength:
		errs.add("file", "file name must be at most 255 characters")
	}
	if _, ok := allowedTypes[contentType]; !ok {
		errs.add("file", "content type must be one of image/jpeg, image/png, image/webp, image/gif, image/svg+xml, application/pdf")
	}
	if alt != nil && len(*alt) > maxAltLength {
		errs.add("alt", "alt must be at most 300 characters")
	}
	if input.Body == nil || input.Size == 0 {
		errs.add("file", "file must not be empty")
	}
	if len(errs) > 0 {
		return Media{}, &ValidationError{Fields: errs}
	}
	if input.Size > s.maxBytes {
		return Media{}, ErrTooLarge
	}

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(input.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Media{}, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if !contentMatches(contentType, head) {
		return Media{}, &ValidationError{Fields: FieldErrors{"file": []string{"file content does not match " + contentType}}}
	}

	id := uuid.New()
	key, err := storage.ObjectKey(s.now(), id, fileName, allowedTypes[contentType])
	if err != nil {
		return Media{}, &ValidationError{Fields: FieldErrors{"file": []string{err.Error()}}}
	}

	body := io.MultiReader(bytes.NewReader(head), input.Body)
	if err := s.blobs.Put(ctx, key, body, input.Size, contentType); err != nil {
		return Media{}, fmt.Errorf("store blob: %w", err)
	}

	record, err := s.repo.Create(ctx, id, persistence.CreateMediaParams{
		FileName:    fileName,
		ContentType: contentType,
		SizeBytes:   input.Size,
		ObjectKey:   key,
		URL:         storage.PublicURL(s.baseURL, key),
		Alt:         alt,
	})
	if err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Warn("remove orphaned blob", zap.String("object_key", key), zap.Error(delErr))
		}
		return Media{}, err
	}

	s.logger.Info("media uploaded",
		zap.String("media_id", record.ID.String()),
		zap.String("object_key", key),
		zap.Int64("size_bytes", input.Size),
		zap.String("actor", audit.Actor()),
	)
	return mapMedia(record), nil
}

func (s *service) List(ctx context.Context, audit requesttrace.AuditInfo, page, pageSize int) (ListResult, error) { //nolint:revive
	page, pageSize = persistence.NormalizePage(page, pageSize)
	result, err := s.repo.List(ctx, page, pageSize)
	if err != nil {
		return ListResult{}, err
	}

	media := make([]Media, 0, len(result.Items))
	for _, record := range result.Items {
		media = append(media, mapMedia(record))
	}

	totalPages := 0
	if result.TotalItems > 0 {
		totalPages = (result.TotalItems + pageSize - 1) / pageSize
	}
	return ListResult{
		Media:      media,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: result.TotalItems,
		TotalPages: totalPages,
	}, nil
}

func (s *service) Get(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID) (Media, error) { //nolint:revive
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return Media{}, mapError(err)
	}
	return mapMedia(record), nil
}

// Delete removes the blob and then the record. A blob that is already gone is not an error.
func (s *service) Delete(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID) error {
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return mapError(err)
	}

	if err := s.blobs.Delete(ctx, record.ObjectKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		return fmt.Errorf("delete blob: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapError(err)
	}

	s.logger.Info("media deleted", zap.String("media_id", id.String()), zap.String("actor", audit.Actor()))
	return nil
}

func normalizeContentType(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if i := strings.IndexByte(value, ';'); i >= 0 {
		value = strings.TrimSpace(value[:i])
	}
	if value == "image/jpg" {
		return "image/jpeg"
	}
	return value
}

// contentMatches compares the declared type with the sniffed one. SVG is text and sniffs as XML or plain text.
func contentMatches(declared string, head []byte) bool {
	sniffed := normalizeContentType(http.DetectContentType(head))
	if declared == "image/svg+xml" {
		return (sniffed == "text/xml" || sniffed == "text/plain") && bytes.Contains(bytes.ToLower(head), []byte("<svg"))
	}
	return sniffed == declared
}

func mapError(err error) error {
	if errors.Is(err, persistence.ErrMediaNotFound) {
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

func mapMedia(record persistence.Media) Media {
	return Media{
		ID:          record.ID,
		FileName:    record.FileName,
		ContentType: record.ContentType,
		SizeBytes:   record.SizeBytes,
		ObjectKey:   record.ObjectKey,
		URL:         record.URL,
		Alt:         record.Alt,
		CreatedAt:   record.CreatedAt,
	}
}

func (f FieldErrors) add(field, message string) {
	f[field] = append(f[field], message)
}
