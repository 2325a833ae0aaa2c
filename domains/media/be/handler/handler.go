package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marmoreal/stonecms/domains/media/be/service"
	"github.com/marmoreal/stonecms/platform/go/httpapi"
	platformlogging "github.com/marmoreal/stonecms/platform/go/logging"
	"github.com/marmoreal/stonecms/platform/go/problem"
	"github.com/marmoreal/stonecms/platform/go/requesttrace"
)

const (
	mediaAdminPath = "/api/v1/admin/media"
	// multipartOverhead leaves room for boundaries and the alt field on top of the file limit.
	multipartOverhead = 64 << 10
	memoryLimit       = 8 << 20
)

type operation string

const (
	uploadOperation operation = "uploadMedia"
	listOperation   operation = "listMedia"
	getOperation    operation = "getMedia"
	deleteOperation operation = "deleteMedia"
)

// Handler exposes the media library over HTTP. Every route is admin-only.
type Handler struct {
	svc      service.Service
	logger   *zap.Logger
	maxBytes int64
}

// New constructs a Handler. maxBytes bounds the uploaded file; zero uses service.DefaultMaxBytes.
func New(svc service.Service, logger *zap.Logger, maxBytes int64) *Handler {
	if svc == nil {
		panic("media service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	if maxBytes <= 0 {
		maxBytes = service.DefaultMaxBytes
	}
	return &Handler{svc: svc, logger: logger, maxBytes: maxBytes}
}

// RegisterPublic mounts nothing; media URLs point at the blob store directly.
func (h *Handler) RegisterPublic(chi.Router) {}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/media", h.list)
	r.Post("/media", h.upload)
	r.Get("/media/{mediaId}", h.get)
	r.Delete("/media/{mediaId}", h.delete)
}

// Media is the wire representation of an uploaded file.
type Media struct {
	ID          uuid.UUID `json:"id"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	ObjectKey   string    `json:"objectKey"`
	URL         string    `json:"url"`
	Alt         *string   `json:"alt,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type MediaList struct {
	Items      []Media `json:"items"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
	TotalItems int     `json:"totalItems"`
	TotalPages int     `json:"totalPages"`
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(memoryLimit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, service.ErrTooLarge, uploadOperation)
			return
		}
		problem.BadRequest(w, "request must be multipart/form-data with a file field")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, &service.ValidationError{Fields: service.FieldErrors{"file": {"file is required"}}}, uploadOperation)
		return
	}
	defer file.Close()

	var alt *string
	if values := r.MultipartForm.Value["alt"]; len(values) > 0 {
		alt = &values[0]
	}

	media, err := h.svc.Upload(ctx, h.audit(ctx), service.UploadInput{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
		Alt:         alt,
	})
	if err != nil {
		h.writeError(w, r, err, uploadOperation)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("%s/%s", mediaAdminPath, media.ID))
	problem.WriteJSON(w, http.StatusCreated, Media(media))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, pageSize, err := httpapi.Page(r)
	if err != nil {
		h.writeError(w, r, err, listOperation)
		return
	}

	result, err := h.svc.List(ctx, h.audit(ctx), page, pageSize)
	if err != nil {
		h.writeError(w, r, err, listOperation)
		return
	}

	items := make([]Media, 0, len(result.Media))
	for _, media := range result.Media {
		items = append(items, Media(media))
	}
	problem.WriteJSON(w, http.StatusOK, MediaList{
		Items:      items,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalItems: result.TotalItems,
		TotalPages: result.TotalPages,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := httpapi.PathUUID(r, "mediaId")
	if err != nil {
		h.writeError(w, r, err, getOperation)
		return
	}

	media, err := h.svc.Get(ctx, h.audit(ctx), id)
	if err != nil {
		h.writeError(w, r, err, getOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, Media(media))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := httpapi.PathUUID(r, "mediaId")
	if err != nil {
		h.writeError(w, r, err, deleteOperation)
		return
	}

	if err := h.svc.Delete(ctx, h.audit(ctx), id); err != nil {
		h.writeError(w, r, err, deleteOperation)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) audit(ctx context.Context) requesttrace.AuditInfo {
	return requesttrace.FromContextOrSystem(ctx)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, op operation) {
	var (
		validationErr *service.ValidationError
		paramErr      *httpapi.ParamError
		details       problem.Details
	)
	switch {
	case errors.As(err, &validationErr):
		details = problem.Build("Validation failed", "one or more fields are invalid", problem.TypeValidation, http.StatusBadRequest, validationErr.Fields)
	case errors.As(err, &paramErr):
		details = problem.Build("Validation failed", "one or more parameters are invalid", problem.TypeValidation, http.StatusBadRequest, paramErr.Fields())
	case errors.Is(err, service.ErrTooLarge):
		details = problem.Build("Payload too large", fmt.Sprintf("files must be at most %d bytes", h.maxBytes), problem.TypeTooLarge, http.StatusRequestEntityTooLarge, nil)
	case errors.Is(err, service.ErrNotFound):
		details = problem.Build("Resource not found", "media not found", problem.TypeNotFound, http.StatusNotFound, nil)
	default:
		details = problem.Build("Internal server error", "an unexpected error occurred", problem.TypeInternal, http.StatusInternalServerError, nil)
	}

	logger := platformlogging.FromContextOr(r.Context(), h.logger)
	fields := []zap.Field{zap.String("operation", string(op)), zap.Int("status", details.Status), zap.Error(err)}
	switch {
	case details.Status >= http.StatusInternalServerError:
		logger.Error("media operation failed", fields...)
	case details.Status == http.StatusNotFound:
		logger.Info("media resource not found", fields...)
	default:
		logger.Warn("media request rejected", fields...)
	}

	problem.Write(w, details)
}
