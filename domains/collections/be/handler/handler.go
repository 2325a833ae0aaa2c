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

	"github.com/marmoreal/stonecms/domains/collections/be/service"
	"github.com/marmoreal/stonecms/platform/go/httpapi"
	platformlogging "github.com/marmoreal/stonecms/platform/go/logging"
	"github.com/marmoreal/stonecms/platform/go/problem"
	"github.com/marmoreal/stonecms/platform/go/requesttrace"
	"github.com/marmoreal/stonecms/platform/go/slug"
)

const collectionsAdminPath = "/api/v1/admin/collections"

type operation string

const (
	listOperation      operation = "listCollections"
	createOperation    operation = "createCollection"
	getOperation       operation = "getCollection"
	getBySlugOperation operation = "getCollectionBySlug"
	updateOperation    operation = "updateCollection"
	deleteOperation    operation = "deleteCollection"
)

// Handler exposes the collections service over HTTP.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("collections service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// RegisterPublic mounts the read-only routes served to the storefront.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/collections", h.listPublic)
	r.Get("/collections/{slug}", h.getBySlug)
}

// RegisterAdmin mounts the management routes. Callers guard them with the admin role.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/collections", h.list)
	r.Post("/collections", h.create)
	r.Get("/collections/{collectionId}", h.get)
	r.Patch("/collections/{collectionId}", h.update)
	r.Delete("/collections/{collectionId}", h.delete)
}

// Collection is the wire representation of a collection.
type Collection struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Slug          string     `json:"slug"`
	Description   *string    `json:"description,omitempty"`
	CoverImageURL *string    `json:"coverImageUrl,omitempty"`
	SortOrder     int        `json:"sortOrder"`
	IsFeatured    bool       `json:"isFeatured"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	DeletedAt     *time.Time `json:"deletedAt,omitempty"`
}

// CollectionList wraps collection listings.
type CollectionList struct {
	Items []Collection `json:"items"`
}

type createRequest struct {
	Name          string  `json:"name"`
	Description   *string `json:"description"`
	CoverImageURL *string `json:"coverImageUrl"`
	SortOrder     int     `json:"sortOrder"`
	IsFeatured    bool    `json:"isFeatured"`
}

type updateRequest struct {
	Name          *string `json:"name"`
	Description   *string `json:"description"`
	CoverImageURL *string `json:"coverImageUrl"`
	SortOrder     *int    `json:"sortOrder"`
	IsFeatured    *bool   `json:"isFeatured"`
}

func (h *Handler) listPublic(w http.ResponseWriter, r *http.Request) {
	h.writeList(w, r, false)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	includeDeleted, err := httpapi.QueryBool(r, "includeDeleted")
	if err != nil {
		h.writeError(w, r, err, listOperation)
		return
	}
	h.writeList(w, r, includeDeleted != nil && *includeDeleted)
}

func (h *Handler) writeList(w http.ResponseWriter, r *http.Request, includeDeleted bool) {
	ctx := r.Context()
	collections, err := h.svc.List(ctx, h.audit(ctx), includeDeleted)
	if err != nil {
		h.writeError(w, r, err, listOperation)
		return
	}

	items := make([]Collection, 0, len(collections))
	for _, collection := range collections {
		items = append(items, toAPICollection(collection))
	}
	problem.WriteJSON(w, http.StatusOK, CollectionList{Items: items})
}

func (h *Handler) getBySlug(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	collection, err := h.svc.GetBySlug(ctx, h.audit(ctx), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(w, r, err, getBySlugOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPICollection(collection))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body createRequest
	if err := problem.DecodeJSON(r, &body); err != nil {
		problem.BadRequest(w, err.Error())
		return
	}

	collection, err := h.svc.Create(ctx, h.audit(ctx), service.CreateInput{
		Name:          body.Name,
		Description:   body.Description,
		CoverImageURL: body.CoverImageURL,
		SortOrder:     body.SortOrder,
		IsFeatured:    body.IsFeatured,
	})
	if err != nil {
		h.writeError(w, r, err, createOperation)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("%s/%s", collectionsAdminPath, collection.ID))
	problem.WriteJSON(w, http.StatusCreated, toAPICollection(collection))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := httpapi.PathUUID(r, "collectionId")
	if err != nil {
		h.writeError(w, r, err, getOperation)
		return
	}

	collection, err := h.svc.Get(ctx, h.audit(ctx), id)
	if err != nil {
		h.writeError(w, r, err, getOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPICollection(collection))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := httpapi.PathUUID(r, "collectionId")
	if err != nil {
		h.writeError(w, r, err, updateOperation)
		return
	}

	var body updateRequest
	if err := problem.DecodeJSON(r, &body); err != nil {
		problem.BadRequest(w, err.Error())
		return
	}

	collection, err := h.svc.Update(ctx, h.audit(ctx), id, service.UpdateInput{
		Name:          body.Name,
		Description:   body.Description,
		CoverImageURL: body.CoverImageURL,
		SortOrder:     body.SortOrder,
		IsFeatured:    body.IsFeatured,
	})
	if err != nil {
		h.writeError(w, r, err, updateOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPICollection(collection))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := httpapi.PathUUID(r, "collectionId")
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

func toAPICollection(collection service.Collection) Collection {
	return Collection{
		ID:            collection.ID,
		Name:          collection.Name,
		Slug:          collection.Slug,
		Description:   collection.Description,
		CoverImageURL: collection.CoverImageURL,
		SortOrder:     collection.SortOrder,
		IsFeatured:    collection.IsFeatured,
		CreatedAt:     collection.CreatedAt,
		UpdatedAt:     collection.UpdatedAt,
		DeletedAt:     collection.DeletedAt,
	}
}

func (h *Handler) audit(ctx context.Context) requesttrace.AuditInfo {
	return requesttrace.FromContextOrSystem(ctx)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, op operation) {
	problem.Write(w, h.problemForError(r.Context(), err, op))
}

func (h *Handler) problemForError(ctx context.Context, err error, op operation) problem.Details {
	status, title, detail, problemType, fieldErrors := h.classifyError(err)

	logger := h.loggerFrom(ctx)
	fields := []zap.Field{
		zap.String("operation", string(op)),
		zap.Int("status", status),
	}

	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("collections operation failed", append(fields, zap.Error(err))...)
	case status == http.StatusNotFound:
		logger.Info("collections resource not found", append(fields, zap.Error(err))...)
	default:
		logger.Warn("collections request rejected", append(fields, zap.Error(err))...)
	}

	return problem.Build(title, detail, problemType, status, fieldErrors)
}

func (h *Handler) classifyError(err error) (status int, title, detail, problemType string, fieldErrors map[string][]string) {
	var (
		validationErr *service.ValidationError
		paramErr      *httpapi.ParamError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest,
			"Validation failed",
			"one or more fields are invalid",
			problem.TypeValidation,
			validationErr.Fields
	case errors.As(err, &paramErr):
		return http.StatusBadRequest,
			"Validation failed",
			"one or more parameters are invalid",
			problem.TypeValidation,
			paramErr.Fields()
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound,
			"Resource not found",
			"collection not found",
			problem.TypeNotFound,
			nil
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict,
			"Conflict",
			"a collection with this slug already exists",
			problem.TypeConflict,
			nil
	case errors.Is(err, slug.ErrSlugResolutionExhausted):
		return http.StatusInternalServerError,
			"Internal server error",
			"could not allocate a unique slug",
			problem.TypeInternal,
			nil
	default:
		return http.StatusInternalServerError,
			"Internal server error",
			"an unexpected error occurred",
			problem.TypeInternal,
			nil
	}
}

func (h *Handler) loggerFrom(ctx context.Context) *zap.Logger {
	if logger, ok := platformlogging.FromContext(ctx); ok {
		return logger
	}
	return h.logger
}
