package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marmoreal/stonecms/domains/posts/be/service"
	"github.com/marmoreal/stonecms/platform/go/httpapi"
	platformlogging "github.com/marmoreal/stonecms/platform/go/logging"
	"github.com/marmoreal/stonecms/platform/go/problem"
	"github.com/marmoreal/stonecms/platform/go/requesttrace"
	"github.com/marmoreal/stonecms/platform/go/slug"
)

const postsAdminPath = "/api/v1/admin/posts"

type operation string

const (
	listOperation      operation = "listPosts"
	createOperation    operation = "createPost"
	getOperation       operation = "getPost"
	getBySlugOperation operation = "getPostBySlug"
	updateOperation    operation = "updatePost"
	deleteOperation    operation = "deletePost"
)

// Handler exposes the blog over HTTP.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("posts service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// RegisterPublic mounts the read-only blog routes. Drafts are never listed or served here.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/posts", h.listPublic)
	r.Get("/posts/{slug}", h.getBySlug)
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/posts", h.list)
	r.Post("/posts", h.create)
	r.Get("/posts/{postId}", h.get)
	r.Patch("/posts/{postId}", h.update)
	r.Delete("/posts/{postId}", h.delete)
}

// Post is the wire representation of a blog post.
type Post struct {
	ID            uuid.UUID       `json:"id"`
	Title         string          `json:"title"`
	Slug          string          `json:"slug"`
	Excerpt       *string         `json:"excerpt,omitempty"`
	CoverImageURL *string         `json:"coverImageUrl,omitempty"`
	Content       json.RawMessage `json:"content"`
	Tags          []string        `json:"tags"`
	Status        string          `json:"status"`
	PublishedAt   *time.Time      `json:"publishedAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	DeletedAt     *time.Time      `json:"deletedAt,omitempty"`
}

type PostList struct {
	Items      []Post `json:"items"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
	TotalItems int    `json:"totalItems"`
	TotalPages int    `json:"totalPages"`
}

type createRequest struct {
	Title         string          `json:"title"`
	Excerpt       *string         `json:"excerpt"`
	CoverImageURL *string         `json:"coverImageUrl"`
	Content       json.RawMessage `json:"content"`
	Tags          []string        `json:"tags"`
	Status        *string         `json:"status"`
}

type updateRequest struct {
	Title         *string         `json:"title"`
	Excerpt       *string         `json:"excerpt"`
	CoverImageURL *string         `json:"coverImageUrl"`
	Content       json.RawMessage `json:"content"`
	Tags          *[]string       `json:"tags"`
	Status        *string         `json:"status"`
}

func (h *Handler) listPublic(w http.ResponseWriter, r *http.Request) {
	published := service.StatusPublished
	h.writeList(w, r, &published)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	h.writeList(w, r, httpapi.QueryString(r, "status"))
}

func (h *Handler) writeList(w http.ResponseWriter, r *http.Request, status *string) {
	ctx := r.Context()
	page, pageSize, err := httpapi.Page(r)
	if err != nil {
		h.writeError(w, r, err, listOperation)
		return
	}

	result, err := h.svc.List(ctx, h.audit(ctx), service.ListOptions{
		Status:   status,
		Tag:      httpapi.QueryString(r, "tag"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		h.writeError(w, r, err, listOperation)
		return
	}

	items := make([]Post, 0, len(result.Posts))
	for _, post := range result.Posts {
		items = append(items, toAPIPost(post))
	}
	problem.WriteJSON(w, http.StatusOK, PostList{
		Items:      items,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalItems: result.TotalItems,
		TotalPages: result.TotalPages,
	})
}

func (h *Handler) getBySlug(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	post, err := h.svc.GetPublishedBySlug(ctx, h.audit(ctx), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(w, r, err, getBySlugOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPIPost(post))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body createRequest
	if err := problem.DecodeJSON(r, &body); err != nil {
		problem.BadRequest(w, err.Error())
		return
	}

	post, err := h.svc.Create(ctx, h.audit(ctx), service.CreateInput(body))
	if err != nil {
		h.writeError(w, r, err, createOperation)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("%s/%s", postsAdminPath, post.ID))
	problem.WriteJSON(w, http.StatusCreated, toAPIPost(post))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := httpapi.PathUUID(r, "postId")
	if err != nil {
		h.writeError(w, r, err, getOperation)
		return
	}

	post, err := h.svc.Get(ctx, h.audit(ctx), id)
	if err != nil {
		h.writeError(w, r, err, getOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPIPost(post))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := httpapi.PathUUID(r, "postId")
	if err != nil {
		h.writeError(w, r, err, updateOperation)
		return
	}

	var body updateRequest
	if err := problem.DecodeJSON(r, &body); err != nil {
		problem.BadRequest(w, err.Error())
		return
	}

	post, err := h.svc.Update(ctx, h.audit(ctx), id, service.UpdateInput(body))
	if err != nil {
		h.writeError(w, r, err, updateOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPIPost(post))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := httpapi.PathUUID(r, "postId")
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

func toAPIPost(post service.Post) Post {
	content := post.Content
	if len(content) == 0 {
		content = json.RawMessage(`[]`)
	}
	tags := post.Tags
	if tags == nil {
		tags = []string{}
	}
	return Post{
		ID:            post.ID,
		Title:         post.Title,
		Slug:          post.Slug,
		Excerpt:       post.Excerpt,
		CoverImageURL: post.CoverImageURL,
		Content:       content,
		Tags:          tags,
		Status:        post.Status,
		PublishedAt:   post.PublishedAt,
		CreatedAt:     post.CreatedAt,
		UpdatedAt:     post.UpdatedAt,
		DeletedAt:     post.DeletedAt,
	}
}

func (h *Handler) audit(ctx context.Context) requesttrace.AuditInfo {
	return requesttrace.FromContextOrSystem(ctx)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, op operation) {
	status, title, detail, problemType, fieldErrors := classifyError(err)

	logger := platformlogging.FromContextOr(r.Context(), h.logger)
	fields := []zap.Field{zap.String("operation", string(op)), zap.Int("status", status), zap.Error(err)}
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("posts operation failed", fields...)
	case status == http.StatusNotFound:
		logger.Info("posts resource not found", fields...)
	default:
		logger.Warn("posts request rejected", fields...)
	}

	problem.Write(w, problem.Build(title, detail, problemType, status, fieldErrors))
}

func classifyError(err error) (status int, title, detail, problemType string, fieldErrors map[string][]string) {
	var (
		validationErr *service.ValidationError
		paramErr      *httpapi.ParamError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, "Validation failed", "one or more fields are invalid", problem.TypeValidation, validationErr.Fields
	case errors.As(err, &paramErr):
		return http.StatusBadRequest, "Validation failed", "one or more parameters are invalid", problem.TypeValidation, paramErr.Fields()
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "Resource not found", "post not found", problem.TypeNotFound, nil
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, "Conflict", "a post with this slug already exists", problem.TypeConflict, nil
	case errors.Is(err, slug.ErrSlugResolutionExhausted):
		return http.StatusInternalServerError, "Internal server error", "could not allocate a unique slug", problem.TypeInternal, nil
	default:
		return http.StatusInternalServerError, "Internal server error", "an unexpected error occurred", problem.TypeInternal, nil
	}
}
