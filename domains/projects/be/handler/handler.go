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

	"github.com/marmoreal/stonecms/domains/projects/be/service"
	"github.com/marmoreal/stonecms/platform/go/httpapi"
	platformlogging "github.com/marmoreal/stonecms/platform/go/logging"
	"github.com/marmoreal/stonecms/platform/go/problem"
	"github.com/marmoreal/stonecms/platform/go/requesttrace"
	"github.com/marmoreal/stonecms/platform/go/slug"
)

const projectsAdminPath = "/api/v1/admin/projects"

type operation string

const (
	listOperation      operation = "listProjects"
	createOperation    operation = "createProject"
	getOperation       operation = "getProject"
	getBySlugOperation operation = "getProjectBySlug"
	updateOperation    operation = "updateProject"
	deleteOperation    operation = "deleteProject"
)

// Handler exposes the projects service over HTTP.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("projects service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/projects", h.list)
	r.Get("/projects/{slug}", h.getBySlug)
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/projects", h.list)
	r.Post("/projects", h.create)
	r.Get("/projects/{projectId}", h.get)
	r.Patch("/projects/{projectId}", h.update)
	r.Delete("/projects/{projectId}", h.delete)
}

// Project is the wire representation of a project. CompletedOn is a YYYY-MM-DD date.
type Project struct {
	ID          uuid.UUID   `json:"id"`
	Title       string      `json:"title"`
	Slug        string      `json:"slug"`
	Summary     *string     `json:"summary,omitempty"`
	Location    *string     `json:"location,omitempty"`
	Client      *string     `json:"client,omitempty"`
	CompletedOn *string     `json:"completedOn,omitempty"`
	Images      []string    `json:"images"`
	ProductIDs  []uuid.UUID `json:"productIds"`
	IsFeatured  bool        `json:"isFeatured"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	DeletedAt   *time.Time  `json:"deletedAt,omitempty"`
}

type ProjectList struct {
	Items      []Project `json:"items"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	TotalItems int       `json:"totalItems"`
	TotalPages int       `json:"totalPages"`
}

type createRequest struct {
	Title       string      `json:"title"`
	Summary     *string     `json:"summary"`
	Location    *string     `json:"location"`
	Client      *string     `json:"client"`
	CompletedOn *string     `json:"completedOn"`
	Images      []string    `json:"images"`
	ProductIDs  []uuid.UUID `json:"productIds"`
	IsFeatured  bool        `json:"isFeatured"`
}

type updateRequest struct {
	Title       *string      `json:"title"`
	Summary     *string      `json:"summary"`
	Location    *string      `json:"location"`
	Client      *string      `json:"client"`
	CompletedOn *string      `json:"completedOn"`
	Images      *[]string    `json:"images"`
	ProductIDs  *[]uuid.UUID `json:"productIds"`
	IsFeatured  *bool        `json:"isFeatured"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, pageSize, err := httpapi.Page(r)
	if err != nil {
		h.writeError(w, r, err, listOperation)
		return
	}
	featured, err := httpapi.QueryBool(r, "featured")
	if err != nil {
		h.writeError(w, r, err, listOperation)
		return
	}

	result, err := h.svc.List(ctx, h.audit(ctx), service.ListOptions{Featured: featured, Page: page, PageSize: pageSize})
	if err != nil {
		h.writeError(w, r, err, listOperation)
		return
	}

	items := make([]Project, 0, len(result.Projects))
	for _, project := range result.Projects {
		items = append(items, toAPIProject(project))
	}
	problem.WriteJSON(w, http.StatusOK, ProjectList{
		Items:      items,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalItems: result.TotalItems,
		TotalPages: result.TotalPages,
	})
}

func (h *Handler) getBySlug(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project, err := h.svc.GetBySlug(ctx, h.audit(ctx), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(w, r, err, getBySlugOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPIProject(project))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body createRequest
	if err := problem.DecodeJSON(r, &body); err != nil {
		problem.BadRequest(w, err.Error())
		return
	}

	project, err := h.svc.Create(ctx, h.audit(ctx), service.CreateInput(body))
	if err != nil {
		h.writeError(w, r, err, createOperation)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("%s/%s", projectsAdminPath, project.ID))
	problem.WriteJSON(w, http.StatusCreated, toAPIProject(project))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := httpapi.PathUUID(r, "projectId")
	if err != nil {
		h.writeError(w, r, err, getOperation)
		return
	}

	project, err := h.svc.Get(ctx, h.audit(ctx), id)
	if err != nil {
		h.writeError(w, r, err, getOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPIProject(project))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := httpapi.PathUUID(r, "projectId")
	if err != nil {
		h.writeError(w, r, err, updateOperation)
		return
	}

	var body updateRequest
	if err := problem.DecodeJSON(r, &body); err != nil {
		problem.BadRequest(w, err.Error())
		return
	}

	project, err := h.svc.Update(ctx, h.audit(ctx), id, service.UpdateInput(body))
	if err != nil {
		h.writeError(w, r, err, updateOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPIProject(project))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := httpapi.PathUUID(r, "projectId")
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

func toAPIProject(project service.Project) Project {
	var completedOn *string
	if project.CompletedOn != nil {
		formatted := project.CompletedOn.Format("2006-01-02")
		completedOn = &formatted
	}
	images := project.Images
	if images == nil {
		images = []string{}
	}
	productIDs := project.ProductIDs
	if productIDs == nil {
		productIDs = []uuid.UUID{}
	}
	return Project{
		ID:          project.ID,
		Title:       project.Title,
		Slug:        project.Slug,
		Summary:     project.Summary,
		Location:    project.Location,
		Client:      project.Client,
		CompletedOn: completedOn,
		Images:      images,
		ProductIDs:  productIDs,
		IsFeatured:  project.IsFeatured,
		CreatedAt:   project.CreatedAt,
		UpdatedAt:   project.UpdatedAt,
		DeletedAt:   project.DeletedAt,
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
		logger.Error("projects operation failed", fields...)
	case status == http.StatusNotFound:
		logger.Info("projects resource not found", fields...)
	default:
		logger.Warn("projects request rejected", fields...)
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
		return http.StatusNotFound, "Resource not found", "project not found", problem.TypeNotFound, nil
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, "Conflict", "a project with this slug already exists", problem.TypeConflict, nil
	case errors.Is(err, slug.ErrSlugResolutionExhausted):
		return http.StatusInternalServerError, "Internal server error", "could not allocate a unique slug", problem.TypeInternal, nil
	default:
		return http.StatusInternalServerError, "Internal server error", "an unexpected error occurred", problem.TypeInternal, nil
	}
}
