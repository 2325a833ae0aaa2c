package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marmoreal/stonecms/domains/products/be/service"
	"github.com/marmoreal/stonecms/platform/go/httpapi"
	platformlogging "github.com/marmoreal/stonecms/platform/go/logging"
	"github.com/marmoreal/stonecms/platform/go/problem"
	"github.com/marmoreal/stonecms/platform/go/requesttrace"
	"github.com/marmoreal/stonecms/platform/go/slug"
)

const productsAdminPath = "/api/v1/admin/products"

type operation string

const (
	listOperation      operation = "listProducts"
	createOperation    operation = "createProduct"
	getOperation       operation = "getProduct"
	getBySlugOperation operation = "getProductBySlug"
	updateOperation    operation = "updateProduct"
	deleteOperation    operation = "deleteProduct"
)

// Handler exposes the products service over HTTP.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("products service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// RegisterPublic mounts the storefront routes. Only published products are visible.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/products", h.listPublic)
	r.Get("/products/{slug}", h.getBySlug)
}

// RegisterAdmin mounts the management routes.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/products", h.list)
	r.Post("/products", h.create)
	r.Get("/products/{productId}", h.get)
	r.Patch("/products/{productId}", h.update)
	r.Delete("/products/{productId}", h.delete)
}

// Product is the wire representation of a product.
type Product struct {
	ID             uuid.UUID       `json:"id"`
	CollectionID   *uuid.UUID      `json:"collectionId,omitempty"`
	Name           string          `json:"name"`
	Slug           string          `json:"slug"`
	Description    *string         `json:"description,omitempty"`
	Origin         *string         `json:"origin,omitempty"`
	Finish         *string         `json:"finish,omitempty"`
	Color          *string         `json:"color,omitempty"`
	Thickness      *string         `json:"thickness,omitempty"`
	Specifications json.RawMessage `json:"specifications"`
	Images         []string        `json:"images"`
	IsFeatured     bool            `json:"isFeatured"`
	IsPublished    bool            `json:"isPublished"`
	Price          *string         `json:"price,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	DeletedAt      *time.Time      `json:"deletedAt,omitempty"`
}

// ProductList is a page of products.
type ProductList struct {
	Items      []Product `json:"items"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	TotalItems int       `json:"totalItems"`
	TotalPages int       `json:"totalPages"`
}

type createRequest struct {
	CollectionID   *uuid.UUID      `json:"collectionId"`
	Name           string          `json:"name"`
	Description    *string         `json:"description"`
	Origin         *string         `json:"origin"`
	Finish         *string         `json:"finish"`
	Color          *string         `json:"color"`
	Thickness      *string         `json:"thickness"`
	Specifications json.RawMessage `json:"specifications"`
	Images         []string        `json:"images"`
	IsFeatured     bool            `json:"isFeatured"`
	IsPublished    bool            `json:"isPublished"`
	Price          *string         `json:"price"`
}

type updateRequest struct {
	CollectionID   nullableUUID    `json:"collectionId"`
	Name           *string         `json:"name"`
	Description    *string         `json:"description"`
	Origin         *string         `json:"origin"`
	Finish         *string         `json:"finish"`
	Color          *string         `json:"color"`
	Thickness      *string         `json:"thickness"`
	Specifications json.RawMessage `json:"specifications"`
	Images         *[]string       `json:"images"`
	IsFeatured     *bool           `json:"isFeatured"`
	IsPublished    *bool           `json:"isPublished"`
	Price          *string         `json:"price"`
}

// nullableUUID tells an absent field apart from an explicit null.
type nullableUUID struct {
	Set   bool
	Value *uuid.UUID
}

func (n *nullableUUID) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var id uuid.UUID
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	n.Value = &id
	return nil
}

func (h *Handler) listPublic(w http.ResponseWriter, r *http.Request) {
	h.writeList(w, r, true)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	publishedOnly, err := httpapi.QueryBool(r, "published")
	if err != nil {
		h.writeError(w, r, err, listOperation)
		return
	}
	h.writeList(w, r, publishedOnly != nil && *publishedOnly)
}

func (h *Handler) writeList(w http.ResponseWriter, r *http.Request, publishedOnly bool) {
	ctx := r.Context()
	opts, err := listOptions(r)
	if err != nil {
		h.writeError(w, r, err, listOperation)
		return
	}
	opts.PublishedOnly = publishedOnly

	result, err := h.svc.List(ctx, h.audit(ctx), opts)
	if err != nil {
		h.writeError(w, r, err, listOperation)
		return
	}

	items := make([]Product, 0, len(result.Products))
	for _, product := range result.Products {
		items = append(items, toAPIProduct(product))
	}
	problem.WriteJSON(w, http.StatusOK, ProductList{
		Items:      items,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalItems: result.TotalItems,
		TotalPages: result.TotalPages,
	})
}

func listOptions(r *http.Request) (service.ListOptions, error) {
	var (
		opts service.ListOptions
		err  error
	)
	if opts.Page, opts.PageSize, err = httpapi.Page(r); err != nil {
		return opts, err
	}
	if opts.CollectionID, err = httpapi.QueryUUID(r, "collectionId"); err != nil {
		return opts, err
	}
	if opts.Featured, err = httpapi.QueryBool(r, "featured"); err != nil {
		return opts, err
	}
	opts.Search = httpapi.QueryString(r, "q")
	return opts, nil
}

func (h *Handler) getBySlug(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	product, err := h.svc.GetPublishedBySlug(ctx, h.audit(ctx), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(w, r, err, getBySlugOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPIProduct(product))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body createRequest
	if err := problem.DecodeJSON(r, &body); err != nil {
		problem.BadRequest(w, err.Error())
		return
	}

	product, err := h.svc.Create(ctx, h.audit(ctx), service.CreateInput{
		CollectionID:   body.CollectionID,
		Name:           body.Name,
		Description:    body.Description,
		Origin:         body.Origin,
		Finish:         body.Finish,
		Color:          body.Color,
		Thickness:      body.Thickness,
		Specifications: body.Specifications,
		Images:         body.Images,
		IsFeatured:     body.IsFeatured,
		IsPublished:    body.IsPublished,
		Price:          body.Price,
	})
	if err != nil {
		h.writeError(w, r, err, createOperation)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("%s/%s", productsAdminPath, product.ID))
	problem.WriteJSON(w, http.StatusCreated, toAPIProduct(product))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := httpapi.PathUUID(r, "productId")
	if err != nil {
		h.writeError(w, r, err, getOperation)
		return
	}

	product, err := h.svc.Get(ctx, h.audit(ctx), id)
	if err != nil {
		h.writeError(w, r, err, getOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPIProduct(product))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := httpapi.PathUUID(r, "productId")
	if err != nil {
		h.writeError(w, r, err, updateOperation)
		return
	}

	var body updateRequest
	if err := problem.DecodeJSON(r, &body); err != nil {
		problem.BadRequest(w, err.Error())
		return
	}

	input := service.UpdateInput{
		Name:           body.Name,
		Description:    body.Description,
		Origin:         body.Origin,
		Finish:         body.Finish,
		Color:          body.Color,
		Thickness:      body.Thickness,
		Specifications: body.Specifications,
		Images:         body.Images,
		IsFeatured:     body.IsFeatured,
		IsPublished:    body.IsPublished,
		Price:          body.Price,
	}
	if body.CollectionID.Set {
		input.CollectionID = body.CollectionID.Value
		input.ClearCollection = body.CollectionID.Value == nil
	}

	product, err := h.svc.Update(ctx, h.audit(ctx), id, input)
	if err != nil {
		h.writeError(w, r, err, updateOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPIProduct(product))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := httpapi.PathUUID(r, "productId")
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

func toAPIProduct(product service.Product) Product {
	specs := product.Specifications
	if len(specs) == 0 {
		specs = json.RawMessage(`{}`)
	}
	images := product.Images
	if images == nil {
		images = []string{}
	}
	return Product{
		ID:             product.ID,
		CollectionID:   product.CollectionID,
		Name:           product.Name,
		Slug:           product.Slug,
		Description:    product.Description,
		Origin:         product.Origin,
		Finish:         product.Finish,
		Color:          product.Color,
		Thickness:      product.Thickness,
		Specifications: specs,
		Images:         images,
		IsFeatured:     product.IsFeatured,
		IsPublished:    product.IsPublished,
		Price:          product.Price,
		CreatedAt:      product.CreatedAt,
		UpdatedAt:      product.UpdatedAt,
		DeletedAt:      product.DeletedAt,
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
		logger.Error("products operation failed", append(fields, zap.Error(err))...)
	case status == http.StatusNotFound:
		logger.Info("products resource not found", append(fields, zap.Error(err))...)
	default:
		logger.Warn("products request rejected", append(fields, zap.Error(err))...)
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
		return http.StatusBadRequest, "Validation failed", "one or more fields are invalid", problem.TypeValidation, validationErr.Fields
	case errors.As(err, &paramErr):
		return http.StatusBadRequest, "Validation failed", "one or more parameters are invalid", problem.TypeValidation, paramErr.Fields()
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "Resource not found", "product not found", problem.TypeNotFound, nil
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, "Conflict", "a product with this slug already exists", problem.TypeConflict, nil
	case errors.Is(err, slug.ErrSlugResolutionExhausted):
		return http.StatusInternalServerError, "Internal server error", "could not allocate a unique slug", problem.TypeInternal, nil
	default:
		return http.StatusInternalServerError, "Internal server error", "an unexpected error occurred", problem.TypeInternal, nil
	}
}

func (h *Handler) loggerFrom(ctx context.Context) *zap.Logger {
	if logger, ok := platformlogging.FromContext(ctx); ok {
		return logger
	}
	return h.logger
}
