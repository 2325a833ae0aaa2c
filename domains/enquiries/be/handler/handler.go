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

	"github.com/marmoreal/stonecms/domains/enquiries/be/service"
	"github.com/marmoreal/stonecms/platform/go/httpapi"
	platformlogging "github.com/marmoreal/stonecms/platform/go/logging"
	"github.com/marmoreal/stonecms/platform/go/problem"
	"github.com/marmoreal/stonecms/platform/go/requesttrace"
)

const enquiriesAdminPath = "/api/v1/admin/enquiries"

type operation string

const (
	submitOperation       operation = "submitEnquiry"
	listOperation         operation = "listEnquiries"
	getOperation          operation = "getEnquiry"
	updateStatusOperation operation = "updateEnquiryStatus"
	deleteOperation       operation = "deleteEnquiry"
)

// Handler exposes the enquiries service over HTTP.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
	submit func(http.Handler) http.Handler
}

// Option customises a Handler.
type Option func(*Handler)

// WithSubmitMiddleware wraps the public submission route, typically with a rate limiter.
func WithSubmitMiddleware(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.submit = mw
	}
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger, opts ...Option) *Handler {
	if svc == nil {
		panic("enquiries service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	h := &Handler{svc: svc, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) RegisterPublic(r chi.Router) {
	if h.submit != nil {
		r.With(h.submit).Post("/enquiries", h.create)
		return
	}
	r.Post("/enquiries", h.create)
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/enquiries", h.list)
	r.Get("/enquiries/{enquiryId}", h.get)
	r.Patch("/enquiries/{enquiryId}", h.updateStatus)
	r.Delete("/enquiries/{enquiryId}", h.delete)
}

// Enquiry is the admin view of an enquiry.
type Enquiry struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     *string    `json:"phone,omitempty"`
	Company   *string    `json:"company,omitempty"`
	Subject   *string    `json:"subject,omitempty"`
	Message   string     `json:"message"`
	ProductID *uuid.UUID `json:"productId,omitempty"`
	Status    string     `json:"status"`
	ClientIP  *string    `json:"clientIp,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Receipt is returned to public submitters; it never echoes stored data back.
type Receipt struct {
	ID        uuid.UUID `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type EnquiryList struct {
	Items      []Enquiry `json:"items"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	TotalItems int       `json:"totalItems"`
	TotalPages int       `json:"totalPages"`
}

type submitRequest struct {
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     *string    `json:"phone"`
	Company   *string    `json:"company"`
	Subject   *string    `json:"subject"`
	Message   string     `json:"message"`
	ProductID *uuid.UUID `json:"productId"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body submitRequest
	if err := problem.DecodeJSON(r, &body); err != nil {
		problem.BadRequest(w, err.Error())
		return
	}

	enquiry, err := h.svc.Submit(ctx, h.audit(ctx), service.SubmitInput(body))
	if err != nil {
		h.writeError(w, r, err, submitOperation)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("%s/%s", enquiriesAdminPath, enquiry.ID))
	problem.WriteJSON(w, http.StatusCreated, Receipt{ID: enquiry.ID, Status: enquiry.Status, CreatedAt: enquiry.CreatedAt})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, pageSize, err := httpapi.Page(r)
	if err != nil {
		h.writeError(w, r, err, listOperation)
		return
	}

	result, err := h.svc.List(ctx, h.audit(ctx), service.ListOptions{
		Status:   httpapi.QueryString(r, "status"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		h.writeError(w, r, err, listOperation)
		return
	}

	items := make([]Enquiry, 0, len(result.Enquiries))
	for _, enquiry := range result.Enquiries {
		items = append(items, Enquiry(enquiry))
	}
	problem.WriteJSON(w, http.StatusOK, EnquiryList{
		Items:      items,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalItems: result.TotalItems,
		TotalPages: result.TotalPages,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := httpapi.PathUUID(r, "enquiryId")
	if err != nil {
		h.writeError(w, r, err, getOperation)
		return
	}

	enquiry, err := h.svc.Get(ctx, h.audit(ctx), id)
	if err != nil {
		h.writeError(w, r, err, getOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, Enquiry(enquiry))
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := httpapi.PathUUID(r, "enquiryId")
	if err != nil {
		h.writeError(w, r, err, updateStatusOperation)
		return
	}

	var body statusRequest
	if err := problem.DecodeJSON(r, &body); err != nil {
		problem.BadRequest(w, err.Error())
		return
	}

	enquiry, err := h.svc.UpdateStatus(ctx, h.audit(ctx), id, body.Status)
	if err != nil {
		h.writeError(w, r, err, updateStatusOperation)
		return
	}
	problem.WriteJSON(w, http.StatusOK, Enquiry(enquiry))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := httpapi.PathUUID(r, "enquiryId")
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
	case errors.Is(err, service.ErrNotFound):
		details = problem.Build("Resource not found", "enquiry not found", problem.TypeNotFound, http.StatusNotFound, nil)
	default:
		details = problem.Build("Internal server error", "an unexpected error occurred", problem.TypeInternal, http.StatusInternalServerError, nil)
	}

	logger := platformlogging.FromContextOr(r.Context(), h.logger)
	fields := []zap.Field{zap.String("operation", string(op)), zap.Int("status", details.Status), zap.Error(err)}
	switch {
	case details.Status >= http.StatusInternalServerError:
		logger.Error("enquiries operation failed", fields...)
	case details.Status == http.StatusNotFound:
		logger.Info("enquiries resource not found", fields...)
	default:
		logger.Warn("enquiries request rejected", fields...)
	}

	problem.Write(w, details)
}
