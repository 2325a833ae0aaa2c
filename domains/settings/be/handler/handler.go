package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/marmoreal/stonecms/domains/settings/be/service"
	"github.com/marmoreal/stonecms/platform/go/httpapi"
	platformlogging "github.com/marmoreal/stonecms/platform/go/logging"
	"github.com/marmoreal/stonecms/platform/go/problem"
	"github.com/marmoreal/stonecms/platform/go/requesttrace"
)

// Handler exposes the site settings document.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("settings service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// RegisterPublic serves the bare document to the storefront.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/settings", h.getPublic)
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/settings", h.get)
	r.Put("/settings", h.put)
}

// Settings is the admin view of the settings document.
type Settings struct {
	Settings  json.RawMessage `json:"settings"`
	UpdatedBy string          `json:"updatedBy"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (h *Handler) getPublic(w http.ResponseWriter, r *http.Request) {
	settings, err := h.svc.Get(r.Context(), requesttrace.FromContextOrSystem(r.Context()))
	if err != nil {
		h.writeError(w, r, err, "getSettings")
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=60")
	if etag, err := httpapi.ETag(settings.Document); err == nil {
		w.Header().Set("ETag", etag)
		if httpapi.NotModified(r, etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	problem.WriteJSON(w, http.StatusOK, settings.Document)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.svc.Get(r.Context(), requesttrace.FromContextOrSystem(r.Context()))
	if err != nil {
		h.writeError(w, r, err, "getSettingsAdmin")
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPISettings(settings))
}

func (h *Handler) put(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, problem.MaxJSONBody))
	if err != nil {
		problem.BadRequest(w, "could not read request body")
		return
	}
	if !json.Valid(raw) {
		problem.BadRequest(w, "request body must be valid JSON")
		return
	}

	settings, err := h.svc.Update(r.Context(), requesttrace.FromContextOrSystem(r.Context()), raw)
	if err != nil {
		h.writeError(w, r, err, "updateSettings")
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPISettings(settings))
}

func toAPISettings(settings service.Settings) Settings {
	return Settings{Settings: settings.Document, UpdatedBy: settings.UpdatedBy, UpdatedAt: settings.UpdatedAt}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, op string) {
	logger := platformlogging.FromContextOr(r.Context(), h.logger)

	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		logger.Warn("settings request rejected", zap.String("operation", op), zap.Error(err))
		problem.Write(w, problem.Build("Validation failed", "the settings document is invalid", problem.TypeValidation, http.StatusBadRequest, validationErr.Fields))
		return
	}

	logger.Error("settings operation failed", zap.String("operation", op), zap.Error(err))
	problem.Write(w, problem.Build("Internal server error", "an unexpected error occurred", problem.TypeInternal, http.StatusInternalServerError, nil))
}
