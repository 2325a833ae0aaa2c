package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/marmoreal/stonecms/domains/admins/be/service"
	platformlogging "github.com/marmoreal/stonecms/platform/go/logging"
	"github.com/marmoreal/stonecms/platform/go/problem"
	"github.com/marmoreal/stonecms/platform/go/requesttrace"
)

// Handler serves admin sign-in and the current session.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
	loginMW func(http.Handler) http.Handler
}

// Option customises a Handler.
type Option func(*Handler)

// WithLoginMiddleware wraps the login route, typically with a rate limiter.
func WithLoginMiddleware(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.loginMW = mw
	}
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger, opts ...Option) *Handler {
	if svc == nil {
		panic("admins service is required")
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
	if h.loginMW != nil {
		r.With(h.loginMW).Post("/auth/login", h.login)
		return
	}
	r.Post("/auth/login", h.login)
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/auth/me", h.me)
}

// LoginRequest is the sign-in payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Admin is the API view of an admin account.
type Admin struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// Session is returned by a successful sign-in.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Admin     Admin     `json:"admin"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var body LoginRequest
	if err := problem.DecodeJSON(r, &body); err != nil {
		problem.BadRequest(w, err.Error())
		return
	}

	session, err := h.svc.Login(r.Context(), requesttrace.FromContextOrSystem(r.Context()), body.Email, body.Password)
	if err != nil {
		h.writeError(w, r, err, "login")
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	problem.WriteJSON(w, http.StatusOK, Session{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		Admin:     toAPIAdmin(session.Admin),
	})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	admin, err := h.svc.Me(r.Context(), requesttrace.FromContextOrSystem(r.Context()))
	if err != nil {
		h.writeError(w, r, err, "me")
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAPIAdmin(admin))
}

func toAPIAdmin(admin service.Admin) Admin {
	return Admin{
		ID:          admin.ID.String(),
		Email:       admin.Email,
		Name:        admin.Name,
		CreatedAt:   admin.CreatedAt,
		LastLoginAt: admin.LastLoginAt,
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, op string) {
	logger := platformlogging.FromContextOr(r.Context(), h.logger)

	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		logger.Warn("sign-in rejected", zap.String("operation", op))
		problem.Write(w, problem.Build("Unauthorized", "invalid email or password", problem.TypeUnauthorized, http.StatusUnauthorized, nil))
	case errors.Is(err, service.ErrUnauthenticated):
		logger.Warn("admin session missing", zap.String("operation", op))
		problem.Write(w, problem.Build("Unauthorized", "authentication is required", problem.TypeUnauthorized, http.StatusUnauthorized, nil))
	case errors.Is(err, service.ErrLoginDisabled):
		logger.Info("password sign-in disabled", zap.String("operation", op))
		problem.Write(w, problem.Build("Not found", "password sign-in is not enabled", problem.TypeNotFound, http.StatusNotFound, nil))
	case errors.Is(err, service.ErrNotFound):
		logger.Info("admin not found", zap.String("operation", op))
		problem.Write(w, problem.Build("Not found", "admin account not found", problem.TypeNotFound, http.StatusNotFound, nil))
	default:
		logger.Error("admin operation failed", zap.String("operation", op), zap.Error(err))
		problem.Write(w, problem.Build("Internal server error", "an unexpected error occurred", problem.TypeInternal, http.StatusInternalServerError, nil))
	}
}
