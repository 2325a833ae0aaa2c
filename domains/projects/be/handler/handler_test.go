package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/marmoreal/stonecms/domains/projects/be/service"
	"github.com/marmoreal/stonecms/platform/go/requesttrace"
)

type mockService struct {
	listFn      func(ctx context.Context, opts service.ListOptions) (service.ListResult, error)
	createFn    func(ctx context.Context, input service.CreateInput) (service.Project, error)
	getFn       func(ctx context.Context, id uuid.UUID) (service.Project, error)
	getBySlugFn func(ctx context.Context, slug string) (service.Project, error)
	updateFn    func(ctx context.Context, id uuid.UUID, input service.UpdateInput) (service.Project, error)
	deleteFn    func(ctx context.Context, id uuid.UUID) error
}

func (m *mockService) List(ctx context.Context, _ requesttrace.AuditInfo, opts service.ListOptions) (service.ListResult, error) {
	if m.listFn == nil {
		panic("listFn not configured")
	}
	return m.listFn(ctx, opts)
}

func (m *mockService) Create(ctx context.Context, _ requesttrace.AuditInfo, input service.CreateInput) (service.Project, error) {
	if m.createFn == nil {
		panic("createFn not configured")
	}
	return m.createFn(ctx, input)
}

func (m *mockService) Get(ctx context.Context, _ requesttrace.AuditInfo, id uuid.UUID) (service.Project, error) {
	if m.getFn == nil {
		panic("getFn not configured")
	}
	return m.getFn(ctx, id)
}

func (m *mockService) GetBySlug(ctx context.Context, _ requesttrace.AuditInfo, slug string) (service.Project, error) {
	if m.getBySlugFn == nil {
		panic("getBySlugFn not configured")
	}
	return m.getBySlugFn(ctx, slug)
}

func (m *mockService) Update(ctx context.Context, _ requesttrace.AuditInfo, id uuid.UUID, input service.UpdateInput) (service.Project, error) {
	if m.updateFn == nil {
		panic("updateFn not configured")
	}
	return m.updateFn(ctx, id, input)
}

func (m *mockService) Delete(ctx context.Context, _ requesttrace.AuditInfo, id uuid.UUID) error {
	if m.deleteFn == nil {
		panic("deleteFn not configured")
	}
	return m.deleteFn(ctx, id)
}

func newRouter(t *testing.T, svc service.Service) http.Handler {
	t.Helper()
	h := New(svc, zaptest.NewLogger(t))
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		h.RegisterPublic(r)
		r.Route("/admin", h.RegisterAdmin)
	})
	return r
}

func TestHandlerCreateProject(t *testing.T) {
	t.Parallel()

	completed := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	svc := &mockService{
		createFn: func(ctx context.Context, input service.CreateInput) (service.Project, error) {
			require.Equal(t, "Harbour Hotel", input.Title)
			require.Equal(t, "2024-05-10", *input.CompletedOn)
			return service.Project{ID: uuid.New(), Title: input.Title, Slug: "harbour-hotel", CompletedOn: &completed}, nil
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/projects", strings.NewReader(`{"title":"Harbour Hotel","completedOn":"2024-05-10"}`))
	newRouter(t, svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Header().Get("Location"), "/api/v1/admin/projects/")

	var body Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "2024-05-10", *body.CompletedOn)
	require.Empty(t, body.ProductIDs)
}

func TestHandlerCreateRejectsClientSlug(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/projects", strings.NewReader(`{"title":"Villa","slug":"custom"}`))
	newRouter(t, &mockService{}).ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerValidationProblem(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		updateFn: func(ctx context.Context, id uuid.UUID, input service.UpdateInput) (service.Project, error) {
			return service.Project{}, &service.ValidationError{Fields: service.FieldErrors{"productIds": {"product not found"}}}
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/admin/projects/"+uuid.NewString(), strings.NewReader(`{"productIds":[]}`))
	newRouter(t, svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "productIds")
}

func TestHandlerListFeatured(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		listFn: func(ctx context.Context, opts service.ListOptions) (service.ListResult, error) {
			require.NotNil(t, opts.Featured)
			require.True(t, *opts.Featured)
			return service.ListResult{Page: 1, PageSize: 20}, nil
		},
	}

	rec := httptest.NewRecorder()
	newRouter(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/projects?featured=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"items":[],"page":1,"pageSize":20,"totalItems":0,"totalPages":0}`, rec.Body.String())
}

func TestHandlerDeleteInvalidID(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newRouter(t, &mockService{}).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/admin/projects/nope", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
