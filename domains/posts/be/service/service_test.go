package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/marmoreal/stonecms/platform/go/persistence"
	"github.com/marmoreal/stonecms/platform/go/requesttrace"
)

type mockRepository struct {
	listFn       func(ctx context.Context, params persistence.ListPostsParams) (persistence.PageResult[persistence.Post], error)
	createFn     func(ctx context.Context, id uuid.UUID, params persistence.PostParams) (persistence.Post, error)
	getFn        func(ctx context.Context, id uuid.UUID) (persistence.Post, error)
	getBySlugFn  func(ctx context.Context, slug string) (persistence.Post, error)
	updateFn     func(ctx context.Context, id uuid.UUID, params persistence.PostParams) (persistence.Post, error)
	softDeleteFn func(ctx context.Context, id uuid.UUID, deletedAt time.Time) error
	slugExistsFn func(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error)
}

func (m *mockRepository) List(ctx context.Context, params persistence.ListPostsParams) (persistence.PageResult[persistence.Post], error) {
	if m.listFn == nil {
		panic("listFn not configured")
	}
	return m.listFn(ctx, params)
}

func (m *mockRepository) Create(ctx context.Context, id uuid.UUID, params persistence.PostParams) (persistence.Post, error) {
	if m.createFn == nil {
		panic("createFn not configured")
	}
	return m.createFn(ctx, id, params)
}

func (m *mockRepository) Get(ctx context.Context, id uuid.UUID) (persistence.Post, error) {
	if m.getFn == nil {
		panic("getFn not configured")
	}
	return m.getFn(ctx, id)
}

func (m *mockRepository) GetBySlug(ctx context.Context, slug string) (persistence.Post, error) {
	if m.getBySlugFn == nil {
		panic("getBySlugFn not configured")
	}
	return m.getBySlugFn(ctx, slug)
}

func (m *mockRepository) Update(ctx context.Context, id uuid.UUID, params persistence.PostParams) (persistence.Post, error) {
	if m.updateFn == nil {
		panic("updateFn not configured")
	}
	return m.updateFn(ctx, id, params)
}

func (m *mockRepository) SoftDelete(ctx context.Context, id uuid.UUID, deletedAt time.Time) error {
	if m.softDeleteFn == nil {
		panic("softDeleteFn not configured")
	}
	return m.softDeleteFn(ctx, id, deletedAt)
}

func (m *mockRepository) SlugExists(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error) {
	if m.slugExistsFn == nil {
		panic("slugExistsFn not configured")
	}
	return m.slugExistsFn(ctx, slug, excludeID)
}

var audit = requesttrace.System("test")

func noSlugs(ctx context.Context, value string, excludeID uuid.UUID) (bool, error) {
	return false, nil
}

func echoCreate(ctx context.Context, id uuid.UUID, params persistence.PostParams) (persistence.Post, error) {
	return persistence.Post{
		ID: id, Title: params.Title, Slug: params.Slug, Content: params.Content, Tags: params.Tags,
		Status: params.Status, PublishedAt: params.PublishedAt,
	}, nil
}

func TestServiceCreateDraftByDefault(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{slugExistsFn: noSlugs, createFn: echoCreate}
	post, err := New(repo, Config{}).Create(context.Background(), audit, CreateInput{
		Title:   "Caring for Marble Floors",
		Content: json.RawMessage(`[{"type":"paragraph","text":"Seal twice a year."}]`),
		Tags:    []string{" Care ", "care", "Marble", ""},
	})
	require.NoError(t, err)
	require.Equal(t, "caring-for-marble-floors", post.Slug)
	require.Equal(t, StatusDraft, post.Status)
	require.Nil(t, post.PublishedAt)
	require.Equal(t, []string{"care", "marble"}, post.Tags)
}

func TestServiceCreatePublishedStampsPublishedAt(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := New(&mockRepository{slugExistsFn: noSlugs, createFn: echoCreate}, Config{}).(*service)
	svc.now = func() time.Time { return now }

	status := StatusPublished
	post, err := svc.Create(context.Background(), audit, CreateInput{Title: "Launch", Status: &status})
	require.NoError(t, err)
	require.Equal(t, now, *post.PublishedAt)
}

func TestServiceCreateValidation(t *testing.T) {
	t.Parallel()

	status := "scheduled"
	_, err := New(&mockRepository{}, Config{}).Create(context.Background(), audit, CreateInput{Title: "--", Status: &status})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "title")
	require.Contains(t, validationErr.Fields, "status")
}

func TestServiceCreateInvalidContent(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{
		slugExistsFn: noSlugs,
		createFn: func(ctx context.Context, id uuid.UUID, params persistence.PostParams) (persistence.Post, error) {
			return persistence.Post{}, fmt.Errorf("%w: post_content: unknown block", persistence.ErrInvalidDocument)
		},
	}
	_, err := New(repo, Config{}).Create(context.Background(), audit, CreateInput{
		Title:   "Bad Blocks",
		Content: json.RawMessage(`[{"type":"video"}]`),
	})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "content")
}

func TestServiceUpdatePublishing(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		current   persistence.Post
		status    string
		published *time.Time
	}{
		{name: "first publish stamps now", current: persistence.Post{Status: StatusDraft}, status: StatusPublished, published: &now},
		{name: "republish keeps original", current: persistence.Post{Status: StatusDraft, PublishedAt: &first}, status: StatusPublished, published: &first},
		{name: "unpublish keeps original", current: persistence.Post{Status: StatusPublished, PublishedAt: &first}, status: StatusDraft, published: &first},
		{name: "draft stays unstamped", current: persistence.Post{Status: StatusDraft}, status: StatusDraft, published: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			current := tc.current
			current.ID = id
			current.Title = "Quarry Visit"
			current.Slug = "quarry-visit"

			repo := &mockRepository{
				getFn: func(ctx context.Context, got uuid.UUID) (persistence.Post, error) {
					return current, nil
				},
				updateFn: func(ctx context.Context, got uuid.UUID, params persistence.PostParams) (persistence.Post, error) {
					require.Equal(t, "quarry-visit", params.Slug)
					return persistence.Post{ID: got, Title: params.Title, Slug: params.Slug, Status: params.Status, PublishedAt: params.PublishedAt}, nil
				},
			}
			svc := New(repo, Config{}).(*service)
			svc.now = func() time.Time { return now }

			status := tc.status
			post, err := svc.Update(context.Background(), audit, id, UpdateInput{Status: &status})
			require.NoError(t, err)
			require.Equal(t, tc.status, post.Status)
			require.Equal(t, tc.published, post.PublishedAt)
		})
	}
}

func TestServiceUpdateRenameResolvesSlug(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	title := "Quarry Visit"
	repo := &mockRepository{
		getFn: func(ctx context.Context, got uuid.UUID) (persistence.Post, error) {
			return persistence.Post{ID: id, Title: "Draft", Slug: "draft", Status: StatusDraft}, nil
		},
		slugExistsFn: func(ctx context.Context, value string, excludeID uuid.UUID) (bool, error) {
			require.Equal(t, id, excludeID)
			return value == "quarry-visit", nil
		},
		updateFn: func(ctx context.Context, got uuid.UUID, params persistence.PostParams) (persistence.Post, error) {
			return persistence.Post{ID: got, Title: params.Title, Slug: params.Slug, Status: params.Status}, nil
		},
	}

	post, err := New(repo, Config{}).Update(context.Background(), audit, id, UpdateInput{Title: &title})
	require.NoError(t, err)
	require.Equal(t, "quarry-visit-1", post.Slug)
}

func TestServiceGetPublishedBySlugHidesDrafts(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{
		getBySlugFn: func(ctx context.Context, value string) (persistence.Post, error) {
			return persistence.Post{Slug: value, Status: StatusDraft}, nil
		},
	}
	_, err := New(repo, Config{}).GetPublishedBySlug(context.Background(), audit, "secret-draft")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestServiceListNormalizesTag(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{
		listFn: func(ctx context.Context, params persistence.ListPostsParams) (persistence.PageResult[persistence.Post], error) {
			require.Equal(t, "granite", *params.Tag)
			require.Equal(t, StatusPublished, *params.Status)
			return persistence.PageResult[persistence.Post]{Items: []persistence.Post{{Title: "A"}}, TotalItems: 41, Page: params.Page, PageSize: params.PageSize}, nil
		},
	}

	tag := " Granite "
	status := StatusPublished
	result, err := New(repo, Config{}).List(context.Background(), audit, ListOptions{Tag: &tag, Status: &status})
	require.NoError(t, err)
	require.Equal(t, 3, result.TotalPages)
}
