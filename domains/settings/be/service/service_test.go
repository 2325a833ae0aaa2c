package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmoreal/stonecms/platform/go/cache"
	"github.com/marmoreal/stonecms/platform/go/persistence"
	"github.com/marmoreal/stonecms/platform/go/requesttrace"
)

type mockRepository struct {
	getFn            func(ctx context.Context) (persistence.SettingsDocument, error)
	putFn            func(ctx context.Context, document json.RawMessage, updatedBy string) (persistence.SettingsDocument, error)
	insertIfAbsentFn func(ctx context.Context, document json.RawMessage, updatedBy string) (persistence.SettingsDocument, error)
}

func (m *mockRepository) Get(ctx context.Context) (persistence.SettingsDocument, error) {
	if m.getFn == nil {
		panic("getFn not configured")
	}
	return m.getFn(ctx)
}

func (m *mockRepository) Put(ctx context.Context, document json.RawMessage, updatedBy string) (persistence.SettingsDocument, error) {
	if m.putFn == nil {
		panic("putFn not configured")
	}
	return m.putFn(ctx, document, updatedBy)
}

func (m *mockRepository) InsertIfAbsent(ctx context.Context, document json.RawMessage, updatedBy string) (persistence.SettingsDocument, error) {
	if m.insertIfAbsentFn == nil {
		panic("insertIfAbsentFn not configured")
	}
	return m.insertIfAbsentFn(ctx, document, updatedBy)
}

var defaults = json.RawMessage(`{"siteName":"Marmoreal Stone"}`)

func TestServiceGetSeedsDefaults(t *testing.T) {
	t.Parallel()

	inserted := 0
	repo := &mockRepository{
		getFn: func(ctx context.Context) (persistence.SettingsDocument, error) {
			return persistence.SettingsDocument{}, persistence.ErrSettingsNotFound
		},
		insertIfAbsentFn: func(ctx context.Context, document json.RawMessage, updatedBy string) (persistence.SettingsDocument, error) {
			inserted++
			require.Equal(t, "system", updatedBy)
			return persistence.SettingsDocument{Key: persistence.SiteSettingsKey, Document: document, UpdatedBy: updatedBy}, nil
		},
	}

	settings, err := New(repo, Config{Defaults: defaults}).Get(context.Background(), requesttrace.Anonymous(""))
	require.NoError(t, err)
	require.JSONEq(t, string(defaults), string(settings.Document))
	require.Equal(t, 1, inserted)
}

func TestServiceGetUsesCache(t *testing.T) {
	t.Parallel()

	reads := 0
	repo := &mockRepository{
		getFn: func(ctx context.Context) (persistence.SettingsDocument, error) {
			reads++
			return persistence.SettingsDocument{Document: json.RawMessage(`{"siteName":"Cached"}`), UpdatedAt: time.Now()}, nil
		},
	}
	svc := New(repo, Config{Defaults: defaults, Cache: cache.NewMemory(8, time.Minute)})

	for i := 0; i < 3; i++ {
		settings, err := svc.Get(context.Background(), requesttrace.Anonymous(""))
		require.NoError(t, err)
		require.JSONEq(t, `{"siteName":"Cached"}`, string(settings.Document))
	}
	require.Equal(t, 1, reads)
}

func TestServiceUpdateInvalidatesCache(t *testing.T) {
	t.Parallel()

	current := json.RawMessage(`{"siteName":"Before"}`)
	repo := &mockRepository{
		getFn: func(ctx context.Context) (persistence.SettingsDocument, error) {
			return persistence.SettingsDocument{Document: current}, nil
		},
		putFn: func(ctx context.Context, document json.RawMessage, updatedBy string) (persistence.SettingsDocument, error) {
			require.Equal(t, "owner@marmoreal.stone", updatedBy)
			current = document
			return persistence.SettingsDocument{Document: document, UpdatedBy: updatedBy}, nil
		},
	}
	svc := New(repo, Config{Defaults: defaults, Cache: cache.NewMemory(8, time.Minute)})
	ctx := context.Background()

	_, err := svc.Get(ctx, requesttrace.Anonymous(""))
	require.NoError(t, err)

	id := "admin-1"
	admin := requesttrace.AuditInfo{ActorKind: requesttrace.ActorKindAdmin, ActorID: &id, ActorEmail: "owner@marmoreal.stone"}
	_, err = svc.Update(ctx, admin, json.RawMessage(` {"siteName":"After"} `))
	require.NoError(t, err)

	settings, err := svc.Get(ctx, requesttrace.Anonymous(""))
	require.NoError(t, err)
	require.JSONEq(t, `{"siteName":"After"}`, string(settings.Document))
}

func TestServiceUpdateValidation(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{
		putFn: func(ctx context.Context, document json.RawMessage, updatedBy string) (persistence.SettingsDocument, error) {
			return persistence.SettingsDocument{}, fmt.Errorf("%w: site_settings: missing siteName", persistence.ErrInvalidDocument)
		},
	}
	svc := New(repo, Config{Defaults: defaults})

	_, err := svc.Update(context.Background(), requesttrace.System(""), json.RawMessage(`[1,2]`))
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	_, err = svc.Update(context.Background(), requesttrace.System(""), json.RawMessage(`{}`))
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "document")
}
