package service

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/marmoreal/stonecms/platform/go/persistence"
	"github.com/marmoreal/stonecms/platform/go/requesttrace"
	"github.com/marmoreal/stonecms/platform/go/storage"
)

type mockRepository struct {
	listFn   func(ctx context.Context, page, pageSize int) (persistence.PageResult[persistence.Media], error)
	createFn func(ctx context.Context, id uuid.UUID, params persistence.CreateMediaParams) (persistence.Media, error)
	getFn    func(ctx context.Context, id uuid.UUID) (persistence.Media, error)
	deleteFn func(ctx context.Context, id uuid.UUID) error
}

func (m *mockRepository) List(ctx context.Context, page, pageSize int) (persistence.PageResult[persistence.Media], error) {
	if m.listFn == nil {
		panic("listFn not configured")
	}
	return m.listFn(ctx, page, pageSize)
}

func (m *mockRepository) Create(ctx context.Context, id uuid.UUID, params persistence.CreateMediaParams) (persistence.Media, error) {
	if m.createFn == nil {
		panic("createFn not configured")
	}
	return m.createFn(ctx, id, params)
}

func (m *mockRepository) Get(ctx context.Context, id uuid.UUID) (persistence.Media, error) {
	if m.getFn == nil {
		panic("getFn not configured")
	}
	return m.getFn(ctx, id)
}

func (m *mockRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFn == nil {
		panic("deleteFn not configured")
	}
	return m.deleteFn(ctx, id)
}

var audit = requesttrace.System("test")

// pngBytes is a PNG signature followed by padding.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

func echoCreate(ctx context.Context, id uuid.UUID, params persistence.CreateMediaParams) (persistence.Media, error) {
	return persistence.Media{
		ID: id, FileName: params.FileName, ContentType: params.ContentType, SizeBytes: params.SizeBytes,
		ObjectKey: params.ObjectKey, URL: params.URL, Alt: params.Alt,
	}, nil
}

func newService(t *testing.T, repo *mockRepository, blobs storage.BlobStore) *service {
	t.Helper()
	svc := New(repo, Config{Blobs: blobs, PublicBaseURL: "https://cdn.example.com/", MaxBytes: 1024}).(*service)
	svc.now = func() time.Time { return time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestServiceUploadWritesBlobAndRecord(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	svc := newService(t, &mockRepository{createFn: echoCreate}, storage.NewLocalStore(dir))

	media, err := svc.Upload(context.Background(), audit, UploadInput{
		FileName:    "Nero Marquina Slab.PNG",
		ContentType: "image/png",
		Size:        int64(len(pngBytes)),
		Body:        bytes.NewReader(pngBytes),
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(media.ObjectKey, "media/2026/02/"))
	require.True(t, strings.HasSuffix(media.ObjectKey, "-nero-marquina-slab.png"))
	require.Equal(t, "https://cdn.example.com/"+media.ObjectKey, media.URL)

	stored, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(media.ObjectKey)))
	require.NoError(t, err)
	require.Equal(t, pngBytes, stored)
}

func TestServiceUploadRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input UploadInput
		err   error
	}{
		{
			name:  "disallowed type",
			input: UploadInput{FileName: "run.exe", ContentType: "application/octet-stream", Size: 4, Body: strings.NewReader("MZ..")},
		},
		{
			name:  "declared type mismatch",
			input: UploadInput{FileName: "fake.png", ContentType: "image/png", Size: 5, Body: strings.NewReader("hello")},
		},
		{
			name:  "empty file",
			input: UploadInput{FileName: "a.png", ContentType: "image/png", Size: 0, Body: strings.NewReader("")},
		},
		{
			name:  "too large",
			input: UploadInput{FileName: "a.png", ContentType: "image/png", Size: 2048, Body: bytes.NewReader(pngBytes)},
			err:   ErrTooLarge,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := newService(t, &mockRepository{}, storage.NewLocalStore(t.TempDir()))
			_, err := svc.Upload(context.Background(), audit, tc.input)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			require.Contains(t, validationErr.Fields, "file")
		})
	}
}

func TestServiceUploadAcceptsSVG(t *testing.T) {
	t.Parallel()

	svg := `<svg xmlns="http://www.w3.org/2000/svg" width="1" height="1"></svg>`
	svc := newService(t, &mockRepository{createFn: echoCreate}, storage.NewLocalStore(t.TempDir()))
	media, err := svc.Upload(context.Background(), audit, UploadInput{
		FileName:    "logo",
		ContentType: "image/svg+xml",
		Size:        int64(len(svg)),
		Body:        strings.NewReader(svg),
	})
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(media.ObjectKey, "-logo.svg"))
}

func TestServiceUploadRemovesBlobWhenRecordFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var key string
	repo := &mockRepository{
		createFn: func(ctx context.Context, id uuid.UUID, params persistence.CreateMediaParams) (persistence.Media, error) {
			key = params.ObjectKey
			return persistence.Media{}, errors.New("insert failed")
		},
	}
	svc := newService(t, repo, storage.NewLocalStore(dir))

	_, err := svc.Upload(context.Background(), audit, UploadInput{
		FileName: "a.png", ContentType: "image/png", Size: int64(len(pngBytes)), Body: bytes.NewReader(pngBytes),
	})
	require.Error(t, err)
	require.NotEmpty(t, key)

	_, statErr := os.Stat(filepath.Join(dir, filepath.FromSlash(key)))
	require.True(t, os.IsNotExist(statErr))
}

func TestServiceDeleteToleratesMissingBlob(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	deleted := false
	repo := &mockRepository{
		getFn: func(ctx context.Context, got uuid.UUID) (persistence.Media, error) {
			return persistence.Media{ID: id, ObjectKey: "media/2026/02/gone.png"}, nil
		},
		deleteFn: func(ctx context.Context, got uuid.UUID) error {
			deleted = true
			return nil
		},
	}
	svc := newService(t, repo, storage.NewLocalStore(t.TempDir()))

	require.NoError(t, svc.Delete(context.Background(), audit, id))
	require.True(t, deleted)
}

func TestServiceGetNotFound(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{
		getFn: func(ctx context.Context, id uuid.UUID) (persistence.Media, error) {
			return persistence.Media{}, persistence.ErrMediaNotFound
		},
	}
	svc := newService(t, repo, storage.NewLocalStore(t.TempDir()))
	_, err := svc.Get(context.Background(), audit, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}
