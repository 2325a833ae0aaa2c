// Package storage writes uploaded media blobs to GCS, S3 or a local directory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marmoreal/stonecms/platform/go/slug"
)

// Backend names accepted by STORAGE_BACKEND.
const (
	BackendGCS   = "gcs"
	BackendS3    = "s3"
	BackendLocal = "local"
)

// ErrObjectNotFound is returned when deleting or reading a key that does not exist.
var ErrObjectNotFound = errors.New("object not found")

// BlobStore is the minimal object store used for media.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	// Check verifies the store is reachable and writable by this process.
	Check(ctx context.Context) error
	Backend() string
}

// ObjectKey builds media/YYYY/MM/<id>-<name>.<ext>. The name part is the slug of the file's base
// name; "file" is used when the name has no usable characters. fallbackExt is used when fileName
// has no extension.
func ObjectKey(now time.Time, id uuid.UUID, fileName, fallbackExt string) (string, error) {
	if id == uuid.Nil {
		return "", errors.New("object id is required")
	}

	base := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	ext := path.Ext(base)
	name := slug.Derive(strings.TrimSuffix(base, ext))
	if name == "" {
		name = "file"
	}

	ext = slug.Derive(ext)
	if ext == "" {
		ext = slug.Derive(fallbackExt)
	}
	if ext == "" {
		return "", fmt.Errorf("cannot determine extension for %q", fileName)
	}

	now = now.UTC()
	return fmt.Sprintf("media/%04d/%02d/%s-%s.%s", now.Year(), int(now.Month()), id.String(), name, ext), nil
}

// PublicURL joins the public media base URL and key.
func PublicURL(baseURL, key string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(key, "/")
}

func validateKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("object key is required")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("invalid object key %q", key)
	}
	return nil
}
