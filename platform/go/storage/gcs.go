package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSStore writes blobs to a Google Cloud Storage bucket.
type GCSStore struct {
	client *gcs.Client
	bucket string
}

func NewGCSStore(client *gcs.Client, bucket string) *GCSStore {
	if client == nil {
		panic("gcs store requires client")
	}
	if bucket == "" {
		panic("gcs store requires bucket")
	}
	return &GCSStore{client: client, bucket: bucket}
}

func (s *GCSStore) Backend() string { return BackendGCS }

func (s *GCSStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=31536000, immutable"

	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return fmt.Errorf("write gcs object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close gcs object: %w", err)
	}
	return nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.client.Bucket(s.bucket).Object(key).Delete(ctx); err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("delete gcs object: %w", err)
	}
	return nil
}

// Check reads bucket attributes and lists at most one media object; an empty prefix is fine.
func (s *GCSStore) Check(ctx context.Context) error {
	bkt := s.client.Bucket(s.bucket)
	if _, err := bkt.Attrs(ctx); err != nil {
		return fmt.Errorf("bucket attrs: %w", err)
	}

	it := bkt.Objects(ctx, &gcs.Query{Prefix: "media/"})
	if _, err := it.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("list media prefix: %w", err)
	}
	return nil
}

var _ BlobStore = (*GCSStore)(nil)
