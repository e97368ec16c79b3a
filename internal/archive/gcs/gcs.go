// Package gcs implements the Google Cloud Storage archive backend. With no
// credentials file configured it uses Application Default Credentials, which
// covers GOOGLE_APPLICATION_CREDENTIALS, the GCE/GKE metadata service, and
// gcloud auth application-default login.
package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/medcore-hms/medcore/internal/archive"
	"github.com/medcore-hms/medcore/internal/config"
	"github.com/medcore-hms/medcore/pkg/checksum"
)

func init() {
	archive.Register("gcs", func(cfg *config.ArchiveConfig) (archive.Backend, error) {
		return New(&cfg.GCS)
	})
}

// GCSBackend stores archive objects in a Google Cloud Storage bucket.
type GCSBackend struct {
	client *storage.Client
	bucket string
}

// New creates a Google Cloud Storage archive backend.
func New(cfg *config.GCSArchiveConfig) (*GCSBackend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket name is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSBackend{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// Put stores an object with its checksum recorded in object metadata.
func (b *GCSBackend) Put(ctx context.Context, key string, reader io.Reader) (*archive.PutResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive data: %w", err)
	}
	sum, err := checksum.CalculateSHA256(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	writer := b.client.Bucket(b.bucket).Object(key).NewWriter(ctx)
	writer.Metadata = map[string]string{
		"sha256": sum,
	}
	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close GCS writer: %w", err)
	}

	return &archive.PutResult{
		Key:      key,
		Size:     int64(len(data)),
		Checksum: sum,
	}, nil
}

// Open retrieves a stored object.
func (b *GCSBackend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := b.client.Bucket(b.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read from GCS: %w", err)
	}
	return reader, nil
}

// Exists reports whether an object exists under key.
func (b *GCSBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.Bucket(b.bucket).Object(key).Attrs(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return true, nil
}

// List returns objects under prefix.
func (b *GCSBackend) List(ctx context.Context, prefix string) ([]archive.ObjectInfo, error) {
	var objects []archive.ObjectInfo
	it := b.client.Bucket(b.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list GCS objects: %w", err)
		}
		objects = append(objects, archive.ObjectInfo{
			Key:          attrs.Name,
			Size:         attrs.Size,
			LastModified: attrs.Updated,
		})
	}
	return objects, nil
}

// Remove deletes an object.
func (b *GCSBackend) Remove(ctx context.Context, key string) error {
	if err := b.client.Bucket(b.bucket).Object(key).Delete(ctx); err != nil {
		if err == storage.ErrObjectNotExist {
			return nil
		}
		return fmt.Errorf("failed to delete from GCS: %w", err)
	}
	return nil
}

// Close closes the underlying GCS client.
func (b *GCSBackend) Close() error {
	return b.client.Close()
}
