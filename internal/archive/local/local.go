// Package local implements the filesystem archive backend. Intended for
// development and single-node deployments; multiple server instances would
// need a shared filesystem to see each other's archives. Production
// deployments should use one of the cloud backends.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/medcore-hms/medcore/internal/archive"
	"github.com/medcore-hms/medcore/internal/config"
	"github.com/medcore-hms/medcore/pkg/checksum"
)

func init() {
	archive.Register("local", func(cfg *config.ArchiveConfig) (archive.Backend, error) {
		return New(&cfg.Local)
	})
}

// LocalBackend stores archive objects under a base directory.
type LocalBackend struct {
	basePath string
}

// New creates a filesystem archive backend rooted at cfg.BasePath.
func New(cfg *config.LocalArchiveConfig) (*LocalBackend, error) {
	if err := os.MkdirAll(cfg.BasePath, 0750); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &LocalBackend{basePath: cfg.BasePath}, nil
}

func (b *LocalBackend) fullPath(key string) string {
	return filepath.Join(b.basePath, filepath.FromSlash(key))
}

// Put stores an object, computing its checksum while writing. A failed write
// removes the partial file.
func (b *LocalBackend) Put(ctx context.Context, key string, reader io.Reader) (*archive.PutResult, error) {
	fullPath := b.fullPath(key)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}
	defer file.Close()

	var counted countingWriter
	sum, err := checksum.CalculateSHA256(io.TeeReader(reader, io.MultiWriter(file, &counted)))
	if err != nil {
		_ = os.Remove(fullPath)
		return nil, fmt.Errorf("failed to write archive file: %w", err)
	}

	return &archive.PutResult{
		Key:      key,
		Size:     counted.n,
		Checksum: sum,
	}, nil
}

type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}

// Open retrieves a stored object.
func (b *LocalBackend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	file, err := os.Open(b.fullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("archive object not found: %s", key)
		}
		return nil, fmt.Errorf("failed to open archive object: %w", err)
	}
	return file, nil
}

// Exists reports whether an object exists under key.
func (b *LocalBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(b.fullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat archive object: %w", err)
	}
	return true, nil
}

// List walks the base directory and returns objects under prefix.
func (b *LocalBackend) List(ctx context.Context, prefix string) ([]archive.ObjectInfo, error) {
	var objects []archive.ObjectInfo
	err := filepath.Walk(b.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(b.basePath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		objects = append(objects, archive.ObjectInfo{
			Key:          key,
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list archive objects: %w", err)
	}
	return objects, nil
}

// Remove deletes an object and prunes empty parent directories.
func (b *LocalBackend) Remove(ctx context.Context, key string) error {
	fullPath := b.fullPath(key)
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to remove archive object: %w", err)
	}

	dir := filepath.Dir(fullPath)
	for dir != b.basePath {
		if err := os.Remove(dir); err != nil {
			break
		}
		dir = filepath.Dir(dir)
	}
	return nil
}
