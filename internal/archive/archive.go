// Package archive defines the Backend interface and factory for the
// compliance archive: the durable, off-box store that periodic audit-trail
// snapshots are written to. Archives are write-once objects; nothing in the
// platform rewrites an uploaded snapshot.
//
// New backends are added by implementing Backend and registering with the
// factory from the backend package's init():
//
//	func init() {
//	    archive.Register("mybackend", func(cfg *config.ArchiveConfig) (archive.Backend, error) {
//	        return New(&cfg.MyBackend)
//	    })
//	}
//
// The server imports each backend with a blank import to trigger init(), so
// adding a backend requires no factory changes.
package archive

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/medcore-hms/medcore/internal/config"
)

// Backend stores archive objects durably.
type Backend interface {
	// Put stores an object under key and returns its size and checksum.
	Put(ctx context.Context, key string, reader io.Reader) (*PutResult, error)

	// Open retrieves a stored object.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns the stored objects whose keys start with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Remove deletes the object under key. Removing an absent object is not
	// an error.
	Remove(ctx context.Context, key string) error
}

// PutResult describes a stored object.
type PutResult struct {
	// Key is the storage key the object was stored under.
	Key string

	// Size is the object size in bytes.
	Size int64

	// Checksum is the SHA-256 hash of the object contents.
	Checksum string
}

// ObjectInfo describes one stored object in a listing.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// FactoryFunc constructs a backend from the archive configuration.
type FactoryFunc func(*config.ArchiveConfig) (Backend, error)

var factories = make(map[string]FactoryFunc)

// Register registers an archive backend factory under the given name.
func Register(name string, factory FactoryFunc) {
	factories[name] = factory
}

// NewBackend creates the backend selected by cfg.DefaultBackend.
func NewBackend(cfg *config.ArchiveConfig) (Backend, error) {
	factory, ok := factories[cfg.DefaultBackend]
	if !ok {
		return nil, fmt.Errorf("unsupported archive backend: %s (must be 'local', 's3', 'gcs', or 'azure')", cfg.DefaultBackend)
	}
	return factory(cfg)
}
