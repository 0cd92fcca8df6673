// Package artifact stores exported snapshot files. The filesystem driver is
// the default; the s3 driver targets AWS S3 or any S3-compatible endpoint.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/vthunder/techpm/internal/config"
)

// Driver identifies a backend
type Driver string

const (
	DriverFS Driver = "fs"
	DriverS3 Driver = "s3"
)

// ErrExists is returned by Put when the key is already taken
var ErrExists = errors.New("artifact already exists")

// Info describes a stored artifact
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size_bytes"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
	Location     string    `json:"location,omitempty"` // file path or s3:// URL
}

// Store is a create-only artifact sink
type Store interface {
	// Put writes a new artifact and fails with ErrExists if key is taken
	Put(ctx context.Context, key string, r io.Reader, contentType string) (Info, error)
	// Get opens an existing artifact
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// List returns artifacts whose key has prefix, ordered by key
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

// Open selects the artifact store described by cfg
func Open(ctx context.Context, cfg config.Artifacts) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverFS, "":
		return NewFS(cfg.Root)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown artifact driver %s", cfg.Driver)
	}
}
