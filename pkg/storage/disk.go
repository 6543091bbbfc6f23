// Package storage is a small filesystem abstraction used for CSV export
// archives.
//
// Drivers:
//   - "local"  local filesystem under STORAGE_LOCAL_ROOT (default ./storage)
//   - "s3"     S3-compatible object storage (AWS S3, MinIO, R2, Spaces)
//   - "memory" in-process map, for tests
//
//	disks := storage.NewManager()
//	disk, err := disks.Disk(config.ExportDisk())
//	err = disk.Put(ctx, "exports/orders-1700000000000.csv", data, "text/csv")
package storage

import (
	"context"
	"errors"
)

// ErrNotExist is returned by Get for a missing path.
var ErrNotExist = errors.New("storage: file does not exist")

// Disk is the filesystem driver interface.
type Disk interface {
	// Put writes content to path, creating parent directories as needed.
	Put(ctx context.Context, path string, content []byte, contentType string) error

	// Get returns the full content of the file at path.
	Get(ctx context.Context, path string) ([]byte, error)

	// Exists reports whether a file exists at path.
	Exists(ctx context.Context, path string) bool

	// Delete removes a file. Returns nil if the file did not exist.
	Delete(ctx context.Context, path string) error

	// Files lists the files directly inside directory, sorted.
	Files(ctx context.Context, directory string) ([]string, error)

	// URL returns the public URL for path.
	URL(path string) string
}
