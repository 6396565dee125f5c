// Package archive stores backtest artifacts as opaque blobs under
// slash-separated relative paths.
package archive

import "context"

// Storage is a flat object store. Paths are relative and use forward slashes.
// Read of a missing path fails with core.ErrArtifactNotFound.
type Storage interface {
	Write(ctx context.Context, path string, data []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	// List returns the paths under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}
