// Package file implements a local filesystem-backed data source.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Local is a filesystem data source that opens files from the local disk.
type Local struct{ path string }

// NewLocal returns a new Local data source bound to the provided filesystem
// path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Name returns the configured path.
func (l *Local) Name() string { return l.path }

// BaseName returns the last element of the path.
func (l *Local) BaseName() string { return filepath.Base(l.path) }

// Open opens the configured path for reading.
//
//   - If ctx is already done, Open returns the context error without touching
//     the filesystem.
//   - The kernel is told the file will be read sequentially once.
//   - Filesystem errors are wrapped with the path and keep errors.Is checks
//     (e.g. os.ErrNotExist) working.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	adviseSequential(f)
	return f, nil
}
