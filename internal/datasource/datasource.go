// Package datasource resolves a pipeline source into the inputs a run reads.
package datasource

import (
	"context"
	"fmt"
	"io"
	"strings"

	"datestd/internal/datasource/file"
	"datestd/internal/datasource/httpds"
)

// Source is one input: a local file or a remote URL.
type Source interface {
	// Name identifies the input in logs and journal rows.
	Name() string
	// BaseName is a filesystem-safe file name for routed output.
	BaseName() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Source kinds understood by Resolve.
const (
	KindFile = "file"
	KindDir  = "dir"
	KindList = "list"
)

// IsURL reports whether s is an http(s) URL.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Resolve expands kind/path/glob into sources. Paths that are http(s) URLs
// are fetched with client, which may be nil when no URL is expected.
func Resolve(kind, path, glob string, client *httpds.Client) ([]Source, error) {
	var paths []string
	switch kind {
	case KindFile:
		paths = []string{path}
	case KindDir:
		names, err := file.List(path, glob)
		if err != nil {
			return nil, err
		}
		paths = names
	case KindList:
		names, err := file.ReadList(path)
		if err != nil {
			return nil, fmt.Errorf("datasource: read list %s: %w", path, err)
		}
		paths = names
	default:
		return nil, fmt.Errorf("datasource: unknown source kind %q", kind)
	}

	out := make([]Source, 0, len(paths))
	for _, p := range paths {
		if IsURL(p) {
			if client == nil {
				return nil, fmt.Errorf("datasource: %s is a URL but no HTTP client is configured", p)
			}
			out = append(out, httpds.NewRemote(client, p))
			continue
		}
		out = append(out, file.NewLocal(p))
	}
	return out, nil
}
