package asset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// Local stores assets in a directory served over HTTP
type Local struct {
	dir     string
	baseURL string
	maxSize int64
}

// NewLocal creates a directory store. baseURL is the public prefix under
// which Handler is mounted.
func NewLocal(dir, baseURL string, maxSize int64) (*Local, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create asset directory: %w", err)
	}
	return &Local{dir: dir, baseURL: baseURL, maxSize: maxSize}, nil
}

// Put writes r to the directory
func (l *Local) Put(ctx context.Context, r io.Reader) (*Asset, error) {
	u, err := read(r, l.maxSize)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(l.dir, filepath.FromSlash(u.key))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create asset directory: %w", err)
	}
	if err := os.WriteFile(path, u.data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write asset: %w", err)
	}

	return &Asset{
		Key:         u.key,
		URL:         joinURL(l.baseURL, u.key),
		ContentType: u.contentType,
		Size:        int64(len(u.data)),
	}, nil
}

// Handler serves stored assets. Directory listings are not exposed.
func (l *Local) Handler() http.Handler {
	fs := http.FileServer(http.Dir(l.dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || r.URL.Path[len(r.URL.Path)-1] == '/' {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		fs.ServeHTTP(w, r)
	})
}
