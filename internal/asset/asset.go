// Package asset stores uploaded logo images and returns their public URLs.
package asset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
)

// DefaultMaxSize bounds uploads when no limit is configured
const DefaultMaxSize = 2 << 20

var (
	// ErrTooLarge is returned for uploads above the size limit
	ErrTooLarge = errors.New("asset exceeds size limit")
	// ErrUnsupportedType is returned for content that is not a raster image
	ErrUnsupportedType = errors.New("unsupported asset type")
	// ErrEmpty is returned for zero-length uploads
	ErrEmpty = errors.New("asset is empty")
)

// extensions of the accepted content types
var extensions = map[string]string{
	"image/png":    ".png",
	"image/jpeg":   ".jpg",
	"image/gif":    ".gif",
	"image/webp":   ".webp",
	"image/bmp":    ".bmp",
	"image/x-icon": ".ico",
}

// Asset is a stored file
type Asset struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Store persists assets
type Store interface {
	Put(ctx context.Context, r io.Reader) (*Asset, error)
}

// upload is a validated asset body
type upload struct {
	key         string
	contentType string
	data        []byte
}

// read consumes at most maxSize bytes of r and sniffs the content type.
// SVG is rejected since it may carry scripts.
func read(r io.Reader, maxSize int64) (*upload, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read asset: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: max %d bytes", ErrTooLarge, maxSize)
	}

	contentType := http.DetectContentType(data)
	ext, ok := extensions[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	return &upload{
		key:         path.Join("logos", uuid.New().String()+ext),
		contentType: contentType,
		data:        data,
	}, nil
}

func (u *upload) body() io.Reader {
	return bytes.NewReader(u.data)
}

func joinURL(base, key string) string {
	return strings.TrimSuffix(base, "/") + "/" + key
}
