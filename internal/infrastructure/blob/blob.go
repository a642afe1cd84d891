// Package blob stores uploaded file contents. Metadata lives in the drive
// repository; a blob is addressed only by its key.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("blob not found")
	ErrInvalidKey = errors.New("invalid blob key")
)

// Store is the interface for content storage backends.
type Store interface {
	// Put writes body under key. size may be -1 when unknown.
	Put(ctx context.Context, key string, body io.Reader, size int64) error
	// Get opens the blob and returns its size.
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)
	// Delete removes the blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, key string) error
	// Type returns the backend identifier ("local", "s3").
	Type() string
}

// UploadKey returns the key an upload is stored under: the upload time in
// unix milliseconds, a short random suffix and the sanitized original name,
// joined by dashes.
func UploadKey(now time.Time, name string) string {
	return fmt.Sprintf("%d-%s-%s", now.UnixMilli(), uuid.NewString()[:8], SanitizeName(name))
}

// SanitizeName reduces a client supplied file name to a single safe path
// element.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(path.Clean("/" + name))
	if name == "/" || name == "." || name == ".." {
		return "upload"
	}
	return name
}

// ValidateKey rejects keys that could escape the store's root.
func ValidateKey(key string) error {
	if key == "" || strings.Contains(key, "/") || strings.Contains(key, "\\") || key == "." || key == ".." {
		return ErrInvalidKey
	}
	return nil
}
