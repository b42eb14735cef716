package core

import (
	"context"
	"io"
)

// FileStore is any service that can persist publicly addressable files.
type FileStore interface {
	// Upload stores the contents of r under key with the given content type.
	Upload(ctx context.Context, key, contentType string, r io.Reader) error
	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	// PublicURL returns the public URL serving the object stored under key.
	PublicURL(key string) string
}
