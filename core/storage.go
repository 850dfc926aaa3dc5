package core

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

// FileStorage stores uploaded objects (homework PDFs) under keys.
type FileStorage interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	// SignedURL returns a time-limited download URL for key.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}
