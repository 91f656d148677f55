package files

import (
	"context"
	"io"
)

// BlobStore persists attachment payloads. Metadata lives in Postgres; the
// blob store only sees opaque keys.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
