package storage

import (
	"context"
	"errors"
)

// ErrNotExist is returned by Get when no blob is stored under the key.
var ErrNotExist = errors.New("blob does not exist")

// BlobStore holds opaque byte blobs addressed by slash separated keys.
// The presence of a key is the only cache-hit signal callers rely on.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// DeletePrefix removes every blob whose key starts with prefix. A prefix
	// with no blobs is not an error.
	DeletePrefix(ctx context.Context, prefix string) error
}
