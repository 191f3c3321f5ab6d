package storage

import (
	"context"
	"errors"
)

// Buckets used by the runtime. Each durable record lives under (bucket, key).
const (
	BucketExtensions = "extensions"
	BucketSettings   = "settings"
	BucketSources    = "sources"
)

// ErrNotFound is returned when a key has no record in a bucket
var ErrNotFound = errors.New("storage: key not found")

// Store is the narrow persistence interface the runtime depends on.
// The engine behind it is an external collaborator; values are opaque bytes.
type Store interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Set(ctx context.Context, bucket, key string, value []byte) error
	// List returns all records in a bucket whose key starts with prefix.
	// An empty prefix returns the whole bucket.
	List(ctx context.Context, bucket, prefix string) (map[string][]byte, error)
	Delete(ctx context.Context, bucket, key string) error
	Close() error
}
