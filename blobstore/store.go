// Package blobstore abstracts where snapshot blobs live.
//
// A Store holds named, immutable blobs. Fuzzygo uses it for backups: a
// snapshot is streamed into a blob with Put and read back with Open. Local
// disk and in-memory implementations live here; MinIO and S3 backends live
// in the minio and s3 subpackages.
package blobstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations must return an error that satisfies
// errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("blob not found")

// Store is an abstraction for reading and writing named immutable blobs.
type Store interface {
	// Put writes the blob under name, consuming r until EOF. An existing
	// blob with the same name is replaced. Readers never observe a
	// partially written blob.
	Put(ctx context.Context, name string, r io.Reader) error

	// Open opens a blob for reading. The caller must close the returned
	// reader.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns all blob names starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}
