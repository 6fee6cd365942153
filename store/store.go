// Package store provides a simple, goroutine safe key-value interface whose
// values are streams. It backs the blob artifact layer: blob identifiers are
// keys, artifact contents are the streams.
//
// The FileSystem store is the usual choice. Memory is for testing, and S3
// keeps artifacts in a bucket.
package store

import (
	"errors"
	"io"
)

// Store is a stream based key-value store. Values are immutable once
// written, but a key may be deleted and then written again.
//
// The FileSystem store uses keys as file names, so keys must not contain
// filesystem-hostile characters such as '/'.
type Store interface {
	// List returns a channel producing every key in the store.
	List() <-chan string

	// Open returns the content for the key and its size.
	Open(key string) (io.ReadCloser, int64, error)

	// Create returns a writer for a new key. It is an error if the key
	// already exists.
	Create(key string) (io.WriteCloser, error)

	// Delete removes the key. Deleting a missing key is not an error.
	Delete(key string) error
}

var (
	// ErrKeyExists indicates an attempt to create a key which already exists.
	ErrKeyExists = errors.New("key already exists")

	// ErrKeyInvalid means the key contains a slash, whitespace, a control
	// character, or invalid unicode.
	ErrKeyInvalid = errors.New("key contains invalid characters")

	// ErrNotExist means the key is not in the store.
	ErrNotExist = errors.New("key does not exist")
)
