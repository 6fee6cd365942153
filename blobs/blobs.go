// Package blobs keeps the binary artifacts referenced from blob-typed
// fields. Artifacts are addressed by the GUID stored in the field value.
// The package satisfies the delete-only interface the mapping core needs,
// and additionally lets hosts write and read artifacts.
package blobs

import (
	"io"
	"strings"

	"github.com/contentmap/contentmap/mapping"
	"github.com/contentmap/contentmap/store"
)

// Store keeps blob artifacts in a backing store, keyed by normalized GUID.
type Store struct {
	s     store.Store
	cache *Cache
}

var _ mapping.BlobStore = (*Store)(nil)

// New creates a blob store on top of s.
func New(s store.Store) *Store {
	return &Store{s: s}
}

// NewCached creates a blob store on top of s that fills cache on reads and
// serves later reads from it.
func NewCached(s store.Store, cache *Cache) *Store {
	return &Store{s: s, cache: cache}
}

// key normalizes a blob GUID so "{ABC...}" and "abc..." address the same
// artifact.
func key(blobID string) string {
	return strings.ToLower(strings.Map(func(r rune) rune {
		switch r {
		case '{', '}', '-':
			return -1
		}
		return r
	}, blobID))
}

// Delete removes the artifact for the blob id. Deleting a missing artifact
// is not an error.
func (b *Store) Delete(blobID string) error {
	k := key(blobID)
	if b.cache != nil {
		b.cache.Delete(k)
	}
	return b.s.Delete(k)
}

// Open returns the artifact content and its size. With a cache attached the
// artifact is served from the cache, copying it in first on a miss.
func (b *Store) Open(blobID string) (io.ReadCloser, int64, error) {
	k := key(blobID)
	if b.cache == nil {
		return b.s.Open(k)
	}
	rc, size, err := b.cache.Get(k)
	if err == nil && rc != nil {
		return rc, size, nil
	}
	rc, size, err = b.s.Open(k)
	if err != nil {
		return nil, 0, err
	}
	if cached, ok := b.fillCache(k, rc); ok {
		return cached, size, nil
	}
	// the artifact did not fit, reopen the backing copy
	return b.s.Open(k)
}

// fillCache copies the artifact into the cache and reopens it from there.
// rc is consumed and closed either way.
func (b *Store) fillCache(k string, rc io.ReadCloser) (io.ReadCloser, bool) {
	defer rc.Close()
	w, err := b.cache.Put(k)
	if err != nil {
		return nil, false
	}
	if _, err := io.Copy(w, rc); err != nil {
		w.Close()
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}
	cached, _, err := b.cache.Get(k)
	if err != nil || cached == nil {
		return nil, false
	}
	return cached, true
}

// Create returns a writer storing a new artifact under the blob id.
func (b *Store) Create(blobID string) (io.WriteCloser, error) {
	return b.s.Create(key(blobID))
}

// Exists reports whether an artifact is stored for the blob id.
func (b *Store) Exists(blobID string) bool {
	r, _, err := b.s.Open(key(blobID))
	if err != nil {
		return false
	}
	r.Close()
	return true
}
