package blobs

import (
	"container/list"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/contentmap/contentmap/store"
)

// ErrCacheFull means an artifact is larger than the whole cache, so no
// amount of eviction can make room for it.
var ErrCacheFull = errors.New("blobs: cache is full")

// Cache keeps recently read artifacts in a small store of its own, so a
// slow backing store (such as a bucket) is only hit on a miss. Contents
// live in the store; the usage list is memory only, so after a restart Scan
// rebuilds it in an arbitrary order. Eviction is least recently used by
// total byte size.
type Cache struct {
	s store.Store

	mu      sync.Mutex
	size    int64
	maxSize int64
	lru     *list.List // front is most recently used
	index   map[string]*list.Element
}

type cacheEntry struct {
	key  string
	size int64
}

// NewCache returns a cache storing at most maxSize bytes in s. The store
// may already hold artifacts; call Scan to account for them.
func NewCache(s store.Store, maxSize int64) *Cache {
	return &Cache{
		s:       s,
		maxSize: maxSize,
		lru:     list.New(),
		index:   make(map[string]*list.Element),
	}
}

// Scan enumerates the backing store and adds every artifact to the usage
// list. Artifacts that no longer fit are removed from the store. Blocks
// until the whole store has been seen.
func (c *Cache) Scan() {
	for key := range c.s.List() {
		if c.Contains(key) {
			continue
		}
		rc, size, err := c.s.Open(key)
		if err != nil {
			continue
		}
		rc.Close()
		if c.reserve(size) != nil {
			c.s.Delete(key)
			continue
		}
		c.mu.Lock()
		c.index[key] = c.lru.PushFront(cacheEntry{key: key, size: size})
		c.mu.Unlock()
	}
}

// Contains reports whether the key is cached. It does not touch the usage
// list, and is no guarantee a following Get will hit.
func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index[key] != nil
}

// Get returns a reader for the cached artifact and marks it recently used.
// A miss is not an error: the reader is nil.
func (c *Cache) Get(key string) (io.ReadCloser, int64, error) {
	c.mu.Lock()
	e := c.index[key]
	if e != nil {
		c.lru.MoveToFront(e)
	}
	c.mu.Unlock()
	if e == nil {
		return nil, 0, nil
	}
	return c.s.Open(key)
}

// Put returns a writer adding an artifact to the cache. Space is reserved
// as data is written, evicting older artifacts; if the artifact turns out
// to be larger than the whole cache it is dropped on Close. Only the
// writer's Close adds the key to the usage list.
func (c *Cache) Put(key string) (io.WriteCloser, error) {
	if c.Contains(key) {
		return nil, store.ErrKeyExists
	}
	w, err := c.s.Create(key)
	if err != nil {
		return nil, err
	}
	return &cacheWriter{c: c, key: key, w: w}, nil
}

// Delete evicts the key, if cached.
func (c *Cache) Delete(key string) error {
	c.mu.Lock()
	e := c.index[key]
	if e != nil {
		c.size -= c.lru.Remove(e).(cacheEntry).size
		delete(c.index, key)
	}
	c.mu.Unlock()
	if e == nil {
		return nil
	}
	return c.s.Delete(key)
}

// reserve claims n bytes, evicting from the cold end until the total fits.
// A negative n returns a previous claim. Nothing is claimed on error.
func (c *Cache) reserve(n int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.size += n
	for c.size > c.maxSize {
		e := c.lru.Back()
		if e == nil {
			c.size -= n
			return ErrCacheFull
		}
		entry := c.lru.Remove(e).(cacheEntry)
		delete(c.index, entry.key)
		if err := c.s.Delete(entry.key); err != nil {
			c.size -= n
			return err
		}
		c.size -= entry.size
	}
	return nil
}

type cacheWriter struct {
	c       *Cache
	key     string
	w       io.WriteCloser
	size    int64
	discard bool
}

func (w *cacheWriter) Write(p []byte) (int, error) {
	if err := w.c.reserve(int64(len(p))); err != nil {
		if err == ErrCacheFull {
			w.discard = true
		}
		return 0, err
	}
	w.size += int64(len(p))
	return w.w.Write(p)
}

func (w *cacheWriter) Close() error {
	err := w.w.Close()
	if err != nil || w.discard {
		w.c.reserve(-w.size)
		w.c.s.Delete(w.key)
		return err
	}
	w.c.mu.Lock()
	w.c.index[w.key] = w.c.lru.PushFront(cacheEntry{key: w.key, size: w.size})
	w.c.mu.Unlock()
	return nil
}
