package store

import (
	"bytes"
	"io"
	"sync"
)

// Memory is a simple in-memory store, intended mainly for testing.
type Memory struct {
	m     sync.RWMutex
	store map[string][]byte
}

var _ Store = &Memory{}

// NewMemory returns a new, empty memory store.
func NewMemory() *Memory {
	return &Memory{store: make(map[string][]byte)}
}

// List returns a channel producing every key in the store. The keys are
// snapshotted when List is called.
func (ms *Memory) List() <-chan string {
	ms.m.RLock()
	keys := make([]string, 0, len(ms.store))
	for k := range ms.store {
		keys = append(keys, k)
	}
	ms.m.RUnlock()
	c := make(chan string)
	go func() {
		for _, k := range keys {
			c <- k
		}
		close(c)
	}()
	return c
}

// Open returns a reader over the content of the given key.
func (ms *Memory) Open(key string) (io.ReadCloser, int64, error) {
	ms.m.RLock()
	v, ok := ms.store[key]
	ms.m.RUnlock()
	if !ok {
		return nil, 0, ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(v)), int64(len(v)), nil
}

// Create returns a writer for a new key. The content is saved when the
// writer is closed.
func (ms *Memory) Create(key string) (io.WriteCloser, error) {
	ms.m.Lock()
	defer ms.m.Unlock()
	if _, ok := ms.store[key]; ok {
		return nil, ErrKeyExists
	}
	ms.store[key] = nil // reserve the key
	return &memWriter{ms: ms, key: key}, nil
}

// Delete removes the key. Deleting a missing key is not an error.
func (ms *Memory) Delete(key string) error {
	ms.m.Lock()
	delete(ms.store, key)
	ms.m.Unlock()
	return nil
}

type memWriter struct {
	ms  *Memory
	key string
	buf bytes.Buffer
}

func (w *memWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *memWriter) Close() error {
	w.ms.m.Lock()
	w.ms.store[w.key] = w.buf.Bytes()
	w.ms.m.Unlock()
	return nil
}
