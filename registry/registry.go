// Package registry tracks the live mappings of a process so hosts and
// metadata generators can enumerate them. It replaces implicit global
// state: construct one Registry, pass it by reference, and tie Register and
// Deregister to mapping construction and disposal.
package registry

import (
	"errors"
	"sort"
	"sync"

	"github.com/golang/groupcache/singleflight"

	"github.com/contentmap/contentmap/mapping"
)

var (
	// ErrExists means a mapping with the same name is already registered.
	ErrExists = errors.New("registry: mapping already registered")

	// ErrNoName means the mapping has no name to register it under.
	ErrNoName = errors.New("registry: mapping has no name")
)

// Registry is a process-wide set of live mappings keyed by name.
type Registry struct {
	mu       sync.RWMutex
	mappings map[string]*mapping.Mapping
	loads    singleflight.Group // collapses concurrent opens by name
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{mappings: make(map[string]*mapping.Mapping)}
}

// Register adds a loaded mapping under its name.
func (r *Registry) Register(m *mapping.Mapping) error {
	if m.Name == "" {
		return ErrNoName
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.mappings[m.Name]; ok {
		return ErrExists
	}
	r.mappings[m.Name] = m
	return nil
}

// Deregister removes the mapping with the given name, if present.
func (r *Registry) Deregister(name string) {
	r.mu.Lock()
	delete(r.mappings, name)
	r.mu.Unlock()
}

// Get returns the registered mapping with the given name, or nil.
func (r *Registry) Get(name string) *mapping.Mapping {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mappings[name]
}

// All returns every registered mapping, sorted by name.
func (r *Registry) All() []*mapping.Mapping {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*mapping.Mapping, 0, len(r.mappings))
	for _, m := range r.mappings {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Open returns the mapping registered under name, building, loading and
// registering it if absent. Concurrent opens of the same name share a
// single load: build is called at most once per miss, so the backing file
// is read once.
func (r *Registry) Open(name string, build func() (*mapping.Mapping, error)) (*mapping.Mapping, error) {
	if m := r.Get(name); m != nil {
		return m, nil
	}
	v, err := r.loads.Do(name, func() (interface{}, error) {
		if m := r.Get(name); m != nil {
			return m, nil
		}
		m, err := build()
		if err != nil {
			return nil, err
		}
		if m.Name == "" {
			m.Name = name
		}
		if err := m.Load(); err != nil {
			return nil, err
		}
		if err := r.Register(m); err != nil {
			return nil, err
		}
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*mapping.Mapping), nil
}
