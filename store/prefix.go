package store

import (
	"io"
	"strings"
)

// NewWithPrefix wraps the store s by one which prefixes all its keys with
// prefix. This namespaces the keys so a group of users can share one
// underlying store.
func NewWithPrefix(s Store, prefix string) Store {
	return prefixstore{s: s, p: prefix}
}

type prefixstore struct {
	s Store  // the store being wrapped
	p string // the prefix for our keys
}

func (ps prefixstore) List() <-chan string {
	out := make(chan string)
	in := ps.s.List()
	go func() {
		for key := range in {
			if strings.HasPrefix(key, ps.p) {
				out <- key[len(ps.p):]
			}
		}
		close(out)
	}()
	return out
}

func (ps prefixstore) Open(key string) (io.ReadCloser, int64, error) {
	return ps.s.Open(ps.p + key)
}

func (ps prefixstore) Create(key string) (io.WriteCloser, error) {
	return ps.s.Create(ps.p + key)
}

func (ps prefixstore) Delete(key string) error {
	return ps.s.Delete(ps.p + key)
}
