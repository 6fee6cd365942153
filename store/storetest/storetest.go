// Package storetest provides helpers for testing anything implementing the
// Store interface.
package storetest

import (
	"io"
	"sort"
	"testing"

	"github.com/contentmap/contentmap/store"
)

// Exercise runs a store through a create/open/list/delete round trip and
// fails the test on any deviation.
func Exercise(t *testing.T, s store.Store) {
	t.Helper()
	contents := map[string]string{
		"b51eaae14c8b42cf90d2e5d82e9ca1fb": "hello",
		"f36e636e96e741b3b64b8b8bfda01cc5": "",
		"ca2ff7971ad74e09ae693a0dca24db5f": "some longer artifact content\nwith two lines",
	}
	for key, body := range contents {
		w, err := s.Create(key)
		if err != nil {
			t.Fatalf("Create(%s): %s", key, err)
		}
		if _, err := io.WriteString(w, body); err != nil {
			t.Fatalf("Write(%s): %s", key, err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close(%s): %s", key, err)
		}
	}

	// creating an existing key must fail
	for key := range contents {
		if _, err := s.Create(key); err != store.ErrKeyExists {
			t.Errorf("Create(%s) again: got %v, expected %v", key, err, store.ErrKeyExists)
		}
		break
	}

	for key, body := range contents {
		r, size, err := s.Open(key)
		if err != nil {
			t.Fatalf("Open(%s): %s", key, err)
		}
		data, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			t.Fatalf("Read(%s): %s", key, err)
		}
		if string(data) != body {
			t.Errorf("Read(%s): got %q, expected %q", key, data, body)
		}
		if size != int64(len(body)) {
			t.Errorf("Open(%s): got size %d, expected %d", key, size, len(body))
		}
	}

	var keys []string
	for key := range s.List() {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	if len(keys) != len(contents) {
		t.Errorf("List: got %d keys %v, expected %d", len(keys), keys, len(contents))
	}

	for key := range contents {
		if err := s.Delete(key); err != nil {
			t.Errorf("Delete(%s): %s", key, err)
		}
		if _, _, err := s.Open(key); err != store.ErrNotExist {
			t.Errorf("Open(%s) after delete: got %v, expected %v", key, err, store.ErrNotExist)
		}
		// deleting again is not an error
		if err := s.Delete(key); err != nil {
			t.Errorf("Delete(%s) again: %s", key, err)
		}
	}
}
