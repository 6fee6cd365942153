package blobs

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/contentmap/contentmap/store"
)

func TestCacheEviction(t *testing.T) {
	cache := NewCache(store.NewMemory(), 100)
	// "hello world" is 11 bytes, so 10 of them force at least one eviction
	for i := 0; i < 10; i++ {
		w, err := cache.Put(fmt.Sprintf("hello-%d", i))
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte("hello world"))
		w.Close()
	}
	var evicted int
	for i := 0; i < 10; i++ {
		r, size, err := cache.Get(fmt.Sprintf("hello-%d", i))
		if err != nil {
			t.Fatal(err)
		}
		if r == nil {
			evicted++
			continue
		}
		if size != 11 {
			t.Errorf("size %d, expected 11", size)
		}
		r.Close()
	}
	if evicted == 0 {
		t.Error("no artifacts evicted")
	}
	if cache.size > 100 {
		t.Errorf("cache size %d over the limit", cache.size)
	}
}

func TestCacheLRUOrder(t *testing.T) {
	cache := NewCache(store.NewMemory(), 30)
	add := func(key, contents string) {
		t.Helper()
		w, err := cache.Put(key)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(contents))
		w.Close()
	}
	add("a", "0123456789")
	add("b", "0123456789")
	add("c", "0123456789")
	// touch a so b is the cold one
	r, _, _ := cache.Get("a")
	r.Close()
	add("d", "0123456789")
	if cache.Contains("b") {
		t.Error("b survived eviction")
	}
	for _, key := range []string{"a", "c", "d"} {
		if !cache.Contains(key) {
			t.Errorf("%s missing", key)
		}
	}
}

func TestCacheTooLarge(t *testing.T) {
	cache := NewCache(store.NewMemory(), 100)
	w, err := cache.Put("qwerty")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		_, err = w.Write([]byte("hello world"))
		if err != nil {
			break
		}
	}
	if err != ErrCacheFull {
		t.Errorf("got %v, expected ErrCacheFull", err)
	}
	w.Close()
	if cache.size != 0 {
		t.Errorf("cache size %d after discard, expected 0", cache.size)
	}
	if cache.Contains("qwerty") {
		t.Error("discarded artifact still listed")
	}
}

func TestCacheScan(t *testing.T) {
	mem := store.NewMemory()
	for key, contents := range map[string]string{
		"qwerty": "1234567890",
		"asdf":   "1234567890-=",
	} {
		w, err := mem.Create(key)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(contents))
		w.Close()
	}

	cache := NewCache(mem, 100)
	cache.Scan()
	for _, key := range []string{"qwerty", "asdf"} {
		if !cache.Contains(key) {
			t.Errorf("%s not scanned in", key)
		}
	}
	if cache.size != 22 {
		t.Errorf("scanned size %d, expected 22", cache.size)
	}
}

func TestCachedStore(t *testing.T) {
	backing := store.NewMemory()
	cache := NewCache(store.NewMemory(), 100)
	b := NewCached(backing, cache)

	const id = "{AAAAAAAA-BBBB-CCCC-DDDD-EEEEEEEEEEEE}"
	w, err := b.Create(id)
	if err != nil {
		t.Fatal(err)
	}
	io.Copy(w, strings.NewReader("artifact body"))
	w.Close()

	// first read fills the cache
	r, size, err := b.Open(id)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(r)
	r.Close()
	if string(body) != "artifact body" || size != 13 {
		t.Errorf("read %q size %d", body, size)
	}
	if !cache.Contains(key(id)) {
		t.Error("artifact not cached after read")
	}

	// second read is served from the cache even if the backing copy is gone
	backing.Delete(key(id))
	r, _, err = b.Open(id)
	if err != nil || r == nil {
		t.Fatalf("cached read: %v", err)
	}
	body, _ = io.ReadAll(r)
	r.Close()
	if string(body) != "artifact body" {
		t.Errorf("cached read %q", body)
	}

	// deleting the blob also evicts it
	if err := b.Delete(id); err != nil {
		t.Fatal(err)
	}
	if cache.Contains(key(id)) {
		t.Error("artifact still cached after delete")
	}
}
