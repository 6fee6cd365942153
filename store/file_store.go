package store

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	raven "github.com/getsentry/raven-go"
)

// FileSystem is a file based store. Keys are used as file names, fanned out
// into two levels of subdirectories so one directory never holds every
// artifact. Writes go to a scratch directory first and move into place on
// Close, so a crashed writer never leaves a half-written artifact under its
// final key.
type FileSystem struct {
	root string
}

// the subdir holding files while they are being written
const scratchdir = "scratch"

var _ Store = &FileSystem{}

// NewFileSystem creates a FileSystem store rooted at the given path.
func NewFileSystem(root string) *FileSystem {
	return &FileSystem{root: root}
}

// List returns a channel producing every key in the store. The walk only
// opens directories and stats files.
func (s *FileSystem) List() <-chan string {
	c := make(chan string)
	go walkTree(c, s.root, 0)
	return c
}

// Depth first walk of the fan-out tree at root, emitting keys on out.
// Files live exactly two directories down; the scratch directory is at
// level 0 and skipped. If level is 0 the channel is closed on exit.
func walkTree(out chan<- string, root string, level int) {
	if level == 0 {
		defer close(out)
	}
	f, err := os.Open(root)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Println(err)
			raven.CaptureError(err, nil)
		}
		return
	}
	defer f.Close()
	for {
		entries, err := f.Readdir(1000)
		if err == io.EOF {
			return
		} else if err != nil {
			// no way to pass this error back
			log.Println(err)
			raven.CaptureError(err, nil)
			return
		}
		for _, e := range entries {
			if e.IsDir() {
				if level < 2 && !(level == 0 && e.Name() == scratchdir) {
					walkTree(out, filepath.Join(root, e.Name()), level+1)
				}
				continue
			}
			if level != 2 {
				continue
			}
			out <- e.Name()
		}
	}
}

// Open returns a reader for the given key along with its size.
func (s *FileSystem) Open(key string) (io.ReadCloser, int64, error) {
	if err := validateKey(key); err != nil {
		return nil, 0, err
	}
	f, err := os.Open(filepath.Join(s.root, keySubdir(key), key))
	if os.IsNotExist(err) {
		return nil, 0, ErrNotExist
	}
	if err != nil {
		return nil, 0, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, fi.Size(), nil
}

// Create returns a writer saving data under the given key. The data lands
// in the scratch directory and moves to its final location on Close.
func (s *FileSystem) Create(key string) (io.WriteCloser, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	target, err := s.setupSubdir(keySubdir(key), key)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		return nil, ErrKeyExists
	}
	temp, err := s.setupSubdir(scratchdir, key)
	if err != nil {
		return nil, err
	}
	// O_EXCL so concurrent creates of the same key collide here
	w, err := os.OpenFile(temp, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0666)
	if err != nil {
		return nil, err
	}
	return &moveCloser{WriteCloser: w, source: temp, target: target}, nil
}

// setupSubdir makes sure subdir exists under the root and returns the path
// the keyed file will have inside it.
func (s *FileSystem) setupSubdir(subdir, key string) (string, error) {
	dir := filepath.Join(s.root, subdir)
	err := os.MkdirAll(dir, 0775)
	return filepath.Join(dir, key), err
}

// moveCloser moves the scratch file into its final place on Close.
type moveCloser struct {
	io.WriteCloser
	source string
	target string
}

func (w *moveCloser) Close() error {
	err := w.WriteCloser.Close()
	if err != nil {
		return err
	}
	if _, err := os.Stat(w.target); !os.IsNotExist(err) {
		return ErrKeyExists
	}
	return os.Rename(w.source, w.target)
}

// Delete removes the key from the store. A missing key is not an error.
func (s *FileSystem) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.root, keySubdir(key), key))
	if err != nil && os.IsNotExist(err) {
		err = nil
	}
	return err
}

// keySubdir returns the fan-out subdirectory for a key,
// e.g. "abcd123" returns "ab/cd/".
func keySubdir(key string) string {
	key = strings.Map(normalizeRune, key)
	switch len(key) {
	case 0:
		return "./"
	case 1, 2:
		return key + "/"
	case 3:
		return key[0:2] + "/" + key[2:3] + "/"
	default:
		return key[0:2] + "/" + key[2:4] + "/"
	}
}

// normalizeRune folds runes so GUID-style keys with braces and dashes fan
// out by their hex digits.
func normalizeRune(r rune) rune {
	switch {
	case r >= 'A' && r <= 'Z':
		return r + ('a' - 'A')
	case r == '{' || r == '}' || r == '-':
		return -1
	}
	return r
}

func validateKey(key string) error {
	if key == "" || !utf8.ValidString(key) || strings.Contains(key, "/") {
		return ErrKeyInvalid
	}
	for _, r := range key {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return ErrKeyInvalid
		}
	}
	return nil
}
