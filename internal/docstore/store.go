// Package docstore keeps UI documents on disk as <name>.yml or <name>.yaml
// files in one directory.
package docstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/starford/yamui/internal/apperr"
	"github.com/starford/yamui/internal/checksum"
)

// DefaultMaxBytes bounds a document written through the store.
const DefaultMaxBytes = 256 << 10

// ErrTooLarge is returned when a write exceeds the store's size limit.
var ErrTooLarge = errors.New("docstore: document too large")

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Doc describes one stored document.
type Doc struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is a directory of documents. Writes through one Store are
// serialized.
type Store struct {
	root     string
	maxBytes int64
	mu       sync.Mutex
}

// New returns a store over root, which must already exist. A non-positive
// maxBytes uses DefaultMaxBytes.
func New(root string, maxBytes int64) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("docstore: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("docstore: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("docstore: root is not a directory: %s", abs)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Store{root: abs, maxBytes: maxBytes}, nil
}

// Root returns the absolute directory of the store.
func (s *Store) Root() string { return s.root }

// IsDocument reports whether a file name carries a document extension.
func IsDocument(file string) bool {
	ext := strings.ToLower(filepath.Ext(file))
	return ext == ".yml" || ext == ".yaml"
}

// NameOf returns the document name of a file path.
func NameOf(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func normalize(name string) (string, error) {
	name = strings.TrimSpace(name)
	if IsDocument(name) {
		name = NameOf(name)
	}
	if !namePattern.MatchString(name) || strings.Contains(name, "..") {
		return "", fmt.Errorf("docstore: invalid document name %q: %w", name, apperr.ErrInvalidShape)
	}
	return name, nil
}

// Resolve returns the absolute path of the named document. Names match
// ignoring case, and a trailing .yml or .yaml is accepted.
func (s *Store) Resolve(name string) (string, error) {
	want, err := normalize(name)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return "", fmt.Errorf("docstore: read dir: %w", err)
	}
	var fallback string
	for _, e := range entries {
		if e.IsDir() || !IsDocument(e.Name()) {
			continue
		}
		got := NameOf(e.Name())
		if got == want {
			return filepath.Join(s.root, e.Name()), nil
		}
		if fallback == "" && strings.EqualFold(got, want) {
			fallback = filepath.Join(s.root, e.Name())
		}
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", fmt.Errorf("docstore: document %q: %w", name, apperr.ErrNotFound)
}

// List returns every document in the directory, sorted by name.
func (s *Store) List() ([]Doc, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("docstore: list: %w", err)
	}
	out := []Doc{}
	for _, e := range entries {
		if e.IsDir() || !IsDocument(e.Name()) {
			continue
		}
		d, err := s.stat(filepath.Join(s.root, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) stat(path string) (Doc, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Doc{}, fmt.Errorf("docstore: stat %s: %w", filepath.Base(path), err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Doc{}, fmt.Errorf("docstore: read %s: %w", filepath.Base(path), err)
	}
	return Doc{
		Name:      NameOf(path),
		Path:      path,
		Checksum:  checksum.Sum(data),
		Size:      info.Size(),
		UpdatedAt: info.ModTime(),
	}, nil
}

// Stat describes the named document.
func (s *Store) Stat(name string) (Doc, error) {
	path, err := s.Resolve(name)
	if err != nil {
		return Doc{}, err
	}
	return s.stat(path)
}

// Read returns the bytes of the named document.
func (s *Store) Read(name string) ([]byte, error) {
	path, err := s.Resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("docstore: read %s: %w", name, err)
	}
	return data, nil
}

// Checksum returns the sha256 digest of the named document.
func (s *Store) Checksum(name string) (string, error) {
	data, err := s.Read(name)
	if err != nil {
		return "", err
	}
	return checksum.Sum(data), nil
}

// Write atomically replaces the named document, creating <name>.yaml when
// it does not exist yet.
func (s *Store) Write(name string, content []byte) (Doc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(name, content)
}

// WriteIf is Write guarded by the checksum of the stored version. An empty
// ifMatch writes unconditionally; otherwise a missing document or a changed
// checksum fails with apperr.ErrConflict and nothing is written.
func (s *Store) WriteIf(name string, content []byte, ifMatch string) (Doc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ifMatch != "" {
		existing, err := s.Read(name)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return Doc{}, err
		}
		if !checksum.Matches(existing, ifMatch) {
			return Doc{}, fmt.Errorf("docstore: %s: checksum mismatch: %w", name, apperr.ErrConflict)
		}
	}
	return s.write(name, content)
}

func (s *Store) write(name string, content []byte) (Doc, error) {
	n, err := normalize(name)
	if err != nil {
		return Doc{}, err
	}
	if int64(len(content)) > s.maxBytes {
		return Doc{}, fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(content), s.maxBytes)
	}
	path, err := s.Resolve(n)
	if errors.Is(err, apperr.ErrNotFound) {
		path, err = filepath.Join(s.root, n+".yaml"), nil
	}
	if err != nil {
		return Doc{}, err
	}

	tmp, err := os.CreateTemp(s.root, ".yamui-tmp-*")
	if err != nil {
		return Doc{}, fmt.Errorf("docstore: create temp: %w", err)
	}
	tmpName := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return Doc{}, fmt.Errorf("docstore: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return Doc{}, fmt.Errorf("docstore: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Doc{}, fmt.Errorf("docstore: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return Doc{}, fmt.Errorf("docstore: rename: %w", err)
	}
	success = true
	return s.stat(path)
}

// Delete removes the named document.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path, err := s.Resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("docstore: delete %s: %w", name, err)
	}
	return nil
}
