package assets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store is the writable side of a synchronization.
type Store interface {
	// MkdirAll creates the directory and any missing parents.
	MkdirAll(name string) error

	// Create opens name for writing. The new content replaces any existing
	// file when the writer is closed.
	Create(name string) (io.WriteCloser, error)

	// Open opens name for reading.
	Open(name string) (io.ReadCloser, error)
}

// DirStore is a Store rooted at a directory on disk. Names are slash paths
// relative to the root.
type DirStore struct {
	root string
}

// NewDirStore creates a store rooted at dir.
func NewDirStore(dir string) *DirStore {
	return &DirStore{root: dir}
}

// Root returns the directory the store writes to.
func (s *DirStore) Root() string {
	return s.root
}

// MkdirAll implements Store.
func (s *DirStore) MkdirAll(name string) error {
	return os.MkdirAll(s.path(name), 0o755) //nolint:gosec
}

// Create implements Store. Content is written to a temporary sibling and
// renamed over name on Close, so an interrupted copy never leaves a
// truncated asset behind.
func (s *DirStore) Create(name string) (io.WriteCloser, error) {
	dst := s.path(name)
	f, err := os.Create(dst + ".tmp")
	if err != nil {
		return nil, fmt.Errorf("unable to create file: %w", err)
	}
	return &pendingFile{File: f, dst: dst}, nil
}

// Open implements Store.
func (s *DirStore) Open(name string) (io.ReadCloser, error) {
	return os.Open(s.path(name))
}

func (s *DirStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// discarder is implemented by writers that can drop what was written
// instead of committing it.
type discarder interface {
	Discard() error
}

// pendingFile is a temporary file that becomes dst on Close.
type pendingFile struct {
	*os.File
	dst string
}

// Close commits the file to its destination.
func (p *pendingFile) Close() error {
	tmp := p.Name()
	if err := p.File.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("unable to write file: %w", err)
	}
	if err := os.Rename(tmp, p.dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("unable to commit file: %w", err)
	}
	return nil
}

// Discard closes and removes the temporary file, leaving dst untouched.
func (p *pendingFile) Discard() error {
	_ = p.File.Close()
	return os.Remove(p.Name())
}
