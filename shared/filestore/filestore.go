package filestore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when the referenced file does not exist
var ErrNotFound = errors.New("file not found")

// Store keeps uploaded import files in a local directory.
// Names are always resolved inside the root directory.
type Store struct {
	root string
}

// New creates a Store rooted at dir, creating the directory if needed
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store directory is required")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create file store directory: %w", err)
	}

	return &Store{root: dir}, nil
}

// Root returns the store directory
func (s *Store) Root() string {
	return s.root
}

func (s *Store) path(name string) string {
	return filepath.Join(s.root, filepath.Clean("/"+name))
}

// Save writes r under name. The file appears atomically once fully written.
func (s *Store) Save(name string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to write file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close file: %w", err)
	}

	dst := s.path(name)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return 0, fmt.Errorf("failed to move file into place: %w", err)
	}

	return n, nil
}

// Open opens the named file for reading
func (s *Store) Open(name string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Remove deletes the named file; a missing file is not an error
func (s *Store) Remove(name string) error {
	err := os.Remove(s.path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}
