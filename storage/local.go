package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"meteoswiss-forecast/logger"
)

// LocalType is the type name of the directory backend
const LocalType = "local"

// LocalStore keeps artifacts as files in one directory
type LocalStore struct {
	baseDir string
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore creates the base directory if needed
func NewLocalStore(baseDir string) (*LocalStore, error) {
	if baseDir == "" {
		return nil, errors.New("local storage: base directory must be specified")
	}
	info, err := os.Stat(baseDir)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(baseDir, 0o755); err != nil {
			return nil, fmt.Errorf("local storage: failed to create %s: %w", baseDir, err)
		}
	case err != nil:
		return nil, fmt.Errorf("local storage: failed to stat %s: %w", baseDir, err)
	case !info.IsDir():
		return nil, fmt.Errorf("local storage: %s is not a directory", baseDir)
	}
	return &LocalStore{baseDir: baseDir}, nil
}

// Type returns "local"
func (s *LocalStore) Type() string {
	return LocalType
}

// Close does nothing
func (s *LocalStore) Close() error {
	return nil
}

// Path returns the file path of an artifact
func (s *LocalStore) Path(name string) (string, error) {
	full := filepath.Join(s.baseDir, name)
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", s.baseDir, err)
	}
	absFull, err := filepath.Abs(full)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", full, err)
	}
	if !strings.HasPrefix(absFull, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("artifact %q is outside of %s", name, s.baseDir)
	}
	return full, nil
}

// Put writes to a temporary file and renames it so readers never see a partial artifact
func (s *LocalStore) Put(ctx context.Context, name string, data []byte, contentType string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to set permissions of %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	logger.Debugf("Stored %s (%d bytes, %s)", path, len(data), contentType)
	return nil
}

// Get reads an artifact
func (s *LocalStore) Get(ctx context.Context, name string) ([]byte, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

// ModTime returns when an artifact was last written
func (s *LocalStore) ModTime(ctx context.Context, name string) (time.Time, error) {
	path, err := s.Path(name)
	if err != nil {
		return time.Time{}, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to stat %s: %w", name, err)
	}
	return info.ModTime(), nil
}

// Delete removes an artifact; a missing artifact is not an error
func (s *LocalStore) Delete(ctx context.Context, name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}

// List calls fn for every artifact whose name starts with prefix
func (s *LocalStore) List(ctx context.Context, prefix string, fn func(name string) error) error {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", s.baseDir, err)
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		if err := fn(e.Name()); err != nil {
			return err
		}
	}
	return nil
}
