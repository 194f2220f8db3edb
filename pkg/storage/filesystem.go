package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// LocalStorage writes export files on disk. Relative names resolve under baseDir.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./exports"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create exports directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

// Save writes data to filename and returns the absolute path written. The
// content goes to a temporary sibling first so readers never see a partial file.
func (s *LocalStorage) Save(filename string, data []byte) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("export path is empty")
	}
	path := s.Path(filename)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("prepare export directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return "", fmt.Errorf("write export file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close export file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("chmod export file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("move export file: %w", err)
	}
	return path, nil
}

// Path resolves filename to an absolute location.
func (s *LocalStorage) Path(filename string) string {
	path := filename
	if !filepath.IsAbs(filename) {
		path = filepath.Join(s.baseDir, filename)
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
