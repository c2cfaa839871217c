// Package scratch implements the ephemeral per-profile download directory.
package scratch

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ChunkSize is the buffer size used when streaming resources to disk.
const ChunkSize = 8192

// maxRenames bounds the numbered suffixes tried when a file name is already taken.
const maxRenames = 1000

// Config captures the parameters for a scratch store.
type Config struct {
	// BaseDir is the worker's scratch root.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
	// Name is the profile's directory under BaseDir.
	Name string `mapstructure:"name" yaml:"name"`
}

// Store writes downloads into a single directory that is removed wholesale by Purge.
// The directory is created lazily on the first Put.
type Store struct {
	dir string
}

// New creates a scratch store. It does not touch the filesystem.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, fmt.Errorf("scratch name is required")
	}
	if cfg.Name != filepath.Base(cfg.Name) || cfg.Name == ".." || cfg.Name == "." {
		return nil, fmt.Errorf("scratch name %q must be a single path element", cfg.Name)
	}
	return &Store{dir: filepath.Join(cfg.BaseDir, cfg.Name)}, nil
}

// Dir returns the directory the store writes into.
func (s *Store) Dir() string {
	return s.dir
}

// Put streams data into name inside the scratch directory and returns the file path.
// A name already written in this directory gets a numbered suffix (lec.pdf, lec-1.pdf)
// so earlier files are never overwritten. The file is closed before Put returns, so
// callers may read it back immediately.
func (s *Store) Put(name string, data io.Reader) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("name is required")
	}

	fullPath := filepath.Join(s.dir, name)

	// Clean the path and verify it's within the scratch dir to prevent path traversal.
	cleanDir := filepath.Clean(s.dir)
	cleanFullPath := filepath.Clean(fullPath)
	if !strings.HasPrefix(cleanFullPath, cleanDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}

	if err := os.MkdirAll(cleanDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}

	f, path, err := createUnique(cleanFullPath)
	if err != nil {
		return "", err
	}

	buf := make([]byte, ChunkSize)
	if _, err := io.CopyBuffer(onlyWriter{f}, data, buf); err != nil {
		closeErr := f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write file: %w", errors.Join(err, closeErr))
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	return path, nil
}

// createUnique exclusively creates path, or the first free numbered variant of it.
func createUnique(path string) (*os.File, string, error) {
	for i := 0; i <= maxRenames; i++ {
		candidate := path
		if i > 0 {
			candidate = numbered(path, i)
		}
		// #nosec G304 -- path is confined to the scratch directory by Put.
		f, err := os.OpenFile(candidate, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			return f, candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("failed to create file: %w", err)
		}
	}
	return nil, "", fmt.Errorf("failed to create file: no free name for %s", filepath.Base(path))
}

func numbered(path string, n int) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(path, ext), n, ext)
}

// Purge recursively removes the scratch directory. A missing directory is not an error.
func (s *Store) Purge() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("failed to remove scratch directory: %w", err)
	}
	return nil
}

// onlyWriter hides *os.File's ReadFrom so io.CopyBuffer honors the chunk buffer.
type onlyWriter struct {
	w io.Writer
}

func (o onlyWriter) Write(p []byte) (int, error) {
	return o.w.Write(p)
}
