package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore saves files to a directory on disk. Used in development and in
// deployments too small to need an object store.
type LocalStore struct {
	baseDir   string
	publicURL string // e.g. "http://localhost:8080/files"
}

// NewLocalStore creates a LocalStore rooted at baseDir, creating it if
// necessary.
func NewLocalStore(baseDir, publicURL string) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{
		baseDir:   baseDir,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// Save writes a file under baseDir/path, creating any intermediate
// directories the path implies.
func (s *LocalStore) Save(ctx context.Context, path string, file io.Reader, contentType string) (*FileInfo, error) {
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return nil, fmt.Errorf("create parent dir: %w", err)
	}

	out, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	defer out.Close()

	size, err := io.Copy(out, file)
	if err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}

	return &FileInfo{
		URL:      s.URL(path),
		FileName: filepath.Base(path),
		FileSize: size,
		FileType: contentType,
	}, nil
}

// Delete removes a file from disk. Returns nil if it's already gone.
func (s *LocalStore) Delete(ctx context.Context, path string) error {
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(path))
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// URL returns the URL the local file server serves this path under.
func (s *LocalStore) URL(path string) string {
	return s.publicURL + "/" + strings.TrimLeft(filepath.ToSlash(path), "/")
}

// Handler returns an http.Handler that serves files straight out of baseDir,
// for deployments with no object store in front of them.
func (s *LocalStore) Handler() http.Handler {
	return http.FileServer(http.Dir(s.baseDir))
}
