package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStore writes files under a directory served at baseURL
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates dir if needed
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the root directory, for mounting a file server
func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}

func (s *LocalStore) Save(_ context.Context, key string, file io.Reader, contentType string) (*FileInfo, error) {
	dst, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, fmt.Errorf("create dir: %w", err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, file)
	if err != nil {
		_ = os.Remove(dst)
		return nil, fmt.Errorf("write file: %w", err)
	}

	return &FileInfo{
		Key:      key,
		URL:      s.URL(key),
		FileName: path.Base(key),
		FileSize: n,
		FileType: contentType,
	}, nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	dst, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

func (s *LocalStore) URL(key string) string {
	return s.baseURL + "/" + strings.TrimLeft(key, "/")
}

func (s *LocalStore) KeyFromURL(url string) (string, bool) {
	return keyFromURL(s.baseURL, url)
}
