// Package storage persists uploaded attachments (document scans, complaint
// evidence, catalog images) on local disk or in an S3-compatible bucket.
package storage

import (
	"context"
	"io"
	"path"
	"strings"
)

// FileInfo describes a stored object
type FileInfo struct {
	Key      string `json:"key"`
	URL      string `json:"url"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
	FileType string `json:"fileType"`
}

// Store saves and removes attachments by key
type Store interface {
	Save(ctx context.Context, key string, file io.Reader, contentType string) (*FileInfo, error)
	// Delete succeeds when the object is already gone
	Delete(ctx context.Context, key string) error
	URL(key string) string
	// KeyFromURL reverses URL for objects this store owns
	KeyFromURL(url string) (string, bool)
}

func keyFromURL(base, url string) (string, bool) {
	prefix := base + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := path.Clean(strings.TrimPrefix(url, prefix))
	if key == "." || strings.HasPrefix(key, "..") {
		return "", false
	}
	return key, true
}
