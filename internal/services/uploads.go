package services

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/newoon/backoffice-server/internal/apperr"
	"github.com/newoon/backoffice-server/internal/storage"
)

// bcryptCost is lowered by tests
var bcryptCost = bcrypt.DefaultCost

func hashSecret(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return "", apperr.Internal("hash secret", err)
	}
	return string(h), nil
}

func secretMatches(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// Upload is a file received from a client. Handlers check size and type
// before building one.
type Upload struct {
	File        io.Reader
	FileName    string
	ContentType string
}

// saveUpload stores up under prefix with a random name that keeps the extension
func saveUpload(ctx context.Context, files storage.Store, prefix string, up *Upload) (*storage.FileInfo, error) {
	key := prefix + "/" + uuid.NewString() + strings.ToLower(path.Ext(up.FileName))
	info, err := files.Save(ctx, key, up.File, up.ContentType)
	if err != nil {
		return nil, apperr.Dependency("File upload failed", err)
	}
	info.FileName = up.FileName
	return info, nil
}

// removeStored deletes an object referenced by url when this store owns it
func removeStored(ctx context.Context, files storage.Store, url string) error {
	key, ok := files.KeyFromURL(url)
	if !ok {
		return nil
	}
	return files.Delete(ctx, key)
}
