// Package handlers contains HTTP request handlers for the back-office API.
// Handlers parse requests, call services, and return JSON responses.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newoon/backoffice-server/internal/apperr"
	"github.com/newoon/backoffice-server/internal/ctxkeys"
	"github.com/newoon/backoffice-server/internal/models"
	"github.com/newoon/backoffice-server/internal/services"
)

// maxUploadBytes caps multipart request bodies
const maxUploadBytes = 5 << 20

var allowedUploads = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".pdf": true, ".doc": true, ".docx": true,
}

// Helper: respond with JSON
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondData wraps data in the standard success envelope
func respondData(w http.ResponseWriter, status int, message string, data interface{}) {
	body := map[string]interface{}{"success": true, "data": data}
	if message != "" {
		body["message"] = message
	}
	respondJSON(w, status, body)
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{"success": true, "message": message})
}

// respondError maps err to its status and public message. Server-side
// failures are logged with their cause.
func respondError(w http.ResponseWriter, logger *zap.SugaredLogger, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Errorw("Request failed", "kind", apperr.KindOf(err), "error", err)
	}
	respondJSON(w, status, map[string]string{
		"message": apperr.PublicMessage(err),
		"error":   string(apperr.KindOf(err)),
	})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Validation("Invalid request body")
	}
	return nil
}

func principal(r *http.Request) *models.Account {
	return ctxkeys.PrincipalFrom(r.Context())
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.Validation("Invalid " + name)
	}
	return id, nil
}

// parseMultipart accepts multipart and urlencoded bodies up to maxUploadBytes
func parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return uploadError(err)
		}
		return nil
	}
	if err := r.ParseForm(); err != nil {
		return uploadError(err)
	}
	return nil
}

// formFile returns the optional upload in field, checking its extension and
// sniffed content type. parseMultipart must have run.
func formFile(r *http.Request, field string) (*services.Upload, func(), error) {
	noop := func() {}
	if r.MultipartForm == nil {
		return nil, noop, nil
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, noop, nil
		}
		return nil, noop, apperr.Validation("Invalid file upload")
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedUploads[ext] {
		file.Close()
		return nil, noop, apperr.Validation("Only images, PDFs, and Word documents are allowed")
	}
	head := make([]byte, 512)
	n, _ := io.ReadFull(file, head)
	sniffed := http.DetectContentType(head[:n])
	if !contentTypeMatches(ext, sniffed) {
		file.Close()
		return nil, noop, apperr.Validation("File content does not match its extension")
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, noop, apperr.Internal("rewind upload", err)
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = sniffed
	}
	return &services.Upload{File: file, FileName: header.Filename, ContentType: contentType},
		func() { file.Close() }, nil
}

func contentTypeMatches(ext, sniffed string) bool {
	switch ext {
	case ".jpg", ".jpeg":
		return sniffed == "image/jpeg"
	case ".png":
		return sniffed == "image/png"
	case ".pdf":
		return sniffed == "application/pdf"
	case ".doc":
		// legacy Word files sniff as generic binary
		return sniffed == "application/octet-stream"
	case ".docx":
		return sniffed == "application/zip" || sniffed == "application/octet-stream"
	}
	return false
}

func uploadError(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return apperr.Validation("File too large, the limit is 5 MB")
	}
	return apperr.Validation("Invalid form data")
}
