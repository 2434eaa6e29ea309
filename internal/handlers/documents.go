package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newoon/backoffice-server/internal/apperr"
	"github.com/newoon/backoffice-server/internal/models"
	"github.com/newoon/backoffice-server/internal/services"
)

// DocumentHandler serves the verification workflow endpoints
type DocumentHandler struct {
	docs   *services.DocumentService
	logger *zap.SugaredLogger
}

func NewDocumentHandler(docs *services.DocumentService, logger *zap.SugaredLogger) *DocumentHandler {
	return &DocumentHandler{docs: docs, logger: logger}
}

// Create handles POST /api/document/create (multipart, file field "documentAttach")
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r); err != nil {
		respondError(w, h.logger, err)
		return
	}
	in, err := newDocumentFromForm(r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	up, done, err := formFile(r, "documentAttach")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	defer done()

	doc, err := h.docs.Create(r.Context(), principal(r), in, up)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusCreated, "Document created successfully", doc)
}

// List handles GET /api/document/all-document
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.docs.ListForOperator(r.Context(), principal(r))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, "", docs)
}

// Get handles GET /api/document/document-id/{id}
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	doc, err := h.docs.Get(r.Context(), principal(r), id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, "", doc)
}

// Advance handles PUT /api/document/next-stage/{id}
func (h *DocumentHandler) Advance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	doc, err := h.docs.Advance(r.Context(), principal(r), id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, "Document moved to "+string(doc.TimelineStatus), doc)
}

// Verify handles PUT /api/document/verify-document/{id}
func (h *DocumentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	var req models.VerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	doc, err := h.docs.SetOutcome(r.Context(), principal(r), id, &req)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, "Document "+strings.ToLower(string(doc.Status))+" successfully", doc)
}

// SubmitCorrections handles PUT /api/document/submit-corrections/{id}. It
// accepts a JSON body {"formData": {...}} or the multipart fields of Create
// with an optional replacement "documentAttach" file.
func (h *DocumentHandler) SubmitCorrections(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	var (
		patch models.FormData
		up    *services.Upload
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := parseMultipart(w, r); err != nil {
			respondError(w, h.logger, err)
			return
		}
		in, err := newDocumentFromForm(r)
		if err != nil {
			respondError(w, h.logger, err)
			return
		}
		patch = in.FormData
		var done func()
		if up, done, err = formFile(r, "documentAttach"); err != nil {
			respondError(w, h.logger, err)
			return
		}
		defer done()
	} else {
		var req struct {
			FormData models.FormData `json:"formData"`
		}
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, h.logger, err)
			return
		}
		patch = req.FormData
	}

	doc, err := h.docs.SubmitCorrections(r.Context(), principal(r), id, patch, up)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, "Corrections submitted successfully", doc)
}

// ClientDocuments handles GET /api/document/client-documents/{clientID}
func (h *DocumentHandler) ClientDocuments(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathID(r, "clientID")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	docs, err := h.docs.ClientDocuments(r.Context(), principal(r), clientID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, "", docs)
}

// Timeline handles GET /api/document/user-profile-timeline
func (h *DocumentHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	entries, err := h.docs.Timeline(r.Context(), principal(r))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, "", entries)
}

// RenewalDue handles GET /api/document/renewal-preferences-true
func (h *DocumentHandler) RenewalDue(w http.ResponseWriter, r *http.Request) {
	entries, err := h.docs.RenewalDue(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, "", entries)
}

// Delete handles DELETE /api/document/delete-document/{id}
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if err := h.docs.Delete(r.Context(), principal(r), id); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, "Document deleted successfully")
}

func newDocumentFromForm(r *http.Request) (*models.NewDocument, error) {
	fd := models.FormData{
		SingleTextLine: strings.TrimSpace(r.FormValue("singleTextLine")),
		Number:         strings.TrimSpace(r.FormValue("number")),
		Email:          strings.TrimSpace(r.FormValue("email")),
		ParagraphText:  strings.TrimSpace(r.FormValue("paragraphText")),
		Name:           strings.TrimSpace(r.FormValue("name")),
		Phone:          strings.TrimSpace(r.FormValue("phone")),
		Address:        strings.TrimSpace(r.FormValue("address")),
		URL:            strings.TrimSpace(r.FormValue("url")),
		Password:       strings.TrimSpace(r.FormValue("password")),
	}
	if raw := strings.TrimSpace(r.FormValue("date")); raw != "" {
		d, err := parseDate(raw)
		if err != nil {
			return nil, apperr.Validation("Invalid date")
		}
		fd.Date = &d
	}
	if raw := strings.TrimSpace(r.FormValue("renewalPreferences")); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, apperr.Validation("renewalPreferences must be true or false")
		}
		fd.RenewalPreferences = &b
	}

	in := &models.NewDocument{FormData: fd}
	if raw := strings.TrimSpace(r.FormValue("serviceName")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperr.Validation("Invalid service reference")
		}
		in.ServiceID = &id
	}
	return in, nil
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
