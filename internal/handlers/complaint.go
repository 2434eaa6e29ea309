package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/newoon/backoffice-server/internal/models"
	"github.com/newoon/backoffice-server/internal/services"
)

// ComplaintHandler handles complaint-related HTTP endpoints
type ComplaintHandler struct {
	complaints *services.ComplaintService
	logger     *zap.SugaredLogger
}

// NewComplaintHandler creates a new complaint handler
func NewComplaintHandler(cs *services.ComplaintService, logger *zap.SugaredLogger) *ComplaintHandler {
	return &ComplaintHandler{complaints: cs, logger: logger}
}

// Submit handles POST /api/complaint/creates (multipart, file field "fileAttachment")
func (h *ComplaintHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r); err != nil {
		respondError(w, h.logger, err)
		return
	}
	up, done, err := formFile(r, "fileAttachment")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	defer done()

	req := models.ComplaintSubmission{
		FirstName:     r.FormValue("firstName"),
		LastName:      r.FormValue("lastName"),
		Email:         r.FormValue("email"),
		ContactNumber: r.FormValue("contactNumber"),
		Subject:       r.FormValue("complaintSubject"),
		Details:       r.FormValue("complaintDetails"),
	}
	c, err := h.complaints.Create(r.Context(), principal(r), &req, up)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusCreated, "Complaint submitted successfully", c)
}

// List handles GET /api/complaint/complaints
func (h *ComplaintHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.complaints.List(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, "", items)
}

// BySubject handles GET /api/complaint/filter/{subject}
func (h *ComplaintHandler) BySubject(w http.ResponseWriter, r *http.Request) {
	items, err := h.complaints.BySubject(r.Context(), principal(r), chi.URLParam(r, "subject"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, "", items)
}

// UpdateStatus handles PATCH /api/complaint/{id}/status
func (h *ComplaintHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	c, err := h.complaints.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, "Complaint status updated", c)
}

// MeetingHandler schedules consultations
type MeetingHandler struct {
	meetings *services.MeetingService
	logger   *zap.SugaredLogger
}

func NewMeetingHandler(ms *services.MeetingService, logger *zap.SugaredLogger) *MeetingHandler {
	return &MeetingHandler{meetings: ms, logger: logger}
}

// Create handles POST /api/meeting-schedule/create-meeting
func (h *MeetingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.MeetingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	m, err := h.meetings.Create(r.Context(), principal(r), &req)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusCreated, "Meeting scheduled successfully", m)
}

// List handles GET /api/meeting-schedule/all-meetings
func (h *MeetingHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.meetings.List(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, "", items)
}
