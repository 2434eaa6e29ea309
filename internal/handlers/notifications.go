package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/newoon/backoffice-server/internal/models"
	"github.com/newoon/backoffice-server/internal/services"
)

// NotificationHandler serves the caller's inbox
type NotificationHandler struct {
	svc    *services.NotificationService
	logger *zap.SugaredLogger
}

func NewNotificationHandler(svc *services.NotificationService, logger *zap.SugaredLogger) *NotificationHandler {
	return &NotificationHandler{svc: svc, logger: logger}
}

// List handles GET /api/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context(), principal(r))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

// Create handles POST /api/notifications
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.NotificationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	n, err := h.svc.Create(r.Context(), &req)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusCreated, "Notification created successfully", n)
}

// MarkRead handles PUT /api/notifications/{id}
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if err := h.svc.MarkRead(r.Context(), principal(r), id); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, "Notification marked as read")
}

// Clear handles DELETE /api/notifications/clear
func (h *NotificationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Clear(r.Context(), principal(r))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "All notifications cleared successfully",
		"deleted": n,
	})
}
