package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/newoon/backoffice-server/internal/services"
)

// UserHandler serves the administrator view of accounts
type UserHandler struct {
	clients *services.ClientService
	logger  *zap.SugaredLogger
}

func NewUserHandler(clients *services.ClientService, logger *zap.SugaredLogger) *UserHandler {
	return &UserHandler{clients: clients, logger: logger}
}

// AllClients handles GET /api/users/all-clients
func (h *UserHandler) AllClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.clients.AllClients(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, clients)
}

// Staff handles GET /api/users/all-users-except-clients
func (h *UserHandler) Staff(w http.ResponseWriter, r *http.Request) {
	staff, err := h.clients.Staff(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, staff)
}

// Details handles GET /api/users/client-management-details/{id}
func (h *UserHandler) Details(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	acct, err := h.clients.Details(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, acct)
}

// Services handles GET /api/users/client-services
func (h *UserHandler) Services(w http.ResponseWriter, r *http.Request) {
	forms, err := h.clients.Services(r.Context(), principal(r))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, "", forms)
}

// Delete handles DELETE /api/users/delete-client/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if err := h.clients.Delete(r.Context(), principal(r), id); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, "Client deleted successfully")
}

// UpdateStatus handles PATCH /api/users/update-status/{id}
func (h *UserHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
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
	acct, err := h.clients.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, "User status updated successfully", acct)
}
