package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/newoon/backoffice-server/internal/models"
	"github.com/newoon/backoffice-server/internal/services"
)

// FormHandler serves service form templates and their dispatch to clients
type FormHandler struct {
	forms  *services.FormService
	logger *zap.SugaredLogger
}

func NewFormHandler(forms *services.FormService, logger *zap.SugaredLogger) *FormHandler {
	return &FormHandler{forms: forms, logger: logger}
}

// ServiceNames handles GET /api/forms/service-names and /service-names-unregister
func (h *FormHandler) ServiceNames(w http.ResponseWriter, r *http.Request) {
	names, err := h.forms.ServiceNames(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, names)
}

// Create handles POST /api/forms/create
func (h *FormHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.FormInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, h.logger, err)
		return
	}
	form, err := h.forms.Create(r.Context(), principal(r), &in)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusCreated, "Form created successfully", form)
}

// List handles GET /api/forms/all
func (h *FormHandler) List(w http.ResponseWriter, r *http.Request) {
	forms, err := h.forms.List(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, forms)
}

// Get handles GET /api/forms/{id} and /api/forms/service-details/{id}
func (h *FormHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	form, err := h.forms.Get(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, form)
}

// Update handles PUT /api/forms/update-form/{id}
func (h *FormHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	var in models.FormInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, h.logger, err)
		return
	}
	form, err := h.forms.Update(r.Context(), principal(r), id, &in)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, "Form updated successfully", form)
}

// Delete handles DELETE /api/forms/{id}
func (h *FormHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if _, err := h.forms.Delete(r.Context(), principal(r), id); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, "Form deleted successfully")
}

// Preview handles POST /api/forms/preview
func (h *FormHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ServiceName string `json:"serviceName"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	form, err := h.forms.Preview(r.Context(), req.ServiceName)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, form)
}

// SendWithDetails handles POST /api/forms/send-form-with-details
func (h *FormHandler) SendWithDetails(w http.ResponseWriter, r *http.Request) {
	var req models.SendFormRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	if err := h.forms.SendWithDetails(r.Context(), &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, "Service form sent and added to the client's profile")
}

// ClientServices handles GET /api/forms/services/{email}
func (h *FormHandler) ClientServices(w http.ResponseWriter, r *http.Request) {
	forms, err := h.forms.ServicesByEmail(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, forms)
}

// IntakeHandler serves client-service intake requests
type IntakeHandler struct {
	intakes *services.IntakeService
	logger  *zap.SugaredLogger
}

func NewIntakeHandler(intakes *services.IntakeService, logger *zap.SugaredLogger) *IntakeHandler {
	return &IntakeHandler{intakes: intakes, logger: logger}
}

// Create handles POST /api/client-service/create and /create-unregister
func (h *IntakeHandler) Create(registered bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in models.IntakeInput
		if err := decodeJSON(r, &in); err != nil {
			respondError(w, h.logger, err)
			return
		}
		req, err := h.intakes.Create(r.Context(), &in, registered)
		if err != nil {
			respondError(w, h.logger, err)
			return
		}
		respondData(w, http.StatusCreated, "Client service created successfully", req)
	}
}

// List handles GET /api/client-service/get-all
func (h *IntakeHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.intakes.List(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, "", items)
}

// Unregistered handles GET /api/client-service/get-unregistered
func (h *IntakeHandler) Unregistered(w http.ResponseWriter, r *http.Request) {
	items, err := h.intakes.Unregistered(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, "", items)
}

// UpdateStatus handles PATCH /api/client-service/update-status/{id}
func (h *IntakeHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
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
	item, err := h.intakes.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, "Status updated successfully.", item)
}

// Delete handles DELETE /api/client-service/{id}
func (h *IntakeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if err := h.intakes.Delete(r.Context(), id); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, "Client service deleted successfully")
}

// SendForm handles POST /api/client-service/send-service-form
func (h *IntakeHandler) SendForm(w http.ResponseWriter, r *http.Request) {
	var req models.SendFormRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	if err := h.intakes.SendFormInvitation(r.Context(), &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, "Email sent successfully.")
}

// SendWelcome handles POST /api/client-service/send-service-form-unregister
func (h *IntakeHandler) SendWelcome(w http.ResponseWriter, r *http.Request) {
	var req models.SendFormRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	if err := h.intakes.SendWelcome(r.Context(), &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, "Email sent successfully.")
}
