package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/newoon/backoffice-server/internal/apperr"
	"github.com/newoon/backoffice-server/internal/models"
	"github.com/newoon/backoffice-server/internal/services"
)

// RoleHandler serves role CRUD and role/task assignments
type RoleHandler struct {
	roles       *services.RoleService
	assignments *services.AssignmentService
	logger      *zap.SugaredLogger
}

func NewRoleHandler(roles *services.RoleService, assignments *services.AssignmentService, logger *zap.SugaredLogger) *RoleHandler {
	return &RoleHandler{roles: roles, assignments: assignments, logger: logger}
}

type roleRequest struct {
	Name string `json:"name"`
}

// Create handles POST /api/role
func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	role, err := h.roles.Create(r.Context(), principal(r), req.Name)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusCreated, "Role created successfully", role)
}

// List handles GET /api/role and the public GET /api/roles-task/roles
func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.List(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, "", roles)
}

// Rename handles PATCH /api/role/{id}
func (h *RoleHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	var req roleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	role, err := h.roles.Rename(r.Context(), principal(r), id, req.Name)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, "Role updated successfully", role)
}

// Delete handles DELETE /api/role/{id}
func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if err := h.roles.Delete(r.Context(), principal(r), id); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, "Role deleted successfully")
}

// CreateAssignment handles POST /api/roles-task/create-role-task
func (h *RoleHandler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req models.RoleAssignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	a, err := h.assignments.Create(r.Context(), &req)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusCreated, "Role & Task assigned successfully", a)
}

// UpdateAssignment handles PUT /api/roles-task/update-role-task/{id}
func (h *RoleHandler) UpdateAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	var req models.RoleAssignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	a, err := h.assignments.Update(r.Context(), id, &req)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, "Role & Task updated successfully", a)
}

// ListAssignments handles GET /api/roles-task/get-all-role-tasks
func (h *RoleHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	items, err := h.assignments.List(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, "", items)
}

// DeleteAssignment handles DELETE /api/roles-task/delete-role-task/{id}
func (h *RoleHandler) DeleteAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if err := h.assignments.Delete(r.Context(), id); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, "Role & Task deleted successfully")
}

// CatalogHandler serves the list of advertised services
type CatalogHandler struct {
	catalog *services.CatalogService
	logger  *zap.SugaredLogger
}

func NewCatalogHandler(catalog *services.CatalogService, logger *zap.SugaredLogger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

// Create handles POST /api/services/create (multipart, optional file field "image")
func (h *CatalogHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r); err != nil {
		respondError(w, h.logger, err)
		return
	}
	up, done, err := formFile(r, "image")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	defer done()
	if up != nil && !isImage(up.FileName) {
		respondError(w, h.logger, apperr.Validation("Service image must be a JPEG or PNG"))
		return
	}

	svc, err := h.catalog.Create(r.Context(), principal(r), r.FormValue("serviceName"), r.FormValue("description"), up)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusCreated, "Service created successfully", svc)
}

// List handles GET /api/services/all
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.List(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondData(w, http.StatusOK, "", items)
}

func isImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
