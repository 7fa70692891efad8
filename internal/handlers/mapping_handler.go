package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/timesync/server/internal/models"
	"github.com/timesync/server/internal/observability"
	"github.com/timesync/server/internal/repository"
	"github.com/timesync/server/internal/services"
)

// MappingHandler handles project mapping endpoints
type MappingHandler struct {
	mappingRepo    repository.ProjectMappingRepo
	projectRepo    repository.ProjectRepo
	connectionRepo repository.ConnectionRepo
	syncService    *services.SyncService
}

// NewMappingHandler creates a new MappingHandler
func NewMappingHandler(mappingRepo repository.ProjectMappingRepo, projectRepo repository.ProjectRepo, connectionRepo repository.ConnectionRepo, syncService *services.SyncService) *MappingHandler {
	return &MappingHandler{
		mappingRepo:    mappingRepo,
		projectRepo:    projectRepo,
		connectionRepo: connectionRepo,
		syncService:    syncService,
	}
}

// List returns all project mappings for a user
// @Summary List project mappings
// @Tags mappings
// @Produce json
// @Param userId query string true "User ID"
// @Success 200 {array} models.ProjectMapping
// @Security ApiKeyAuth
// @Router /api/mappings [get]
func (h *MappingHandler) List(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.requireConnection(w, r, r.URL.Query().Get("userId"))
	if !ok {
		return
	}

	mappings, err := h.mappingRepo.GetByConnection(r.Context(), conn.ID)
	if err != nil {
		observability.Errorf("failed to list mappings: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if mappings == nil {
		mappings = []*models.ProjectMapping{}
	}

	writeJSON(w, http.StatusOK, mappings)
}

// Create adds a new project mapping
// @Summary Create a project mapping
// @Tags mappings
// @Accept json
// @Produce json
// @Param request body models.CreateMappingRequest true "Mapping request"
// @Success 201 {object} models.ProjectMapping
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse "Mapping already exists"
// @Security ApiKeyAuth
// @Router /api/mappings [post]
func (h *MappingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conn, ok := h.requireConnection(w, r, req.UserID)
	if !ok {
		return
	}

	project, err := h.projectRepo.GetByID(r.Context(), req.LocalProjectID)
	if err != nil {
		observability.Errorf("failed to load project: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "local project not found")
		return
	}

	mapping, err := models.NewProjectMapping(conn.ID, req.LocalProjectID, req.RemoteProjectID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.mappingRepo.Add(r.Context(), mapping); err != nil {
		if errors.Is(err, repository.ErrDuplicateMapping) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		observability.Errorf("failed to create mapping: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusCreated, mapping)
}

// Update enables or disables a mapping
// @Summary Enable or disable a project mapping
// @Tags mappings
// @Accept json
// @Produce json
// @Param id path string true "Mapping ID"
// @Param request body models.UpdateMappingRequest true "Update request"
// @Success 200 {object} models.ProjectMapping
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/mappings/{id} [patch]
func (h *MappingHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req models.UpdateMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mapping, err := h.mappingRepo.GetByID(r.Context(), id)
	if err != nil {
		observability.Errorf("failed to load mapping: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if mapping == nil {
		writeError(w, http.StatusNotFound, "mapping not found")
		return
	}

	if err := h.mappingRepo.SetEnabled(r.Context(), id, req.Enabled); err != nil {
		observability.Errorf("failed to update mapping: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	mapping.Enabled = req.Enabled
	writeJSON(w, http.StatusOK, mapping)
}

// LocalProjects lists the local projects available for mapping
// @Summary List local projects
// @Tags mappings
// @Produce json
// @Success 200 {array} models.Project
// @Security ApiKeyAuth
// @Router /api/projects [get]
func (h *MappingHandler) LocalProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projectRepo.GetAll(r.Context())
	if err != nil {
		observability.Errorf("failed to list projects: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if projects == nil {
		projects = []*models.Project{}
	}

	writeJSON(w, http.StatusOK, projects)
}

// RemoteProjects lists the user's non-archived projects in the remote system
// @Summary List remote projects
// @Tags mappings
// @Produce json
// @Param userId query string true "User ID"
// @Success 200 {array} services.RemoteProject
// @Failure 412 {object} models.ErrorResponse "No remote connection configured"
// @Security ApiKeyAuth
// @Router /api/remote/projects [get]
func (h *MappingHandler) RemoteProjects(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	projects, err := h.syncService.RemoteProjects(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrConnectionMissing) {
			writeError(w, http.StatusPreconditionFailed, err.Error())
			return
		}
		observability.Errorf("failed to list remote projects: %v", err)
		writeError(w, http.StatusBadGateway, "remote system error")
		return
	}
	if projects == nil {
		projects = []services.RemoteProject{}
	}

	writeJSON(w, http.StatusOK, projects)
}

func (h *MappingHandler) requireConnection(w http.ResponseWriter, r *http.Request, userID string) (*models.Connection, bool) {
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return nil, false
	}

	conn, err := h.connectionRepo.GetByUserID(r.Context(), userID)
	if err != nil {
		observability.Errorf("failed to load connection: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return nil, false
	}
	if conn == nil {
		writeError(w, http.StatusPreconditionFailed, services.ErrConnectionMissing.Error())
		return nil, false
	}
	return conn, true
}
