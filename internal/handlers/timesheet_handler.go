package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/timesync/server/internal/models"
	"github.com/timesync/server/internal/observability"
	"github.com/timesync/server/internal/repository"
)

// TimesheetHandler is the ingestion surface for the timesheet subsystem:
// it registers local projects and records raw time entries. The sync
// engine only ever reads this data.
type TimesheetHandler struct {
	projectRepo repository.ProjectRepo
	entryRepo   repository.TimeEntryRepo
}

// NewTimesheetHandler creates a new TimesheetHandler
func NewTimesheetHandler(projectRepo repository.ProjectRepo, entryRepo repository.TimeEntryRepo) *TimesheetHandler {
	return &TimesheetHandler{
		projectRepo: projectRepo,
		entryRepo:   entryRepo,
	}
}

// CreateProject registers a local project
// @Summary Create a local project
// @Tags timesheet
// @Accept json
// @Produce json
// @Param request body models.CreateProjectRequest true "Project request"
// @Success 201 {object} models.Project
// @Failure 400 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/projects [post]
func (h *TimesheetHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	project, err := models.NewProject(req.Name, req.Billable)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.projectRepo.Add(r.Context(), project); err != nil {
		observability.Errorf("failed to create project: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusCreated, project)
}

// CreateEntry records a raw time entry. The billable flag mirrors the
// project's flag at recording time.
// @Summary Record a time entry
// @Tags timesheet
// @Accept json
// @Produce json
// @Param request body models.CreateEntryRequest true "Entry request"
// @Success 201 {object} models.TimeEntry
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse "Project not found"
// @Security ApiKeyAuth
// @Router /api/entries [post]
func (h *TimesheetHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req models.CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := models.NewTimeEntry(req.UserID, req.ProjectID, req.Day, req.Minutes, req.Note)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entry.SkipSync = req.SkipSync

	if req.ProjectID != nil {
		project, err := h.projectRepo.GetByID(r.Context(), *req.ProjectID)
		if err != nil {
			observability.Errorf("failed to load project: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		if project == nil {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		entry.Billable = project.Billable
	}

	if err := h.entryRepo.Add(r.Context(), entry); err != nil {
		observability.Errorf("failed to record entry: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}
