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

// SyncHandler handles sync run endpoints
type SyncHandler struct {
	syncService    *services.SyncService
	runRepo        repository.SyncRunRepo
	connectionRepo repository.ConnectionRepo
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(syncService *services.SyncService, runRepo repository.SyncRunRepo, connectionRepo repository.ConnectionRepo) *SyncHandler {
	return &SyncHandler{
		syncService:    syncService,
		runRepo:        runRepo,
		connectionRepo: connectionRepo,
	}
}

// Sync runs a reconciliation over the requested date range
// @Summary Run a sync
// @Description Push local work-hours for the date range to the remote system
// @Tags sync
// @Accept json
// @Produce json
// @Param request body models.SyncRequest true "Sync request"
// @Success 200 {object} models.SyncRunResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse "A sync is already running"
// @Failure 412 {object} models.ErrorResponse "No remote connection configured"
// @Security ApiKeyAuth
// @Router /api/sync [post]
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	opts, ok := decodeSyncRequest(w, r)
	if !ok {
		return
	}

	run, err := h.syncService.Sync(r.Context(), opts)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSyncInProgress):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, services.ErrConnectionMissing):
			writeError(w, http.StatusPreconditionFailed, err.Error())
		case isValidationError(err):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			observability.Errorf("sync failed: %v", err)
			// A run record may still exist with a terminal FAILED status;
			// return it alongside the error when we have one.
			if run != nil {
				writeJSON(w, http.StatusInternalServerError, runResponse(run))
				return
			}
			writeError(w, http.StatusInternalServerError, "sync failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, runResponse(run))
}

// Preview returns the per-unit classification without writing anything
// @Summary Preview a sync
// @Description Classify all units for the date range without issuing remote writes
// @Tags sync
// @Accept json
// @Produce json
// @Param request body models.SyncRequest true "Sync request"
// @Success 200 {object} models.PreviewResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 412 {object} models.ErrorResponse "No remote connection configured"
// @Security ApiKeyAuth
// @Router /api/sync/preview [post]
func (h *SyncHandler) Preview(w http.ResponseWriter, r *http.Request) {
	opts, ok := decodeSyncRequest(w, r)
	if !ok {
		return
	}

	preview, err := h.syncService.Preview(r.Context(), opts)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrConnectionMissing):
			writeError(w, http.StatusPreconditionFailed, err.Error())
		case isValidationError(err):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			observability.Errorf("preview failed: %v", err)
			writeError(w, http.StatusInternalServerError, "preview failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, preview)
}

// ListRuns returns the most recent sync runs for a user
// @Summary List sync runs
// @Tags sync
// @Produce json
// @Param userId query string true "User ID"
// @Success 200 {array} models.SyncRunResponse
// @Security ApiKeyAuth
// @Router /api/sync/runs [get]
func (h *SyncHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	conn, err := h.connectionRepo.GetByUserID(r.Context(), userID)
	if err != nil {
		observability.Errorf("failed to load connection: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if conn == nil {
		writeError(w, http.StatusPreconditionFailed, services.ErrConnectionMissing.Error())
		return
	}

	runs, err := h.runRepo.GetByConnection(r.Context(), conn.ID, 20)
	if err != nil {
		observability.Errorf("failed to list runs: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	responses := make([]models.SyncRunResponse, 0, len(runs))
	for _, run := range runs {
		responses = append(responses, runResponse(run))
	}
	writeJSON(w, http.StatusOK, responses)
}

// GetRun returns a single sync run by id
// @Summary Get a sync run
// @Tags sync
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} models.SyncRunResponse
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/sync/runs/{id} [get]
func (h *SyncHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.runRepo.GetByID(r.Context(), id)
	if err != nil {
		observability.Errorf("failed to load run: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "sync run not found")
		return
	}

	writeJSON(w, http.StatusOK, runResponse(run))
}

func decodeSyncRequest(w http.ResponseWriter, r *http.Request) (services.SyncOptions, bool) {
	var req models.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return services.SyncOptions{}, false
	}

	return services.SyncOptions{
		UserID: req.UserID,
		From:   req.From,
		To:     req.To,
		Force:  req.Force,
	}, true
}

func runResponse(run *models.SyncRun) models.SyncRunResponse {
	return models.SyncRunResponse{
		ID:               run.ID,
		ConnectionID:     run.ConnectionID,
		Status:           run.Status,
		Direction:        run.Direction,
		Attempted:        run.Counters.Attempted,
		Succeeded:        run.Counters.Succeeded,
		Failed:           run.Counters.Failed,
		Skipped:          run.Counters.Skipped,
		UnmappedProjects: run.UnmappedProjects,
		ErrorSummary:     run.ErrorSummary,
		Errors:           run.ErrorDetails,
		StartedAt:        run.StartedAt,
		CompletedAt:      run.CompletedAt,
	}
}

func isValidationError(err error) bool {
	var modelErr models.ModelError
	return errors.As(err, &modelErr)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message})
}
