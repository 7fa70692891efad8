package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/timesync/server/internal/models"
	"github.com/timesync/server/internal/observability"
	"github.com/timesync/server/internal/repository"
	"github.com/timesync/server/internal/services"
)

// ConnectionHandler handles remote connection endpoints
type ConnectionHandler struct {
	connectionRepo repository.ConnectionRepo
	encryption     *services.EncryptionService
}

// NewConnectionHandler creates a new ConnectionHandler
func NewConnectionHandler(connectionRepo repository.ConnectionRepo, encryption *services.EncryptionService) *ConnectionHandler {
	return &ConnectionHandler{
		connectionRepo: connectionRepo,
		encryption:     encryption,
	}
}

// Create configures a user's remote connection
// @Summary Create a remote connection
// @Description Store a user's remote credentials; the token is encrypted at rest
// @Tags connections
// @Accept json
// @Produce json
// @Param request body models.CreateConnectionRequest true "Connection request"
// @Success 201 {object} models.Connection
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse "Connection already exists"
// @Security ApiKeyAuth
// @Router /api/connections [post]
func (h *ConnectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Token) == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	existing, err := h.connectionRepo.GetByUserID(r.Context(), req.UserID)
	if err != nil {
		observability.Errorf("failed to load connection: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "a connection already exists for this user")
		return
	}

	encrypted, err := h.encryption.Encrypt(req.Token)
	if err != nil {
		observability.Errorf("failed to encrypt token: %v", err)
		writeError(w, http.StatusInternalServerError, "encryption error")
		return
	}

	conn, err := models.NewConnection(req.UserID, req.RemoteBaseURL, req.RemoteUserID, encrypted)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.connectionRepo.Add(r.Context(), conn); err != nil {
		observability.Errorf("failed to create connection: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusCreated, conn)
}

// Get returns a user's remote connection, token excluded
// @Summary Get a remote connection
// @Tags connections
// @Produce json
// @Param userId query string true "User ID"
// @Success 200 {object} models.Connection
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/connections [get]
func (h *ConnectionHandler) Get(w http.ResponseWriter, r *http.Request) {
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
		writeError(w, http.StatusNotFound, "connection not found")
		return
	}

	writeJSON(w, http.StatusOK, conn)
}
