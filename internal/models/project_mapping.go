package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProjectMapping links a local project to a project ("assignable") in the
// remote system. A local project maps to at most one remote project per
// connection, and vice versa; both directions are enforced by unique
// constraints in the persistence layer.
type ProjectMapping struct {
	ID              string     `json:"id"`
	ConnectionID    string     `json:"connectionId"`
	LocalProjectID  string     `json:"localProjectId"`
	RemoteProjectID int64      `json:"remoteProjectId"`
	Enabled         bool       `json:"enabled"`
	LastSyncedAt    *time.Time `json:"lastSyncedAt"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// NewProjectMapping creates a new enabled ProjectMapping with validation
func NewProjectMapping(connectionID, localProjectID string, remoteProjectID int64) (*ProjectMapping, error) {
	if strings.TrimSpace(connectionID) == "" {
		return nil, ErrEmptyConnectionID
	}
	if strings.TrimSpace(localProjectID) == "" {
		return nil, ErrEmptyProjectID
	}
	if remoteProjectID <= 0 {
		return nil, ErrInvalidRemoteID
	}

	return &ProjectMapping{
		ID:              uuid.New().String(),
		ConnectionID:    connectionID,
		LocalProjectID:  localProjectID,
		RemoteProjectID: remoteProjectID,
		Enabled:         true,
		CreatedAt:       time.Now().UTC(),
	}, nil
}
