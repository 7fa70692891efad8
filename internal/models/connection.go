package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Connection holds a user's credentials for the remote resource-management
// system. The API token is encrypted at rest; the sync engine decrypts it
// just before building a remote client.
type Connection struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	RemoteBaseURL  string     `json:"remoteBaseUrl"`
	RemoteUserID   int64      `json:"remoteUserId"`
	TokenEncrypted string     `json:"-"`
	LastSyncedAt   *time.Time `json:"lastSyncedAt"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// NewConnection creates a new Connection with validation
func NewConnection(userID, remoteBaseURL string, remoteUserID int64, tokenEncrypted string) (*Connection, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrEmptyUserID
	}
	if remoteUserID <= 0 {
		return nil, ErrInvalidRemoteID
	}

	return &Connection{
		ID:             uuid.New().String(),
		UserID:         userID,
		RemoteBaseURL:  strings.TrimRight(remoteBaseURL, "/"),
		RemoteUserID:   remoteUserID,
		TokenEncrypted: tokenEncrypted,
		CreatedAt:      time.Now().UTC(),
	}, nil
}
