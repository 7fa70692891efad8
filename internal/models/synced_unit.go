package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncedUnit is the persisted record of what was last pushed to the remote
// system for one (mapping, day) pair. The remote entry id uses int64
// because remote identifiers exceed the 32-bit signed range. Components
// are kept for audit only and play no part in change detection.
type SyncedUnit struct {
	ID            string          `json:"id"`
	MappingID     string          `json:"mappingId"`
	Day           string          `json:"day"`
	RemoteEntryID int64           `json:"remoteEntryId"`
	LastHash      string          `json:"lastHash"`
	SyncVersion   int             `json:"syncVersion"`
	Components    []UnitComponent `json:"components"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// NewSyncedUnit creates a SyncedUnit at version 1, recording the first
// successful remote write for a (mapping, day) pair.
func NewSyncedUnit(mappingID, day string, remoteEntryID int64, hash string, components []UnitComponent) *SyncedUnit {
	now := time.Now().UTC()
	return &SyncedUnit{
		ID:            uuid.New().String(),
		MappingID:     mappingID,
		Day:           day,
		RemoteEntryID: remoteEntryID,
		LastHash:      hash,
		SyncVersion:   1,
		Components:    components,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Advance records a subsequent successful write: the remote entry id and
// hash are refreshed and the sync version increments.
func (u *SyncedUnit) Advance(remoteEntryID int64, hash string, components []UnitComponent) {
	u.RemoteEntryID = remoteEntryID
	u.LastHash = hash
	u.SyncVersion++
	u.Components = components
	u.UpdatedAt = time.Now().UTC()
}
