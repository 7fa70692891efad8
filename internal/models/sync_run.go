package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncRunStatus is the lifecycle state of a sync run.
type SyncRunStatus string

const (
	// RunStatusPending exists for schema compatibility; the engine never
	// produces it. Runs are created directly in RUNNING.
	RunStatusPending   SyncRunStatus = "PENDING"
	RunStatusRunning   SyncRunStatus = "RUNNING"
	RunStatusCompleted SyncRunStatus = "COMPLETED"
	RunStatusPartial   SyncRunStatus = "PARTIAL"
	RunStatusFailed    SyncRunStatus = "FAILED"
)

// Terminal reports whether the status is a valid final state for a run.
func (s SyncRunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusPartial, RunStatusFailed:
		return true
	}
	return false
}

// SyncDirection records which way a run moved data. Only push is
// implemented; pull exists so the audit log stays meaningful if it ever is.
type SyncDirection string

const (
	DirectionPush SyncDirection = "push"
	DirectionPull SyncDirection = "pull"
)

// RunCounters holds the per-run unit accounting.
type RunCounters struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// UnitError describes one failed sync unit, keyed by the local time
// entries that contributed to it.
type UnitError struct {
	ProjectID string   `json:"projectId"`
	Day       string   `json:"day"`
	EntryIDs  []string `json:"entryIds"`
	Message   string   `json:"message"`
}

// SyncRun is the persisted audit record of one reconciliation attempt.
// At most one RUNNING run may exist per connection; the persistence layer
// enforces this with a partial unique index, which is also the
// single-flight gate for starting a run.
type SyncRun struct {
	ID           string        `json:"id"`
	ConnectionID string        `json:"connectionId"`
	Status       SyncRunStatus `json:"status"`
	Direction    SyncDirection `json:"direction"`
	Counters     RunCounters   `json:"counters"`
	ErrorSummary string        `json:"errorSummary,omitempty"`
	ErrorDetails []UnitError   `json:"errorDetails,omitempty"`
	StartedAt    time.Time     `json:"startedAt"`
	CompletedAt  *time.Time    `json:"completedAt"`

	// UnmappedProjects is a non-fatal advisory listing local projects that
	// had work in range but no enabled mapping. Derived per run, not
	// persisted.
	UnmappedProjects []string `json:"unmappedProjects,omitempty"`
}

// NewSyncRun creates a RUNNING push run for the connection.
func NewSyncRun(connectionID string) *SyncRun {
	return &SyncRun{
		ID:           uuid.New().String(),
		ConnectionID: connectionID,
		Status:       RunStatusRunning,
		Direction:    DirectionPush,
		StartedAt:    time.Now().UTC(),
	}
}

// DeriveTerminalStatus maps final counters to a terminal status:
// any failure alongside successes is PARTIAL, failures without a single
// success is FAILED, and everything else (including a run where all units
// were skipped) is COMPLETED. Aborts before any attempt are reported as
// FAILED by the orchestrator directly, not through this derivation.
func DeriveTerminalStatus(c RunCounters) SyncRunStatus {
	switch {
	case c.Failed == 0:
		return RunStatusCompleted
	case c.Succeeded > 0:
		return RunStatusPartial
	default:
		return RunStatusFailed
	}
}
