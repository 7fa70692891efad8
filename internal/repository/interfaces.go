package repository

import (
	"context"
	"time"

	"github.com/timesync/server/internal/models"
)

// ProjectRepo defines the interface for local project persistence
type ProjectRepo interface {
	GetByID(ctx context.Context, id string) (*models.Project, error)
	GetAll(ctx context.Context) ([]*models.Project, error)
	Add(ctx context.Context, project *models.Project) error
}

// TimeEntryRepo defines the interface for raw time entry reads.
// The sync engine never writes time entries.
type TimeEntryRepo interface {
	GetSyncable(ctx context.Context, userID, from, to string) ([]*models.TimeEntry, error)
	Add(ctx context.Context, entry *models.TimeEntry) error
}

// ConnectionRepo defines the interface for remote connection persistence
type ConnectionRepo interface {
	GetByUserID(ctx context.Context, userID string) (*models.Connection, error)
	GetByID(ctx context.Context, id string) (*models.Connection, error)
	Add(ctx context.Context, conn *models.Connection) error
	UpdateLastSynced(ctx context.Context, id string, at time.Time) error
}

// ProjectMappingRepo defines the interface for project mapping persistence
type ProjectMappingRepo interface {
	GetByConnection(ctx context.Context, connectionID string) ([]*models.ProjectMapping, error)
	GetByID(ctx context.Context, id string) (*models.ProjectMapping, error)
	Add(ctx context.Context, mapping *models.ProjectMapping) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
	UpdateLastSynced(ctx context.Context, id string, at time.Time) error
}

// SyncedUnitRepo defines the interface for last-synced state persistence
type SyncedUnitRepo interface {
	GetByMappingAndDay(ctx context.Context, mappingID, day string) (*models.SyncedUnit, error)
	Add(ctx context.Context, unit *models.SyncedUnit) error
	Update(ctx context.Context, unit *models.SyncedUnit) error
	Delete(ctx context.Context, id string) error
}

// SyncRunRepo defines the interface for sync run persistence
type SyncRunRepo interface {
	// CreateRunning atomically inserts a RUNNING run; it returns
	// ErrRunInProgress when another run already holds the slot.
	CreateRunning(ctx context.Context, run *models.SyncRun) error
	Complete(ctx context.Context, runID string, status models.SyncRunStatus, counters models.RunCounters, errorSummary string, details []models.UnitError) error
	GetByID(ctx context.Context, id string) (*models.SyncRun, error)
	GetByConnection(ctx context.Context, connectionID string, limit int) ([]*models.SyncRun, error)
}
