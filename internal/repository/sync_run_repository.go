package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/timesync/server/internal/models"
)

// SyncRunRepository handles sync run persistence
type SyncRunRepository struct {
	db *sql.DB
}

// NewSyncRunRepository creates a new SyncRunRepository
func NewSyncRunRepository(db *sql.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// CreateRunning atomically inserts a RUNNING run. The partial unique index
// on (connection_id) WHERE status = 'RUNNING' makes this insert the
// single-flight gate: the loser of a concurrent start receives
// ErrRunInProgress and must retry later.
func (r *SyncRunRepository) CreateRunning(ctx context.Context, run *models.SyncRun) error {
	query := `INSERT INTO sync_runs (id, connection_id, status, direction, attempted, succeeded, failed, skipped, started_at)
		VALUES ($1, $2, $3, $4, 0, 0, 0, 0, $5)`

	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.ConnectionID,
		string(models.RunStatusRunning),
		string(run.Direction),
		run.StartedAt,
	)
	if isUniqueViolation(err) {
		return ErrRunInProgress
	}
	return err
}

// Complete finalizes a run with a terminal status, counters and error
// detail. Non-terminal statuses are rejected as a programmer error.
func (r *SyncRunRepository) Complete(ctx context.Context, runID string, status models.SyncRunStatus, counters models.RunCounters, errorSummary string, details []models.UnitError) error {
	if !status.Terminal() {
		return models.ErrNonTerminalStatus
	}

	var detailsJSON interface{}
	if len(details) > 0 {
		b, err := json.Marshal(details)
		if err != nil {
			return err
		}
		detailsJSON = string(b)
	}

	var summary interface{}
	if errorSummary != "" {
		summary = errorSummary
	}

	query := `UPDATE sync_runs
		SET status = $1, attempted = $2, succeeded = $3, failed = $4, skipped = $5,
			error_summary = $6, error_details = $7, completed_at = $8
		WHERE id = $9`

	_, err := r.db.ExecContext(ctx, query,
		string(status),
		counters.Attempted,
		counters.Succeeded,
		counters.Failed,
		counters.Skipped,
		summary,
		detailsJSON,
		time.Now().UTC(),
		runID,
	)
	return err
}

const runColumns = `id, connection_id, status, direction, attempted, succeeded, failed, skipped, error_summary, error_details, started_at, completed_at`

func scanRun(scan func(dest ...interface{}) error) (*models.SyncRun, error) {
	var run models.SyncRun
	var summary sql.NullString
	var details sql.NullString
	err := scan(
		&run.ID,
		&run.ConnectionID,
		&run.Status,
		&run.Direction,
		&run.Counters.Attempted,
		&run.Counters.Succeeded,
		&run.Counters.Failed,
		&run.Counters.Skipped,
		&summary,
		&details,
		&run.StartedAt,
		&run.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	run.ErrorSummary = summary.String
	if details.Valid && details.String != "" {
		if err := json.Unmarshal([]byte(details.String), &run.ErrorDetails); err != nil {
			return nil, err
		}
	}
	return &run, nil
}

// GetByID retrieves a run by id
func (r *SyncRunRepository) GetByID(ctx context.Context, id string) (*models.SyncRun, error) {
	query := `SELECT ` + runColumns + ` FROM sync_runs WHERE id = $1`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// GetByConnection retrieves the most recent runs for a connection
func (r *SyncRunRepository) GetByConnection(ctx context.Context, connectionID string, limit int) ([]*models.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + runColumns + ` FROM sync_runs
		WHERE connection_id = $1 ORDER BY started_at DESC LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, connectionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
