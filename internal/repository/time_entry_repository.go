package repository

import (
	"context"
	"database/sql"

	"github.com/timesync/server/internal/models"
)

// TimeEntryRepository handles raw time entry persistence
type TimeEntryRepository struct {
	db *sql.DB
}

// NewTimeEntryRepository creates a new TimeEntryRepository
func NewTimeEntryRepository(db *sql.DB) *TimeEntryRepository {
	return &TimeEntryRepository{db: db}
}

// GetSyncable retrieves entries for a user in the inclusive [from, to] date
// range that are eligible for sync: resolved to a project and not marked
// skipped. The billable flag comes from the project, so it is uniform
// across all entries of one project by construction.
func (r *TimeEntryRepository) GetSyncable(ctx context.Context, userID, from, to string) ([]*models.TimeEntry, error) {
	query := `SELECT e.id, e.user_id, e.project_id, e.entry_date, e.minutes, p.billable, e.note, e.skip_sync, e.created_at
		FROM time_entries e
		JOIN projects p ON p.id = e.project_id
		WHERE e.user_id = $1 AND e.entry_date >= $2 AND e.entry_date <= $3 AND NOT e.skip_sync
		ORDER BY e.entry_date, e.id`

	rows, err := r.db.QueryContext(ctx, query, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.TimeEntry
	for rows.Next() {
		var e models.TimeEntry
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.ProjectID,
			&e.Day,
			&e.Minutes,
			&e.Billable,
			&e.Note,
			&e.SkipSync,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Add inserts a new time entry
func (r *TimeEntryRepository) Add(ctx context.Context, entry *models.TimeEntry) error {
	query := `INSERT INTO time_entries (id, user_id, project_id, entry_date, minutes, note, skip_sync, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.ProjectID,
		entry.Day,
		entry.Minutes,
		entry.Note,
		entry.SkipSync,
		entry.CreatedAt,
	)
	return err
}
