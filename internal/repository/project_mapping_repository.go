package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/timesync/server/internal/models"
)

// ProjectMappingRepository handles project mapping persistence
type ProjectMappingRepository struct {
	db *sql.DB
}

// NewProjectMappingRepository creates a new ProjectMappingRepository
func NewProjectMappingRepository(db *sql.DB) *ProjectMappingRepository {
	return &ProjectMappingRepository{db: db}
}

const mappingColumns = `id, connection_id, local_project_id, remote_project_id, enabled, last_synced_at, created_at`

// GetByConnection retrieves all mappings for a connection
func (r *ProjectMappingRepository) GetByConnection(ctx context.Context, connectionID string) ([]*models.ProjectMapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM project_mappings WHERE connection_id = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, connectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mappings []*models.ProjectMapping
	for rows.Next() {
		var m models.ProjectMapping
		if err := rows.Scan(
			&m.ID,
			&m.ConnectionID,
			&m.LocalProjectID,
			&m.RemoteProjectID,
			&m.Enabled,
			&m.LastSyncedAt,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		mappings = append(mappings, &m)
	}
	return mappings, rows.Err()
}

// GetByID retrieves a mapping by id
func (r *ProjectMappingRepository) GetByID(ctx context.Context, id string) (*models.ProjectMapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM project_mappings WHERE id = $1`

	var m models.ProjectMapping
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID,
		&m.ConnectionID,
		&m.LocalProjectID,
		&m.RemoteProjectID,
		&m.Enabled,
		&m.LastSyncedAt,
		&m.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Add inserts a new mapping; ErrDuplicateMapping when either uniqueness
// direction is violated.
func (r *ProjectMappingRepository) Add(ctx context.Context, mapping *models.ProjectMapping) error {
	query := `INSERT INTO project_mappings (id, connection_id, local_project_id, remote_project_id, enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		mapping.ID,
		mapping.ConnectionID,
		mapping.LocalProjectID,
		mapping.RemoteProjectID,
		mapping.Enabled,
		mapping.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateMapping
	}
	return err
}

// SetEnabled enables or disables a mapping
func (r *ProjectMappingRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	query := `UPDATE project_mappings SET enabled = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, enabled, id)
	return err
}

// UpdateLastSynced stamps the mapping's last successful sync time
func (r *ProjectMappingRepository) UpdateLastSynced(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE project_mappings SET last_synced_at = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, at, id)
	return err
}
