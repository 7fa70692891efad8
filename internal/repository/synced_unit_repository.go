package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/timesync/server/internal/models"
)

// SyncedUnitRepository handles last-synced state persistence
type SyncedUnitRepository struct {
	db *sql.DB
}

// NewSyncedUnitRepository creates a new SyncedUnitRepository
func NewSyncedUnitRepository(db *sql.DB) *SyncedUnitRepository {
	return &SyncedUnitRepository{db: db}
}

// GetByMappingAndDay retrieves the synced unit for a (mapping, day) pair,
// nil when the pair has never been synced.
func (r *SyncedUnitRepository) GetByMappingAndDay(ctx context.Context, mappingID, day string) (*models.SyncedUnit, error) {
	query := `SELECT id, mapping_id, unit_date, remote_entry_id, last_hash, sync_version, components, created_at, updated_at
		FROM synced_units WHERE mapping_id = $1 AND unit_date = $2`

	var u models.SyncedUnit
	var componentsJSON string
	err := r.db.QueryRowContext(ctx, query, mappingID, day).Scan(
		&u.ID,
		&u.MappingID,
		&u.Day,
		&u.RemoteEntryID,
		&u.LastHash,
		&u.SyncVersion,
		&componentsJSON,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(componentsJSON), &u.Components); err != nil {
		return nil, err
	}
	return &u, nil
}

// Add inserts a new synced unit
func (r *SyncedUnitRepository) Add(ctx context.Context, unit *models.SyncedUnit) error {
	componentsJSON, err := json.Marshal(unit.Components)
	if err != nil {
		return err
	}

	query := `INSERT INTO synced_units (id, mapping_id, unit_date, remote_entry_id, last_hash, sync_version, components, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.ExecContext(ctx, query,
		unit.ID,
		unit.MappingID,
		unit.Day,
		unit.RemoteEntryID,
		unit.LastHash,
		unit.SyncVersion,
		string(componentsJSON),
		unit.CreatedAt,
		unit.UpdatedAt,
	)
	return err
}

// Update rewrites an existing synced unit after a successful remote write
func (r *SyncedUnitRepository) Update(ctx context.Context, unit *models.SyncedUnit) error {
	componentsJSON, err := json.Marshal(unit.Components)
	if err != nil {
		return err
	}

	query := `UPDATE synced_units
		SET remote_entry_id = $1, last_hash = $2, sync_version = $3, components = $4, updated_at = $5
		WHERE id = $6`

	_, err = r.db.ExecContext(ctx, query,
		unit.RemoteEntryID,
		unit.LastHash,
		unit.SyncVersion,
		string(componentsJSON),
		unit.UpdatedAt,
		unit.ID,
	)
	return err
}

// Delete removes a synced unit record (orphan recovery)
func (r *SyncedUnitRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM synced_units WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}
