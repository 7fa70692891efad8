package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/timesync/server/internal/models"
)

// ConnectionRepository handles remote connection persistence
type ConnectionRepository struct {
	db *sql.DB
}

// NewConnectionRepository creates a new ConnectionRepository
func NewConnectionRepository(db *sql.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

const connectionColumns = `id, user_id, remote_base_url, remote_user_id, token_encrypted, last_synced_at, created_at`

func scanConnection(row *sql.Row) (*models.Connection, error) {
	var c models.Connection
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.RemoteBaseURL,
		&c.RemoteUserID,
		&c.TokenEncrypted,
		&c.LastSyncedAt,
		&c.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByUserID retrieves a user's connection, nil if none is configured
func (r *ConnectionRepository) GetByUserID(ctx context.Context, userID string) (*models.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE user_id = $1`
	return scanConnection(r.db.QueryRowContext(ctx, query, userID))
}

// GetByID retrieves a connection by id
func (r *ConnectionRepository) GetByID(ctx context.Context, id string) (*models.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE id = $1`
	return scanConnection(r.db.QueryRowContext(ctx, query, id))
}

// Add inserts a new connection
func (r *ConnectionRepository) Add(ctx context.Context, conn *models.Connection) error {
	query := `INSERT INTO connections (id, user_id, remote_base_url, remote_user_id, token_encrypted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		conn.ID,
		conn.UserID,
		conn.RemoteBaseURL,
		conn.RemoteUserID,
		conn.TokenEncrypted,
		conn.CreatedAt,
	)
	return err
}

// UpdateLastSynced stamps the connection's last successful sync time
func (r *ConnectionRepository) UpdateLastSynced(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE connections SET last_synced_at = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, at, id)
	return err
}
