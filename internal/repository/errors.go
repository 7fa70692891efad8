package repository

import (
	"errors"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// ErrRunInProgress is returned by SyncRunRepository.CreateRunning when the
// partial unique index on (connection_id) WHERE status = 'RUNNING' rejects
// the insert. Losing this race is the single-flight signal.
var ErrRunInProgress = errors.New("a sync run is already in progress for this connection")

// ErrDuplicateMapping is returned when a mapping insert violates one of
// the (connection, local project) / (connection, remote project) constraints.
var ErrDuplicateMapping = errors.New("project mapping already exists")

// isUniqueViolation reports whether err is a unique-constraint violation
// from either supported driver.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	return false
}
