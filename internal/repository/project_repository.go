package repository

import (
	"context"
	"database/sql"

	"github.com/timesync/server/internal/models"
)

// ProjectRepository handles local project persistence
type ProjectRepository struct {
	db *sql.DB
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// GetByID retrieves a project by id
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	query := `SELECT id, name, billable, archived, created_at FROM projects WHERE id = $1`

	var p models.Project
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Billable,
		&p.Archived,
		&p.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetAll retrieves all non-archived projects
func (r *ProjectRepository) GetAll(ctx context.Context) ([]*models.Project, error) {
	query := `SELECT id, name, billable, archived, created_at FROM projects
		WHERE NOT archived ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Billable, &p.Archived, &p.CreatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

// Add inserts a new project
func (r *ProjectRepository) Add(ctx context.Context, project *models.Project) error {
	query := `INSERT INTO projects (id, name, billable, archived, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query,
		project.ID,
		project.Name,
		project.Billable,
		project.Archived,
		project.CreatedAt,
	)
	return err
}
