// Package projects provides the PostgreSQL-backed project repository.
// Projects are created lazily the first time a submission references an
// unseen name; project_name is UNIQUE.
package projects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/thepicklr/notebook/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetOrCreate resolves a project name to its id, creating the row on first
// sight. Insert-on-conflict-do-nothing, then select, so two racing callers
// agree on one row.
func (r *PostgresRepository) GetOrCreate(ctx context.Context, name string) (int64, error) {
	query := `
		INSERT INTO projects (project_name)
		VALUES ($1)
		ON CONFLICT (project_name) DO NOTHING
		RETURNING project_id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("db error: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`SELECT project_id FROM projects WHERE project_name = $1`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

// List returns all project names, sorted, for form option lists and the
// viewer's edit page.
func (r *PostgresRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT project_name FROM projects ORDER BY project_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to select projects: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		result = append(result, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) LinkTag(ctx context.Context, projectID, tagID int64) error {
	query := `
		INSERT INTO project_tags (project_id, tag_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, projectID, tagID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// LinkStatus resolves the status name inside the insert; unknown status
// names link nothing, which keeps the pipeline tolerant of vocabulary drift.
func (r *PostgresRepository) LinkStatus(ctx context.Context, projectID int64, status string) error {
	query := `
		INSERT INTO project_status (project_id, status_id)
		SELECT $1, status_id FROM status_ WHERE status_name = $2
		ON CONFLICT DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, projectID, status); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
