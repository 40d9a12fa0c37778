// Package tags provides the PostgreSQL-backed tag repository. The vocabulary
// is seeded by migration and grows when a submission carries an unseen
// category string.
package tags

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

func (r *PostgresRepository) GetOrCreate(ctx context.Context, name string) (int64, error) {
	query := `
		INSERT INTO tags (tag_name)
		VALUES ($1)
		ON CONFLICT (tag_name) DO NOTHING
		RETURNING tag_id
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
		`SELECT tag_id FROM tags WHERE tag_name = $1`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT tag_name FROM tags ORDER BY tag_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to select tags: %w", err)
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
