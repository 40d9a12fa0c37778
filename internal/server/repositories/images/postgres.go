// Package images provides the PostgreSQL-backed image repository. The img
// table stores the file name and the URL of the uploaded copy; rows are
// created once per submission attachment.
package images

import (
	"context"
	"fmt"

	"github.com/thepicklr/notebook/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, name, url string) (int64, error) {
	query := `
		INSERT INTO img (img_name, img_data)
		VALUES ($1, $2)
		RETURNING img_id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, name, url).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}
