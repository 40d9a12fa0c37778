// Package users provides the PostgreSQL-backed user repository. Users are
// created lazily the first time a name shows up in a submission; the name
// column is UNIQUE so concurrent resolution of the same new name cannot
// duplicate rows.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/thepicklr/notebook/internal/common"
	"github.com/thepicklr/notebook/internal/dbx"
	"github.com/thepicklr/notebook/internal/server/models"
)

// PlaceholderPassword marks rows created by the identity resolver rather
// than through the viewer's registration flow.
const PlaceholderPassword = "pass"

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetOrCreate inserts the user with ON CONFLICT DO NOTHING and falls back to
// a select when the row already existed. At most one row per name survives.
func (r *PostgresRepository) GetOrCreate(ctx context.Context, name string) (int64, error) {
	query := `
		INSERT INTO users (user_name, user_password)
		VALUES ($1, $2)
		ON CONFLICT (user_name) DO NOTHING
		RETURNING user_id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, name, PlaceholderPassword).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("db error: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`SELECT user_id FROM users WHERE user_name = $1`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*models.User, error) {
	query := `
		SELECT user_id, user_name, user_password FROM users
		WHERE user_name = $1
	`

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, name).Scan(&user.ID, &user.Name, &user.Password)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

// SetPassword replaces the stored hash, e.g. when a member claims their
// implicitly created account.
func (r *PostgresRepository) SetPassword(ctx context.Context, name string, hash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET user_password = $2 WHERE user_name = $1`, name, hash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
