package users

import (
	"context"

	"github.com/thepicklr/notebook/internal/server/models"
)

type Repository interface {
	// GetOrCreate resolves a display name to a user id, creating the row with
	// the placeholder password on first sight.
	GetOrCreate(ctx context.Context, name string) (int64, error)
	GetByName(ctx context.Context, name string) (*models.User, error)
	SetPassword(ctx context.Context, name string, hash string) error
}
