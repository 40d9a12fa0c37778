package entries

import (
	"context"

	"github.com/thepicklr/notebook/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, whatDid, whatLearned string, milestone bool, creator string) (int64, error)
	AddAuthor(ctx context.Context, entryID, userID int64) error
	AddTag(ctx context.Context, entryID, tagID int64) error
	AddImage(ctx context.Context, entryID, imgID int64) error
	LinkProject(ctx context.Context, projectID, entryID int64) error
	// ReplaceProjectLink drops every project link the entry has and inserts
	// the one given. Used by the viewer's edit flow.
	ReplaceProjectLink(ctx context.Context, entryID, projectID int64) error
	UpdateContent(ctx context.Context, entryID int64, whatDid, whatLearned string) error
	Delete(ctx context.Context, entryID int64) error
	GetByID(ctx context.Context, entryID int64) (*models.Entry, error)
	List(ctx context.Context) ([]*models.Entry, error)
}
