package projects

import "context"

type Repository interface {
	GetOrCreate(ctx context.Context, name string) (int64, error)
	List(ctx context.Context) ([]string, error)
	// LinkTag records that the project belongs to a tag's area of work.
	LinkTag(ctx context.Context, projectID, tagID int64) error
	// LinkStatus attaches a named status to the project.
	LinkStatus(ctx context.Context, projectID int64, status string) error
}
