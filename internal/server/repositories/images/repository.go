package images

import "context"

type Repository interface {
	// Create inserts one image row and returns its id. Images are owned by
	// the entry that created them; there is no get-or-create here.
	Create(ctx context.Context, name, url string) (int64, error)
}
