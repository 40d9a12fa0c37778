package tags

import "context"

type Repository interface {
	GetOrCreate(ctx context.Context, name string) (int64, error)
	List(ctx context.Context) ([]string, error)
}
