package center

import "context"

// Repository persists centers. Create returns ErrNameTaken or ErrCodeTaken
// when the respective unique constraint fires.
type Repository interface {
	Create(ctx context.Context, c *Center) error
	GetByCode(ctx context.Context, code string) (*Center, error)
	List(ctx context.Context) ([]*Center, error)
}
