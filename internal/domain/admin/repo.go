package admin

import "context"

// UserRepository persists operators. Create returns ErrUserExists on a
// username collision; GetByUsername returns ErrUserNotFound.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByUsername(ctx context.Context, username string) (*User, error)
}
