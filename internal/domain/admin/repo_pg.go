package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/screening/registry/internal/platform/db"
)

type userRepoPG struct {
	pool *pgxpool.Pool
}

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO admin_user (id, full_name, username, password_hash, token)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		u.ID, u.FullName, u.Username, u.PasswordHash, u.Token,
	).Scan(&u.CreatedAt)
	if _, dup := db.UniqueConstraint(err); dup {
		return ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	return nil
}

func (r *userRepoPG) GetByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `
		SELECT id, full_name, username, password_hash, token, created_at
		FROM admin_user WHERE username = $1`, username,
	).Scan(&u.ID, &u.FullName, &u.Username, &u.PasswordHash, &u.Token, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get admin user: %w", err)
	}
	return &u, nil
}
