package center

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/screening/registry/internal/platform/db"
)

const (
	constraintNameUnique = "center_name_unique"
	constraintCodeUnique = "center_code_unique"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const centerColumns = `id, center_name, center_code, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, c *Center) error {
	c.ID = uuid.New()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO center_code (id, center_name, center_code)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		c.ID, c.Name, c.Code,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if constraint, dup := db.UniqueConstraint(err); dup {
		return uniqueError(constraint)
	}
	if err != nil {
		return fmt.Errorf("insert center: %w", err)
	}
	return nil
}

func uniqueError(constraint string) error {
	switch constraint {
	case constraintNameUnique:
		return ErrNameTaken
	case constraintCodeUnique:
		return ErrCodeTaken
	default:
		return fmt.Errorf("center: unexpected unique violation on %s", constraint)
	}
}

func (r *repoPG) GetByCode(ctx context.Context, code string) (*Center, error) {
	var c Center
	err := r.pool.QueryRow(ctx, `SELECT `+centerColumns+` FROM center_code WHERE center_code = $1`, code).
		Scan(&c.ID, &c.Name, &c.Code, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get center %s: %w", code, err)
	}
	return &c, nil
}

func (r *repoPG) List(ctx context.Context) ([]*Center, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+centerColumns+` FROM center_code ORDER BY center_name`)
	if err != nil {
		return nil, fmt.Errorf("list centers: %w", err)
	}
	defer rows.Close()

	centers := []*Center{}
	for rows.Next() {
		var c Center
		if err := rows.Scan(&c.ID, &c.Name, &c.Code, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		centers = append(centers, &c)
	}
	return centers, rows.Err()
}
