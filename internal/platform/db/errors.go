package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// UniqueConstraint reports whether err is a unique violation and, if so,
// which constraint fired.
func UniqueConstraint(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == UniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}
