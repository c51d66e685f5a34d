package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestUniqueConstraint(t *testing.T) {
	wrapped := fmt.Errorf("insert center: %w", &pgconn.PgError{Code: UniqueViolation, ConstraintName: "center_code_name_key"})
	name, ok := UniqueConstraint(wrapped)
	if !ok {
		t.Fatal("expected unique violation to be detected")
	}
	if name != "center_code_name_key" {
		t.Errorf("expected constraint name, got %q", name)
	}

	if _, ok := UniqueConstraint(&pgconn.PgError{Code: "23503"}); ok {
		t.Error("foreign key violation must not count as unique violation")
	}
	if _, ok := UniqueConstraint(errors.New("boom")); ok {
		t.Error("plain error must not count as unique violation")
	}
}
