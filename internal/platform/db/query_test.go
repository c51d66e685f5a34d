package db

import (
	"testing"
)

func TestQuery_NoPredicates(t *testing.T) {
	q := NewQuery("breast_patient", "id, personal_name")
	if got := q.SelectSQL(); got != "SELECT id, personal_name FROM breast_patient" {
		t.Errorf("unexpected select: %s", got)
	}
	if got := q.CountSQL(); got != "SELECT COUNT(*) FROM breast_patient" {
		t.Errorf("unexpected count: %s", got)
	}
	if len(q.Args()) != 0 {
		t.Errorf("expected no args, got %d", len(q.Args()))
	}
}

func TestQuery_PlaceholdersNumberedInOrder(t *testing.T) {
	q := NewQuery("t", "*").
		Eq("center_code", "Center 1").
		Contains("personal_name", "ram").
		Where("created_at BETWEEN ? AND ?", 1, 2).
		OrderBy("created_at DESC")

	want := `SELECT * FROM t WHERE center_code = $1 AND personal_name ILIKE $2 ESCAPE '\' AND created_at BETWEEN $3 AND $4 ORDER BY created_at DESC`
	if got := q.SelectSQL(); got != want {
		t.Errorf("select mismatch\n got: %s\nwant: %s", got, want)
	}
	args := q.Args()
	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %d", len(args))
	}
	if args[1] != "%ram%" {
		t.Errorf("expected wrapped pattern, got %v", args[1])
	}
	if q.Next() != 5 {
		t.Errorf("expected next placeholder 5, got %d", q.Next())
	}
}

func TestQuery_CountIgnoresOrder(t *testing.T) {
	q := NewQuery("t", "*").Eq("deleted", false).OrderBy("id")
	if got := q.CountSQL(); got != "SELECT COUNT(*) FROM t WHERE deleted = $1" {
		t.Errorf("unexpected count: %s", got)
	}
}

func TestEscapeLike(t *testing.T) {
	tests := map[string]string{
		"plain":   "plain",
		"50%":     `50\%`,
		"a_b":     `a\_b`,
		`back\sl`: `back\\sl`,
	}
	for in, want := range tests {
		if got := EscapeLike(in); got != want {
			t.Errorf("EscapeLike(%q) = %q, want %q", in, got, want)
		}
	}
}
