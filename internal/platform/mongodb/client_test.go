package mongodb

import (
	"context"
	"testing"
)

func TestConnect_RequiresDatabaseName(t *testing.T) {
	_, _, err := Connect(context.Background(), "mongodb://localhost:27017", "", 0)
	if err == nil {
		t.Fatal("expected error for empty database name")
	}
}
