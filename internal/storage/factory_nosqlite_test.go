//go:build !sqlite

package storage

import (
	"errors"
	"testing"
)

func TestNewStoreSQLiteUnavailable(t *testing.T) {
	if _, err := NewStore("sqlite", "bendgen.db"); !errors.Is(err, ErrSQLiteUnavailable) {
		t.Fatalf("expected sqlite to be unavailable without the sqlite tag, got %v", err)
	}
}
