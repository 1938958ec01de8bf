package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/matzehuels/downline/pkg/store"
	"github.com/matzehuels/downline/pkg/store/storetest"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "downline.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return openTempStore(t)
	})
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), "  "); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "downline.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("first Open() error: %v", err)
	}
	for _, r := range storetest.Seed("o1") {
		if err := s.Insert(ctx, r); err != nil {
			t.Fatalf("Insert() error: %v", err)
		}
	}
	_ = s.Close()

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("second Open() error: %v", err)
	}
	defer s.Close()

	recs, err := s.List(ctx, "o1")
	if err != nil || len(recs) != 6 {
		t.Errorf("List() after reopen = %d records, %v", len(recs), err)
	}
}

func TestUpSection(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"no markers", "CREATE TABLE x (a);", "CREATE TABLE x (a);"},
		{"up only", "-- +migrate Up\nCREATE TABLE x (a);", "CREATE TABLE x (a);"},
		{"up and down", "-- +migrate Up\nCREATE TABLE x (a);\n-- +migrate Down\nDROP TABLE x;", "CREATE TABLE x (a);"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := strings.TrimSpace(upSection(tt.in)); got != tt.want {
				t.Errorf("upSection() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestApplyMigrationsSkipsApplied(t *testing.T) {
	s := openTempStore(t)
	defer s.Close()
	ctx := context.Background()

	fsys := fstest.MapFS{
		"0002_extra.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE extra (id TEXT);\n-- +migrate Down\nDROP TABLE extra;")},
	}
	for i := 0; i < 2; i++ {
		if err := applyMigrations(ctx, s.db, fsys); err != nil {
			t.Fatalf("applyMigrations() run %d error: %v", i, err)
		}
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("schema_migrations has %d rows, want 2", n)
	}
}
