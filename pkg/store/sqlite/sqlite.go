// Package sqlite provides a SQLite-backed member store.
//
// The schema enforces the parent relation with a foreign key that cascades
// on delete, so removing a member removes its subtree in one statement.
// Migrations are embedded and applied by [Open].
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/matzehuels/downline/pkg/store"
	"github.com/matzehuels/downline/pkg/store/sqlite/migrations"
	"github.com/matzehuels/downline/pkg/tree"
)

// Store persists members in SQLite.
type Store struct {
	db *sql.DB
}

// created_at holds Unix nanoseconds so that members added in the same
// millisecond keep their insertion order.
func toUnixNano(t time.Time) int64 { return t.UTC().UnixNano() }

func fromUnixNano(v int64) time.Time { return time.Unix(0, v).UTC() }

// Open opens (or creates) the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const selectColumns = `owner_id, id, name, capital, level, COALESCE(parent_id, ''), created_at`

// List returns the owner's records ordered by level, then creation time.
func (s *Store) List(ctx context.Context, ownerID string) ([]tree.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM members WHERE owner_id = ? ORDER BY level, created_at, id`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var out []tree.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get returns one record.
func (s *Store) Get(ctx context.Context, ownerID, id string) (tree.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM members WHERE owner_id = ? AND id = ?`, ownerID, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return tree.Record{}, store.ErrNotFound
	}
	if err != nil {
		return tree.Record{}, fmt.Errorf("get member: %w", err)
	}
	return r, nil
}

// Insert adds a record.
func (s *Store) Insert(ctx context.Context, r tree.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO members (owner_id, id, name, capital, level, parent_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.OwnerID, r.ID, r.Name, r.Capital, int(r.Level), nullable(r.ParentID), toUnixNano(r.CreatedAt))
	if err != nil {
		return mapConstraint("insert member", err)
	}
	return nil
}

// countSubtree counts the record and all of its descendants.
const countSubtree = `
WITH RECURSIVE sub(id) AS (
    SELECT id FROM members WHERE owner_id = ? AND id = ?
    UNION ALL
    SELECT m.id FROM members m JOIN sub ON m.parent_id = sub.id WHERE m.owner_id = ?
)
SELECT COUNT(*) FROM sub`

// Delete removes the record; the foreign key cascades to its subtree.
func (s *Store) Delete(ctx context.Context, ownerID, id string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.QueryRowContext(ctx, countSubtree, ownerID, id, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count subtree: %w", err)
	}
	if n == 0 {
		return 0, store.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM members WHERE owner_id = ? AND id = ?`, ownerID, id); err != nil {
		return 0, fmt.Errorf("delete member: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete: %w", err)
	}
	return n, nil
}

// UpdateParent moves a record under parentID.
func (s *Store) UpdateParent(ctx context.Context, ownerID, id, parentID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE members SET parent_id = ? WHERE owner_id = ? AND id = ?`, parentID, ownerID, id)
	if err != nil {
		return mapConstraint("update parent", err)
	}
	return expectOne(res)
}

// Rename changes the name of a record.
func (s *Store) Rename(ctx context.Context, ownerID, id, name string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE members SET name = ? WHERE owner_id = ? AND id = ?`, name, ownerID, id)
	if err != nil {
		return fmt.Errorf("rename member: %w", err)
	}
	return expectOne(res)
}

// CountChildren counts the direct children of parentID.
func (s *Store) CountChildren(ctx context.Context, ownerID, parentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM members WHERE owner_id = ? AND parent_id = ?`, ownerID, parentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count children: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (tree.Record, error) {
	var (
		r       tree.Record
		level   int
		created int64
	)
	if err := sc.Scan(&r.OwnerID, &r.ID, &r.Name, &r.Capital, &level, &r.ParentID, &created); err != nil {
		return tree.Record{}, err
	}
	r.Level = tree.Level(level)
	r.CreatedAt = fromUnixNano(created)
	return r, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func mapConstraint(op string, err error) error {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return store.ErrDuplicateID
		case sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY:
			return store.ErrParentNotFound
		}
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint failed"):
		return store.ErrDuplicateID
	case strings.Contains(msg, "foreign key constraint failed"):
		return store.ErrParentNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Ensure Store implements store.Store.
var _ store.Store = (*Store)(nil)
