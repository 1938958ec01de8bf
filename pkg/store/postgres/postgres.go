// Package postgres provides a PostgreSQL-backed member store using lib/pq.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/matzehuels/downline/pkg/store"
	"github.com/matzehuels/downline/pkg/tree"
)

//go:embed schema.sql
var schema string

// PostgreSQL error codes mapped to store sentinels.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Store persists members in PostgreSQL.
type Store struct {
	db *sql.DB
}

// New wraps an open database handle. The schema is not touched; call
// [Store.Migrate] or use [Open].
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to dsn, verifies the connection and ensures the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the members table and its indexes if they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
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
		`SELECT `+selectColumns+` FROM members WHERE owner_id = $1 ORDER BY level, created_at, id`,
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
		`SELECT `+selectColumns+` FROM members WHERE owner_id = $1 AND id = $2`, ownerID, id)
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
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.OwnerID, r.ID, r.Name, r.Capital, int(r.Level), nullable(r.ParentID), r.CreatedAt.UTC())
	if err != nil {
		return mapError("insert member", err)
	}
	return nil
}

const countSubtree = `
WITH RECURSIVE sub(id) AS (
    SELECT id FROM members WHERE owner_id = $1 AND id = $2
    UNION ALL
    SELECT m.id FROM members m JOIN sub ON m.parent_id = sub.id WHERE m.owner_id = $1
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
	if err := tx.QueryRowContext(ctx, countSubtree, ownerID, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("count subtree: %w", err)
	}
	if n == 0 {
		return 0, store.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM members WHERE owner_id = $1 AND id = $2`, ownerID, id); err != nil {
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
		`UPDATE members SET parent_id = $3 WHERE owner_id = $1 AND id = $2`, ownerID, id, parentID)
	if err != nil {
		return mapError("update parent", err)
	}
	return expectOne(res)
}

// Rename changes the name of a record.
func (s *Store) Rename(ctx context.Context, ownerID, id, name string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE members SET name = $3 WHERE owner_id = $1 AND id = $2`, ownerID, id, name)
	if err != nil {
		return fmt.Errorf("rename member: %w", err)
	}
	return expectOne(res)
}

// CountChildren counts the direct children of parentID.
func (s *Store) CountChildren(ctx context.Context, ownerID, parentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM members WHERE owner_id = $1 AND parent_id = $2`, ownerID, parentID).Scan(&n)
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
		r     tree.Record
		level int
	)
	if err := sc.Scan(&r.OwnerID, &r.ID, &r.Name, &r.Capital, &level, &r.ParentID, &r.CreatedAt); err != nil {
		return tree.Record{}, err
	}
	r.Level = tree.Level(level)
	r.CreatedAt = r.CreatedAt.UTC()
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

func mapError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation:
			return store.ErrDuplicateID
		case codeForeignKeyViolation:
			return store.ErrParentNotFound
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Ensure Store implements store.Store.
var _ store.Store = (*Store)(nil)
