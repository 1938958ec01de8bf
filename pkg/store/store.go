// Package store persists downline members as flat records.
//
// Every call is scoped by an owner id: one owner never sees, counts or
// deletes another owner's records. Deleting a member removes its whole
// subtree. Implementations live in this package ([MemoryStore]) and in the
// sqlite, postgres and mongo subpackages; all of them pass the shared
// conformance suite in storetest.
//
// A store does not enforce group capacity. That check belongs to the
// mutation boundary in package downline, which runs it before calling the
// store.
package store

import (
	"context"
	"errors"

	"github.com/matzehuels/downline/pkg/tree"
)

// Sentinel errors returned by every Store implementation.
var (
	// ErrNotFound is returned when no record with the given id exists for
	// the owner.
	ErrNotFound = errors.New("store: record not found")

	// ErrDuplicateID is returned when inserting an id the owner already has.
	ErrDuplicateID = errors.New("store: duplicate id")

	// ErrParentNotFound is returned when a record references a parent the
	// owner does not have.
	ErrParentNotFound = errors.New("store: parent not found")
)

// Store is the record store collaborator.
type Store interface {
	// List returns all records of the owner ordered by level, then
	// creation time.
	List(ctx context.Context, ownerID string) ([]tree.Record, error)

	// Get returns one record or ErrNotFound.
	Get(ctx context.Context, ownerID, id string) (tree.Record, error)

	// Insert adds a record. The record's OwnerID scopes it.
	Insert(ctx context.Context, r tree.Record) error

	// Delete removes the record and all of its descendants and reports how
	// many records were removed.
	Delete(ctx context.Context, ownerID, id string) (int, error)

	// UpdateParent moves a record under a new parent. The level is not
	// changed.
	UpdateParent(ctx context.Context, ownerID, id, parentID string) error

	// Rename changes the display name of a record.
	Rename(ctx context.Context, ownerID, id, name string) error

	// CountChildren returns the number of direct children of parentID.
	CountChildren(ctx context.Context, ownerID, parentID string) (int, error)

	Close() error
}
