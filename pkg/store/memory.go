package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/matzehuels/downline/pkg/tree"
)

// MemoryStore keeps records in process memory. It is used by tests, by the
// CLI and server when the store driver is "memory".
type MemoryStore struct {
	mu     sync.RWMutex
	owners map[string]map[string]tree.Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{owners: make(map[string]map[string]tree.Record)}
}

// List returns a copy of the owner's records in store order.
func (s *MemoryStore) List(ctx context.Context, ownerID string) ([]tree.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]tree.Record, 0, len(s.owners[ownerID]))
	for _, r := range s.owners[ownerID] {
		out = append(out, r)
	}
	sortByOrder(out)
	return out, nil
}

// Get returns one record.
func (s *MemoryStore) Get(ctx context.Context, ownerID, id string) (tree.Record, error) {
	if err := ctx.Err(); err != nil {
		return tree.Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.owners[ownerID][id]
	if !ok {
		return tree.Record{}, ErrNotFound
	}
	return r, nil
}

// Insert adds a record.
func (s *MemoryStore) Insert(ctx context.Context, r tree.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.owners[r.OwnerID]
	if recs == nil {
		recs = make(map[string]tree.Record)
		s.owners[r.OwnerID] = recs
	}
	if _, dup := recs[r.ID]; dup {
		return ErrDuplicateID
	}
	if r.ParentID != "" {
		if _, ok := recs[r.ParentID]; !ok {
			return ErrParentNotFound
		}
	}
	recs[r.ID] = r
	return nil
}

// Delete removes the record and its subtree.
func (s *MemoryStore) Delete(ctx context.Context, ownerID, id string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.owners[ownerID]
	if _, ok := recs[id]; !ok {
		return 0, ErrNotFound
	}

	doomed := map[string]bool{id: true}
	for grew := true; grew; {
		grew = false
		for rid, r := range recs {
			if !doomed[rid] && doomed[r.ParentID] {
				doomed[rid] = true
				grew = true
			}
		}
	}
	for rid := range doomed {
		delete(recs, rid)
	}
	return len(doomed), nil
}

// UpdateParent moves a record under parentID.
func (s *MemoryStore) UpdateParent(ctx context.Context, ownerID, id, parentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.owners[ownerID]
	r, ok := recs[id]
	if !ok {
		return ErrNotFound
	}
	if _, ok := recs[parentID]; !ok {
		return ErrParentNotFound
	}
	r.ParentID = parentID
	recs[id] = r
	return nil
}

// Rename changes the name of a record.
func (s *MemoryStore) Rename(ctx context.Context, ownerID, id, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.owners[ownerID][id]
	if !ok {
		return ErrNotFound
	}
	r.Name = name
	s.owners[ownerID][id] = r
	return nil
}

// CountChildren counts the direct children of parentID.
func (s *MemoryStore) CountChildren(ctx context.Context, ownerID, parentID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.owners[ownerID] {
		if r.ParentID == parentID {
			n++
		}
	}
	return n, nil
}

// Close does nothing.
func (s *MemoryStore) Close() error {
	return nil
}

// sortByOrder sorts records into store order. Ties on level and creation
// time are broken by id so that map iteration never leaks into the result.
func sortByOrder(recs []tree.Record) {
	slices.SortFunc(recs, func(a, b tree.Record) int { return strings.Compare(a.ID, b.ID) })
	tree.SortRecords(recs)
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
