// Package storetest provides a conformance suite for store.Store
// implementations.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matzehuels/downline/pkg/store"
	"github.com/matzehuels/downline/pkg/tree"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

var base = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

// Seed is the tree every case starts from:
//
//	me
//	├── a
//	│   ├── a1
//	│   │   └── a1x
//	│   └── a2
//	└── b
func Seed(owner string) []tree.Record {
	rec := func(id string, lvl tree.Level, parent string, n int) tree.Record {
		return tree.Record{
			ID: id, OwnerID: owner, Name: "name-" + id, Capital: float64(n * 100),
			Level: lvl, ParentID: parent, CreatedAt: base.Add(time.Duration(n) * time.Second),
		}
	}
	return []tree.Record{
		rec("me", tree.LevelRoot, "", 0),
		rec("a", tree.LevelFirst, "me", 1),
		rec("b", tree.LevelFirst, "me", 2),
		rec("a1", tree.LevelSecond, "a", 3),
		rec("a2", tree.LevelSecond, "a", 4),
		rec("a1x", tree.LevelThird, "a1", 5),
	}
}

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"ListOrder", testListOrder},
		{"Get", testGet},
		{"Duplicate", testDuplicate},
		{"MissingParent", testMissingParent},
		{"OwnerIsolation", testOwnerIsolation},
		{"DeleteCascade", testDeleteCascade},
		{"DeleteLeaf", testDeleteLeaf},
		{"UpdateParent", testUpdateParent},
		{"Rename", testRename},
		{"CountChildren", testCountChildren},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func seed(t *testing.T, s store.Store, owner string) {
	t.Helper()
	for _, r := range Seed(owner) {
		if err := s.Insert(context.Background(), r); err != nil {
			t.Fatalf("Insert(%s) error: %v", r.ID, err)
		}
	}
}

func ids(recs []tree.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func testListOrder(t *testing.T, s store.Store) {
	ctx := context.Background()
	// Insert out of order; List must still return level, then creation time.
	recs := Seed("o1")
	for _, i := range []int{0, 2, 1, 4, 3, 5} {
		if err := s.Insert(ctx, recs[i]); err != nil {
			t.Fatalf("Insert(%s) error: %v", recs[i].ID, err)
		}
	}

	got, err := s.List(ctx, "o1")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	want := []string{"me", "a", "b", "a1", "a2", "a1x"}
	if !equal(ids(got), want) {
		t.Errorf("List() = %v, want %v", ids(got), want)
	}

	tr := tree.FromRecords(got)
	if tr.Len() != 6 {
		t.Errorf("FromRecords(List()).Len() = %d, want 6", tr.Len())
	}
}

func testGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	seed(t, s, "o1")

	r, err := s.Get(ctx, "o1", "a1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	want := Seed("o1")[3]
	if r.ID != want.ID || r.Name != want.Name || r.Capital != want.Capital ||
		r.Level != want.Level || r.ParentID != want.ParentID || r.OwnerID != "o1" {
		t.Errorf("Get() = %+v, want %+v", r, want)
	}
	if !r.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", r.CreatedAt, want.CreatedAt)
	}

	if _, err := s.Get(ctx, "o1", "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func testDuplicate(t *testing.T, s store.Store) {
	seed(t, s, "o1")
	err := s.Insert(context.Background(), Seed("o1")[1])
	if !errors.Is(err, store.ErrDuplicateID) {
		t.Errorf("Insert(duplicate) error = %v, want ErrDuplicateID", err)
	}
}

func testMissingParent(t *testing.T, s store.Store) {
	seed(t, s, "o1")
	err := s.Insert(context.Background(), tree.Record{
		ID: "z", OwnerID: "o1", Name: "Z", Level: tree.LevelSecond, ParentID: "ghost", CreatedAt: base,
	})
	if !errors.Is(err, store.ErrParentNotFound) {
		t.Errorf("Insert(orphan) error = %v, want ErrParentNotFound", err)
	}
}

func testOwnerIsolation(t *testing.T, s store.Store) {
	ctx := context.Background()
	seed(t, s, "o1")
	seed(t, s, "o2")

	if _, err := s.Delete(ctx, "o2", "a"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	got, err := s.List(ctx, "o1")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(got) != 6 {
		t.Errorf("o1 has %d records after deleting from o2, want 6", len(got))
	}
	for _, r := range got {
		if r.OwnerID != "o1" {
			t.Errorf("List(o1) returned record of %q", r.OwnerID)
		}
	}

	if _, err := s.Get(ctx, "o3", "me"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get(other owner) error = %v, want ErrNotFound", err)
	}
	empty, err := s.List(ctx, "o3")
	if err != nil || len(empty) != 0 {
		t.Errorf("List(unknown owner) = %v, %v", empty, err)
	}
}

func testDeleteCascade(t *testing.T, s store.Store) {
	ctx := context.Background()
	seed(t, s, "o1")

	n, err := s.Delete(ctx, "o1", "a")
	if err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if n != 4 {
		t.Errorf("Delete() removed %d, want 4", n)
	}

	got, _ := s.List(ctx, "o1")
	if want := []string{"me", "b"}; !equal(ids(got), want) {
		t.Errorf("after delete List() = %v, want %v", ids(got), want)
	}

	if _, err := s.Delete(ctx, "o1", "a"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Delete(again) error = %v, want ErrNotFound", err)
	}
}

func testDeleteLeaf(t *testing.T, s store.Store) {
	seed(t, s, "o1")
	n, err := s.Delete(context.Background(), "o1", "a1x")
	if err != nil || n != 1 {
		t.Errorf("Delete(leaf) = %d, %v, want 1, nil", n, err)
	}
}

func testUpdateParent(t *testing.T, s store.Store) {
	ctx := context.Background()
	seed(t, s, "o1")

	if err := s.UpdateParent(ctx, "o1", "a2", "b"); err != nil {
		t.Fatalf("UpdateParent() error: %v", err)
	}
	r, _ := s.Get(ctx, "o1", "a2")
	if r.ParentID != "b" || r.Level != tree.LevelSecond {
		t.Errorf("after move: parent=%q level=%v", r.ParentID, r.Level)
	}

	if err := s.UpdateParent(ctx, "o1", "ghost", "b"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("UpdateParent(missing) error = %v, want ErrNotFound", err)
	}
	if err := s.UpdateParent(ctx, "o1", "a2", "ghost"); !errors.Is(err, store.ErrParentNotFound) {
		t.Errorf("UpdateParent(missing parent) error = %v, want ErrParentNotFound", err)
	}
}

func testRename(t *testing.T, s store.Store) {
	ctx := context.Background()
	seed(t, s, "o1")

	if err := s.Rename(ctx, "o1", "me", "Dana"); err != nil {
		t.Fatalf("Rename() error: %v", err)
	}
	r, _ := s.Get(ctx, "o1", "me")
	if r.Name != "Dana" {
		t.Errorf("Name = %q, want Dana", r.Name)
	}
	if err := s.Rename(ctx, "o1", "ghost", "x"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Rename(missing) error = %v, want ErrNotFound", err)
	}
}

func testCountChildren(t *testing.T, s store.Store) {
	ctx := context.Background()
	seed(t, s, "o1")

	for parent, want := range map[string]int{"me": 2, "a": 2, "a1": 1, "b": 0, "ghost": 0} {
		got, err := s.CountChildren(ctx, "o1", parent)
		if err != nil {
			t.Fatalf("CountChildren(%s) error: %v", parent, err)
		}
		if got != want {
			t.Errorf("CountChildren(%s) = %d, want %d", parent, got, want)
		}
	}
}
