package tree

import (
	"cmp"
	"slices"
	"time"
)

// Record is the flat, store-level form of a member: one row per member,
// scoped to the owner of the tree.
type Record struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Capital   float64   `json:"capital"`
	Level     Level     `json:"level"`
	ParentID  string    `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Member returns the member part of the record.
func (r Record) Member() Member {
	return Member{ID: r.ID, Name: r.Name, Capital: r.Capital}
}

// SortRecords orders records by level, then creation time. Records that
// tie keep their relative order.
func SortRecords(records []Record) {
	slices.SortStableFunc(records, func(a, b Record) int {
		if c := cmp.Compare(a.Level, b.Level); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

// FromRecords groups flat records into a tree snapshot.
//
// The first level-0 record becomes the root; without one the root is the
// unnamed default. Level-1 records always hang off the root. Level-2 and
// level-3 records are grouped by parent and dropped when the parent is not
// present on the level above. The result is in canonical form.
func FromRecords(records []Record) *Tree {
	sorted := slices.Clone(records)
	SortRecords(sorted)

	t := New(Member{Name: DefaultRootName})
	haveRoot := false
	first := make(map[string]bool)
	second := make(map[string]bool)

	for _, r := range sorted {
		switch r.Level {
		case LevelRoot:
			if !haveRoot {
				t.Root = r.Member()
				haveRoot = true
			}
		case LevelFirst:
			t.FirstLevel = append(t.FirstLevel, r.Member())
			first[r.ID] = true
		case LevelSecond:
			if first[r.ParentID] {
				t.SecondLevel[r.ParentID] = append(t.SecondLevel[r.ParentID], r.Member())
				second[r.ID] = true
			}
		case LevelThird:
			if second[r.ParentID] {
				t.ThirdLevel[r.ParentID] = append(t.ThirdLevel[r.ParentID], r.Member())
			}
		}
	}
	return t
}

// Records flattens t into store records owned by ownerID. CreatedAt is
// assigned from base in display order so that [FromRecords] restores the
// same sibling order.
func (t *Tree) Records(ownerID string, base time.Time) []Record {
	var out []Record
	t.Walk(func(m Member, lvl Level, parentID string) bool {
		out = append(out, Record{
			ID:        m.ID,
			OwnerID:   ownerID,
			Name:      m.Name,
			Capital:   m.Capital,
			Level:     lvl,
			ParentID:  parentID,
			CreatedAt: base.Add(time.Duration(len(out)) * time.Millisecond),
		})
		return true
	})
	if len(out) > 0 && out[0].Name == "" {
		out[0].Name = DefaultRootName
	}
	return out
}
