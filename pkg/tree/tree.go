package tree

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// MaxGroupSize is the largest number of members a sibling group may hold.
const MaxGroupSize = 7

const (
	// DefaultRootID is the identifier used for a root that carries none.
	DefaultRootID = "me"
	// DefaultRootName is the display name of a root that has not been named.
	DefaultRootName = "ME"
)

var (
	// ErrDuplicateID is reported by [Tree.Validate] when two reachable
	// members share an identifier.
	ErrDuplicateID = errors.New("duplicate member id")

	// ErrOverCapacity is reported by [Tree.Validate] when a sibling group
	// holds more than [MaxGroupSize] members.
	ErrOverCapacity = errors.New("group exceeds capacity")

	// ErrOrphanGroup is reported by [Tree.Validate] when a grouping map has
	// an entry whose key is not a member of the level above.
	ErrOrphanGroup = errors.New("group references unknown parent")

	// ErrEmptyGroup is reported by [Tree.Validate] when a grouping map has an
	// entry with zero members.
	ErrEmptyGroup = errors.New("empty group")

	// ErrEmptyID is reported by [Tree.Validate] for a non-root member
	// without an identifier.
	ErrEmptyID = errors.New("member id must not be empty")
)

// Level is the depth of a member in the tree.
type Level int

const (
	LevelRoot Level = iota
	LevelFirst
	LevelSecond
	LevelThird
)

// Valid reports whether l is one of the four tree levels.
func (l Level) Valid() bool { return l >= LevelRoot && l <= LevelThird }

func (l Level) String() string {
	switch l {
	case LevelRoot:
		return "root"
	case LevelFirst:
		return "first"
	case LevelSecond:
		return "second"
	case LevelThird:
		return "third"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Member is one node of the tree.
type Member struct {
	ID      string  `json:"id,omitempty"`
	Name    string  `json:"name"`
	Capital float64 `json:"capital"`
}

// Tree is a snapshot of a downline tree.
//
// FirstLevel is kept in insertion order, which is also display order.
// SecondLevel maps a first-level id to its children and ThirdLevel maps a
// second-level id to its children, each list in insertion order.
type Tree struct {
	Root        Member              `json:"root"`
	FirstLevel  []Member            `json:"first_level"`
	SecondLevel map[string][]Member `json:"second_level,omitempty"`
	ThirdLevel  map[string][]Member `json:"third_level,omitempty"`
}

// New returns a tree holding only a root.
func New(root Member) *Tree {
	return &Tree{
		Root:        root,
		SecondLevel: make(map[string][]Member),
		ThirdLevel:  make(map[string][]Member),
	}
}

// RootID returns the root's identifier, or [DefaultRootID] when the root
// carries none.
func (t *Tree) RootID() string {
	if t.Root.ID == "" {
		return DefaultRootID
	}
	return t.Root.ID
}

// RootName returns the root's display name, or [DefaultRootName] when blank.
func (t *Tree) RootName() string {
	if t.Root.Name == "" {
		return DefaultRootName
	}
	return t.Root.Name
}

// AllFirstLevel returns the first-level members in insertion order.
func (t *Tree) AllFirstLevel() []Member {
	return slices.Clone(t.FirstLevel)
}

// ChildrenOf returns the children of parentID in insertion order. The
// result is empty when the parent has no children or is not in the tree.
func (t *Tree) ChildrenOf(parentID string) []Member {
	lvl, ok := t.LevelOf(parentID)
	if !ok {
		return nil
	}
	return slices.Clone(t.group(parentID, lvl+1))
}

// ParentOf returns the identifier of the parent of the member at the given
// level. The second result is false when no such member exists there.
func (t *Tree) ParentOf(memberID string, level Level) (string, bool) {
	switch level {
	case LevelFirst:
		if indexOf(t.FirstLevel, memberID) >= 0 {
			return t.RootID(), true
		}
	case LevelSecond:
		for _, f := range t.FirstLevel {
			if indexOf(t.SecondLevel[f.ID], memberID) >= 0 {
				return f.ID, true
			}
		}
	case LevelThird:
		for _, f := range t.FirstLevel {
			for _, s := range t.SecondLevel[f.ID] {
				if indexOf(t.ThirdLevel[s.ID], memberID) >= 0 {
					return s.ID, true
				}
			}
		}
	}
	return "", false
}

// HasCapacity reports whether the group of level members under parentID
// can take another member. Level is the level of the children, so the
// first-level group is checked with (RootID(), LevelFirst).
func (t *Tree) HasCapacity(parentID string, level Level) bool {
	return len(t.group(parentID, level)) < MaxGroupSize
}

// LevelOf returns the level of a reachable member.
func (t *Tree) LevelOf(id string) (Level, bool) {
	var (
		found Level
		ok    bool
	)
	t.Walk(func(m Member, lvl Level, _ string) bool {
		if m.ID == id {
			found, ok = lvl, true
			return false
		}
		return true
	})
	return found, ok
}

// Find returns the reachable member with the given id.
func (t *Tree) Find(id string) (Member, bool) {
	var (
		found Member
		ok    bool
	)
	t.Walk(func(m Member, _ Level, _ string) bool {
		if m.ID == id {
			found, ok = m, true
			return false
		}
		return true
	})
	return found, ok
}

// DownlineCount returns the number of transitive descendants of id.
func (t *Tree) DownlineCount(id string) int {
	n := 0
	for _, c := range t.ChildrenOf(id) {
		n += 1 + t.DownlineCount(c.ID)
	}
	return n
}

// Len returns the number of reachable members, root included.
func (t *Tree) Len() int {
	n := 0
	t.Walk(func(Member, Level, string) bool {
		n++
		return true
	})
	return n
}

// Walk visits every reachable member in display order: the root, then each
// first-level member followed by its subtree. Returning false from fn stops
// the walk. The root is passed with its ID defaulted to [Tree.RootID].
func (t *Tree) Walk(fn func(m Member, level Level, parentID string) bool) {
	root := t.Root
	root.ID = t.RootID()
	if !fn(root, LevelRoot, "") {
		return
	}
	for _, f := range t.FirstLevel {
		if !fn(f, LevelFirst, root.ID) {
			return
		}
		for _, s := range t.SecondLevel[f.ID] {
			if !fn(s, LevelSecond, f.ID) {
				return
			}
			for _, th := range t.ThirdLevel[s.ID] {
				if !fn(th, LevelThird, s.ID) {
					return
				}
			}
		}
	}
}

// Clone returns a deep copy of t.
func (t *Tree) Clone() *Tree {
	c := &Tree{
		Root:        t.Root,
		FirstLevel:  slices.Clone(t.FirstLevel),
		SecondLevel: make(map[string][]Member, len(t.SecondLevel)),
		ThirdLevel:  make(map[string][]Member, len(t.ThirdLevel)),
	}
	for k, v := range t.SecondLevel {
		c.SecondLevel[k] = slices.Clone(v)
	}
	for k, v := range t.ThirdLevel {
		c.ThirdLevel[k] = slices.Clone(v)
	}
	return c
}

// Normalize brings t into canonical form: empty groups and groups whose
// parent is not reachable are removed.
func (t *Tree) Normalize() {
	first := idSet(t.FirstLevel)
	maps.DeleteFunc(t.SecondLevel, func(k string, v []Member) bool {
		return len(v) == 0 || !first[k]
	})

	second := make(map[string]bool)
	for _, group := range t.SecondLevel {
		for _, m := range group {
			second[m.ID] = true
		}
	}
	maps.DeleteFunc(t.ThirdLevel, func(k string, v []Member) bool {
		return len(v) == 0 || !second[k]
	})
}

// Validate checks the structural invariants of t and returns every
// violation found, joined with [errors.Join].
func (t *Tree) Validate() error {
	var errs []error

	if len(t.FirstLevel) > MaxGroupSize {
		errs = append(errs, fmt.Errorf("%w: %s has %d first-level members", ErrOverCapacity, t.RootID(), len(t.FirstLevel)))
	}

	seen := map[string]bool{t.RootID(): true}
	t.Walk(func(m Member, lvl Level, _ string) bool {
		if lvl == LevelRoot {
			return true
		}
		if m.ID == "" {
			errs = append(errs, fmt.Errorf("%w: %q at %s level", ErrEmptyID, m.Name, lvl))
			return true
		}
		if seen[m.ID] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateID, m.ID))
		}
		seen[m.ID] = true
		return true
	})

	first := idSet(t.FirstLevel)
	for _, k := range slices.Sorted(maps.Keys(t.SecondLevel)) {
		errs = append(errs, checkGroup(k, t.SecondLevel[k], first)...)
	}

	second := make(map[string]bool)
	for _, f := range t.FirstLevel {
		for _, s := range t.SecondLevel[f.ID] {
			second[s.ID] = true
		}
	}
	for _, k := range slices.Sorted(maps.Keys(t.ThirdLevel)) {
		errs = append(errs, checkGroup(k, t.ThirdLevel[k], second)...)
	}

	return errors.Join(errs...)
}

func checkGroup(parentID string, group []Member, parents map[string]bool) []error {
	var errs []error
	if !parents[parentID] {
		errs = append(errs, fmt.Errorf("%w: %s", ErrOrphanGroup, parentID))
	}
	if len(group) == 0 {
		errs = append(errs, fmt.Errorf("%w: %s", ErrEmptyGroup, parentID))
	}
	if len(group) > MaxGroupSize {
		errs = append(errs, fmt.Errorf("%w: %s has %d members", ErrOverCapacity, parentID, len(group)))
	}
	return errs
}

// group returns the raw group of children at level under parentID without
// reachability checks.
func (t *Tree) group(parentID string, level Level) []Member {
	switch level {
	case LevelFirst:
		if parentID == t.RootID() {
			return t.FirstLevel
		}
	case LevelSecond:
		return t.SecondLevel[parentID]
	case LevelThird:
		return t.ThirdLevel[parentID]
	}
	return nil
}

func indexOf(members []Member, id string) int {
	return slices.IndexFunc(members, func(m Member) bool { return m.ID == id })
}

func idSet(members []Member) map[string]bool {
	set := make(map[string]bool, len(members))
	for _, m := range members {
		set[m.ID] = true
	}
	return set
}
