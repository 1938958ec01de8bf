package tree

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"
)

// sample builds:
//
//	me
//	├── f1
//	│   ├── s1
//	│   │   ├── t1
//	│   │   └── t2
//	│   └── s2
//	└── f2
func sample() *Tree {
	t := New(Member{ID: "me", Name: "Owner", Capital: 1000})
	t.FirstLevel = []Member{{ID: "f1", Name: "A", Capital: 10}, {ID: "f2", Name: "B", Capital: 20}}
	t.SecondLevel["f1"] = []Member{{ID: "s1", Name: "C"}, {ID: "s2", Name: "D"}}
	t.ThirdLevel["s1"] = []Member{{ID: "t1", Name: "E"}, {ID: "t2", Name: "F"}}
	return t
}

func ids(ms []Member) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}

func full(prefix string) []Member {
	ms := make([]Member, MaxGroupSize)
	for i := range ms {
		ms[i] = Member{ID: fmt.Sprintf("%s%d", prefix, i), Name: prefix}
	}
	return ms
}

func TestRootDefaults(t *testing.T) {
	tr := &Tree{}
	if got := tr.RootID(); got != DefaultRootID {
		t.Errorf("RootID() = %q, want %q", got, DefaultRootID)
	}
	if got := tr.RootName(); got != DefaultRootName {
		t.Errorf("RootName() = %q, want %q", got, DefaultRootName)
	}
	if got := tr.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}

func TestAllFirstLevel(t *testing.T) {
	tr := sample()
	got := tr.AllFirstLevel()
	if want := []string{"f1", "f2"}; !slices.Equal(ids(got), want) {
		t.Errorf("AllFirstLevel() = %v, want %v", ids(got), want)
	}

	got[0].ID = "mutated"
	if tr.FirstLevel[0].ID != "f1" {
		t.Error("AllFirstLevel() returned a slice aliasing the tree")
	}
}

func TestChildrenOf(t *testing.T) {
	tr := sample()
	tr.SecondLevel["ghost"] = []Member{{ID: "g1"}}

	tests := []struct {
		parent string
		want   []string
	}{
		{"me", []string{"f1", "f2"}},
		{"f1", []string{"s1", "s2"}},
		{"s1", []string{"t1", "t2"}},
		{"f2", nil},
		{"t1", nil},
		{"missing", nil},
		{"ghost", nil},
	}

	for _, tt := range tests {
		t.Run(tt.parent, func(t *testing.T) {
			got := ids(tr.ChildrenOf(tt.parent))
			if len(got) != len(tt.want) || !slices.Equal(got, tt.want) {
				t.Errorf("ChildrenOf(%q) = %v, want %v", tt.parent, got, tt.want)
			}
		})
	}
}

func TestParentOf(t *testing.T) {
	tr := sample()

	tests := []struct {
		id     string
		level  Level
		want   string
		wantOK bool
	}{
		{"f1", LevelFirst, "me", true},
		{"s2", LevelSecond, "f1", true},
		{"t2", LevelThird, "s1", true},
		{"s2", LevelThird, "", false},
		{"me", LevelRoot, "", false},
		{"nope", LevelSecond, "", false},
	}

	for _, tt := range tests {
		got, ok := tr.ParentOf(tt.id, tt.level)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParentOf(%q, %v) = (%q, %v), want (%q, %v)", tt.id, tt.level, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestHasCapacity(t *testing.T) {
	tr := sample()
	tr.SecondLevel["f2"] = full("x")

	tests := []struct {
		parent string
		level  Level
		want   bool
	}{
		{"me", LevelFirst, true},
		{"f1", LevelSecond, true},
		{"f2", LevelSecond, false},
		{"s1", LevelThird, true},
		{"unknown", LevelThird, true},
	}

	for _, tt := range tests {
		if got := tr.HasCapacity(tt.parent, tt.level); got != tt.want {
			t.Errorf("HasCapacity(%q, %v) = %v, want %v", tt.parent, tt.level, got, tt.want)
		}
	}

	tr.FirstLevel = full("f")
	if tr.HasCapacity("me", LevelFirst) {
		t.Error("HasCapacity(me, first) = true with 7 first-level members")
	}
}

func TestLevelOfAndFind(t *testing.T) {
	tr := sample()
	for id, want := range map[string]Level{"me": LevelRoot, "f2": LevelFirst, "s1": LevelSecond, "t2": LevelThird} {
		got, ok := tr.LevelOf(id)
		if !ok || got != want {
			t.Errorf("LevelOf(%q) = (%v, %v), want (%v, true)", id, got, ok, want)
		}
	}
	if _, ok := tr.LevelOf("zzz"); ok {
		t.Error("LevelOf(zzz) found a member")
	}

	m, ok := tr.Find("s1")
	if !ok || m.Name != "C" {
		t.Errorf("Find(s1) = (%+v, %v), want C", m, ok)
	}
}

func TestDownlineCountAndLen(t *testing.T) {
	tr := sample()
	tests := map[string]int{"me": 6, "f1": 4, "s1": 2, "f2": 0, "t1": 0, "none": 0}
	for id, want := range tests {
		if got := tr.DownlineCount(id); got != want {
			t.Errorf("DownlineCount(%q) = %d, want %d", id, got, want)
		}
	}
	if got := tr.Len(); got != 7 {
		t.Errorf("Len() = %d, want 7", got)
	}
}

func TestWalkOrder(t *testing.T) {
	var got []string
	sample().Walk(func(m Member, lvl Level, parent string) bool {
		got = append(got, fmt.Sprintf("%s/%d/%s", m.ID, lvl, parent))
		return true
	})
	want := []string{"me/0/", "f1/1/me", "s1/2/f1", "t1/3/s1", "t2/3/s1", "s2/2/f1", "f2/1/me"}
	if !slices.Equal(got, want) {
		t.Errorf("Walk order = %v, want %v", got, want)
	}

	n := 0
	sample().Walk(func(Member, Level, string) bool {
		n++
		return n < 3
	})
	if n != 3 {
		t.Errorf("Walk visited %d members after stop, want 3", n)
	}
}

func TestClone(t *testing.T) {
	tr := sample()
	c := tr.Clone()
	c.SecondLevel["f1"][0].Name = "changed"
	c.FirstLevel = append(c.FirstLevel, Member{ID: "f3"})

	if tr.SecondLevel["f1"][0].Name != "C" {
		t.Error("Clone() shares group slices with the original")
	}
	if len(tr.FirstLevel) != 2 {
		t.Error("Clone() shares the first-level slice with the original")
	}
}

func TestNormalize(t *testing.T) {
	tr := sample()
	tr.SecondLevel["f2"] = nil
	tr.SecondLevel["gone"] = []Member{{ID: "o1"}}
	tr.ThirdLevel["o1"] = []Member{{ID: "o2"}}
	tr.ThirdLevel["s2"] = []Member{}

	tr.Normalize()

	if _, ok := tr.SecondLevel["f2"]; ok {
		t.Error("empty group f2 not pruned")
	}
	if _, ok := tr.SecondLevel["gone"]; ok {
		t.Error("orphan group not pruned")
	}
	if _, ok := tr.ThirdLevel["o1"]; ok {
		t.Error("third-level group under orphan not pruned")
	}
	if _, ok := tr.ThirdLevel["s2"]; ok {
		t.Error("empty third-level group not pruned")
	}
	if err := tr.Validate(); err != nil {
		t.Errorf("Validate() after Normalize = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Tree)
		want   error
	}{
		{"valid", func(*Tree) {}, nil},
		{"duplicate", func(tr *Tree) { tr.ThirdLevel["s1"][1].ID = "f2" }, ErrDuplicateID},
		{"duplicate root", func(tr *Tree) { tr.FirstLevel[1].ID = "me" }, ErrDuplicateID},
		{"over capacity", func(tr *Tree) { tr.SecondLevel["f2"] = append(full("x"), Member{ID: "x8"}) }, ErrOverCapacity},
		{"first over capacity", func(tr *Tree) { tr.FirstLevel = append(full("f"), Member{ID: "f9"}) }, ErrOverCapacity},
		{"orphan", func(tr *Tree) { tr.ThirdLevel["zz"] = []Member{{ID: "q"}} }, ErrOrphanGroup},
		{"empty group", func(tr *Tree) { tr.SecondLevel["f2"] = []Member{} }, ErrEmptyGroup},
		{"empty id", func(tr *Tree) { tr.FirstLevel[0].ID = "" }, ErrEmptyID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := sample()
			tt.mutate(tr)
			err := tr.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestJSONShape(t *testing.T) {
	data := []byte(`{
		"root": {"id": "me", "name": "Owner", "capital": 5000},
		"first_level": [{"id": "a", "name": "A", "capital": 1}],
		"second_level": {"a": [{"id": "b", "name": "B", "capital": 2}]}
	}`)

	var tr Tree
	if err := json.Unmarshal(data, &tr); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got := ids(tr.ChildrenOf("a")); !slices.Equal(got, []string{"b"}) {
		t.Errorf("ChildrenOf(a) = %v, want [b]", got)
	}
	if tr.ThirdLevel != nil {
		t.Errorf("ThirdLevel = %v, want nil", tr.ThirdLevel)
	}
	if got := tr.ChildrenOf("b"); len(got) != 0 {
		t.Errorf("ChildrenOf(b) = %v, want empty with nil map", got)
	}
}

func TestFromRecords(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	at := func(i int) time.Time { return base.Add(time.Duration(i) * time.Second) }

	records := []Record{
		{ID: "s2", Name: "D", Level: LevelSecond, ParentID: "f1", CreatedAt: at(5)},
		{ID: "f2", Name: "B", Level: LevelFirst, ParentID: "me-u", CreatedAt: at(2)},
		{ID: "me-u", Name: "Owner", Capital: 100, Level: LevelRoot, CreatedAt: at(0)},
		{ID: "f1", Name: "A", Level: LevelFirst, ParentID: "me-u", CreatedAt: at(1)},
		{ID: "s1", Name: "C", Level: LevelSecond, ParentID: "f1", CreatedAt: at(3)},
		{ID: "t1", Name: "E", Level: LevelThird, ParentID: "s1", CreatedAt: at(6)},
		{ID: "lost", Name: "X", Level: LevelSecond, ParentID: "deleted", CreatedAt: at(7)},
		{ID: "lost2", Name: "Y", Level: LevelThird, ParentID: "lost", CreatedAt: at(8)},
	}

	tr := FromRecords(records)

	if tr.RootID() != "me-u" || tr.Root.Capital != 100 {
		t.Errorf("Root = %+v, want me-u with capital 100", tr.Root)
	}
	if got := ids(tr.FirstLevel); !slices.Equal(got, []string{"f1", "f2"}) {
		t.Errorf("FirstLevel = %v, want [f1 f2]", got)
	}
	if got := ids(tr.SecondLevel["f1"]); !slices.Equal(got, []string{"s1", "s2"}) {
		t.Errorf("SecondLevel[f1] = %v, want [s1 s2]", got)
	}
	if _, ok := tr.SecondLevel["deleted"]; ok {
		t.Error("orphan second-level group kept")
	}
	if _, ok := tr.ThirdLevel["lost"]; ok {
		t.Error("orphan third-level group kept")
	}
	if err := tr.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestFromRecordsNoRoot(t *testing.T) {
	tr := FromRecords(nil)
	if tr.RootID() != DefaultRootID || tr.Root.Name != DefaultRootName {
		t.Errorf("Root = %+v, want default root", tr.Root)
	}
	if tr.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tr.Len())
	}
}

func TestRecordsRoundTrip(t *testing.T) {
	tr := sample()
	records := tr.Records("owner", time.Unix(0, 0))

	if len(records) != tr.Len() {
		t.Fatalf("Records() returned %d records, want %d", len(records), tr.Len())
	}
	for _, r := range records {
		if r.OwnerID != "owner" {
			t.Errorf("record %s owner = %q", r.ID, r.OwnerID)
		}
	}

	back := FromRecords(records)
	var want, got []string
	tr.Walk(func(m Member, _ Level, p string) bool { want = append(want, m.ID+"<"+p); return true })
	back.Walk(func(m Member, _ Level, p string) bool { got = append(got, m.ID+"<"+p); return true })
	if !slices.Equal(got, want) {
		t.Errorf("round trip = %v, want %v", got, want)
	}
}

func TestLevelString(t *testing.T) {
	tests := map[Level]string{LevelRoot: "root", LevelFirst: "first", LevelSecond: "second", LevelThird: "third", Level(9): "level(9)"}
	for l, want := range tests {
		if got := l.String(); got != want {
			t.Errorf("Level(%d).String() = %q, want %q", int(l), got, want)
		}
	}
	if Level(4).Valid() || !LevelThird.Valid() {
		t.Error("Valid() bounds wrong")
	}
}
