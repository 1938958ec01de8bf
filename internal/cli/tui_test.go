package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/downline/pkg/tree"
)

func browseTree() *tree.Tree {
	return &tree.Tree{
		Root: tree.Member{ID: "me", Name: "Me"},
		FirstLevel: []tree.Member{
			{ID: "a1", Name: "Ann", Capital: 1500},
			{ID: "a2", Name: "Abe", Capital: 200},
		},
		SecondLevel: map[string][]tree.Member{
			"a1": {{ID: "b1", Name: "Ben", Capital: 50}},
		},
	}
}

func press(m BrowseModel, keys ...tea.KeyMsg) BrowseModel {
	for _, k := range keys {
		next, _ := m.Update(k)
		m = next.(BrowseModel)
	}
	return m
}

var (
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyUp    = tea.KeyMsg{Type: tea.KeyUp}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
)

func TestBrowseModelRows(t *testing.T) {
	m := NewBrowseModel(browseTree())

	var ids []string
	for _, r := range m.rows {
		ids = append(ids, r.member.ID)
	}
	if got := strings.Join(ids, ","); got != "me,a1,b1,a2" {
		t.Errorf("rows = %s, want display order me,a1,b1,a2", got)
	}
	if len(m.Layout.Bubbles) != 4 {
		t.Errorf("layout has %d bubbles, want 4", len(m.Layout.Bubbles))
	}
}

func TestBrowseModelFocusToggle(t *testing.T) {
	m := NewBrowseModel(browseTree())

	m = press(m, keyDown, keyEnter)
	if m.Focus != "a1" || m.Layout.FocusID != "a1" {
		t.Fatalf("focus = %q (layout %q), want a1", m.Focus, m.Layout.FocusID)
	}
	if b, _ := m.Layout.Bubble("a2"); b.Opacity >= 1 {
		t.Error("members outside the focused hierarchy should be dimmed")
	}

	m = press(m, keyEnter)
	if m.Focus != "" || m.Layout.FocusID != "" {
		t.Errorf("second enter should clear focus, got %q", m.Focus)
	}

	m = press(m, keyDown, keyEnter, keyEsc)
	if m.Focus != "" {
		t.Errorf("esc should clear focus, got %q", m.Focus)
	}
}

func TestBrowseModelCursorBounds(t *testing.T) {
	m := NewBrowseModel(browseTree())

	m = press(m, keyUp)
	if m.Cursor != 0 {
		t.Errorf("cursor = %d after up at top", m.Cursor)
	}
	m = press(m, keyDown, keyDown, keyDown, keyDown, keyDown)
	if m.Cursor != 3 {
		t.Errorf("cursor = %d, want clamped to 3", m.Cursor)
	}
}

func TestBrowseModelQuit(t *testing.T) {
	m := NewBrowseModel(browseTree())
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q should return a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestBrowseModelView(t *testing.T) {
	m := press(NewBrowseModel(browseTree()), keyDown, keyEnter)
	view := m.View()
	for _, want := range []string{"Downline Me", "Ann", "$1,500", "1/7", "focus"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}
