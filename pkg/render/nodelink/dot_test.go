package nodelink

import (
	"strings"
	"testing"

	"github.com/matzehuels/downline/pkg/tree"
)

func sample() *tree.Tree {
	t := tree.New(tree.Member{ID: "me"})
	t.FirstLevel = []tree.Member{{ID: "a", Name: "Alex", Capital: 1200}, {ID: "b", Name: "Blair"}}
	t.SecondLevel["a"] = []tree.Member{{ID: "c", Name: "Casey", Capital: 300}}
	return t
}

func TestToDOT(t *testing.T) {
	dot := ToDOT(sample(), Options{})

	for _, want := range []string{
		"digraph G {",
		`"me" [label="ME"`,
		`"a" [label="Alex", fillcolor="#22c55e"]`,
		`"c" [label="Casey", fillcolor="#eab308"]`,
		`"me" -> "a";`,
		`"a" -> "c";`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q\n%s", want, dot)
		}
	}
	if got := strings.Count(dot, "->"); got != 3 {
		t.Errorf("edge count = %d, want 3", got)
	}
}

func TestToDOTDetailed(t *testing.T) {
	dot := ToDOT(sample(), Options{Detailed: true})
	if !strings.Contains(dot, `label="Alex\n$1200\n1/7"`) {
		t.Errorf("detailed label missing:\n%s", dot)
	}
}

func TestToDOTFocus(t *testing.T) {
	dot := ToDOT(sample(), Options{Focus: "a"})

	if !strings.Contains(dot, `"a" [label="Alex", fillcolor="#22c55e", penwidth=3`) {
		t.Errorf("focused node not outlined:\n%s", dot)
	}
	if !strings.Contains(dot, `"c" [label="Casey", fillcolor="#eab308"]`) {
		t.Errorf("focused subtree greyed:\n%s", dot)
	}
	if !strings.Contains(dot, `"b" [label="Blair", fillcolor="#cbd5e1"]`) {
		t.Errorf("unrelated node not greyed:\n%s", dot)
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="100pt" height="50pt" viewBox="0.00 0.00 100.00 50.00" xmlns="http://www.w3.org/2000/svg"><g/></svg>`)
	out := string(normalizeViewBox(in))
	if !strings.HasPrefix(out, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100.00 50.00" width="100" height="50">`) {
		t.Errorf("normalizeViewBox() = %s", out)
	}

	plain := []byte("<svg><g/></svg>")
	if got := normalizeViewBox(plain); string(got) != string(plain) {
		t.Errorf("normalizeViewBox() changed an svg without viewBox")
	}
}
