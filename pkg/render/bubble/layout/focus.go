package layout

import (
	"cmp"
	"slices"

	"github.com/matzehuels/downline/pkg/tree"
)

// Toggle returns the focus that results from clicking clicked while current
// is focused. Clicking the focused member clears the focus.
func Toggle(current, clicked string) string {
	if clicked == current {
		return ""
	}
	return clicked
}

// refocus moves the member at index f onto center. Its ancestors are
// translated by the same offset and its descendants are re-placed around
// it. Positions outside that chain are left as in base. The second result
// marks the focused hierarchy (f and its descendants).
func refocus(nodes []node, base []Point, center Point, f int) ([]Point, []bool) {
	pos := slices.Clone(base)
	hier := make([]bool, len(nodes))

	delta := center.Sub(base[f])
	for p := nodes[f].parent; p >= 0; p = nodes[p].parent {
		pos[p] = base[p].Add(delta)
	}
	pos[f] = center
	hier[f] = true

	// Display order is pre-order, so the subtree of f is the contiguous run
	// that follows it.
	for i := f + 1; i < len(nodes); i++ {
		n := nodes[i]
		if !hier[n.parent] {
			break
		}
		hier[i] = true
		d := AnchorDistance(n.level, n.parent == f)
		pos[i] = ring(pos[n.parent], d, n.slot, len(nodes[n.parent].children))
	}
	return pos, hier
}

// emphasize fills scale, text, opacity and z bucket of b, the bubble of
// node n at index i. focus is the focused index or -1.
func emphasize(b *Bubble, focus, i int, n node, inHierarchy bool) {
	b.Scale = 1
	b.Opacity = 1

	if focus < 0 {
		b.ShowText = n.level <= tree.LevelFirst
		return
	}

	switch {
	case i == focus:
		b.Focused = true
		b.ShowText = true
		b.Scale = FocusScale
		switch n.level {
		case tree.LevelSecond:
			b.Scale *= SecondFocusBoost
		case tree.LevelThird:
			b.Scale *= ThirdFocusBoost
		}
	case n.parent == focus:
		b.ShowText = true
		if n.level >= tree.LevelSecond {
			b.Scale = ChildBoost
		}
	}

	if inHierarchy {
		b.ZBucket = 1
	} else {
		b.Opacity = DimOpacity
	}
}

// sortPaintOrder orders bubbles back to front: bucket 0 deepest level
// first, then bucket 1 shallowest level first. Ties keep display order.
func sortPaintOrder(bubbles []Bubble) {
	slices.SortStableFunc(bubbles, func(a, b Bubble) int {
		if c := cmp.Compare(a.ZBucket, b.ZBucket); c != 0 {
			return c
		}
		if a.ZBucket == 0 {
			return cmp.Compare(b.Level, a.Level)
		}
		return cmp.Compare(a.Level, b.Level)
	})
}
