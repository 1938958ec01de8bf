package layout

import (
	"fmt"

	"github.com/matzehuels/downline/pkg/tree"
)

// Bubble is the render record of one member.
type Bubble struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Capital  float64    `json:"capital"`
	Level    tree.Level `json:"level"`
	ParentID string     `json:"parent_id,omitempty"`

	X float64 `json:"x"`
	Y float64 `json:"y"`

	BaseRadius float64 `json:"base_radius"`
	Scale      float64 `json:"scale"`
	Radius     float64 `json:"radius"` // BaseRadius * Scale

	ZBucket  int     `json:"z"`
	ShowText bool    `json:"show_text"`
	Opacity  float64 `json:"opacity"`
	Focused  bool    `json:"focused,omitempty"`

	// Downlines is the number of direct children.
	Downlines int `json:"downlines"`
}

// Center returns the bubble's position.
func (b Bubble) Center() Point { return Point{b.X, b.Y} }

// Connector is the line between a parent bubble and one of its children.
type Connector struct {
	FromID string     `json:"from"`
	ToID   string     `json:"to"`
	Level  tree.Level `json:"level"` // level of the child
	X1     float64    `json:"x1"`
	Y1     float64    `json:"y1"`
	X2     float64    `json:"x2"`
	Y2     float64    `json:"y2"`
}

// Layout is the result of [Build].
type Layout struct {
	FrameWidth  float64     `json:"width"`
	FrameHeight float64     `json:"height"`
	CenterX     float64     `json:"center_x"`
	CenterY     float64     `json:"center_y"`
	FocusID     string      `json:"focus,omitempty"`
	Bubbles     []Bubble    `json:"bubbles"`    // paint order
	Connectors  []Connector `json:"connectors"` // display order
}

// Bubble returns the render record for id.
func (l Layout) Bubble(id string) (Bubble, bool) {
	for _, b := range l.Bubbles {
		if b.ID == id {
			return b, true
		}
	}
	return Bubble{}, false
}

// Option configures [Build].
type Option func(*config)

type config struct {
	width, height float64
	center        Point
}

// WithFrame sets the frame size and centers the diagram in it.
func WithFrame(width, height float64) Option {
	return func(c *config) {
		c.width, c.height = width, height
		c.center = Point{width / 2, height / 2}
	}
}

// WithCenter moves the diagram center without changing the frame.
func WithCenter(x, y float64) Option {
	return func(c *config) { c.center = Point{x, y} }
}

func newConfig(opts ...Option) config {
	c := config{
		width:  DefaultFrameWidth,
		height: DefaultFrameHeight,
		center: Point{DefaultFrameWidth / 2, DefaultFrameHeight / 2},
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// node is a reachable member flattened in display order.
type node struct {
	member   tree.Member
	level    tree.Level
	parent   int // -1 for the root
	slot     int // index within the sibling group
	children []int
}

// Build lays out t with focusID focused. An empty or unknown focusID
// produces the unfocused layout.
func Build(t *tree.Tree, focusID string, opts ...Option) (Layout, error) {
	cfg := newConfig(opts...)

	nodes, index, err := flatten(t)
	if err != nil {
		return Layout{}, err
	}

	focus, ok := index[focusID]
	if !ok || focusID == "" {
		focus, focusID = -1, ""
	}

	pos := place(nodes, cfg.center, -1)
	hier := make([]bool, len(nodes))
	if focus >= 0 {
		pos, hier = refocus(nodes, pos, cfg.center, focus)
	}

	l := Layout{
		FrameWidth:  cfg.width,
		FrameHeight: cfg.height,
		CenterX:     cfg.center.X,
		CenterY:     cfg.center.Y,
		FocusID:     focusID,
		Bubbles:     make([]Bubble, 0, len(nodes)),
		Connectors:  make([]Connector, 0, len(nodes)-1),
	}

	for i, n := range nodes {
		b := Bubble{
			ID:         n.member.ID,
			Name:       n.member.Name,
			Capital:    n.member.Capital,
			Level:      n.level,
			X:          pos[i].X,
			Y:          pos[i].Y,
			BaseRadius: BaseRadius(n.level),
			Downlines:  len(n.children),
		}
		if n.parent >= 0 {
			b.ParentID = nodes[n.parent].member.ID
		}
		emphasize(&b, focus, i, n, hier[i])
		b.Radius = b.BaseRadius * b.Scale
		l.Bubbles = append(l.Bubbles, b)

		if n.parent >= 0 {
			p := pos[n.parent]
			l.Connectors = append(l.Connectors, Connector{
				FromID: b.ParentID,
				ToID:   b.ID,
				Level:  n.level,
				X1:     p.X, Y1: p.Y,
				X2: pos[i].X, Y2: pos[i].Y,
			})
		}
	}

	sortPaintOrder(l.Bubbles)
	return l, nil
}

// flatten collects the reachable members of t in display order and checks
// the capacity and uniqueness preconditions.
func flatten(t *tree.Tree) ([]node, map[string]int, error) {
	if n := len(t.FirstLevel); n > tree.MaxGroupSize {
		return nil, nil, fmt.Errorf("%w: %s has %d children", tree.ErrOverCapacity, t.RootID(), n)
	}

	var (
		nodes = make([]node, 0, t.Len())
		index = make(map[string]int)
		err   error
	)
	t.Walk(func(m tree.Member, lvl tree.Level, parentID string) bool {
		if _, dup := index[m.ID]; dup {
			err = fmt.Errorf("%w: %s", tree.ErrDuplicateID, m.ID)
			return false
		}
		var kids int
		switch lvl {
		case tree.LevelFirst:
			kids = len(t.SecondLevel[m.ID])
		case tree.LevelSecond:
			kids = len(t.ThirdLevel[m.ID])
		}
		if kids > tree.MaxGroupSize {
			err = fmt.Errorf("%w: %s has %d children", tree.ErrOverCapacity, m.ID, kids)
			return false
		}

		n := node{member: m, level: lvl, parent: -1}
		if lvl != tree.LevelRoot {
			p := index[parentID]
			n.parent = p
			n.slot = len(nodes[p].children)
			nodes[p].children = append(nodes[p].children, len(nodes))
		}
		index[m.ID] = len(nodes)
		nodes = append(nodes, n)
		return true
	})
	return nodes, index, err
}

// place computes positions top-down. centered is the index of the member
// sitting on the center whose children use the enlarged anchor distance,
// or -1.
func place(nodes []node, center Point, centered int) []Point {
	pos := make([]Point, len(nodes))
	if len(nodes) == 0 {
		return pos
	}
	pos[0] = center
	for i := 1; i < len(nodes); i++ {
		n := nodes[i]
		d := AnchorDistance(n.level, n.parent == centered)
		pos[i] = ring(pos[n.parent], d, n.slot, len(nodes[n.parent].children))
	}
	return pos
}
