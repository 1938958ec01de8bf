package layout

import (
	"math"

	"github.com/matzehuels/downline/pkg/tree"
)

const (
	DefaultFrameWidth  = 1200.0
	DefaultFrameHeight = 1000.0
)

// Scale multipliers applied to focused members and their direct children.
const (
	FocusScale       = 1.3
	SecondFocusBoost = 2.5
	ThirdFocusBoost  = 3.0
	ChildBoost       = 2.5
)

// DimOpacity is the opacity of bubbles outside the focused hierarchy.
const DimOpacity = 0.7

var (
	baseRadii      = [...]float64{100, 70, 20, 12}
	anchors        = [...]float64{0, 220, 100, 60}
	centeredAnchor = [...]float64{0, 220, 180, 120}
)

// BaseRadius returns the unscaled radius of a bubble at level.
func BaseRadius(level tree.Level) float64 {
	if !level.Valid() {
		return 0
	}
	return baseRadii[level]
}

// AnchorDistance returns the distance between a member at level and its
// parent. centered selects the enlarged distance used when the parent is
// the focused member.
func AnchorDistance(level tree.Level, centered bool) float64 {
	if !level.Valid() {
		return 0
	}
	if centered {
		return centeredAnchor[level]
	}
	return anchors[level]
}

// Point is a position in diagram units.
type Point struct {
	X, Y float64
}

func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }

// ring returns slot i of n evenly spaced points at distance d from c.
func ring(c Point, d float64, i, n int) Point {
	angle := float64(i) * 2 * math.Pi / float64(n)
	return Point{
		X: c.X + d*math.Cos(angle),
		Y: c.Y + d*math.Sin(angle),
	}
}
