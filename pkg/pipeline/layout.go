package pipeline

import (
	"errors"

	derrors "github.com/matzehuels/downline/pkg/errors"
	"github.com/matzehuels/downline/pkg/render/bubble/layout"
	"github.com/matzehuels/downline/pkg/render/nodelink"
	"github.com/matzehuels/downline/pkg/tree"
)

// Layout is the serializable result of the layout stage. Exactly one of
// Bubble and DOT is set, depending on VizType.
type Layout struct {
	VizType string         `json:"viz_type"`
	Focus   string         `json:"focus,omitempty"`
	Bubble  *layout.Layout `json:"bubble,omitempty"`
	DOT     string         `json:"dot,omitempty"`
}

// IsNodelink returns true if the layout holds a Graphviz graph.
func (l Layout) IsNodelink() bool {
	return l.VizType == VizNodelink
}

// =============================================================================
// Layout Generation
// =============================================================================

// GenerateLayout generates a layout for any visualization type.
// This is the unified entry point for generating serializable layout data.
//
// Trees that break the group-size or id-uniqueness rules are rejected with
// CAPACITY_EXCEEDED or DUPLICATE_ID.
func GenerateLayout(t *tree.Tree, opts Options) (Layout, error) {
	if t == nil {
		return Layout{}, derrors.New(derrors.ErrCodeInvalidInput, "no tree to lay out")
	}
	if opts.IsNodelink() {
		return generateNodelinkLayout(t, opts), nil
	}
	return generateBubbleLayout(t, opts)
}

// =============================================================================
// Bubble
// =============================================================================

func generateBubbleLayout(t *tree.Tree, opts Options) (Layout, error) {
	width, height := opts.Width, opts.Height
	if width == 0 {
		width = DefaultWidth
	}
	if height == 0 {
		height = DefaultHeight
	}

	l, err := layout.Build(t, opts.Focus, layout.WithFrame(width, height))
	if err != nil {
		return Layout{}, layoutError(err)
	}
	return Layout{VizType: VizBubble, Focus: l.FocusID, Bubble: &l}, nil
}

// =============================================================================
// Nodelink
// =============================================================================

// generateNodelinkLayout generates the DOT graph for the tree. Graphviz
// positions the nodes at render time.
func generateNodelinkLayout(t *tree.Tree, opts Options) Layout {
	focus := opts.Focus
	if _, ok := t.Find(focus); !ok {
		focus = ""
	}
	dot := nodelink.ToDOT(t, nodelink.Options{Detailed: opts.Detailed, Focus: focus})
	return Layout{VizType: VizNodelink, Focus: focus, DOT: dot}
}

// =============================================================================
// Helpers
// =============================================================================

// layoutError codes a tree rule violation for callers that map codes to
// statuses.
func layoutError(err error) error {
	switch {
	case errors.Is(err, tree.ErrOverCapacity):
		return derrors.Wrap(derrors.ErrCodeCapacityExceeded, err, "%v", err)
	case errors.Is(err, tree.ErrDuplicateID):
		return derrors.Wrap(derrors.ErrCodeDuplicateID, err, "%v", err)
	default:
		return derrors.Wrap(derrors.ErrCodeInvalidInput, err, "invalid tree: %v", err)
	}
}
