package sink

import (
	"encoding/json"

	"github.com/matzehuels/downline/pkg/render/bubble/layout"
)

// JSONOption configures JSON rendering via [RenderJSON].
type JSONOption func(*jsonRenderer)

type jsonRenderer struct {
	snapshot any
}

// WithSnapshot embeds the tree snapshot the layout was computed from, so
// that a consumer can re-run the layout with another focus.
func WithSnapshot(t any) JSONOption { return func(r *jsonRenderer) { r.snapshot = t } }

type jsonOutput struct {
	layout.Layout
	Snapshot any `json:"snapshot,omitempty"`
}

// RenderJSON exports the layout as a pretty-printed JSON document. Bubbles
// are listed in paint order.
func RenderJSON(l layout.Layout, opts ...JSONOption) ([]byte, error) {
	r := jsonRenderer{}
	for _, opt := range opts {
		opt(&r)
	}
	return json.MarshalIndent(jsonOutput{Layout: l, Snapshot: r.snapshot}, "", "  ")
}
