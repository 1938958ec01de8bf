// Package pipeline provides the layout and render pipeline for downline trees.
//
// This package implements the snapshot → layout → render pipeline used by the
// CLI, the terminal browser and the HTTP server. By centralizing this logic,
// every front end caches, renders and names artifacts the same way.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Read: Decode a tree snapshot (JSON) or take one from a store
//  2. Layout: Compute the bubble layout for a focus, or a Graphviz DOT graph
//  3. Render: Generate output in various formats (SVG, PNG, PDF, JSON)
//
// Each stage can be run independently or as part of the complete pipeline.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    VizType: "bubble",
//	    Focus:   "a1",
//	    Formats: []string{"svg"},
//	}
//	result, err := runner.Execute(ctx, snapshot, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svg := result.Artifacts["svg"]
//
// Run individual stages:
//
//	// Layout only
//	l, err := runner.ComputeLayout(ctx, snapshot, opts)
//
//	// Render an existing layout
//	artifacts, err := runner.Render(ctx, l, snapshot, opts)
package pipeline

import (
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/downline/pkg/cache"
	derrors "github.com/matzehuels/downline/pkg/errors"
	"github.com/matzehuels/downline/pkg/render/bubble/layout"
	"github.com/matzehuels/downline/pkg/tree"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI, API, and TUI
// =============================================================================

const (
	// DefaultWidth is the default frame width in pixels.
	DefaultWidth = layout.DefaultFrameWidth

	// DefaultHeight is the default frame height in pixels.
	DefaultHeight = layout.DefaultFrameHeight

	// DefaultScale is the default PNG scale factor.
	DefaultScale = 2.0

	// MaxFrameSize bounds the frame width and height.
	MaxFrameSize = 10000.0

	// MaxScale bounds the PNG scale factor.
	MaxScale = 8.0
)

// Visualization types.
const (
	VizBubble   = "bubble"
	VizNodelink = "nodelink"
)

// DefaultVizType is the default visualization type.
const DefaultVizType = VizBubble

// Format constants for output formats.
const (
	FormatSVG  = "svg"
	FormatPNG  = "png"
	FormatPDF  = "pdf"
	FormatJSON = "json"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatSVG:  true,
	FormatPNG:  true,
	FormatPDF:  true,
	FormatJSON: true,
}

// ValidVizTypes is the set of supported visualization types.
var ValidVizTypes = map[string]bool{
	VizBubble:   true,
	VizNodelink: true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the visualization pipeline.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Layout options
	VizType string  `json:"viz_type,omitempty"`
	Focus   string  `json:"focus,omitempty"`
	Width   float64 `json:"width,omitempty"`
	Height  float64 `json:"height,omitempty"`

	// Render options
	Formats     []string `json:"formats,omitempty"`
	Legend      bool     `json:"legend,omitempty"`
	Title       string   `json:"title,omitempty"`
	Detailed    bool     `json:"detailed,omitempty"`    // nodelink: capital and downline count in labels
	Transitions bool     `json:"transitions,omitempty"` // bubble SVG: CSS transitions between focuses
	LinkBase    string   `json:"link_base,omitempty"`   // bubble SVG: href prefix; the toggled focus id is appended
	Scale       float64  `json:"scale,omitempty"`       // PNG scale factor

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Tree is the snapshot the layout was computed from.
	Tree *tree.Tree

	// TreeHash is the content hash of the snapshot.
	TreeHash string

	// Layout contains the computed layout.
	Layout Layout

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	MemberCount int
	LayoutTime  time.Duration
	RenderTime  time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	LayoutHit bool // Whether layout result came from cache
	RenderHit bool // Whether all artifacts came from cache
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return derrors.New(derrors.ErrCodeInvalidFormat, "invalid format: %q (must be one of: svg, png, pdf, json)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ValidateVizType checks that a visualization type is valid.
func ValidateVizType(vizType string) error {
	if !ValidVizTypes[vizType] {
		return derrors.New(derrors.ErrCodeInvalidVizType, "invalid viz_type: %q (must be one of: bubble, nodelink)", vizType)
	}
	return nil
}

// ParseFormats splits a comma-separated format list, trimming blanks.
// An empty string yields the default format.
func ParseFormats(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(strings.ToLower(f)); f != "" {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return []string{FormatSVG}
	}
	return out
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks all fields and applies defaults for the full pipeline.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.ValidateForRender(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// SetLayoutDefaults sets default values for layout computation.
func (o *Options) SetLayoutDefaults() {
	if o.VizType == "" {
		o.VizType = DefaultVizType
	}
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.Height == 0 {
		o.Height = DefaultHeight
	}
}

// ValidateForLayout validates and sets defaults for layout computation.
func (o *Options) ValidateForLayout() error {
	o.SetLayoutDefaults()
	if err := ValidateVizType(o.VizType); err != nil {
		return err
	}
	if err := checkBounded("width", o.Width, MaxFrameSize); err != nil {
		return err
	}
	return checkBounded("height", o.Height, MaxFrameSize)
}

// checkBounded rejects values that are not finite numbers in (0, limit].
func checkBounded(name string, v, limit float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 || v > limit {
		return derrors.New(derrors.ErrCodeInvalidInput, "%s must be greater than 0 and at most %g", name, limit)
	}
	return nil
}

// SetRenderDefaults sets default values for rendering.
func (o *Options) SetRenderDefaults() {
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatSVG}
	}
	if o.Scale == 0 {
		o.Scale = DefaultScale
	}
}

// ValidateForRender validates and sets defaults for rendering.
func (o *Options) ValidateForRender() error {
	if err := o.ValidateForLayout(); err != nil {
		return err
	}
	o.SetRenderDefaults()
	if err := checkBounded("scale", o.Scale, MaxScale); err != nil {
		return err
	}
	return ValidateFormats(o.Formats)
}

// IsBubble returns true if this is a bubble visualization.
func (o *Options) IsBubble() bool {
	return o.VizType == "" || o.VizType == VizBubble
}

// IsNodelink returns true if this is a nodelink visualization.
func (o *Options) IsNodelink() bool {
	return o.VizType == VizNodelink
}

// LayoutKeyOpts returns cache key options for layout computation.
func (o *Options) LayoutKeyOpts() cache.LayoutKeyOpts {
	return cache.LayoutKeyOpts{
		VizType: o.VizType,
		Focus:   o.Focus,
		Width:   o.Width,
		Height:  o.Height,
	}
}

// ArtifactKeyOpts returns cache key options for artifact rendering.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	k := cache.ArtifactKeyOpts{
		Format:      format,
		Legend:      o.Legend,
		Detailed:    o.Detailed,
		Transitions: o.Transitions,
		Title:       o.Title,
		LinkBase:    o.LinkBase,
	}
	if format == FormatPNG {
		k.Scale = o.Scale
	}
	return k
}
