package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	derrors "github.com/matzehuels/downline/pkg/errors"
	"github.com/matzehuels/downline/pkg/render/bubble/layout"
	"github.com/matzehuels/downline/pkg/render/bubble/sink"
	"github.com/matzehuels/downline/pkg/render/nodelink"
	"github.com/matzehuels/downline/pkg/tree"
)

// RenderFromLayout renders output from a computed layout. The tree is
// embedded in JSON output when non-nil.
func RenderFromLayout(ctx context.Context, l Layout, t *tree.Tree, opts Options) (map[string][]byte, error) {
	if l.IsNodelink() {
		return RenderNodelink(ctx, l, opts)
	}
	if l.Bubble == nil {
		return nil, derrors.New(derrors.ErrCodeInvalidInput, "bubble layout missing positions")
	}
	return renderBubble(ctx, *l.Bubble, t, opts)
}

// RenderNodelink generates nodelink outputs from a layout.
// The layout must be a nodelink layout (VizType = "nodelink") with a DOT string.
func RenderNodelink(ctx context.Context, l Layout, opts Options) (map[string][]byte, error) {
	if l.DOT == "" {
		return nil, fmt.Errorf("nodelink layout missing DOT string")
	}

	artifacts := make(map[string][]byte)

	for _, format := range opts.Formats {
		var data []byte
		var err error

		switch format {
		case FormatSVG:
			data, err = nodelink.RenderSVG(ctx, l.DOT)
		case FormatPNG:
			data, err = nodelink.RenderPNG(ctx, l.DOT, opts.Scale)
		case FormatPDF:
			data, err = nodelink.RenderPDF(ctx, l.DOT)
		case FormatJSON:
			data, err = json.MarshalIndent(l, "", "  ")
		default:
			return nil, fmt.Errorf("unsupported nodelink format: %s", format)
		}

		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = data
	}

	return artifacts, nil
}

// renderBubble generates bubble diagram outputs.
func renderBubble(ctx context.Context, l layout.Layout, t *tree.Tree, opts Options) (map[string][]byte, error) {
	svgOpts := buildSVGOptions(l, opts)
	artifacts := make(map[string][]byte)

	for _, format := range opts.Formats {
		var data []byte
		var err error

		switch format {
		case FormatSVG:
			data = sink.RenderSVG(l, svgOpts...)
		case FormatPNG:
			data, err = sink.RenderPNG(ctx, l, sink.WithPNGSVGOptions(svgOpts...), sink.WithScale(opts.Scale))
		case FormatPDF:
			data, err = sink.RenderPDF(ctx, l, svgOpts...)
		case FormatJSON:
			var jsonOpts []sink.JSONOption
			if t != nil {
				jsonOpts = append(jsonOpts, sink.WithSnapshot(t))
			}
			data, err = sink.RenderJSON(l, jsonOpts...)
		default:
			return nil, fmt.Errorf("unsupported bubble format: %s", format)
		}

		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = data
	}

	return artifacts, nil
}

// buildSVGOptions builds SVG rendering options.
func buildSVGOptions(l layout.Layout, opts Options) []sink.SVGOption {
	var svgOpts []sink.SVGOption

	if opts.LinkBase != "" {
		svgOpts = append(svgOpts, sink.WithLinks(FocusLinker(opts.LinkBase, l.FocusID)))
	}
	if opts.Legend {
		svgOpts = append(svgOpts, sink.WithLegend())
	}
	if opts.Title != "" {
		svgOpts = append(svgOpts, sink.WithTitle(opts.Title))
	}
	if opts.Transitions {
		svgOpts = append(svgOpts, sink.WithTransitions())
	}

	return svgOpts
}

// FocusLinker returns an href builder for bubbles: clicking a bubble links
// to base followed by the focus that click selects.
func FocusLinker(base, focus string) func(id string) string {
	return func(id string) string {
		return base + url.QueryEscape(layout.Toggle(focus, id))
	}
}
