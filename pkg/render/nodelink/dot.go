package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/downline/pkg/render"
	"github.com/matzehuels/downline/pkg/tree"
)

var levelFill = [4]string{"#2563eb", "#22c55e", "#eab308", "#f97316"}

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed adds the capital and downline count to node labels.
	// When false, only the member name is shown.
	Detailed bool

	// Focus outlines the given member and its subtree; the rest is greyed.
	Focus string
}

// ToDOT converts a tree to Graphviz DOT format. The resulting DOT string can
// be rendered using [RenderSVG], [RenderPDF], or [RenderPNG].
func ToDOT(t *tree.Tree, opts Options) string {
	inFocus := focusSet(t, opts.Focus)

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=circle, style=filled, fontcolor=white, fontname=\"Helvetica\", fontsize=14, fixedsize=false];\n")
	buf.WriteString("  edge [arrowhead=none, color=\"#94a3b8\"];\n")
	buf.WriteString("  ranksep=0.6;\n")
	buf.WriteString("  nodesep=0.25;\n")
	buf.WriteString("\n")

	var edges []string
	t.Walk(func(m tree.Member, lvl tree.Level, parentID string) bool {
		if lvl == tree.LevelRoot && m.Name == "" {
			m.Name = tree.DefaultRootName
		}
		label := fmtLabel(t, m, opts.Detailed)
		attrs := fmtAttrs(lvl, label, opts.Focus != "" && !inFocus[m.ID], m.ID == opts.Focus)
		fmt.Fprintf(&buf, "  %q [%s];\n", m.ID, strings.Join(attrs, ", "))
		if parentID != "" {
			edges = append(edges, fmt.Sprintf("  %q -> %q;\n", parentID, m.ID))
		}
		return true
	})

	buf.WriteString("\n")
	for _, e := range edges {
		buf.WriteString(e)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func focusSet(t *tree.Tree, focus string) map[string]bool {
	set := make(map[string]bool)
	if focus == "" {
		return set
	}
	t.Walk(func(m tree.Member, _ tree.Level, parentID string) bool {
		if m.ID == focus || set[parentID] {
			set[m.ID] = true
		}
		return true
	})
	return set
}

func fmtLabel(t *tree.Tree, m tree.Member, detailed bool) string {
	if !detailed {
		return m.Name
	}
	parts := []string{m.Name, fmt.Sprintf("$%.0f", m.Capital)}
	if n := len(t.ChildrenOf(m.ID)); n > 0 {
		parts = append(parts, fmt.Sprintf("%d/%d", n, tree.MaxGroupSize))
	}
	return strings.Join(parts, "\n")
}

func fmtAttrs(lvl tree.Level, label string, dimmed, focused bool) []string {
	fill := "#9ca3af"
	if lvl.Valid() {
		fill = levelFill[lvl]
	}
	if dimmed {
		fill = "#cbd5e1"
	}
	attrs := []string{fmt.Sprintf("label=%q", label), fmt.Sprintf("fillcolor=%q", fill)}
	if focused {
		attrs = append(attrs, "penwidth=3", "color=\"#0f172a\"")
	}
	return attrs
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
// Returns the SVG bytes ready for display or further conversion with [render.ToPDF] or [render.ToPNG].
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(tag))
}

// RenderPDF renders a DOT graph as PDF via SVG conversion.
//
// Requires librsvg: brew install librsvg (macOS), apt install librsvg2-bin (Linux).
func RenderPDF(ctx context.Context, dot string) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPDF(ctx, svg)
}

// RenderPNG renders a DOT graph as PNG via SVG conversion.
// A scale of 2.0 produces a 2x resolution image suitable for high-DPI displays.
func RenderPNG(ctx context.Context, dot string, scale float64) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPNG(ctx, svg, scale)
}
