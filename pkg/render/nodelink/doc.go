// Package nodelink renders a downline tree as a plain node-link diagram.
//
// # Overview
//
// This package produces a top-down Graphviz tree where each member is a
// circle colored by level and connected to its parent. It is the printable
// alternative to the bubble diagram.
//
// # Usage
//
// Convert a tree to DOT format, then render to SVG:
//
//	dot := nodelink.ToDOT(t, nodelink.Options{Detailed: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// For PDF or PNG output:
//
//	pdf, err := nodelink.RenderPDF(ctx, dot)
//	png, err := nodelink.RenderPNG(ctx, dot, 2.0)  // 2x scale
//
// # Options
//
//   - Detailed: labels include capital and a "n/7" capacity counter
//   - Focus: the focused member and its subtree keep their colors, the
//     rest of the tree is greyed out
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering. PDF and PNG conversion requires librsvg (rsvg-convert).
package nodelink
