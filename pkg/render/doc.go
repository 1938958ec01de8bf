// Package render provides the visual outputs of a downline tree.
//
// # Overview
//
// Two visualizations are available:
//
//   - Bubble diagrams (in the [bubble] subpackages): the interactive
//     nested-bubble "flower pattern" with focus, magnification and dimming.
//   - Node-link diagrams (in [nodelink]): a plain Graphviz tree of the same
//     snapshot, handy for printing and for checking structure at a glance.
//
// # Format Conversion
//
// [ToPDF] and [ToPNG] convert any SVG to other formats using the external
// rsvg-convert tool (from librsvg). Both visualizations go through them.
//
//	svg := sink.RenderSVG(l)
//	pdf, err := render.ToPDF(ctx, svg)
//	png, err := render.ToPNG(ctx, svg, 2.0)  // 2x scale
//
// # Bubble Diagrams
//
//   - [bubble/layout]: positions, scale, opacity and paint order
//   - [bubble/sink]: output formats (SVG, JSON, PNG, PDF)
//
// [bubble]: github.com/matzehuels/downline/pkg/render/bubble/layout
// [bubble/layout]: github.com/matzehuels/downline/pkg/render/bubble/layout
// [bubble/sink]: github.com/matzehuels/downline/pkg/render/bubble/sink
// [nodelink]: github.com/matzehuels/downline/pkg/render/nodelink
package render
