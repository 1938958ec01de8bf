// Package sink writes a computed bubble layout to output formats.
//
// [RenderSVG] draws the layout as a self-contained SVG: connectors first,
// then one group per bubble in paint order, each with a circle colored by
// level and, when the layout says so, a name / capital / downline caption.
// [WithLinks] turns every bubble into a link so that a browser click can
// toggle focus on the server side.
//
// [RenderJSON] exposes the raw layout for other front ends. [RenderPNG] and
// [RenderPDF] convert the SVG with rsvg-convert.
package sink
