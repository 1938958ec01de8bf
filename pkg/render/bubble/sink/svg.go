package sink

import (
	"bytes"
	"fmt"

	"github.com/matzehuels/downline/pkg/render/bubble/layout"
	"github.com/matzehuels/downline/pkg/tree"
)

const transitionCSS = `
    .bubble circle { transition: cx 0.8s cubic-bezier(0.4, 0, 0.2, 1), cy 0.8s cubic-bezier(0.4, 0, 0.2, 1), r 0.6s ease-out; }
    .bubble text { transition: x 0.8s cubic-bezier(0.4, 0, 0.2, 1), y 0.8s cubic-bezier(0.4, 0, 0.2, 1), opacity 0.3s ease; }
    .connector { transition: x1 0.8s, y1 0.8s, x2 0.8s, y2 0.8s; }
    .bubble:hover circle { opacity: 1; }
    a { cursor: pointer; }`

// Palette holds the colors used for each level and the background.
type Palette struct {
	Background string
	Levels     [4]string
	Connectors [4]string
	Text       string
}

// DefaultPalette is the dark theme used by the web view.
var DefaultPalette = Palette{
	Background: "#1e293b",
	Levels:     [4]string{"#2563eb", "#22c55e", "#eab308", "#f97316"},
	Connectors: [4]string{"#a855f7", "#c084fc", "#facc15", "#fb923c"},
	Text:       "#ffffff",
}

type SVGOption func(*svgRenderer)

type svgRenderer struct {
	palette     Palette
	link        func(id string) string
	legend      bool
	title       string
	transitions bool
}

// WithLinks wraps every bubble in a link. href receives the bubble id and
// returns the target, typically a URL that re-renders with the toggled
// focus.
func WithLinks(href func(id string) string) SVGOption {
	return func(r *svgRenderer) { r.link = href }
}

func WithLegend() SVGOption           { return func(r *svgRenderer) { r.legend = true } }
func WithTitle(s string) SVGOption    { return func(r *svgRenderer) { r.title = s } }
func WithTransitions() SVGOption      { return func(r *svgRenderer) { r.transitions = true } }
func WithPalette(p Palette) SVGOption { return func(r *svgRenderer) { r.palette = p } }

// RenderSVG draws l as a standalone SVG document. Connectors are drawn
// first, then bubbles in the layout's paint order.
func RenderSVG(l layout.Layout, opts ...SVGOption) []byte {
	r := svgRenderer{palette: DefaultPalette}
	for _, opt := range opts {
		opt(&r)
	}

	height := l.FrameHeight
	if r.legend {
		height += legendHeight
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.1f %.1f" width="%.0f" height="%.0f">`+"\n",
		l.FrameWidth, height, l.FrameWidth, height)
	if r.title != "" {
		fmt.Fprintf(&buf, "  <title>%s</title>\n", EscapeXML(r.title))
	}
	renderDefs(&buf)
	if r.transitions {
		fmt.Fprintf(&buf, "  <style>%s\n  </style>\n", transitionCSS)
	}
	fmt.Fprintf(&buf, `  <rect class="background" x="0" y="0" width="%.1f" height="%.1f" fill="%s"/>`+"\n",
		l.FrameWidth, height, r.palette.Background)

	buf.WriteString(`  <g class="connectors">` + "\n")
	for _, c := range l.Connectors {
		r.renderConnector(&buf, c)
	}
	buf.WriteString("  </g>\n")

	buf.WriteString(`  <g class="bubbles">` + "\n")
	for _, b := range l.Bubbles {
		r.renderBubble(&buf, b)
	}
	buf.WriteString("  </g>\n")

	if r.legend {
		r.renderLegend(&buf, l.FrameWidth, l.FrameHeight)
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

func renderDefs(buf *bytes.Buffer) {
	buf.WriteString(`  <defs>
    <filter id="shadow" x="-50%" y="-50%" width="200%" height="200%">
      <feGaussianBlur in="SourceAlpha" stdDeviation="4"/>
      <feOffset dx="0" dy="4" result="offsetblur"/>
      <feComponentTransfer><feFuncA type="linear" slope="0.3"/></feComponentTransfer>
      <feMerge><feMergeNode/><feMergeNode in="SourceGraphic"/></feMerge>
    </filter>
  </defs>
`)
}

func (r *svgRenderer) renderConnector(buf *bytes.Buffer, c layout.Connector) {
	opacity := 0.2
	if c.Level == tree.LevelFirst {
		opacity = 0.3
	}
	fmt.Fprintf(buf, `    <line class="connector level-%d" data-from="%s" data-to="%s" x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-opacity="%.1f" stroke-width="1"/>`+"\n",
		c.Level, EscapeXML(c.FromID), EscapeXML(c.ToID), c.X1, c.Y1, c.X2, c.Y2, r.palette.connector(c.Level), opacity)
}

func (r *svgRenderer) renderBubble(buf *bytes.Buffer, b layout.Bubble) {
	class := fmt.Sprintf("bubble level-%d", b.Level)
	if b.Focused {
		class += " focused"
	}

	fmt.Fprintf(buf, `    <g id="bubble-%s" class="%s" opacity="%.1f">`+"\n", EscapeXML(b.ID), class, b.Opacity)
	if r.link != nil {
		fmt.Fprintf(buf, `      <a href="%s">`+"\n", EscapeXML(r.link(b.ID)))
	}

	filter := ""
	if b.Focused {
		filter = ` filter="url(#shadow)"`
	}
	fmt.Fprintf(buf, `      <circle cx="%.2f" cy="%.2f" r="%.2f" fill="%s" fill-opacity="0.9" stroke="#ffffff" stroke-width="2"%s>`,
		b.X, b.Y, b.Radius, r.palette.level(b.Level), filter)
	fmt.Fprintf(buf, "<title>%s</title></circle>\n", EscapeXML(b.Name))

	if b.ShowText {
		r.renderLabel(buf, b)
	}

	if r.link != nil {
		buf.WriteString("      </a>\n")
	}
	buf.WriteString("    </g>\n")
}

func (r *svgRenderer) renderLabel(buf *bytes.Buffer, b layout.Bubble) {
	fs := FontSize(b.Radius)
	text := func(y, size float64, weight, s string) {
		fmt.Fprintf(buf, `      <text x="%.2f" y="%.2f" text-anchor="middle" dominant-baseline="middle" font-family="Helvetica, Arial, sans-serif" font-size="%.1f" font-weight="%s" fill="%s" pointer-events="none">%s</text>`+"\n",
			b.X, y, size, weight, r.palette.Text, EscapeXML(s))
	}

	text(b.Y-fs*0.5, fs, "bold", TruncateLabel(b.Name, b.Radius))
	text(b.Y+fs*0.4, fs, "600", FormatCapital(b.Capital))
	if caption := FormatDownlines(b.Downlines); caption != "" {
		text(b.Y+fs*1.2, fs*0.85, "500", caption)
	}
}

func (p Palette) level(l tree.Level) string {
	if !l.Valid() {
		return "#9ca3af"
	}
	return p.Levels[l]
}

func (p Palette) connector(l tree.Level) string {
	if !l.Valid() {
		return "#9ca3af"
	}
	return p.Connectors[l]
}
