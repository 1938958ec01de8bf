package sink

import (
	"bytes"
	"fmt"

	"github.com/matzehuels/downline/pkg/tree"
)

const legendHeight = 60.0

var legendLabels = [4]string{
	"ME (Level 0)",
	"First Level (7 max)",
	"Second Level (7 max per parent)",
	"Third Level (7 max per parent)",
}

func (r *svgRenderer) renderLegend(buf *bytes.Buffer, width, top float64) {
	slot := width / float64(len(legendLabels))
	y := top + legendHeight/2

	buf.WriteString(`  <g class="legend">` + "\n")
	for i, label := range legendLabels {
		x := slot*float64(i) + 24
		fmt.Fprintf(buf, `    <circle cx="%.1f" cy="%.1f" r="9" fill="%s"/>`+"\n", x, y, r.palette.level(tree.Level(i)))
		fmt.Fprintf(buf, `    <text x="%.1f" y="%.1f" dominant-baseline="middle" font-family="Helvetica, Arial, sans-serif" font-size="13" fill="%s">%s</text>`+"\n",
			x+16, y, r.palette.Text, EscapeXML(label))
	}
	buf.WriteString("  </g>\n")
}
