package sink

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	fontWidthRatio = 0.85
	fontCharWidth  = 0.55
)

// FormatCapital renders a capital amount with thousands separators,
// e.g. "$12,500".
func FormatCapital(v float64) string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("$%v", number.Decimal(v, number.MaxFractionDigits(2)))
}

// FormatDownlines renders the caption under a bubble, or "" for none.
func FormatDownlines(n int) string {
	switch {
	case n <= 0:
		return ""
	case n == 1:
		return "1 downline"
	default:
		return fmt.Sprintf("%d downlines", n)
	}
}

// FontSize picks the label size for a bubble of the given display radius.
func FontSize(radius float64) float64 {
	switch {
	case radius >= 80:
		return 14
	case radius >= 50:
		return 12
	case radius >= 30:
		return 10
	default:
		return 8
	}
}

// TruncateLabel shortens label to what fits across a circle of radius r.
func TruncateLabel(label string, r float64) string {
	fs := FontSize(r)
	maxChars := max(3, int(2*r*fontWidthRatio/(fs*fontCharWidth)))

	runes := []rune(label)
	if len(runes) <= maxChars {
		return label
	}
	return string(runes[:maxChars-2]) + ".."
}

// EscapeXML escapes s for use in SVG text and attribute values.
func EscapeXML(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
