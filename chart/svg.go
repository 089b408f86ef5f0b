package chart

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	background = "#0b0f14"
	fontFamily = "Fira Code,monospace"
)

// EncodeSVG serialises a scene as one SVG document with the volume panel
// stacked under the price panel.
func EncodeSVG(s Scene) string {
	height := s.PriceHeight + s.VolumeHeight
	if !s.Available {
		return emptySVG(s.Width, height, s.Message)
	}

	var sb strings.Builder
	sb.WriteString(svgHeader(s.Width, height))
	fmt.Fprintf(&sb, `<rect x="0" y="0" width="%s" height="%s" fill="%s"/>`, num(s.Width), num(height), background)

	sb.WriteString(`<g class="price">`)
	for _, c := range s.Price {
		writeCommand(&sb, c)
	}
	sb.WriteString(`</g>`)

	fmt.Fprintf(&sb, `<g class="volume" transform="translate(0,%s)">`, num(s.PriceHeight))
	for _, c := range s.Volume {
		writeCommand(&sb, c)
	}
	sb.WriteString(`</g></svg>`)
	return sb.String()
}

func writeCommand(sb *strings.Builder, c Command) {
	switch c.Kind {
	case KindRect:
		fmt.Fprintf(sb, `<rect x="%s" y="%s" width="%s" height="%s" fill="%s"/>`,
			num(c.X), num(c.Y), num(c.W), num(c.H), c.Fill)
	case KindLine:
		fmt.Fprintf(sb, `<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" stroke-width="%s"/>`,
			num(c.X1), num(c.Y1), num(c.X2), num(c.Y2), c.Stroke, num(c.StrokeWidth))
	case KindPolyline:
		pts := make([]string, len(c.Points))
		for i, p := range c.Points {
			pts[i] = num(p.X) + "," + num(p.Y)
		}
		fmt.Fprintf(sb, `<polyline points="%s" fill="none" stroke="%s" stroke-width="%s"/>`,
			strings.Join(pts, " "), c.Stroke, num(c.StrokeWidth))
	case KindText:
		fmt.Fprintf(sb, `<text x="%s" y="%s" font-size="%s" fill="%s" text-anchor="%s">%s</text>`,
			num(c.X), num(c.Y), num(c.FontSize), c.Fill, c.Anchor, escapeXML(c.Text))
	}
}

func svgHeader(w, h float64) string {
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s" font-family="%s">`,
		num(w), num(h), num(w), num(h), fontFamily)
}

func emptySVG(w, h float64, msg string) string {
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s"><rect width="%s" height="%s" fill="%s"/><text x="%s" y="%s" text-anchor="middle" fill="%s" font-size="12">%s</text></svg>`,
		num(w), num(h), num(w), num(h), background, num(w/2), num(h/2), ColorAxisText, escapeXML(msg))
}

// num prints coordinates with at most two decimals.
func num(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return s
}
