// Package chart lays out a candlestick price panel and a volume panel for a
// candle sequence. Layout holds the pure coordinate mapping; Render turns a
// sequence into draw commands; EncodeSVG serialises those commands.
package chart

import (
	"math"

	"nse-screener/models"
)

// Padding is the inset of the price plot inside its panel. The right inset
// leaves room for price labels, the bottom inset for date labels.
type Padding struct {
	Top, Bottom, Left, Right float64
}

var DefaultPadding = Padding{Top: 16, Bottom: 28, Left: 10, Right: 62}

const (
	PriceHeight  = 240
	VolumeHeight = 55
	DefaultWidth = 800

	// pricePad widens the price axis beyond the data on both ends.
	pricePad = 0.06
	// bodyRatio is the share of a slot a candle body occupies.
	bodyRatio = 0.72
)

// Layout maps candle indices and prices to panel pixels.
type Layout struct {
	Width     float64
	Height    float64
	VolHeight float64
	Pad       Padding
	N         int
	PMin      float64
	PMax      float64
}

// NewLayout fits a layout to points at the given panel width. Widths too
// narrow to hold a plot fall back to DefaultWidth.
func NewLayout(points []models.CandlePoint, width int) Layout {
	w := float64(width)
	if w <= DefaultPadding.Left+DefaultPadding.Right {
		w = DefaultWidth
	}
	lo, hi := PriceBounds(points)
	return Layout{
		Width:     w,
		Height:    PriceHeight,
		VolHeight: VolumeHeight,
		Pad:       DefaultPadding,
		N:         len(points),
		PMin:      lo,
		PMax:      hi,
	}
}

// PriceBounds is [min(low), max(high)] widened by 6% of the span on each
// side. A flat series is widened by one rupee instead so the axis never
// collapses.
func PriceBounds(points []models.CandlePoint) (lo, hi float64) {
	if len(points) == 0 {
		return 0, 1
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, p := range points {
		lo = math.Min(lo, p.Low)
		hi = math.Max(hi, p.High)
	}
	pad := (hi - lo) * pricePad
	if pad == 0 {
		pad = 1
	}
	return lo - pad, hi + pad
}

// PlotWidth is the horizontal extent shared by both panels.
func (l Layout) PlotWidth() float64 { return l.Width - l.Pad.Left - l.Pad.Right }

// PlotHeight is the vertical extent of the price plot.
func (l Layout) PlotHeight() float64 { return l.Height - l.Pad.Top - l.Pad.Bottom }

// Slot is the width allotted to one candle.
func (l Layout) Slot() float64 {
	if l.N == 0 {
		return l.PlotWidth()
	}
	return l.PlotWidth() / float64(l.N)
}

// PriceToY maps a price onto the plot; higher prices get smaller y.
func (l Layout) PriceToY(p float64) float64 {
	ch := l.PlotHeight()
	return l.Pad.Top + ch - (p-l.PMin)/(l.PMax-l.PMin)*ch
}

// IndexToX is the horizontal centre of candle i.
func (l Layout) IndexToX(i int) float64 {
	return l.Pad.Left + (float64(i)+0.5)*l.Slot()
}

// BodyWidth is 72% of a slot, never narrower than one pixel.
func (l Layout) BodyWidth() float64 {
	return math.Max(1, l.Slot()*bodyRatio)
}

// XToIndex inverts IndexToX for a pointer offset, clamped to a valid index.
func (l Layout) XToIndex(x float64) int {
	if l.N == 0 {
		return -1
	}
	i := int(math.Floor((x - l.Pad.Left) / l.Slot()))
	return min(l.N-1, max(0, i))
}

// GridY is the y of horizontal grid line g (0 at the top, 4 at the bottom).
func (l Layout) GridY(g int) float64 {
	return l.Pad.Top + l.PlotHeight()/gridDivisions*float64(g)
}

// GridPrice is the price labelled at grid line g.
func (l Layout) GridPrice(g int) float64 {
	return l.PMax - (l.PMax-l.PMin)/gridDivisions*float64(g)
}

// LabelStride is the spacing between date labels: about six per chart.
func (l Layout) LabelStride() int {
	return max(1, l.N/6)
}
