package chart

import (
	"fmt"

	"nse-screener/format"
	"nse-screener/models"
)

// Tooltip is the OHLC readout for the candle under the pointer. The zero
// value is the hidden tooltip.
type Tooltip struct {
	Visible bool   `json:"visible"`
	Index   int    `json:"index"`
	Date    string `json:"date,omitempty"`
	Open    string `json:"open,omitempty"`
	High    string `json:"high,omitempty"`
	Low     string `json:"low,omitempty"`
	Close   string `json:"close,omitempty"`
}

// Hidden is the tooltip after the pointer leaves the panel.
func Hidden() Tooltip { return Tooltip{} }

// TooltipAt looks up the candle nearest to pointer offset x. Offsets outside
// [0, width] are treated as the pointer having left the panel.
func TooltipAt(points []models.CandlePoint, width int, x float64) Tooltip {
	if len(points) < 2 {
		return Hidden()
	}
	l := NewLayout(points, width)
	if x < 0 || x > l.Width {
		return Hidden()
	}
	i := l.XToIndex(x)
	p := points[i]
	return Tooltip{
		Visible: true,
		Index:   i,
		Date:    format.TooltipDate(p.Date),
		Open:    rupee(p.Open),
		High:    rupee(p.High),
		Low:     rupee(p.Low),
		Close:   rupee(p.Close),
	}
}

func rupee(v float64) string {
	return fmt.Sprintf("₹%.1f", v)
}
