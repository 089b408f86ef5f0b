package models

import "time"

// IST is the exchange's wall clock. Candle dates are derived in this zone so
// the same timestamps always produce the same labels.
var IST = time.FixedZone("IST", 5*3600+30*60)

// CandlePoint is a single validated OHLCV period.
type CandlePoint struct {
	Timestamp int64     `json:"timestamp"` // seconds since epoch
	Date      time.Time `json:"date"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// Up reports whether the period closed at or above its open.
func (c CandlePoint) Up() bool {
	return c.Close >= c.Open
}

// Range is a chart lookback window.
type Range string

const (
	Range1M Range = "1mo"
	Range3M Range = "3mo"
	Range6M Range = "6mo"
	Range1Y Range = "1y"
	Range2Y Range = "2y"
	Range5Y Range = "5y"
)

// DefaultRange is what a detail view opens with.
const DefaultRange = Range1M

// Ranges lists every supported range in display order.
var Ranges = []Range{Range1M, Range3M, Range6M, Range1Y, Range2Y, Range5Y}

// ParseRange returns the matching range, or DefaultRange for anything unknown.
func ParseRange(s string) Range {
	for _, r := range Ranges {
		if string(r) == s {
			return r
		}
	}
	return DefaultRange
}

// ChartSession is the chart state for one open detail view. It is rebuilt in
// full whenever the symbol or range changes.
type ChartSession struct {
	Symbol string        `json:"symbol"`
	Range  Range         `json:"range"`
	Points []CandlePoint `json:"points"`
}
