package models

// Quote is the price header and fundamentals block shown in a detail view.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	PreviousClose float64 `json:"previous_close"`
	Change        float64 `json:"change"`
	ChangePct     float64 `json:"change_pct"`
	Open          float64 `json:"open"`
	DayHigh       float64 `json:"day_high"`
	DayLow        float64 `json:"day_low"`
	Volume        int64   `json:"volume"`
	MarketCap     float64 `json:"market_cap"`
	Sector        string  `json:"sector,omitempty"`
	Beta          float64 `json:"beta,omitempty"`

	// 52-week band; Position is where Price sits inside it, 0-100.
	WeekHigh52 float64 `json:"week_high_52,omitempty"`
	WeekLow52  float64 `json:"week_low_52,omitempty"`
	Position52 float64 `json:"position_52,omitempty"`

	Fundamentals []Fundamental `json:"fundamentals"`
	Analyst      *AnalystTrend `json:"analyst,omitempty"`

	Source string `json:"source"` // "quoteSummary" or "quote" (price-only fallback)
}

// Up reports whether the price is at or above the previous close.
func (q Quote) Up() bool {
	return q.Price >= q.PreviousClose
}

// Fundamental is one labelled, pre-formatted cell of the fundamentals grid.
// Value is "—" when the upstream field was absent.
type Fundamental struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// AnalystTrend summarises the most recent recommendation period.
type AnalystTrend struct {
	Buy         int     `json:"buy"`
	Hold        int     `json:"hold"`
	Sell        int     `json:"sell"`
	TargetPrice float64 `json:"target_price,omitempty"`
	UpsidePct   float64 `json:"upside_pct,omitempty"`
}

// Total returns the number of analyst opinions, never less than 1 so it can
// be used as a divisor.
func (a AnalystTrend) Total() int {
	t := a.Buy + a.Hold + a.Sell
	if t == 0 {
		return 1
	}
	return t
}
