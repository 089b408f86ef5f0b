package session

import (
	"strings"

	"nse-screener/chart"
	"nse-screener/format"
	"nse-screener/models"
	"nse-screener/screener"
)

// Region names the part of the screen an Update replaces.
type Region string

const (
	RegionTable   Region = "table"
	RegionStatus  Region = "status"
	RegionDetail  Region = "detail"
	RegionQuote   Region = "quote"
	RegionChart   Region = "chart"
	RegionTooltip Region = "tooltip"
)

// PanelState is the load state of a detail view panel.
type PanelState string

const (
	PanelLoading     PanelState = "loading"
	PanelOK          PanelState = "ok"
	PanelUnavailable PanelState = "unavailable"
)

// Update replaces one region. Exactly one of the payload fields is set,
// matching Region.
type Update struct {
	Session string          `json:"session"`
	Region  Region          `json:"region"`
	Table   *screener.Table `json:"table,omitempty"`
	Status  *StatusInfo     `json:"status,omitempty"`
	Detail  *DetailInfo     `json:"detail,omitempty"`
	Quote   *QuotePanel     `json:"quote,omitempty"`
	Chart   *ChartPanel     `json:"chart,omitempty"`
	Tooltip *chart.Tooltip  `json:"tooltip,omitempty"`
}

type StatusInfo struct {
	Catalog   Info `json:"catalog"`
	Reloading bool `json:"reloading"`
	Matched   int  `json:"matched"`
}

// DetailInfo is the header of the detail view.
type DetailInfo struct {
	Open      bool                 `json:"open"`
	Record    *models.EquityRecord `json:"record,omitempty"`
	Class     models.SeriesClass   `json:"class,omitempty"`
	Listed    string               `json:"listed,omitempty"`
	FaceValue string               `json:"face_value,omitempty"`
	PaidUp    string               `json:"paid_up,omitempty"`
	Lot       string               `json:"lot,omitempty"`
	Range     models.Range         `json:"range,omitempty"`
	Ranges    []models.Range       `json:"ranges,omitempty"`
}

func detailInfo(r models.EquityRecord, rng models.Range) *DetailInfo {
	return &DetailInfo{
		Open:      true,
		Record:    &r,
		Class:     models.ClassifySeries(r.Series),
		Listed:    format.ListingDate(r.ListedDate),
		FaceValue: format.INR(r.FaceValue, 2),
		PaidUp:    format.Compact(r.PaidUpCapital),
		Lot:       format.Lot(r.MarketLot),
		Range:     rng,
		Ranges:    models.Ranges,
	}
}

// QuotePanel is the price header and fundamentals grid, with the header
// lines pre-formatted.
type QuotePanel struct {
	Symbol    string        `json:"symbol"`
	State     PanelState    `json:"state"`
	Quote     *models.Quote `json:"quote,omitempty"`
	Price     string        `json:"price,omitempty"`
	Change    string        `json:"change,omitempty"`
	Up        bool          `json:"up"`
	Stats     string        `json:"stats,omitempty"`
	MarketCap string        `json:"market_cap,omitempty"`
}

// NewQuotePanel formats q for display.
func NewQuotePanel(symbol string, q *models.Quote) *QuotePanel {
	p := &QuotePanel{
		Symbol: symbol,
		State:  PanelOK,
		Quote:  q,
		Price:  format.INR(q.Price, 2),
		Change: format.Signed(q.Change, 2) + " (" + format.Signed(q.ChangePct, 2) + "%)",
		Up:     q.Up(),
	}

	var stats []string
	add := func(label string, v float64) {
		if v != 0 {
			stats = append(stats, label+" "+format.INR(v, 2))
		}
	}
	add("O", q.Open)
	add("H", q.DayHigh)
	add("L", q.DayLow)
	add("Prev", q.PreviousClose)
	if q.Volume > 0 {
		stats = append(stats, "Vol "+format.Volume(q.Volume))
	}
	p.Stats = strings.Join(stats, " · ")

	if q.MarketCap > 0 {
		p.MarketCap = format.MarketCap(q.MarketCap)
	}
	return p
}

// ChartPanel carries the rendered chart for one (symbol, range) selection.
type ChartPanel struct {
	Symbol string       `json:"symbol"`
	Range  models.Range `json:"range"`
	State  PanelState   `json:"state"`
	Status string       `json:"status,omitempty"`
	Scene  *chart.Scene `json:"scene,omitempty"`
}

// NewChartPanel renders cs at width. Sessions with too few points come back
// unavailable with the unavailable scene.
func NewChartPanel(cs *models.ChartSession, width int) *ChartPanel {
	scene := chart.Render(cs.Points, width)
	p := &ChartPanel{Symbol: cs.Symbol, Range: cs.Range, Scene: &scene}
	if scene.Available {
		p.State = PanelOK
		p.Status = scene.Status
	} else {
		p.State = PanelUnavailable
	}
	return p
}
