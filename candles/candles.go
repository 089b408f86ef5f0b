// Package candles turns Yahoo Finance chart payloads into validated,
// time-ordered candle sequences.
package candles

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"nse-screener/models"
)

var (
	// ErrNoData means the payload had no chart result or was not a chart
	// payload at all.
	ErrNoData = errors.New("candles: no chart data")
	// ErrInsufficientData means fewer than MinPoints periods survived
	// validation; the chart is shown as unavailable.
	ErrInsufficientData = errors.New("candles: not enough valid points")
)

// MinPoints is the smallest sequence the renderer will draw.
const MinPoints = 2

// Interval returns the bar interval requested for a range.
func Interval(r models.Range) string {
	switch r {
	case models.Range1Y, models.Range2Y:
		return "1wk"
	case models.Range5Y:
		return "1mo"
	default:
		return "1d"
	}
}

// --- Yahoo Finance v8 chart payload ---

// ChartResponse is the envelope returned by /v8/finance/chart.
type ChartResponse struct {
	Chart struct {
		Result []ChartResult `json:"result"`
		Error  *ChartError   `json:"error"`
	} `json:"chart"`
}

type ChartResult struct {
	Meta       ChartMeta  `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Indicators Indicators `json:"indicators"`
}

type ChartMeta struct {
	Symbol             string  `json:"symbol"`
	Currency           string  `json:"currency"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
}

type Indicators struct {
	Quote []OHLCV `json:"quote"`
}

// OHLCV holds parallel arrays; any element may be null.
type OHLCV struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

type ChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Decode parses a raw chart payload and normalizes it.
func Decode(data []byte) ([]models.CandlePoint, error) {
	var resp ChartResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoData, err)
	}
	return Normalize(resp)
}

// Normalize validates every period of the first chart result. A period is
// kept only when open, high, low and close are all present and non-zero;
// missing or negative volume becomes zero. The result is sorted by timestamp
// and has at least MinPoints entries, otherwise an error is returned.
func Normalize(resp ChartResponse) ([]models.CandlePoint, error) {
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoData, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, ErrNoData
	}

	r := resp.Chart.Result[0]
	var q OHLCV
	if len(r.Indicators.Quote) > 0 {
		q = r.Indicators.Quote[0]
	}

	points := make([]models.CandlePoint, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		o, h, l, c := at(q.Open, i), at(q.High, i), at(q.Low, i), at(q.Close, i)
		if o == 0 || h == 0 || l == 0 || c == 0 {
			continue
		}
		var v int64
		if i < len(q.Volume) && q.Volume[i] != nil && *q.Volume[i] > 0 {
			v = *q.Volume[i]
		}
		points = append(points, models.CandlePoint{
			Timestamp: ts,
			Date:      time.Unix(ts, 0).In(models.IST),
			Open:      o,
			High:      h,
			Low:       l,
			Close:     c,
			Volume:    v,
		})
	}

	slices.SortStableFunc(points, func(a, b models.CandlePoint) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	})

	if len(points) < MinPoints {
		return nil, fmt.Errorf("%w: %d", ErrInsufficientData, len(points))
	}
	return points, nil
}

// at returns the i-th value, or 0 when the array is short or the value is
// null.
func at(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return 0
	}
	return *vals[i]
}

// Status is the one-line source caption under a drawn chart.
func Status(points []models.CandlePoint) string {
	return fmt.Sprintf("Yahoo Finance · %d candles", len(points))
}
