package chart

import "nse-screener/models"

// MAWindow is the moving-average period drawn over the candles.
const MAWindow = 20

// MAPoint is the average of the window ending at Index.
type MAPoint struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
}

// SMA returns the simple moving average of closes. Indices before the first
// full window are omitted, so the result is empty when len(points) < window.
func SMA(points []models.CandlePoint, window int) []MAPoint {
	if window <= 0 || len(points) < window {
		return nil
	}
	out := make([]MAPoint, 0, len(points)-window+1)
	var sum float64
	for i, p := range points {
		sum += p.Close
		if i >= window {
			sum -= points[i-window].Close
		}
		if i >= window-1 {
			out = append(out, MAPoint{Index: i, Value: sum / float64(window)})
		}
	}
	return out
}
