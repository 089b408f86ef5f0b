package screener

import "nse-screener/models"

// Overview counts the collection by series group.
type Overview struct {
	Total int `json:"total"`
	EQ    int `json:"eq"`
	BE    int `json:"be"`
	SME   int `json:"sme"`
	Other int `json:"other"`
}

// Summarize builds the overview strip. SME counts the SM and ST series.
func Summarize(records []models.EquityRecord) Overview {
	o := Overview{Total: len(records)}
	for _, r := range records {
		switch r.Series {
		case "EQ":
			o.EQ++
		case "BE":
			o.BE++
		case "SM", "ST":
			o.SME++
		}
	}
	o.Other = o.Total - o.EQ - o.BE - o.SME
	return o
}

// SeriesCodes returns the distinct series codes in first-seen order, for
// building filter chips.
func SeriesCodes(records []models.EquityRecord) []string {
	seen := make(map[string]bool)
	var codes []string
	for _, r := range records {
		if r.Series == "" || seen[r.Series] {
			continue
		}
		seen[r.Series] = true
		codes = append(codes, r.Series)
	}
	return codes
}
