package models

import "strings"

// EquityRecord is one row of the NSE equity master list. Records are never
// mutated after parsing; a refresh replaces the whole collection.
type EquityRecord struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Series        string  `json:"series"`       // e.g., "EQ", "BE", "SM"
	ListedDate    string  `json:"listed_date"`  // raw, as published (e.g., "06-OCT-2008")
	FaceValue     float64 `json:"face_value"`
	ISIN          string  `json:"isin"`
	PaidUpCapital float64 `json:"paid_up_capital"`
	MarketLot     int     `json:"market_lot"` // always >= 1
}

// SeriesClass groups series codes the way the screener badges them.
type SeriesClass string

const (
	ClassEQ    SeriesClass = "EQ"
	ClassBE    SeriesClass = "BE"
	ClassBL    SeriesClass = "BL"
	ClassSME   SeriesClass = "SM"
	ClassST    SeriesClass = "ST"
	ClassOther SeriesClass = "OTHER"
)

// ClassifySeries maps a raw series code onto its badge group.
func ClassifySeries(series string) SeriesClass {
	switch strings.ToUpper(strings.TrimSpace(series)) {
	case "EQ":
		return ClassEQ
	case "BE":
		return ClassBE
	case "BL":
		return ClassBL
	case "SM", "SME":
		return ClassSME
	case "ST", "MT", "TB", "GS":
		return ClassST
	default:
		return ClassOther
	}
}
