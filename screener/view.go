// Package screener derives the visible table from the equity list: series
// and text filtering, locale-aware sorting, and pagination.
package screener

import "strings"

// AllSeries disables the series filter.
const AllSeries = "ALL"

// DefaultPageSize is the page size a fresh view starts with.
const DefaultPageSize = 100

// SortKey selects the comparator used to order the filtered view.
type SortKey string

const (
	SortSymbol    SortKey = "symbol"
	SortName      SortKey = "name"
	SortDate      SortKey = "date"
	SortFaceValue SortKey = "faceValue"
)

// ParseSortKey accepts the canonical keys plus the short forms the front-end
// uses ("sym", "fv"). Unknown keys sort by symbol.
func ParseSortKey(s string) SortKey {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "name":
		return SortName
	case "date":
		return SortDate
	case "facevalue", "fv":
		return SortFaceValue
	default:
		return SortSymbol
	}
}

// ParseDirection maps "desc"/"-1" to -1 and everything else to +1.
func ParseDirection(s string) int {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "desc", "-1":
		return -1
	default:
		return 1
	}
}

// ViewState is everything the user controls about the table.
type ViewState struct {
	Series   string  `json:"series"`
	Query    string  `json:"query"`
	SortKey  SortKey `json:"sort_key"`
	SortDir  int     `json:"sort_dir"` // +1 ascending, -1 descending
	Page     int     `json:"page"`     // 1-indexed
	PageSize int     `json:"page_size"`
}

// DefaultView returns the view a session starts with.
func DefaultView(pageSize int) ViewState {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return ViewState{
		Series:   AllSeries,
		SortKey:  SortSymbol,
		SortDir:  1,
		Page:     1,
		PageSize: pageSize,
	}
}

// normalized fills zero values so a partially specified view (for example one
// decoded from query parameters) is always usable.
func (v ViewState) normalized() ViewState {
	if strings.TrimSpace(v.Series) == "" {
		v.Series = AllSeries
	}
	v.Series = strings.ToUpper(strings.TrimSpace(v.Series))
	v.Query = strings.TrimSpace(v.Query)
	if v.SortKey == "" {
		v.SortKey = SortSymbol
	}
	if v.SortDir < 0 {
		v.SortDir = -1
	} else {
		v.SortDir = 1
	}
	if v.Page < 1 {
		v.Page = 1
	}
	if v.PageSize <= 0 {
		v.PageSize = DefaultPageSize
	}
	return v
}
