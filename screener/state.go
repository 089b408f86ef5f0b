package screener

import (
	"strings"

	"nse-screener/models"
)

// State is the table half of a session: the record collection, the view the
// user has selected, and the filtered view derived from both. Every filter or
// sort change recomputes the filtered view in full and returns to page 1.
//
// State is not safe for concurrent use; a session mutates it from a single
// goroutine.
type State struct {
	records  []models.EquityRecord
	view     ViewState
	filtered []models.EquityRecord
}

// NewState builds a state over records with a default view.
func NewState(records []models.EquityRecord, pageSize int) *State {
	s := &State{records: records, view: DefaultView(pageSize)}
	s.recompute()
	return s
}

func (s *State) recompute() {
	s.view = s.view.normalized()
	s.filtered = Apply(s.records, s.view)
	s.view.Page = 1
}

// Replace swaps in a new record collection wholesale.
func (s *State) Replace(records []models.EquityRecord) {
	s.records = records
	s.recompute()
}

// SetSeries changes the series filter; "" or "ALL" clears it.
func (s *State) SetSeries(series string) {
	s.view.Series = series
	s.recompute()
}

// SetQuery changes the search text.
func (s *State) SetQuery(query string) {
	s.view.Query = query
	s.recompute()
}

// SetSort selects a sort key and direction explicitly.
func (s *State) SetSort(key SortKey, dir int) {
	s.view.SortKey = key
	s.view.SortDir = dir
	s.recompute()
}

// ToggleSort flips the direction when key is already active, otherwise
// switches to key ascending.
func (s *State) ToggleSort(key SortKey) {
	if s.view.SortKey == key {
		s.view.SortDir = -s.view.SortDir
	} else {
		s.view.SortKey = key
		s.view.SortDir = 1
	}
	s.recompute()
}

// SetPageSize changes the page size and returns to page 1. Sizes below 1 are
// ignored.
func (s *State) SetPageSize(n int) {
	if n <= 0 {
		return
	}
	s.view.PageSize = n
	s.view.Page = 1
}

// GoPage moves to page p. Requests outside [1, PageCount] are rejected and
// leave the state untouched.
func (s *State) GoPage(p int) bool {
	if p < 1 || p > s.Pages() {
		return false
	}
	s.view.Page = p
	return true
}

// View returns the current view state.
func (s *State) View() ViewState { return s.view }

// Records returns the full record collection.
func (s *State) Records() []models.EquityRecord { return s.records }

// Filtered returns the full filtered, sorted view.
func (s *State) Filtered() []models.EquityRecord { return s.filtered }

// Pages returns the number of pages in the filtered view.
func (s *State) Pages() int { return PageCount(len(s.filtered), s.view.PageSize) }

// PageRecords returns the records on the current page.
func (s *State) PageRecords() []models.EquityRecord {
	return PageSlice(s.filtered, s.view.Page, s.view.PageSize)
}

// Row is one rendered table line.
type Row struct {
	models.EquityRecord
	Number      int                `json:"n"`
	Class       models.SeriesClass `json:"class"`
	SymbolMatch *Span              `json:"symbol_match,omitempty"`
	NameMatch   *Span              `json:"name_match,omitempty"`
}

// Table is a renderable snapshot of the current page.
type Table struct {
	View     ViewState    `json:"view"`
	Total    int          `json:"total"`
	Matched  int          `json:"matched"`
	Pages    int          `json:"pages"`
	Start    int          `json:"start"` // 1-indexed first row number, 0 when empty
	End      int          `json:"end"`
	Rows     []Row        `json:"rows"`
	Controls PageControls `json:"controls"`
}

// Snapshot renders the current page.
func (s *State) Snapshot() Table {
	return BuildTable(s.records, s.filtered, s.view)
}

// BuildTable renders page v.Page of an already filtered view. It is shared
// by the stateful session and the stateless HTTP endpoint.
func BuildTable(records, filtered []models.EquityRecord, v ViewState) Table {
	v = v.normalized()
	q := strings.ToLower(v.Query)
	start, end := PageBounds(len(filtered), v.Page, v.PageSize)

	rows := make([]Row, 0, end-start)
	for i, r := range filtered[start:end] {
		rows = append(rows, Row{
			EquityRecord: r,
			Number:       start + i + 1,
			Class:        models.ClassifySeries(r.Series),
			SymbolMatch:  Highlight(r.Symbol, q),
			NameMatch:    Highlight(r.Name, q),
		})
	}

	pages := PageCount(len(filtered), v.PageSize)
	t := Table{
		View:     v,
		Total:    len(records),
		Matched:  len(filtered),
		Pages:    pages,
		Rows:     rows,
		Controls: BuildPageControls(v.Page, pages),
	}
	if end > start {
		t.Start, t.End = start+1, end
	}
	return t
}
