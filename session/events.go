package session

import (
	"nse-screener/models"
	"nse-screener/screener"
)

// Event is a user action or an internal completion handled on the session's
// event loop.
type Event interface {
	apply(s *Session)
}

// SetSeries filters the table by series code; "ALL" clears the filter.
type SetSeries struct{ Series string }

// SetQuery changes the search text.
type SetQuery struct{ Query string }

// ToggleSort sorts by Key, flipping direction if it is already active.
type ToggleSort struct{ Key screener.SortKey }

// SetPageSize changes the number of rows per page.
type SetPageSize struct{ Size int }

// GoPage moves to a page. Out-of-range pages are ignored.
type GoPage struct{ Page int }

// Open shows the detail view for Symbol on the default range.
type Open struct{ Symbol string }

// SetRange switches the open detail view's chart range.
type SetRange struct{ Range models.Range }

// Close dismisses the detail view.
type Close struct{}

// Pointer reports the pointer's horizontal offset within the chart panel.
// Leave is set when the pointer exits the panel.
type Pointer struct {
	X     float64
	Leave bool
}

// Resize reports a new chart panel width.
type Resize struct{ Width int }

// Reload asks the shared catalog to refetch the equity list.
type Reload struct{}

func (e SetSeries) apply(s *Session) {
	s.state.SetSeries(e.Series)
	s.emitTable()
}

func (e SetQuery) apply(s *Session) {
	s.state.SetQuery(e.Query)
	s.emitTable()
}

func (e ToggleSort) apply(s *Session) {
	s.state.ToggleSort(e.Key)
	s.emitTable()
}

func (e SetPageSize) apply(s *Session) {
	s.state.SetPageSize(e.Size)
	s.emitTable()
}

func (e GoPage) apply(s *Session) {
	if s.state.GoPage(e.Page) {
		s.emitTable()
	}
}

func (e Open) apply(s *Session) { s.open(e.Symbol) }

func (e SetRange) apply(s *Session) {
	if s.detail == nil {
		return
	}
	s.loadChart(models.ParseRange(string(e.Range)))
}

func (Close) apply(s *Session) { s.closeDetail() }

func (e Pointer) apply(s *Session) { s.pointer(e.X, e.Leave) }

func (e Resize) apply(s *Session) { s.resize(e.Width) }

func (Reload) apply(s *Session) { s.reload() }

type catalogReplaced struct {
	records []models.EquityRecord
}

func (e catalogReplaced) apply(s *Session) {
	s.state.Replace(e.records)
	s.emitTable()
	s.emitStatus(false)
}

type reloadRejected struct{}

func (reloadRejected) apply(s *Session) { s.emitStatus(s.catalog.Reloading()) }

type quoteLoaded struct {
	sel   selection
	quote *models.Quote
	err   error
}

func (e quoteLoaded) apply(s *Session) { s.applyQuote(e) }

type chartLoaded struct {
	sel    selection
	points []models.CandlePoint
	err    error
}

func (e chartLoaded) apply(s *Session) { s.applyChart(e) }
