package session

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"nse-screener/chart"
	"nse-screener/models"
	"nse-screener/screener"
)

// Fetcher supplies per-symbol data for the detail view.
type Fetcher interface {
	Chart(ctx context.Context, symbol string, rng models.Range) ([]models.CandlePoint, error)
	Quote(ctx context.Context, symbol string) (*models.Quote, error)
}

// Sink receives every update a session produces, in order.
type Sink interface {
	Emit(Update)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Update)

func (f SinkFunc) Emit(u Update) { f(u) }

// Options tunes a Session.
type Options struct {
	PageSize   int
	ChartWidth int
	Logger     *slog.Logger
}

const eventBuffer = 64

// selection identifies one issued fetch. A result is applied only while its
// selection is still the current one.
type selection struct {
	token  uint64
	symbol string
	rng    models.Range
}

type detail struct {
	record      models.EquityRecord
	quoteSel    selection
	chartSel    selection
	cancelChart context.CancelFunc
	chart       *models.ChartSession
	quote       *models.Quote
}

// Session is one client's screener: a table view over the shared catalog and
// at most one open detail view. All state is owned by the goroutine running
// Run; everything else talks to it through Post.
type Session struct {
	id      string
	catalog *Catalog
	fetcher Fetcher
	sink    Sink
	logger  *slog.Logger

	events chan Event
	done   chan struct{}

	// Owned by the Run goroutine.
	ctx     context.Context
	fetches errgroup.Group
	state   *screener.State
	width   int
	seq     uint64
	detail  *detail
}

func New(catalog *Catalog, fetcher Fetcher, sink Sink, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ChartWidth <= 0 {
		opts.ChartWidth = chart.DefaultWidth
	}
	id := uuid.NewString()
	return &Session{
		id:      id,
		catalog: catalog,
		fetcher: fetcher,
		sink:    sink,
		logger:  opts.Logger.With("session", id),
		events:  make(chan Event, eventBuffer),
		done:    make(chan struct{}),
		state:   screener.NewState(catalog.Records(), opts.PageSize),
		width:   opts.ChartWidth,
	}
}

func (s *Session) ID() string { return s.id }

// Post queues ev for the event loop. It returns false once the session has
// stopped.
func (s *Session) Post(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// post is used by the session's own fetch goroutines.
func (s *Session) post(ev Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

// Run processes events until ctx is cancelled. It emits the initial table and
// status before handling the first event.
func (s *Session) Run(ctx context.Context) error {
	s.ctx = ctx
	unsubscribe := s.catalog.Subscribe(func(records []models.EquityRecord) {
		s.Post(catalogReplaced{records: records})
	})
	// A reload may have finished since New took its snapshot.
	s.state.Replace(s.catalog.Records())

	s.emitTable()
	s.emitStatus(false)
	s.logger.Debug("session started")

	for {
		select {
		case <-ctx.Done():
			unsubscribe()
			if s.detail != nil {
				s.detail.cancelChart()
			}
			close(s.done)
			s.fetches.Wait()
			s.logger.Debug("session stopped")
			return ctx.Err()
		case ev := <-s.events:
			ev.apply(s)
		}
	}
}

func (s *Session) emit(u Update) {
	u.Session = s.id
	s.sink.Emit(u)
}

func (s *Session) emitTable() {
	t := s.state.Snapshot()
	s.emit(Update{Region: RegionTable, Table: &t})
}

func (s *Session) emitStatus(reloading bool) {
	info := s.catalog.Info()
	s.emit(Update{Region: RegionStatus, Status: &StatusInfo{
		Catalog:   info,
		Reloading: reloading,
		Matched:   len(s.state.Filtered()),
	}})
}

func (s *Session) lookup(symbol string) models.EquityRecord {
	for _, r := range s.state.Records() {
		if r.Symbol == symbol {
			return r
		}
	}
	return models.EquityRecord{Symbol: symbol, Name: symbol}
}

func (s *Session) nextSelection(symbol string, rng models.Range) selection {
	s.seq++
	return selection{token: s.seq, symbol: symbol, rng: rng}
}

func (s *Session) open(symbol string) {
	if symbol == "" {
		return
	}
	if s.detail != nil {
		s.detail.cancelChart()
	}
	d := &detail{
		record:      s.lookup(symbol),
		quoteSel:    s.nextSelection(symbol, ""),
		cancelChart: func() {},
	}
	s.detail = d
	s.emit(Update{Region: RegionDetail, Detail: detailInfo(d.record, models.DefaultRange)})

	s.emit(Update{Region: RegionQuote, Quote: &QuotePanel{Symbol: symbol, State: PanelLoading}})
	sel := d.quoteSel
	s.fetches.Go(func() error {
		q, err := s.fetcher.Quote(s.ctx, sel.symbol)
		s.post(quoteLoaded{sel: sel, quote: q, err: err})
		return nil
	})

	s.loadChart(models.DefaultRange)
}

// loadChart issues a candle fetch for the open symbol over rng. Any fetch
// still running for the previous selection is cancelled and its result will
// be discarded if it arrives anyway.
func (s *Session) loadChart(rng models.Range) {
	d := s.detail
	d.cancelChart()
	d.chart = nil
	d.chartSel = s.nextSelection(d.record.Symbol, rng)

	ctx, cancel := context.WithCancel(s.ctx)
	d.cancelChart = cancel

	s.emit(Update{Region: RegionChart, Chart: &ChartPanel{Symbol: d.record.Symbol, Range: rng, State: PanelLoading}})
	sel := d.chartSel
	s.fetches.Go(func() error {
		points, err := s.fetcher.Chart(ctx, sel.symbol, sel.rng)
		s.post(chartLoaded{sel: sel, points: points, err: err})
		return nil
	})
}

func (s *Session) applyQuote(ev quoteLoaded) {
	if s.detail == nil || ev.sel != s.detail.quoteSel {
		s.logger.Debug("discarding stale quote", "symbol", ev.sel.symbol)
		return
	}
	if ev.err != nil || ev.quote == nil {
		s.logger.Warn("quote unavailable", "symbol", ev.sel.symbol, "err", ev.err)
		s.emit(Update{Region: RegionQuote, Quote: &QuotePanel{Symbol: ev.sel.symbol, State: PanelUnavailable}})
		return
	}
	s.detail.quote = ev.quote
	s.emit(Update{Region: RegionQuote, Quote: NewQuotePanel(ev.sel.symbol, ev.quote)})
}

func (s *Session) applyChart(ev chartLoaded) {
	if s.detail == nil || ev.sel != s.detail.chartSel {
		s.logger.Debug("discarding stale chart", "symbol", ev.sel.symbol, "range", ev.sel.rng)
		return
	}
	if ev.err != nil {
		s.logger.Warn("chart unavailable", "symbol", ev.sel.symbol, "range", ev.sel.rng, "err", ev.err)
	}
	s.detail.chart = &models.ChartSession{Symbol: ev.sel.symbol, Range: ev.sel.rng, Points: ev.points}
	s.emitChart()
}

func (s *Session) emitChart() {
	cs := s.detail.chart
	if cs == nil {
		return
	}
	s.emit(Update{Region: RegionChart, Chart: NewChartPanel(cs, s.width)})
}

func (s *Session) closeDetail() {
	if s.detail == nil {
		return
	}
	s.detail.cancelChart()
	s.detail = nil
	s.emit(Update{Region: RegionDetail, Detail: &DetailInfo{Open: false}})
}

func (s *Session) pointer(x float64, leave bool) {
	tip := chart.Hidden()
	if !leave && s.detail != nil && s.detail.chart != nil {
		tip = chart.TooltipAt(s.detail.chart.Points, s.width, x)
	}
	s.emit(Update{Region: RegionTooltip, Tooltip: &tip})
}

func (s *Session) resize(width int) {
	if width <= 0 || width == s.width {
		return
	}
	s.width = width
	if s.detail != nil {
		s.emitChart()
	}
}

func (s *Session) reload() {
	s.emitStatus(true)
	s.fetches.Go(func() error {
		if !s.catalog.Reload(s.ctx) {
			s.post(reloadRejected{})
		}
		return nil
	})
}
