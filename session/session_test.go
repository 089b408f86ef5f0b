package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nse-screener/candles"
	"nse-screener/logging"
	"nse-screener/models"
)

const equityCSV = `SYMBOL,NAME OF COMPANY, SERIES, DATE OF LISTING, PAID UP VALUE, MARKET LOT, ISIN NUMBER, FACE VALUE
TCS,Tata Consultancy Services Limited,EQ,25-AUG-2004,3618087518,1,INE467B01029,1
INFY,Infosys Limited,EQ,08-FEB-1995,20756061065,1,INE009A01021,5
SBIN,State Bank of India,EQ,01-MAR-1995,8925858310,1,INE062A01020,1
`

type staticLister struct {
	text string
	ok   bool
}

func (l staticLister) EquityList(context.Context) (string, bool) { return l.text, l.ok }

// gatedLister blocks until release is closed.
type gatedLister struct {
	entered chan struct{}
	release chan struct{}
}

func (l *gatedLister) EquityList(context.Context) (string, bool) {
	l.entered <- struct{}{}
	<-l.release
	return equityCSV, true
}

func newCatalog(t *testing.T, lister EquityLister, fallback string) *Catalog {
	t.Helper()
	return NewCatalog(lister, CatalogOptions{FallbackCSV: fallback, Logger: logging.Discard()})
}

func loadedCatalog(t *testing.T) *Catalog {
	t.Helper()
	c := newCatalog(t, staticLister{text: equityCSV, ok: true}, "")
	require.True(t, c.Reload(context.Background()))
	return c
}

func candleSeries(n int) []models.CandlePoint {
	points := make([]models.CandlePoint, n)
	for i := range points {
		ts := int64(1704067200 + i*86400)
		points[i] = models.CandlePoint{
			Timestamp: ts,
			Date:      time.Unix(ts, 0).In(models.IST),
			Open:      100 + float64(i),
			High:      105 + float64(i),
			Low:       95 + float64(i),
			Close:     102 + float64(i),
			Volume:    int64(1000 * (i + 1)),
		}
	}
	return points
}

// fakeFetcher serves canned data. A range with a gate blocks until the gate
// is closed, ignoring ctx the way a slow upstream would.
type fakeFetcher struct {
	mu       sync.Mutex
	charts   map[models.Range][]models.CandlePoint
	gates    map[models.Range]chan struct{}
	quote    *models.Quote
	quoteErr error
}

func (f *fakeFetcher) Chart(_ context.Context, _ string, rng models.Range) ([]models.CandlePoint, error) {
	f.mu.Lock()
	gate := f.gates[rng]
	points := f.charts[rng]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if len(points) < candles.MinPoints {
		return nil, candles.ErrInsufficientData
	}
	return points, nil
}

func (f *fakeFetcher) Quote(context.Context, string) (*models.Quote, error) {
	return f.quote, f.quoteErr
}

type recorder struct {
	ch chan Update
}

func newRecorder() *recorder { return &recorder{ch: make(chan Update, 512)} }

func (r *recorder) Emit(u Update) { r.ch <- u }

func (r *recorder) waitFor(t *testing.T, match func(Update) bool) Update {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case u := <-r.ch:
			if match(u) {
				return u
			}
		case <-timeout:
			t.Fatal("timed out waiting for update")
			return Update{}
		}
	}
}

func (r *recorder) drain() []Update {
	var out []Update
	for {
		select {
		case u := <-r.ch:
			out = append(out, u)
		default:
			return out
		}
	}
}

func region(r Region) func(Update) bool {
	return func(u Update) bool { return u.Region == r }
}

func chartState(rng models.Range, state PanelState) func(Update) bool {
	return func(u Update) bool {
		return u.Region == RegionChart && u.Chart.Range == rng && u.Chart.State == state
	}
}

// start runs a session until the test ends.
func start(t *testing.T, c *Catalog, f Fetcher) (*Session, *recorder, func()) {
	t.Helper()
	rec := newRecorder()
	s := New(c, f, rec, Options{PageSize: 2, Logger: logging.Discard()})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	stop := func() {
		cancel()
		<-done
	}
	t.Cleanup(stop)
	return s, rec, stop
}

func TestCatalogReloadLive(t *testing.T) {
	c := loadedCatalog(t)

	info := c.Info()
	assert.Equal(t, StatusLive, info.Status)
	assert.Equal(t, 3, info.Count)
	assert.Equal(t, 3, info.Overview.EQ)
	assert.Equal(t, []string{"EQ"}, info.Series)
	assert.False(t, info.LoadedAt.IsZero())
	assert.Empty(t, info.Error)
}

func TestCatalogFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nse_equity.csv")
	require.NoError(t, os.WriteFile(path, []byte(equityCSV), 0o644))

	c := newCatalog(t, staticLister{ok: false}, path)
	require.True(t, c.Reload(context.Background()))
	assert.Equal(t, StatusFallback, c.Status())
	assert.Len(t, c.Records(), 3)

	// A list without a symbol column also falls back.
	c = newCatalog(t, staticLister{text: "A,B\n1,2\n", ok: true}, path)
	require.True(t, c.Reload(context.Background()))
	assert.Equal(t, StatusFallback, c.Status())
}

func TestCatalogError(t *testing.T) {
	c := newCatalog(t, staticLister{ok: false}, "")
	require.True(t, c.Reload(context.Background()))
	assert.Equal(t, StatusError, c.Status())
	assert.Empty(t, c.Records())
	assert.NotEmpty(t, c.Info().Error)

	c = newCatalog(t, staticLister{ok: false}, filepath.Join(t.TempDir(), "missing.csv"))
	require.True(t, c.Reload(context.Background()))
	assert.Equal(t, StatusError, c.Status())
}

func TestCatalogReloadInFlightIsNoop(t *testing.T) {
	lister := &gatedLister{entered: make(chan struct{}), release: make(chan struct{})}
	c := newCatalog(t, lister, "")

	first := make(chan bool)
	go func() { first <- c.Reload(context.Background()) }()
	<-lister.entered

	assert.True(t, c.Reloading())
	assert.False(t, c.Reload(context.Background()))

	close(lister.release)
	assert.True(t, <-first)
	assert.False(t, c.Reloading())
	assert.Len(t, c.Records(), 3)
}

func TestCatalogSubscribe(t *testing.T) {
	c := newCatalog(t, staticLister{text: equityCSV, ok: true}, "")

	var got []int
	cancel := c.Subscribe(func(records []models.EquityRecord) { got = append(got, len(records)) })
	c.Reload(context.Background())
	cancel()
	c.Reload(context.Background())

	assert.Equal(t, []int{3}, got)
}

func TestCatalogStartRefresh(t *testing.T) {
	c := loadedCatalog(t)
	assert.NoError(t, c.StartRefresh(context.Background(), ""))
	assert.Error(t, c.StartRefresh(context.Background(), "not a cron spec"))

	require.NoError(t, c.StartRefresh(context.Background(), "30 18 * * 1-5"))
	c.Stop()
}

func TestSessionInitialTableAndFilters(t *testing.T) {
	s, rec, _ := start(t, loadedCatalog(t), &fakeFetcher{})

	u := rec.waitFor(t, region(RegionTable))
	assert.Equal(t, 3, u.Table.Total)
	assert.Equal(t, 2, u.Table.Pages)
	assert.Len(t, u.Table.Rows, 2)
	assert.Equal(t, StatusLive, rec.waitFor(t, region(RegionStatus)).Status.Catalog.Status)

	s.Post(GoPage{Page: 2})
	u = rec.waitFor(t, region(RegionTable))
	assert.Equal(t, 2, u.Table.View.Page)

	s.Post(SetQuery{Query: "tcs"})
	u = rec.waitFor(t, region(RegionTable))
	assert.Equal(t, 1, u.Table.View.Page)
	assert.Equal(t, 1, u.Table.Matched)
	assert.Equal(t, "TCS", u.Table.Rows[0].Symbol)
	require.NotNil(t, u.Table.Rows[0].SymbolMatch)
}

func TestSessionOutOfRangePageEmitsNothing(t *testing.T) {
	s, rec, _ := start(t, loadedCatalog(t), &fakeFetcher{})
	rec.waitFor(t, region(RegionStatus))

	s.Post(GoPage{Page: 9})
	s.Post(SetPageSize{Size: 10})
	u := rec.waitFor(t, region(RegionTable))
	assert.Equal(t, 10, u.Table.View.PageSize)
	assert.Equal(t, 1, u.Table.Pages)
}

func TestSessionOpenFetchesQuoteAndChart(t *testing.T) {
	f := &fakeFetcher{
		charts: map[models.Range][]models.CandlePoint{models.Range1M: candleSeries(30)},
		quote:  &models.Quote{Symbol: "TCS", Price: 3900, PreviousClose: 3850, Change: 50, ChangePct: 1.3, Volume: 150000},
	}
	s, rec, _ := start(t, loadedCatalog(t), f)

	s.Post(Open{Symbol: "TCS"})
	d := rec.waitFor(t, region(RegionDetail)).Detail
	assert.True(t, d.Open)
	assert.Equal(t, "Tata Consultancy Services Limited", d.Record.Name)
	assert.Equal(t, "25 Aug 2004", d.Listed)
	assert.Equal(t, models.Range1M, d.Range)

	q := rec.waitFor(t, func(u Update) bool { return u.Region == RegionQuote && u.Quote.State == PanelOK }).Quote
	assert.Equal(t, "₹3,900", q.Price)
	assert.Equal(t, "+50.00 (+1.30%)", q.Change)
	assert.Contains(t, q.Stats, "Vol 1.50L")

	c := rec.waitFor(t, chartState(models.Range1M, PanelOK)).Chart
	assert.Equal(t, "Yahoo Finance · 30 candles", c.Status)
	assert.True(t, c.Scene.Available)

	s.Post(Pointer{X: 400})
	tip := rec.waitFor(t, region(RegionTooltip)).Tooltip
	assert.True(t, tip.Visible)

	s.Post(Pointer{Leave: true})
	tip = rec.waitFor(t, region(RegionTooltip)).Tooltip
	assert.False(t, tip.Visible)

	s.Post(Resize{Width: 1200})
	c = rec.waitFor(t, chartState(models.Range1M, PanelOK)).Chart
	assert.Equal(t, 1200.0, c.Scene.Width)

	s.Post(Close{})
	assert.False(t, rec.waitFor(t, region(RegionDetail)).Detail.Open)
}

func TestSessionSinglePointChartIsUnavailable(t *testing.T) {
	f := &fakeFetcher{
		charts:   map[models.Range][]models.CandlePoint{models.Range1M: candleSeries(1)},
		quoteErr: errors.New("boom"),
	}
	s, rec, _ := start(t, loadedCatalog(t), f)

	s.Post(Open{Symbol: "INFY"})
	c := rec.waitFor(t, chartState(models.Range1M, PanelUnavailable)).Chart
	assert.False(t, c.Scene.Available)
	assert.NotEmpty(t, c.Scene.Message)

	rec.waitFor(t, func(u Update) bool { return u.Region == RegionQuote && u.Quote.State == PanelUnavailable })
}

func TestSessionDiscardsLateRangeResult(t *testing.T) {
	oneMonth := make(chan struct{})
	oneYear := make(chan struct{})
	f := &fakeFetcher{
		charts: map[models.Range][]models.CandlePoint{
			models.Range1M: candleSeries(22),
			models.Range1Y: candleSeries(52),
		},
		gates: map[models.Range]chan struct{}{models.Range1M: oneMonth, models.Range1Y: oneYear},
		quote: &models.Quote{Symbol: "TCS", Price: 1},
	}
	s, rec, stop := start(t, loadedCatalog(t), f)

	s.Post(Open{Symbol: "TCS"})
	rec.waitFor(t, chartState(models.Range1M, PanelLoading))
	s.Post(SetRange{Range: models.Range1Y})
	rec.waitFor(t, chartState(models.Range1Y, PanelLoading))

	close(oneYear)
	c := rec.waitFor(t, chartState(models.Range1Y, PanelOK)).Chart
	assert.Equal(t, "Yahoo Finance · 52 candles", c.Status)

	close(oneMonth)
	stop()
	for _, u := range rec.drain() {
		if u.Region == RegionChart {
			assert.NotEqual(t, models.Range1M, u.Chart.Range, "stale 1mo result was rendered")
		}
	}
}

// TestStaleChartArrivingLastIsDiscarded drives the loop by hand so the stale result
// is guaranteed to arrive after the current one.
func TestStaleChartArrivingLastIsDiscarded(t *testing.T) {
	f := &fakeFetcher{
		charts: map[models.Range][]models.CandlePoint{
			models.Range1M: candleSeries(22),
			models.Range1Y: candleSeries(52),
		},
		quote: &models.Quote{Symbol: "TCS", Price: 1},
	}
	rec := newRecorder()
	s := New(loadedCatalog(t), f, rec, Options{Logger: logging.Discard()})
	s.ctx = context.Background()

	s.open("TCS")
	s.loadChart(models.Range1Y)
	s.fetches.Wait()

	var charts []chartLoaded
	for len(s.events) > 0 {
		switch ev := (<-s.events).(type) {
		case chartLoaded:
			charts = append(charts, ev)
		case quoteLoaded:
			ev.apply(s)
		}
	}
	require.Len(t, charts, 2)
	if charts[0].sel.rng == models.Range1M {
		charts[0], charts[1] = charts[1], charts[0]
	}
	rec.drain()

	charts[0].apply(s) // 1y, current
	charts[1].apply(s) // 1mo, stale

	var rendered []models.Range
	for _, u := range rec.drain() {
		if u.Region == RegionChart {
			rendered = append(rendered, u.Chart.Range)
		}
	}
	assert.Equal(t, []models.Range{models.Range1Y}, rendered)
	assert.Equal(t, models.Range1Y, s.detail.chart.Range)
	assert.Len(t, s.detail.chart.Points, 52)
}

func TestSessionQuoteAfterCloseIsDiscarded(t *testing.T) {
	rec := newRecorder()
	f := &fakeFetcher{quote: &models.Quote{Symbol: "TCS", Price: 1}}
	s := New(loadedCatalog(t), f, rec, Options{Logger: logging.Discard()})
	s.ctx = context.Background()

	s.open("TCS")
	s.fetches.Wait()
	s.closeDetail()
	rec.drain()

	for len(s.events) > 0 {
		(<-s.events).apply(s)
	}
	assert.Empty(t, rec.drain())
}

func TestSessionFollowsCatalogReload(t *testing.T) {
	c := newCatalog(t, staticLister{ok: false}, "")
	require.True(t, c.Reload(context.Background()))

	s, rec, _ := start(t, c, &fakeFetcher{})
	u := rec.waitFor(t, region(RegionTable))
	assert.Zero(t, u.Table.Total)
	assert.Equal(t, StatusError, rec.waitFor(t, region(RegionStatus)).Status.Catalog.Status)

	c.source = staticLister{text: equityCSV, ok: true}
	s.Post(Reload{})
	assert.True(t, rec.waitFor(t, region(RegionStatus)).Status.Reloading)

	u = rec.waitFor(t, region(RegionTable))
	assert.Equal(t, 3, u.Table.Total)
	assert.Equal(t, StatusLive, rec.waitFor(t, region(RegionStatus)).Status.Catalog.Status)
}

func TestSessionSeesReloadBeforeRun(t *testing.T) {
	first := strings.Join(strings.Split(equityCSV, "\n")[:2], "\n")
	c := newCatalog(t, staticLister{text: first, ok: true}, "")
	require.True(t, c.Reload(context.Background()))
	require.Len(t, c.Records(), 1)

	rec := newRecorder()
	s := New(c, &fakeFetcher{}, rec, Options{PageSize: 2, Logger: logging.Discard()})

	c.source = staticLister{text: equityCSV, ok: true}
	require.True(t, c.Reload(context.Background()))
	require.Len(t, c.Records(), 3)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	u := rec.waitFor(t, region(RegionTable))
	assert.Equal(t, 3, u.Table.Total)
}

func TestPostAfterStop(t *testing.T) {
	s, rec, stop := start(t, loadedCatalog(t), &fakeFetcher{})
	rec.waitFor(t, region(RegionStatus))
	stop()

	for i := 0; i < eventBuffer+1; i++ {
		if !s.Post(Close{}) {
			return
		}
	}
	t.Fatal("Post kept accepting events after the session stopped")
}
