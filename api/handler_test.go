package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nse-screener/chart"
	"nse-screener/config"
	"nse-screener/gateway"
	"nse-screener/logging"
	"nse-screener/screener"
	"nse-screener/search"
	"nse-screener/session"
)

const equityCSV = `SYMBOL,NAME OF COMPANY, SERIES, DATE OF LISTING, PAID UP VALUE, MARKET LOT, ISIN NUMBER, FACE VALUE
TCS,Tata Consultancy Services Limited,EQ,25-AUG-2004,3618087518,1,INE467B01029,1
INFY,Infosys Limited,EQ,08-FEB-1995,20756061065,1,INE009A01021,5
SBIN,State Bank of India,EQ,01-MAR-1995,8925858310,1,INE062A01020,1
GOLDBEES,Nippon India ETF Gold BeES,BE,08-MAR-2007,100000000,1,INF204KB17I5,1
`

const quoteJSON = `{"quoteSummary":{"result":[{"price":{"regularMarketPrice":{"raw":3900},"regularMarketPreviousClose":{"raw":3850},"marketCap":{"raw":14200000000000}}}]}}`

func chartJSON(n int) []byte {
	ts := make([]int64, n)
	open := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	closes := make([]float64, n)
	vol := make([]int64, n)
	for i := range n {
		ts[i] = int64(1704067200 + i*86400)
		open[i] = 100 + float64(i)
		high[i] = 106 + float64(i)
		low[i] = 96 + float64(i)
		closes[i] = 103 + float64(i)
		vol[i] = int64(1000 * (i + 1))
	}
	payload := map[string]any{"chart": map[string]any{"result": []any{map[string]any{
		"timestamp": ts,
		"indicators": map[string]any{"quote": []any{map[string]any{
			"open": open, "high": high, "low": low, "close": closes, "volume": vol,
		}}},
	}}}}
	data, _ := json.Marshal(payload)
	return data
}

// fakeSource answers gateway requests from memory.
type fakeSource struct {
	candles int
	quote   bool
	delay   time.Duration
}

func (f fakeSource) Get(ctx context.Context, req gateway.Request) (*gateway.Payload, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	switch req.Type {
	case gateway.TypeChart:
		if f.candles == 0 {
			return nil, errors.New("chart down")
		}
		return &gateway.Payload{Type: req.Type, Body: chartJSON(f.candles)}, nil
	case gateway.TypeQuote:
		if !f.quote {
			return nil, errors.New("quote down")
		}
		return &gateway.Payload{Type: req.Type, Body: []byte(quoteJSON)}, nil
	default:
		return &gateway.Payload{Type: req.Type, Body: []byte(equityCSV + strings.Repeat(" ", 600))}, nil
	}
}

func newTestServer(t *testing.T, src fakeSource) (*httptest.Server, *Handler) {
	t.Helper()
	logger := logging.Discard()
	gw := gateway.New(src, gateway.Options{Timeout: time.Second, Logger: logger})

	catalog := session.NewCatalog(gw, session.CatalogOptions{Logger: logger})
	require.True(t, catalog.Reload(context.Background()))

	engine, err := search.NewBleveEngine(catalog.Records(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	static := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<html>screener</html>"), 0o644))

	h := NewHandler(engine, catalog, gw, Options{PageSize: 2, Logger: logger})
	srv := NewServer(h, config.ServerConfig{StaticDir: static, RequestTimeout: 5 * time.Second})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, h
}

func getJSON(t *testing.T, url string, data any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, resp.StatusCode < 400, env.Success)
	if data != nil && env.Data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, fakeSource{})
	var data map[string]any
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/health", &data))
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, "live", data["catalog"])
}

func TestSearch(t *testing.T) {
	ts, _ := newTestServer(t, fakeSource{})

	var results []map[string]any
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/search?q=tcs", &results))
	require.NotEmpty(t, results)
	assert.Equal(t, "TCS", results[0]["symbol"])

	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/search", nil))
}

func TestStocks(t *testing.T) {
	ts, _ := newTestServer(t, fakeSource{})

	var table screener.Table
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/stocks?series=EQ&sort=name&dir=desc", &table))
	assert.Equal(t, 4, table.Total)
	assert.Equal(t, 3, table.Matched)
	assert.Equal(t, 2, table.Pages)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "TCS", table.Rows[0].Symbol)
	assert.Equal(t, "SBIN", table.Rows[1].Symbol)

	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/stocks?q=india&size=10", &table))
	assert.Equal(t, 2, table.Matched)
	assert.Equal(t, 1, table.Pages)

	for _, page := range []string{"7", "0", "-1"} {
		assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/stocks?page="+page, nil), "page=%s", page)
	}
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/stocks?page=2", &table))
	assert.Equal(t, 2, table.View.Page)
}

func TestExport(t *testing.T) {
	ts, _ := newTestServer(t, fakeSource{})

	resp, err := http.Get(ts.URL + "/api/stocks/export?series=BE")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "nse_equity_be.csv")
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Symbol,Name,Series,Listed Date,Face Value,ISIN,Market Lot,Paid-Up Capital", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "GOLDBEES,"))
}

func TestOverviewAndReload(t *testing.T) {
	ts, _ := newTestServer(t, fakeSource{})

	var info session.Info
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/overview", &info))
	assert.Equal(t, 4, info.Overview.Total)
	assert.Equal(t, 3, info.Overview.EQ)
	assert.Equal(t, 1, info.Overview.BE)

	resp, err := http.Post(ts.URL+"/api/reload", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	var env struct {
		Data struct {
			Started bool         `json:"started"`
			Catalog session.Info `json:"catalog"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.True(t, env.Data.Started)
	assert.Equal(t, session.StatusLive, env.Data.Catalog.Status)
}

func TestGetStock(t *testing.T) {
	ts, _ := newTestServer(t, fakeSource{candles: 30, quote: true})

	var detail StockDetail
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/stock/tcs?range=3mo", &detail))
	assert.Equal(t, "TCS", detail.Record.Symbol)
	assert.Equal(t, session.PanelOK, detail.Quote.State)
	assert.Equal(t, "₹3,900", detail.Quote.Price)
	assert.Equal(t, "₹14.20L Cr", detail.Quote.MarketCap)
	assert.Equal(t, session.PanelOK, detail.Chart.State)
	assert.Equal(t, "3mo", string(detail.Chart.Range))
	assert.Equal(t, "Yahoo Finance · 30 candles", detail.Chart.Status)

	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/stock/NOPE", nil))
}

func TestGetStockPanelsFailIndependently(t *testing.T) {
	ts, _ := newTestServer(t, fakeSource{candles: 30})

	var detail StockDetail
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/stock/INFY", &detail))
	assert.Equal(t, session.PanelUnavailable, detail.Quote.State)
	assert.Equal(t, session.PanelOK, detail.Chart.State)
}

func TestChart(t *testing.T) {
	ts, _ := newTestServer(t, fakeSource{candles: 25})

	resp, err := http.Get(ts.URL + "/api/chart/TCS?format=svg&width=640")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(string(body), "<svg"))
	assert.Contains(t, string(body), "<polyline")

	var panel session.ChartPanel
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/chart/TCS?width=640", &panel))
	assert.Equal(t, 640.0, panel.Scene.Width)
	assert.True(t, panel.Scene.Available)
}

func TestChartSinglePointIsUnavailable(t *testing.T) {
	ts, _ := newTestServer(t, fakeSource{candles: 1})

	var panel session.ChartPanel
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/chart/TCS?range=1mo", &panel))
	assert.Equal(t, session.PanelUnavailable, panel.State)
	assert.Equal(t, chart.UnavailableMsg, panel.Scene.Message)
}

func TestTooltip(t *testing.T) {
	ts, _ := newTestServer(t, fakeSource{candles: 10})

	var tip chart.Tooltip
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/chart/TCS/tooltip?x=400", &tip))
	assert.True(t, tip.Visible)
	assert.NotEmpty(t, tip.Close)

	tip = chart.Tooltip{}
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/chart/TCS/tooltip?x=-5", &tip))
	assert.False(t, tip.Visible)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/chart/TCS/tooltip?x=left", nil))
}

func TestYahooPassThrough(t *testing.T) {
	ts, _ := newTestServer(t, fakeSource{candles: 5})

	resp, err := http.Get(ts.URL + "/api/yahoo?type=chart&symbol=TCS&range=1mo&interval=1d")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	resp, err = http.Get(ts.URL + "/api/yahoo?type=news&symbol=TCS")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStaticNoCache(t *testing.T) {
	ts, _ := newTestServer(t, fakeSource{})

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "screener")
	assert.Equal(t, "no-cache, no-store, must-revalidate", resp.Header.Get("Cache-Control"))
}

func TestClientMessageEvent(t *testing.T) {
	tests := []struct {
		msg  ClientMessage
		want session.Event
	}{
		{ClientMessage{Type: "series", Series: "EQ"}, session.SetSeries{Series: "EQ"}},
		{ClientMessage{Type: "sort", Key: "fv"}, session.ToggleSort{Key: screener.SortFaceValue}},
		{ClientMessage{Type: "range", Range: "5y"}, session.SetRange{Range: "5y"}},
		{ClientMessage{Type: "range", Range: "10y"}, session.SetRange{Range: "1mo"}},
		{ClientMessage{Type: "pointer", X: 12, Leave: true}, session.Pointer{X: 12, Leave: true}},
	}
	for _, tt := range tests {
		ev, ok := tt.msg.Event()
		require.True(t, ok, tt.msg.Type)
		assert.Equal(t, tt.want, ev)
	}

	_, ok := ClientMessage{Type: "subscribe"}.Event()
	assert.False(t, ok)
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(session.Update) bool) session.Update {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var u session.Update
		require.NoError(t, conn.ReadJSON(&u))
		if match(u) {
			return u
		}
	}
}

func TestWebSocketSession(t *testing.T) {
	ts, h := newTestServer(t, fakeSource{candles: 30, quote: true})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	u := readUntil(t, conn, func(u session.Update) bool { return u.Region == session.RegionTable })
	assert.Equal(t, 4, u.Table.Total)
	assert.NotEmpty(t, u.Session)
	assert.Eventually(t, func() bool { return h.hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "query", Query: "tcs"}))
	u = readUntil(t, conn, func(u session.Update) bool { return u.Region == session.RegionTable })
	assert.Equal(t, 1, u.Table.Matched)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "open", Symbol: "TCS"}))
	u = readUntil(t, conn, func(u session.Update) bool {
		return u.Region == session.RegionChart && u.Chart.State == session.PanelOK
	})
	assert.Equal(t, fmt.Sprintf("Yahoo Finance · %d candles", 30), u.Chart.Status)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "pointer", X: 300}))
	u = readUntil(t, conn, func(u session.Update) bool { return u.Region == session.RegionTooltip })
	assert.True(t, u.Tooltip.Visible)

	conn.Close()
	assert.Eventually(t, func() bool { return h.hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestAccessLogUsesConfiguredLogger(t *testing.T) {
	catalog := session.NewCatalog(nil, session.CatalogOptions{Logger: logging.Discard()})

	serve := func(level string) string {
		var buf bytes.Buffer
		h := NewHandler(nil, catalog, nil, Options{Logger: logging.NewWriter(&buf, level, "json")})
		router := NewServer(h, config.ServerConfig{}).Router()
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		return buf.String()
	}

	out := serve("info")
	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &line))
	assert.Equal(t, "request", line["msg"])
	assert.Equal(t, "GET", line["method"])
	assert.Equal(t, "/health", line["path"])
	assert.EqualValues(t, 200, line["status"])
	assert.NotEmpty(t, line["request_id"])

	assert.Empty(t, serve("warn"))
}
