package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"nse-screener/chart"
	"nse-screener/gateway"
	"nse-screener/loader"
	"nse-screener/models"
	"nse-screener/screener"
	"nse-screener/search"
	"nse-screener/session"
)

// APIResponse is the envelope every JSON endpoint answers with.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Options tunes a Handler. Zero fields take defaults.
type Options struct {
	PageSize   int
	ChartWidth int
	Logger     *slog.Logger
}

type Handler struct {
	Engine  search.SearchEngine
	Catalog *session.Catalog
	Gateway *gateway.Gateway

	pageSize   int
	chartWidth int
	logger     *slog.Logger
	hub        *Hub
}

func NewHandler(engine search.SearchEngine, catalog *session.Catalog, gw *gateway.Gateway, opts Options) *Handler {
	if opts.PageSize <= 0 {
		opts.PageSize = screener.DefaultPageSize
	}
	if opts.ChartWidth <= 0 {
		opts.ChartWidth = chart.DefaultWidth
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Handler{
		Engine:     engine,
		Catalog:    catalog,
		Gateway:    gw,
		pageSize:   opts.PageSize,
		chartWidth: opts.ChartWidth,
		logger:     opts.Logger.With("component", "api"),
		hub:        NewHub(),
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: map[string]any{
		"status":   "ok",
		"catalog":  h.Catalog.Status(),
		"sessions": h.hub.Len(),
	}})
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter 'q'")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	results := h.Engine.Search(query, limit)
	if results == nil {
		results = []models.EquityRecord{}
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: results})
}

// viewFromQuery reads a table view from series, q, sort, dir, page and size.
func (h *Handler) viewFromQuery(q url.Values) screener.ViewState {
	v := screener.DefaultView(h.pageSize)
	if s := q.Get("series"); s != "" {
		v.Series = s
	}
	v.Query = q.Get("q")
	if s := q.Get("sort"); s != "" {
		v.SortKey = screener.ParseSortKey(s)
	}
	v.SortDir = screener.ParseDirection(q.Get("dir"))
	if p, err := strconv.Atoi(q.Get("page")); err == nil {
		v.Page = p
	}
	if n, err := strconv.Atoi(q.Get("size")); err == nil && n > 0 {
		v.PageSize = n
	}
	return v
}

// Stocks serves one page of the filtered, sorted equity list.
func (h *Handler) Stocks(w http.ResponseWriter, r *http.Request) {
	v := h.viewFromQuery(r.URL.Query())
	records := h.Catalog.Records()
	filtered := screener.Apply(records, v)

	if pages := max(screener.PageCount(len(filtered), v.PageSize), 1); v.Page < 1 || v.Page > pages {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("page %d out of range 1..%d", v.Page, pages))
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: screener.BuildTable(records, filtered, v)})
}

// Export streams the whole filtered view as CSV.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	v := h.viewFromQuery(r.URL.Query())
	filtered := screener.Apply(h.Catalog.Records(), v)

	name := "nse_equity.csv"
	if v.Series != "" && v.Series != screener.AllSeries {
		name = "nse_equity_" + strings.ToLower(v.Series) + ".csv"
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if err := loader.WriteEquityCSV(w, filtered); err != nil {
		h.logger.Warn("export failed", "err", err)
	}
}

func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: h.Catalog.Info()})
}

// Reload refetches the equity list. A reload already in flight is left
// alone and reported as not started.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	started := h.Catalog.Reload(r.Context())
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: map[string]any{
		"started": started,
		"catalog": h.Catalog.Info(),
	}})
}

func (h *Handler) width(r *http.Request) int {
	if n, err := strconv.Atoi(r.URL.Query().Get("width")); err == nil && n > 0 {
		return n
	}
	return h.chartWidth
}

func symbolParam(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "symbol")))
}

func (h *Handler) chartSession(ctx context.Context, symbol string, rng models.Range) *models.ChartSession {
	points, err := h.Gateway.Chart(ctx, symbol, rng)
	if err != nil {
		h.logger.Warn("chart unavailable", "symbol", symbol, "range", rng, "err", err)
	}
	return &models.ChartSession{Symbol: symbol, Range: rng, Points: points}
}

// StockDetail is the detail view: the record, its quote panel and its chart,
// each independently ok or unavailable.
type StockDetail struct {
	Record *models.EquityRecord `json:"record"`
	Quote  *session.QuotePanel  `json:"quote"`
	Chart  *session.ChartPanel  `json:"chart"`
}

// GetStock fetches the quote and the chart concurrently.
func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	stock := h.Engine.GetBySymbol(symbol)
	if stock == nil {
		writeError(w, http.StatusNotFound, "stock not found")
		return
	}
	rng := models.ParseRange(r.URL.Query().Get("range"))
	width := h.width(r)

	detail := StockDetail{Record: stock}
	g, gctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		q, err := h.Gateway.Quote(gctx, stock.Symbol)
		if err != nil {
			h.logger.Warn("quote unavailable", "symbol", stock.Symbol, "err", err)
			detail.Quote = &session.QuotePanel{Symbol: stock.Symbol, State: session.PanelUnavailable}
			return nil
		}
		detail.Quote = session.NewQuotePanel(stock.Symbol, q)
		return nil
	})
	g.Go(func() error {
		detail.Chart = session.NewChartPanel(h.chartSession(gctx, stock.Symbol, rng), width)
		return nil
	})
	_ = g.Wait()

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: detail})
}

// Chart renders the candle chart as a scene (default) or as SVG.
func (h *Handler) Chart(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	rng := models.ParseRange(r.URL.Query().Get("range"))
	panel := session.NewChartPanel(h.chartSession(r.Context(), symbol, rng), h.width(r))

	if r.URL.Query().Get("format") == "svg" {
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "s-maxage=60")
		w.Write([]byte(chart.EncodeSVG(*panel.Scene)))
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: panel})
}

// Tooltip looks up the candle under pointer offset x.
func (h *Handler) Tooltip(w http.ResponseWriter, r *http.Request) {
	x, err := strconv.ParseFloat(r.URL.Query().Get("x"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "x must be a number")
		return
	}
	symbol := symbolParam(r)
	rng := models.ParseRange(r.URL.Query().Get("range"))
	cs := h.chartSession(r.Context(), symbol, rng)

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: chart.TooltipAt(cs.Points, h.width(r), x)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		slog.Warn("failed to write JSON response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{Success: false, Error: msg})
}
