// Package gateway fetches equity lists, chart series and quote summaries
// from upstream market-data services. Every failure is absorbed: callers get
// a nil payload and render a "no data" state.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"nse-screener/candles"
	"nse-screener/models"
	"nse-screener/quote"
)

// Type selects the upstream resource.
type Type string

const (
	TypeChart      Type = "chart"
	TypeQuote      Type = "quote"
	TypeEquityList Type = "equitylist"
)

var (
	ErrUnknownType   = errors.New("gateway: type must be one of chart, quote, equitylist")
	ErrMissingSymbol = errors.New("gateway: symbol is required")
)

// minListBytes is the smallest body accepted as a real equity list.
const minListBytes = 500

// Request names one upstream fetch.
type Request struct {
	Type     Type
	Symbol   string
	Range    models.Range
	Interval string
}

// ChartRequest builds the request for a symbol's candles over rng.
func ChartRequest(symbol string, rng models.Range) Request {
	return Request{Type: TypeChart, Symbol: symbol, Range: rng, Interval: candles.Interval(rng)}
}

// Validate reports requests that can never succeed.
func (r Request) Validate() error {
	switch r.Type {
	case TypeChart, TypeQuote:
		if strings.TrimSpace(r.Symbol) == "" {
			return ErrMissingSymbol
		}
		return nil
	case TypeEquityList:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, r.Type)
	}
}

func (r Request) withDefaults() Request {
	if r.Range == "" {
		r.Range = models.DefaultRange
	}
	if r.Interval == "" {
		r.Interval = candles.Interval(r.Range)
	}
	return r
}

// Payload is an upstream body passed through untouched.
type Payload struct {
	Type        Type
	ContentType string
	Body        []byte
}

// Source performs the actual HTTP exchange.
type Source interface {
	Get(ctx context.Context, req Request) (*Payload, error)
}

// PriceQuoter supplies a price-only quote when the quote summary is empty.
type PriceQuoter interface {
	PriceQuote(ctx context.Context, symbol string) (*models.Quote, error)
}

// Options tunes a Gateway.
type Options struct {
	Timeout     time.Duration // chart and quote requests
	ListTimeout time.Duration // equity list requests
	Fallback    PriceQuoter   // nil disables the price-only fallback
	Logger      *slog.Logger
}

// Gateway is the single entry point to upstream data.
type Gateway struct {
	source      Source
	timeout     time.Duration
	listTimeout time.Duration
	fallback    PriceQuoter
	logger      *slog.Logger
}

func New(source Source, opts Options) *Gateway {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.ListTimeout <= 0 {
		opts.ListTimeout = 20 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Gateway{
		source:      source,
		timeout:     opts.Timeout,
		listTimeout: opts.ListTimeout,
		fallback:    opts.Fallback,
		logger:      opts.Logger.With("component", "gateway"),
	}
}

// Fetch performs req with a timeout. It never returns an error: invalid
// requests, network failures, timeouts and error statuses all yield nil.
func (g *Gateway) Fetch(ctx context.Context, req Request) *Payload {
	if err := req.Validate(); err != nil {
		g.logger.Warn("rejected request", "type", req.Type, "symbol", req.Symbol, "err", err)
		return nil
	}
	req = req.withDefaults()

	timeout := g.timeout
	if req.Type == TypeEquityList {
		timeout = g.listTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p, err := g.source.Get(ctx, req)
	if err != nil {
		g.logger.Warn("upstream fetch failed",
			"type", req.Type, "symbol", req.Symbol, "range", req.Range, "err", err)
		return nil
	}
	return p
}

// EquityList fetches the exchange's equity list. ok is false unless the body
// looks like a real CSV.
func (g *Gateway) EquityList(ctx context.Context) (text string, ok bool) {
	p := g.Fetch(ctx, Request{Type: TypeEquityList})
	if p == nil {
		return "", false
	}
	text = string(p.Body)
	if len(text) <= minListBytes || !strings.Contains(text, ",") {
		g.logger.Warn("equity list rejected", "bytes", len(text))
		return "", false
	}
	return text, true
}

// Chart fetches and normalizes candles for symbol over rng.
func (g *Gateway) Chart(ctx context.Context, symbol string, rng models.Range) ([]models.CandlePoint, error) {
	p := g.Fetch(ctx, ChartRequest(symbol, rng))
	if p == nil {
		return nil, candles.ErrNoData
	}
	return candles.Decode(p.Body)
}

// Quote fetches the quote summary for symbol, falling back to a price-only
// quote when the summary carries no price.
func (g *Gateway) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	var err error = quote.ErrNoData
	if p := g.Fetch(ctx, Request{Type: TypeQuote, Symbol: symbol}); p != nil {
		var q *models.Quote
		if q, err = quote.Decode(symbol, p.Body); err == nil {
			return q, nil
		}
	}
	if g.fallback == nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	q, ferr := g.fallback.PriceQuote(ctx, symbol)
	if ferr != nil {
		g.logger.Warn("price-only quote failed", "symbol", symbol, "err", ferr)
		return nil, err
	}
	return q, nil
}

// YahooSymbol maps an NSE symbol to its Yahoo Finance ticker.
func YahooSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if strings.HasSuffix(s, ".NS") {
		return s
	}
	return s + ".NS"
}
