package gateway

import (
	"context"
	"fmt"

	finance "github.com/piquette/finance-go"
	fquote "github.com/piquette/finance-go/quote"

	"nse-screener/models"
	"nse-screener/quote"
)

// FinanceGo supplies price-only quotes through the finance-go client.
type FinanceGo struct {
	get func(symbol string) (*finance.Quote, error)
}

func NewFinanceGo() *FinanceGo {
	return &FinanceGo{get: fquote.Get}
}

// PriceQuote fetches symbol's regular-market quote. The finance-go client
// takes no context, so cancellation only stops the wait.
func (f *FinanceGo) PriceQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	type result struct {
		q   *finance.Quote
		err error
	}
	ch := make(chan result, 1)
	go func() {
		q, err := f.get(YahooSymbol(symbol))
		ch <- result{q, err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r = <-ch:
	}
	if r.err != nil {
		return nil, fmt.Errorf("finance-go quote %s: %w", symbol, r.err)
	}
	if r.q == nil || r.q.RegularMarketPrice == 0 {
		return nil, quote.ErrNoData
	}
	return fromFinanceQuote(symbol, r.q), nil
}

func fromFinanceQuote(symbol string, fq *finance.Quote) *models.Quote {
	price := fq.RegularMarketPrice
	prev := fq.RegularMarketPreviousClose
	if prev == 0 {
		prev = price
	}
	return &models.Quote{
		Symbol:        symbol,
		Price:         price,
		PreviousClose: prev,
		Change:        price - prev,
		ChangePct:     (price - prev) / prev * 100,
		Open:          fq.RegularMarketOpen,
		DayHigh:       fq.RegularMarketDayHigh,
		DayLow:        fq.RegularMarketDayLow,
		Volume:        int64(fq.RegularMarketVolume),
		Fundamentals:  quote.BlankFundamentals(),
		Source:        quote.SourcePrice,
	}
}
