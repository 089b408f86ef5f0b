// Package search resolves free text to listed equities for autocomplete and
// symbol lookup. It ranks matches, unlike the screener's plain substring
// filter.
package search

import (
	"slices"
	"strings"
	"sync"

	"nse-screener/models"
)

// DefaultLimit caps the number of results returned by Search.
const DefaultLimit = 20

type SearchEngine interface {
	Search(query string, limit int) []models.EquityRecord
	GetBySymbol(symbol string) *models.EquityRecord
	Rebuild(records []models.EquityRecord) error
}

// InMemoryEngine ranks by exact symbol, then symbol prefix, then name
// substring. It serves when no index is available.
type InMemoryEngine struct {
	mu     sync.RWMutex
	stocks []models.EquityRecord
}

func NewInMemoryEngine(stocks []models.EquityRecord) *InMemoryEngine {
	return &InMemoryEngine{stocks: stocks}
}

func (e *InMemoryEngine) Rebuild(records []models.EquityRecord) error {
	e.mu.Lock()
	e.stocks = records
	e.mu.Unlock()
	return nil
}

func (e *InMemoryEngine) Search(query string, limit int) []models.EquityRecord {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	type ranked struct {
		stock models.EquityRecord
		rank  int
	}
	var hits []ranked

	e.mu.RLock()
	for _, stock := range e.stocks {
		sym := strings.ToLower(stock.Symbol)
		switch {
		case sym == q:
			hits = append(hits, ranked{stock, 0})
		case strings.HasPrefix(sym, q):
			hits = append(hits, ranked{stock, 1})
		case strings.Contains(strings.ToLower(stock.Name), q):
			hits = append(hits, ranked{stock, 2})
		}
	}
	e.mu.RUnlock()

	slices.SortStableFunc(hits, func(a, b ranked) int { return a.rank - b.rank })

	results := make([]models.EquityRecord, 0, min(limit, len(hits)))
	for _, h := range hits[:min(limit, len(hits))] {
		results = append(results, h.stock)
	}
	return results
}

func (e *InMemoryEngine) GetBySymbol(symbol string) *models.EquityRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, stock := range e.stocks {
		if strings.EqualFold(stock.Symbol, symbol) {
			return &stock
		}
	}
	return nil
}
