package search

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"nse-screener/models"
)

// BleveEngine keeps an in-memory bleve index over the equity list. Rebuild
// swaps in a fresh index so searches never see a half-built one.
type BleveEngine struct {
	mu       sync.RWMutex
	index    bleve.Index
	byID     map[string]models.EquityRecord
	bySymbol map[string]models.EquityRecord
	logger   *slog.Logger
}

func NewBleveEngine(stocks []models.EquityRecord, logger *slog.Logger) (*BleveEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	e := &BleveEngine{logger: logger.With("component", "search")}
	if err := e.Rebuild(stocks); err != nil {
		return nil, err
	}
	return e, nil
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	stockMapping := bleve.NewDocumentMapping()

	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Store = false
	textFieldMapping.Index = true
	stockMapping.AddFieldMappingsAt("symbol", textFieldMapping)
	stockMapping.AddFieldMappingsAt("name", textFieldMapping)
	stockMapping.AddFieldMappingsAt("isin", textFieldMapping)

	seriesFieldMapping := bleve.NewKeywordFieldMapping()
	stockMapping.AddFieldMappingsAt("series", seriesFieldMapping)

	indexMapping.AddDocumentMapping("_default", stockMapping)
	return indexMapping
}

// docID keeps a symbol listed under two series as two documents.
func docID(s models.EquityRecord) string {
	return fmt.Sprintf("%s-%s", s.Symbol, s.Series)
}

// Rebuild indexes records into a new in-memory index and replaces the
// current one.
func (e *BleveEngine) Rebuild(records []models.EquityRecord) error {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	byID := make(map[string]models.EquityRecord, len(records))
	bySymbol := make(map[string]models.EquityRecord, len(records))
	batch := index.NewBatch()
	for _, stock := range records {
		id := docID(stock)
		byID[id] = stock
		if _, seen := bySymbol[strings.ToUpper(stock.Symbol)]; !seen {
			bySymbol[strings.ToUpper(stock.Symbol)] = stock
		}
		doc := map[string]interface{}{
			"symbol": stock.Symbol,
			"name":   stock.Name,
			"isin":   stock.ISIN,
			"series": stock.Series,
		}
		if err := batch.Index(id, doc); err != nil {
			index.Close()
			return fmt.Errorf("failed to add to batch: %w", err)
		}
	}
	if err := index.Batch(batch); err != nil {
		index.Close()
		return fmt.Errorf("failed to execute batch: %w", err)
	}

	e.mu.Lock()
	old := e.index
	e.index, e.byID, e.bySymbol = index, byID, bySymbol
	e.mu.Unlock()

	if old != nil {
		old.Close()
	}
	e.logger.Debug("search index rebuilt", "documents", len(byID))
	return nil
}

// Search ranks exact symbol matches first, then symbol prefixes, then name
// matches, then substrings anywhere in symbol or name.
func (e *BleveEngine) Search(query string, limit int) []models.EquityRecord {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	exactQuery := bleve.NewTermQuery(q)
	exactQuery.SetField("symbol")
	exactQuery.SetBoost(10.0)

	prefixQuery := bleve.NewPrefixQuery(q)
	prefixQuery.SetField("symbol")
	prefixQuery.SetBoost(5.0)

	nameMatchQuery := bleve.NewMatchQuery(query)
	nameMatchQuery.SetField("name")
	nameMatchQuery.SetBoost(3.0)

	wildcardSymbol := bleve.NewWildcardQuery("*" + q + "*")
	wildcardSymbol.SetField("symbol")
	wildcardSymbol.SetBoost(2.0)

	wildcardName := bleve.NewWildcardQuery("*" + q + "*")
	wildcardName.SetField("name")
	wildcardName.SetBoost(1.5)

	isinQuery := bleve.NewTermQuery(q)
	isinQuery.SetField("isin")
	isinQuery.SetBoost(1.0)

	searchQuery := bleve.NewDisjunctionQuery(
		exactQuery,
		prefixQuery,
		nameMatchQuery,
		wildcardSymbol,
		wildcardName,
		isinQuery,
	)

	searchRequest := bleve.NewSearchRequest(searchQuery)
	searchRequest.Size = limit

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.index == nil {
		return nil
	}

	searchResults, err := e.index.Search(searchRequest)
	if err != nil {
		e.logger.Warn("search failed", "query", query, "err", err)
		return nil
	}

	results := make([]models.EquityRecord, 0, len(searchResults.Hits))
	for _, hit := range searchResults.Hits {
		if stock, ok := e.byID[hit.ID]; ok {
			results = append(results, stock)
		}
	}
	return results
}

// GetBySymbol resolves an exact symbol, case-insensitively.
func (e *BleveEngine) GetBySymbol(symbol string) *models.EquityRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	stock, ok := e.bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return nil
	}
	return &stock
}

// Len reports the number of indexed documents.
func (e *BleveEngine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.byID)
}

func (e *BleveEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.index == nil {
		return nil
	}
	err := e.index.Close()
	e.index = nil
	return err
}
