// Package session holds the process-wide equity catalog and the per-client
// screener sessions built on top of it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"nse-screener/loader"
	"nse-screener/models"
	"nse-screener/screener"
)

// Status describes where the current record collection came from.
type Status string

const (
	StatusLoading  Status = "loading"
	StatusLive     Status = "live"
	StatusFallback Status = "fallback"
	StatusError    Status = "error"
)

// EquityLister fetches the raw exchange equity list. ok is false when no
// usable list was returned.
type EquityLister interface {
	EquityList(ctx context.Context) (text string, ok bool)
}

// Info is a point-in-time description of the catalog.
type Info struct {
	Status   Status            `json:"status"`
	Count    int               `json:"count"`
	LoadedAt time.Time         `json:"loaded_at,omitzero"`
	Overview screener.Overview `json:"overview"`
	Series   []string          `json:"series"`
	Error    string            `json:"error,omitempty"`
}

// CatalogOptions tunes a Catalog.
type CatalogOptions struct {
	FallbackCSV string // loaded when the live list is unusable; empty disables
	Logger      *slog.Logger
}

// Catalog is the single shared record collection. It is replaced wholesale
// on every reload and never edited in place, so readers may keep the slice
// they were handed.
type Catalog struct {
	source      EquityLister
	fallbackCSV string
	logger      *slog.Logger

	mu       sync.RWMutex
	records  []models.EquityRecord
	status   Status
	loadedAt time.Time
	lastErr  error

	reloading atomic.Bool

	subMu sync.Mutex
	subs  map[string]func([]models.EquityRecord)

	cron *cron.Cron
}

func NewCatalog(source EquityLister, opts CatalogOptions) *Catalog {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Catalog{
		source:      source,
		fallbackCSV: opts.FallbackCSV,
		logger:      opts.Logger.With("component", "catalog"),
		status:      StatusLoading,
		subs:        make(map[string]func([]models.EquityRecord)),
	}
}

// Reload fetches the equity list and replaces the collection. It returns
// false without doing anything when another reload is already running.
func (c *Catalog) Reload(ctx context.Context) bool {
	if !c.reloading.CompareAndSwap(false, true) {
		c.logger.Debug("reload already in flight")
		return false
	}
	defer c.reloading.Store(false)

	records, status, err := c.fetch(ctx)
	if err != nil {
		c.logger.Warn("equity list unavailable", "err", err)
	}

	c.mu.Lock()
	c.records = records
	c.status = status
	c.lastErr = err
	c.loadedAt = time.Now()
	c.mu.Unlock()

	c.logger.Info("catalog replaced", "status", status, "records", len(records))
	c.notify(records)
	return true
}

// Reloading reports whether a reload is in flight.
func (c *Catalog) Reloading() bool {
	return c.reloading.Load()
}

func (c *Catalog) fetch(ctx context.Context) ([]models.EquityRecord, Status, error) {
	var liveErr error
	if c.source != nil {
		if text, ok := c.source.EquityList(ctx); ok {
			records, err := loader.ParseEquityCSV(text)
			if err == nil && len(records) > 0 {
				return records, StatusLive, nil
			}
			if err == nil {
				err = errors.New("live list has no records")
			}
			liveErr = fmt.Errorf("parse live list: %w", err)
		} else {
			liveErr = errors.New("live list not available")
		}
	} else {
		liveErr = errors.New("no live source configured")
	}

	if c.fallbackCSV == "" {
		return nil, StatusError, liveErr
	}
	records, err := loader.LoadEquityFile(c.fallbackCSV)
	if err != nil {
		return nil, StatusError, errors.Join(liveErr, fmt.Errorf("fallback list: %w", err))
	}
	c.logger.Info("using fallback equity list", "path", c.fallbackCSV, "reason", liveErr)
	return records, StatusFallback, nil
}

// Records returns the current collection.
func (c *Catalog) Records() []models.EquityRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.records
}

func (c *Catalog) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *Catalog) Info() Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info := Info{
		Status:   c.status,
		Count:    len(c.records),
		LoadedAt: c.loadedAt,
		Overview: screener.Summarize(c.records),
		Series:   screener.SeriesCodes(c.records),
	}
	if c.lastErr != nil {
		info.Error = c.lastErr.Error()
	}
	return info
}

// Subscribe registers fn to receive every replacement collection. The
// returned func unregisters it.
func (c *Catalog) Subscribe(fn func([]models.EquityRecord)) (cancel func()) {
	id := uuid.NewString()
	c.subMu.Lock()
	c.subs[id] = fn
	c.subMu.Unlock()
	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Catalog) notify(records []models.EquityRecord) {
	c.subMu.Lock()
	fns := make([]func([]models.EquityRecord), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(records)
	}
}

// StartRefresh schedules wholesale reloads on a five-field cron spec
// evaluated in exchange time. An empty spec does nothing.
func (c *Catalog) StartRefresh(ctx context.Context, spec string) error {
	if spec == "" {
		return nil
	}
	cr := cron.New(cron.WithLocation(models.IST))
	if _, err := cr.AddFunc(spec, func() {
		if !c.Reload(ctx) {
			c.logger.Info("scheduled reload skipped, one is already running")
		}
	}); err != nil {
		return fmt.Errorf("register refresh %q: %w", spec, err)
	}
	c.cron = cr
	cr.Start()
	c.logger.Info("scheduled refresh started", "spec", spec)
	return nil
}

// Stop halts scheduled refreshes and waits for a running one to finish.
func (c *Catalog) Stop() {
	if c.cron == nil {
		return
	}
	<-c.cron.Stop().Done()
	c.logger.Info("scheduled refresh stopped")
}
