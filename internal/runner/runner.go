// Package runner turns a Config into a finished backtest: it opens the
// configured candle source, loads candles through the preprocess cache and
// replays them in the engine. The CLI, the HTTP API and the demo share it.
package runner

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"grid-backtest/internal/backtest"
	"grid-backtest/internal/config"
	"grid-backtest/internal/data"

	"go.uber.org/zap"
)

// Runner caches one PreprocessCache per distinct data source so repeated and
// concurrent runs over the same source share populated blobs. It is safe for
// concurrent use.
type Runner struct {
	log    *zap.Logger
	engine *backtest.Engine
	open   func(context.Context, config.DataConfig) (data.Supplier, *sql.DB, error)

	mu        sync.Mutex
	caches    map[string]*data.PreprocessCache
	suppliers map[string]data.Supplier
	dbs       []*sql.DB
}

func New(log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		log:       log,
		engine:    backtest.New(log.Named("engine")),
		open:      openSupplier,
		caches:    make(map[string]*data.PreprocessCache),
		suppliers: make(map[string]data.Supplier),
	}
}

// Run validates cfg, loads its candles and replays them.
func (r *Runner) Run(ctx context.Context, cfg *config.Config) (*backtest.Report, error) {
	setup, err := cfg.Setup()
	if err != nil {
		return nil, err
	}
	cache, err := r.Cache(ctx, cfg.Data)
	if err != nil {
		return nil, err
	}
	candles, err := cache.LoadDates(ctx, cfg.Data.Symbol, cfg.Data.StartDate, cfg.Data.EndDate)
	if err != nil {
		return nil, fmt.Errorf("load candles: %w", err)
	}
	return r.engine.Run(ctx, candles, setup)
}

// Cache returns the cache serving d, opening its supplier on first use.
func (r *Runner) Cache(ctx context.Context, d config.DataConfig) (*data.PreprocessCache, error) {
	key := cacheID(d)

	r.mu.Lock()
	c, ok := r.caches[key]
	r.mu.Unlock()
	if ok {
		return c, nil
	}

	supplier, err := r.supplier(ctx, key, d)
	if err != nil {
		return nil, err
	}
	// Cache keys only cover (symbol, range), so each source gets its own store.
	var store data.Storage = data.NewMemoryStore()
	if d.CacheDir != "" {
		fs, err := data.NewFileStore(filepath.Join(d.CacheDir, d.Source))
		if err != nil {
			return nil, fmt.Errorf("open cache dir: %w", err)
		}
		store = fs
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.caches[key]; ok {
		return c, nil
	}
	c = data.NewPreprocessCache(supplier, store, r.log.Named("cache"))
	r.caches[key] = c
	return c, nil
}

// Lister returns the source enumerator for d, if its supplier has one.
func (r *Runner) Lister(ctx context.Context, d config.DataConfig) (data.Lister, error) {
	s, err := r.supplier(ctx, cacheID(d), d)
	if err != nil {
		return nil, err
	}
	l, ok := s.(data.Lister)
	if !ok {
		return nil, fmt.Errorf("source %q cannot list symbols", d.Source)
	}
	return l, nil
}

// Stats sums cache statistics over every source opened so far.
func (r *Runner) Stats() data.CacheStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total data.CacheStats
	for _, c := range r.caches {
		s := c.Stats()
		total.Hits += s.Hits
		total.Misses += s.Misses
	}
	return total
}

// Close releases database handles.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var first error
	for _, db := range r.dbs {
		if err := db.Close(); err != nil && first == nil {
			first = err
		}
	}
	r.dbs = nil
	return first
}

// supplier returns the supplier for key, opening it on first use. Opening
// may dial a database, so it runs without mu; a supplier that loses the race
// to register is closed.
func (r *Runner) supplier(ctx context.Context, key string, d config.DataConfig) (data.Supplier, error) {
	r.mu.Lock()
	s, ok := r.suppliers[key]
	r.mu.Unlock()
	if ok {
		return s, nil
	}

	s, db, err := r.open(ctx, d)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.suppliers[key]; ok {
		if db != nil {
			db.Close()
		}
		return existing, nil
	}
	r.suppliers[key] = s
	if db != nil {
		r.dbs = append(r.dbs, db)
	}
	return s, nil
}

// openSupplier opens the supplier for d. db is non-nil when the supplier
// owns a database handle.
func openSupplier(ctx context.Context, d config.DataConfig) (s data.Supplier, db *sql.DB, err error) {
	switch d.Source {
	case "csv":
		return data.NewCSVSupplier(d.CSVDir), nil, nil
	case "synthetic":
		return data.NewSyntheticSupplier(d.SyntheticSeed), nil, nil
	case "postgres":
		db, err := data.OpenPostgres(ctx, d.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return data.NewPostgresSupplier(db, d.PostgresTable), db, nil
	default:
		return nil, nil, fmt.Errorf("unknown data source %q", d.Source)
	}
}

func cacheID(d config.DataConfig) string {
	return fmt.Sprintf("%s|%s|%s|%s|%d|%s", d.Source, d.CSVDir, d.PostgresDSN, d.PostgresTable, d.SyntheticSeed, d.CacheDir)
}

// WriteOutputs writes the report files named in cfg. Empty paths are skipped.
func WriteOutputs(report *backtest.Report, cfg config.ReportConfig) error {
	if cfg.TradesCSV != "" {
		if err := backtest.WriteTradesCSV(cfg.TradesCSV, report.Trades); err != nil {
			return fmt.Errorf("write trades csv: %w", err)
		}
	}
	if cfg.EquityCSV != "" {
		if err := backtest.WriteEquityCSV(cfg.EquityCSV, report.EquityCurve); err != nil {
			return fmt.Errorf("write equity csv: %w", err)
		}
	}
	if cfg.JSON != "" {
		raw, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		if dir := filepath.Dir(cfg.JSON); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
		}
		if err := os.WriteFile(cfg.JSON, raw, 0644); err != nil {
			return fmt.Errorf("write report json: %w", err)
		}
	}
	return nil
}
