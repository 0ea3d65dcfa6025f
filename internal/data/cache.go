package data

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"grid-backtest/internal/model"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CacheKey creates a content key from the request tuple. Identical tuples
// map to the same key across processes.
func CacheKey(sourceID string, start, end time.Time) string {
	keyStr := fmt.Sprintf("%s:%d:%d", sourceID, start.UTC().UnixMilli(), end.UTC().UnixMilli())
	hash := sha256.Sum256([]byte(keyStr))
	return hex.EncodeToString(hash[:])
}

// CacheStats counts lookups since the cache was created.
type CacheStats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

// PreprocessCache returns sorted, deduplicated, range-clipped candles,
// populating its storage from a supplier on a miss. Concurrent misses for
// the same key share one population.
type PreprocessCache struct {
	supplier Supplier
	store    Storage
	log      *zap.Logger
	group    singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
}

func NewPreprocessCache(supplier Supplier, store Storage, log *zap.Logger) *PreprocessCache {
	if store == nil {
		store = SharedMemoryStore()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PreprocessCache{supplier: supplier, store: store, log: log}
}

func (c *PreprocessCache) Stats() CacheStats {
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// LoadDates is Load over inclusive YYYY-MM-DD dates.
func (c *PreprocessCache) LoadDates(ctx context.Context, sourceID, startDate, endDate string) ([]model.Candle, error) {
	start, end, err := ParseDateRange(startDate, endDate)
	if err != nil {
		return nil, err
	}
	return c.Load(ctx, sourceID, start, end)
}

// Load returns the candles for sourceID in [start, end). A blob that cannot
// be decoded counts as a miss and is overwritten.
func (c *PreprocessCache) Load(ctx context.Context, sourceID string, start, end time.Time) ([]model.Candle, error) {
	key := CacheKey(sourceID, start, end)
	fields := []zap.Field{
		zap.String("source", sourceID),
		zap.Time("start", start),
		zap.Time("end", end),
		zap.String("key", key[:12]),
	}

	if candles, ok := c.lookup(ctx, key, fields); ok {
		c.hits.Add(1)
		c.log.Debug("cache hit", append(fields, zap.Int("candles", len(candles)))...)
		return candles, nil
	}
	c.misses.Add(1)

	v, err, shared := c.group.Do(key, func() (any, error) {
		// Another flight may have finished between our lookup and Do.
		if blob, ok, err := c.store.Get(ctx, key); err == nil && ok {
			if _, derr := DecodeCandles(blob); derr == nil {
				return blob, nil
			}
		}
		return c.populate(ctx, sourceID, start, end, key)
	})
	if err != nil {
		return nil, err
	}
	candles, err := DecodeCandles(v.([]byte))
	if err != nil {
		return nil, fmt.Errorf("decode fresh blob: %w", err)
	}
	c.log.Info("cache populated", append(fields, zap.Int("candles", len(candles)), zap.Bool("shared", shared))...)
	return candles, nil
}

func (c *PreprocessCache) lookup(ctx context.Context, key string, fields []zap.Field) ([]model.Candle, bool) {
	blob, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn("cache read failed", append(fields, zap.Error(err))...)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	candles, err := DecodeCandles(blob)
	if err != nil {
		c.log.Warn("discarding unreadable cache blob", append(fields, zap.Error(err))...)
		return nil, false
	}
	return candles, true
}

func (c *PreprocessCache) populate(ctx context.Context, sourceID string, start, end time.Time, key string) ([]byte, error) {
	raw, err := c.supplier.Fetch(ctx, sourceID, start, end)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !errors.Is(err, ErrDataNotFound) {
			return nil, fmt.Errorf("%w: %s: %w", ErrDataNotFound, sourceID, err)
		}
		return nil, fmt.Errorf("fetch %s: %w", sourceID, err)
	}

	cs := model.Candles(raw)
	cs.Sort()
	cs = cs.Dedupe().Between(start, end)
	if len(cs) == 0 {
		return nil, fmt.Errorf("%w: %s between %s and %s", ErrDataNotFound, sourceID, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	for i, candle := range cs {
		if err := candle.Validate(); err != nil {
			return nil, fmt.Errorf("%s candle %d (%d): %w", sourceID, i, candle.OpenTime, err)
		}
	}

	blob, err := EncodeCandles(cs)
	if err != nil {
		return nil, err
	}
	if err := c.store.Put(ctx, key, blob); err != nil {
		return nil, fmt.Errorf("store cache blob: %w", err)
	}
	return blob, nil
}
