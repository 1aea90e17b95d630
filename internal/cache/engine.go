// Package cache implements the data-cache layer: it answers candle and
// price queries from storage when the cached rows are fresh enough, and
// falls back to the market data provider when they are not.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mdcache/internal/market"
	"mdcache/internal/metrics"

	"go.uber.org/zap"
)

// ErrNoData is returned by GetLatestPrice when neither a tick nor a
// candle exists for the symbol.
var ErrNoData = errors.New("no price data for symbol")

// Store is the durable row store the engine reads and writes. All
// operations are transactional; a reader never observes a half-written
// replace.
type Store interface {
	// QueryCandles returns rows for (symbol, timeframe) ascending by
	// timestamp. Bounds are inclusive and optional.
	QueryCandles(ctx context.Context, symbol string, timeframe market.Timeframe, start, end *time.Time) ([]market.Candle, error)

	// ReplaceCandles atomically deletes all rows for (symbol, timeframe)
	// and inserts the batch.
	ReplaceCandles(ctx context.Context, symbol string, timeframe market.Timeframe, candles []market.Candle) error

	// AppendTick inserts the tick, then prunes the symbol to its 1000
	// most recent ticks.
	AppendTick(ctx context.Context, tick market.Tick) error

	// LatestTick returns the most recent tick for symbol, or nil.
	LatestTick(ctx context.Context, symbol string) (*market.Tick, error)

	// LatestCandle returns the most recent candle for symbol across all
	// timeframes, or nil.
	LatestCandle(ctx context.Context, symbol string) (*market.Candle, error)

	// PurgeOlderThan deletes candles and ticks with a timestamp before
	// the cutoff.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) error
}

// Engine is the cache/freshness engine.
type Engine struct {
	store    Store
	provider market.Provider
	logger   *zap.Logger
	metrics  *metrics.Metrics

	// now is replaceable in tests.
	now func() time.Time
}

// NewEngine wires the engine to its storage and provider. m may be nil
// when instrumentation is not wanted.
func NewEngine(store Store, provider market.Provider, logger *zap.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		store:    store,
		provider: provider,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// GetCandles returns candles for (symbol, timeframe), optionally bounded
// by start/end (inclusive). With useCache, cached rows are returned when
// they are sufficient: non-empty, within the timeframe's staleness budget
// and covering both requested edges. Otherwise the provider is asked and
// any non-empty result replaces the cached rows for the pair.
func (e *Engine) GetCandles(ctx context.Context, symbol string, timeframe market.Timeframe, start, end *time.Time, useCache bool) ([]market.Candle, error) {
	if useCache {
		cached, err := e.store.QueryCandles(ctx, symbol, timeframe, start, end)
		if err != nil {
			return nil, fmt.Errorf("query cached candles: %w", err)
		}
		if e.cacheSufficient(cached, timeframe, start, end) {
			if e.metrics != nil {
				e.metrics.CacheHits.Inc()
			}
			e.logger.Debug("cache hit",
				zap.String("symbol", symbol),
				zap.String("timeframe", string(timeframe)),
				zap.Int("rows", len(cached)))
			return cached, nil
		}
	}

	if e.metrics != nil {
		e.metrics.CacheMisses.Inc()
		e.metrics.ProviderFetches.Inc()
	}
	fresh, err := e.provider.FetchCandles(ctx, symbol, timeframe, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch candles from provider: %w", err)
	}
	e.logger.Debug("fetched fresh candles",
		zap.String("symbol", symbol),
		zap.String("timeframe", string(timeframe)),
		zap.Int("rows", len(fresh)))

	// Whole-range replace rather than merge: cached rows outside the
	// fetched window are discarded for this pair.
	if len(fresh) > 0 {
		if err := e.store.ReplaceCandles(ctx, symbol, timeframe, fresh); err != nil {
			return nil, fmt.Errorf("cache fresh candles: %w", err)
		}
	}
	return fresh, nil
}

// cacheSufficient is the freshness-and-coverage predicate gating
// cache-hit vs fetch.
func (e *Engine) cacheSufficient(cached []market.Candle, timeframe market.Timeframe, start, end *time.Time) bool {
	if len(cached) == 0 {
		return false
	}

	// Staleness: the newest write must be within the timeframe budget.
	// Rows without a cached-at are skipped; when no row carries one the
	// cache is taken as fresh outright. The write path always stamps
	// cached-at, so this only triggers on out-of-band rows.
	var latestWrite time.Time
	for _, c := range cached {
		if !c.CachedAt.IsZero() && c.CachedAt.After(latestWrite) {
			latestWrite = c.CachedAt
		}
	}
	if latestWrite.IsZero() {
		return true
	}
	if e.now().Sub(latestWrite) > timeframe.MaxAge() {
		return false
	}

	// Coverage: the cached span must reach both requested edges.
	if start != nil && cached[0].Timestamp.After(*start) {
		return false
	}
	if end != nil && cached[len(cached)-1].Timestamp.Before(*end) {
		return false
	}
	return true
}

// CacheTick persists a real-time tick. Ticks carry no freshness logic;
// they are fresh by construction.
func (e *Engine) CacheTick(ctx context.Context, tick market.Tick) error {
	if err := e.store.AppendTick(ctx, tick); err != nil {
		return fmt.Errorf("append tick: %w", err)
	}
	if e.metrics != nil {
		e.metrics.TicksCached.Inc()
	}
	return nil
}

// GetLatestPrice returns the most current known price for symbol: the
// latest tick when one exists, else the latest candle's close.
func (e *Engine) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	tick, err := e.store.LatestTick(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("query latest tick: %w", err)
	}
	if tick != nil {
		return tick.Price, nil
	}

	candle, err := e.store.LatestCandle(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("query latest candle: %w", err)
	}
	if candle != nil {
		return candle.Close, nil
	}
	return 0, ErrNoData
}

// CleanupOldData purges candles and ticks older than retentionDays.
// Idempotent; only affects storage growth.
func (e *Engine) CleanupOldData(ctx context.Context, retentionDays int) error {
	cutoff := e.now().AddDate(0, 0, -retentionDays)
	if err := e.store.PurgeOlderThan(ctx, cutoff); err != nil {
		return fmt.Errorf("purge rows before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	e.logger.Info("cleaned up old market data",
		zap.Time("cutoff", cutoff),
		zap.Int("retention_days", retentionDays))
	return nil
}
