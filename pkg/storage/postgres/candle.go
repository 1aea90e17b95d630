package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mdcache/internal/market"

	"gorm.io/gorm"
)

// QueryCandles returns cached candles for (symbol, timeframe) ascending
// by timestamp. Bounds are inclusive and optional.
func (c *Client) QueryCandles(ctx context.Context, symbol string, timeframe market.Timeframe, start, end *time.Time) ([]market.Candle, error) {
	query := c.DB.WithContext(ctx).
		Where("symbol = ? AND timeframe = ?", symbol, string(timeframe))

	if start != nil {
		query = query.Where("timestamp >= ?", *start)
	}
	if end != nil {
		query = query.Where("timestamp <= ?", *end)
	}

	var records []CandleRecord
	if err := query.Order("timestamp ASC").Find(&records).Error; err != nil {
		return nil, err
	}

	candles := make([]market.Candle, 0, len(records))
	for _, r := range records {
		candles = append(candles, r.toCandle())
	}
	return candles, nil
}

// ReplaceCandles atomically deletes all rows for (symbol, timeframe) and
// inserts the batch. A batch containing a candle that violates the OHLC
// invariant is rejected whole; nothing is written.
func (c *Client) ReplaceCandles(ctx context.Context, symbol string, timeframe market.Timeframe, candles []market.Candle) error {
	for _, candle := range candles {
		if err := candle.Validate(); err != nil {
			return fmt.Errorf("reject candle batch: %w", err)
		}
	}

	records := make([]CandleRecord, 0, len(candles))
	for _, candle := range candles {
		r := toCandleRecord(candle)
		r.Symbol = symbol
		r.Timeframe = string(timeframe)
		records = append(records, r)
	}

	return c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("symbol = ? AND timeframe = ?", symbol, string(timeframe)).
			Delete(&CandleRecord{}).Error; err != nil {
			return fmt.Errorf("delete stale candles: %w", err)
		}
		if len(records) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(records, 500).Error; err != nil {
			return fmt.Errorf("insert fresh candles: %w", err)
		}
		return nil
	})
}

// LatestCandle returns the most recent candle for symbol across all
// timeframes, or nil when the symbol has none.
func (c *Client) LatestCandle(ctx context.Context, symbol string) (*market.Candle, error) {
	var record CandleRecord
	err := c.DB.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("timestamp DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	candle := record.toCandle()
	return &candle, nil
}
