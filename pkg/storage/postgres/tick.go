package postgres

import (
	"context"
	"errors"
	"fmt"

	"mdcache/internal/market"

	"gorm.io/gorm"
)

// tickRetention is the number of most recent ticks kept per symbol.
const tickRetention = 1000

// AppendTick inserts the tick, then prunes the symbol down to its 1000
// most recent ticks. Insert and prune run in one transaction.
func (c *Client) AppendTick(ctx context.Context, tick market.Tick) error {
	record := toTickRecord(tick)

	return c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("insert tick: %w", err)
		}

		var keep []uint
		if err := tx.Model(&TickRecord{}).
			Where("symbol = ?", tick.Symbol).
			Order("timestamp DESC, id DESC").
			Limit(tickRetention).
			Pluck("id", &keep).Error; err != nil {
			return fmt.Errorf("select retained ticks: %w", err)
		}

		if err := tx.Where("symbol = ? AND id NOT IN ?", tick.Symbol, keep).
			Delete(&TickRecord{}).Error; err != nil {
			return fmt.Errorf("prune ticks: %w", err)
		}
		return nil
	})
}

// LatestTick returns the most recent tick for symbol, or nil when the
// symbol has none.
func (c *Client) LatestTick(ctx context.Context, symbol string) (*market.Tick, error) {
	var record TickRecord
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

	tick := record.toTick()
	return &tick, nil
}
