package postgres

import (
	"time"

	"mdcache/internal/market"
)

// CandleRecord is one cached candlestick row.
type CandleRecord struct {
	ID uint `gorm:"primaryKey"`

	Symbol    string    `gorm:"type:varchar(20);not null;index:idx_candle_symbol_timeframe_timestamp;index:idx_candle_symbol_timestamp"`
	Timeframe string    `gorm:"type:varchar(10);not null;index:idx_candle_symbol_timeframe_timestamp"`
	Timestamp time.Time `gorm:"not null;index:idx_candle_symbol_timeframe_timestamp;index:idx_candle_symbol_timestamp"`

	Open  float64 `gorm:"type:numeric;not null"`
	High  float64 `gorm:"type:numeric;not null"`
	Low   float64 `gorm:"type:numeric;not null"`
	Close float64 `gorm:"type:numeric;not null"`

	Volume int64 `gorm:"not null"`

	CachedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (CandleRecord) TableName() string {
	return "candle_record"
}

// TickRecord is one cached real-time tick row.
type TickRecord struct {
	ID uint `gorm:"primaryKey"`

	Symbol    string    `gorm:"type:varchar(20);not null;index:idx_tick_symbol_timestamp"`
	Price     float64   `gorm:"type:numeric;not null"`
	Volume    int64     `gorm:"not null"`
	Timestamp time.Time `gorm:"not null;index:idx_tick_symbol_timestamp"`

	CachedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (TickRecord) TableName() string {
	return "tick_record"
}

func toCandleRecord(c market.Candle) CandleRecord {
	return CandleRecord{
		Symbol:    c.Symbol,
		Timeframe: string(c.Timeframe),
		Timestamp: c.Timestamp,
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
		CachedAt:  c.CachedAt,
	}
}

func (r CandleRecord) toCandle() market.Candle {
	return market.Candle{
		Symbol:    r.Symbol,
		Timeframe: market.Timeframe(r.Timeframe),
		Timestamp: r.Timestamp,
		Open:      r.Open,
		High:      r.High,
		Low:       r.Low,
		Close:     r.Close,
		Volume:    r.Volume,
		CachedAt:  r.CachedAt,
	}
}

func toTickRecord(t market.Tick) TickRecord {
	return TickRecord{
		Symbol:    t.Symbol,
		Price:     t.Price,
		Volume:    t.Volume,
		Timestamp: t.Timestamp,
		CachedAt:  t.CachedAt,
	}
}

func (r TickRecord) toTick() market.Tick {
	return market.Tick{
		Symbol:    r.Symbol,
		Price:     r.Price,
		Volume:    r.Volume,
		Timestamp: r.Timestamp,
		CachedAt:  r.CachedAt,
	}
}
