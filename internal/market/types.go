package market

import (
	"fmt"
	"time"
)

// Timeframe is the candlestick bucket granularity used for API requests
// and as the storage key next to the symbol.
type Timeframe string

const (
	Timeframe1Min  Timeframe = "1m"
	Timeframe5Min  Timeframe = "5m"
	Timeframe15Min Timeframe = "15m"
	Timeframe1Hour Timeframe = "1h"
	Timeframe1Day  Timeframe = "1d"
)

// TimeframeMeta holds the display name, bucket width and cache staleness
// budget for a Timeframe.
type TimeframeMeta struct {
	Name    string
	Minutes int
	MaxAge  time.Duration
}

var validTimeframes = map[Timeframe]TimeframeMeta{
	Timeframe1Min:  {Name: "1 minute", Minutes: 1, MaxAge: time.Hour},
	Timeframe5Min:  {Name: "5 minutes", Minutes: 5, MaxAge: 6 * time.Hour},
	Timeframe15Min: {Name: "15 minutes", Minutes: 15, MaxAge: 24 * time.Hour},
	Timeframe1Hour: {Name: "1 hour", Minutes: 60, MaxAge: 7 * 24 * time.Hour},
	Timeframe1Day:  {Name: "1 day", Minutes: 1440, MaxAge: 30 * 24 * time.Hour},
}

// IsValid checks if the Timeframe is one of the predefined buckets.
func (tf Timeframe) IsValid() bool {
	_, ok := validTimeframes[tf]
	return ok
}

// MaxAge returns the staleness budget for cached rows of this timeframe.
// Unknown timeframes fall back to one hour; the lookup is total and never fails.
func (tf Timeframe) MaxAge() time.Duration {
	meta, ok := validTimeframes[tf]
	if !ok {
		return time.Hour
	}
	return meta.MaxAge
}

// Minutes returns the bucket width in minutes, or 0 for unknown timeframes.
func (tf Timeframe) Minutes() int {
	return validTimeframes[tf].Minutes
}

// Candle represents a single OHLCV bar for a symbol and timeframe.
// CachedAt is the instant the row was written to storage; it is zero for
// bars that came straight from a provider and were never persisted.
type Candle struct {
	Symbol    string
	Timeframe Timeframe
	Timestamp time.Time // bar start
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
	CachedAt  time.Time
}

// Validate checks the OHLC invariant and the volume sign.
func (c Candle) Validate() error {
	lo, hi := c.Open, c.Open
	if c.Close < lo {
		lo = c.Close
	}
	if c.Close > hi {
		hi = c.Close
	}
	if c.Low > lo || c.High < hi {
		return fmt.Errorf("candle %s/%s@%s violates OHLC invariant: O=%g H=%g L=%g C=%g",
			c.Symbol, c.Timeframe, c.Timestamp.Format(time.RFC3339), c.Open, c.High, c.Low, c.Close)
	}
	if c.Volume < 0 {
		return fmt.Errorf("candle %s/%s@%s has negative volume %d",
			c.Symbol, c.Timeframe, c.Timestamp.Format(time.RFC3339), c.Volume)
	}
	return nil
}

// Tick is a single real-time price/volume observation for a symbol.
type Tick struct {
	Symbol    string
	Price     float64
	Volume    int64
	Timestamp time.Time
	CachedAt  time.Time
}

// SymbolInfo describes one entry of the static symbol catalog.
type SymbolInfo struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Market string `json:"market"`
}

// Symbols returns the static catalog of supported symbols.
func Symbols() []SymbolInfo {
	return []SymbolInfo{
		{Code: "000001", Name: "平安银行", Market: "SZ"},
		{Code: "000002", Name: "万科A", Market: "SZ"},
		{Code: "600000", Name: "浦发银行", Market: "SH"},
		{Code: "600036", Name: "招商银行", Market: "SH"},
	}
}

// TimeframeInfo describes one entry of the static timeframe catalog.
type TimeframeInfo struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Minutes int    `json:"minutes"`
}

// Timeframes returns the static catalog of supported timeframes,
// ordered from the finest bucket to the coarsest.
func Timeframes() []TimeframeInfo {
	order := []Timeframe{Timeframe1Min, Timeframe5Min, Timeframe15Min, Timeframe1Hour, Timeframe1Day}
	out := make([]TimeframeInfo, 0, len(order))
	for _, tf := range order {
		meta := validTimeframes[tf]
		out = append(out, TimeframeInfo{Code: string(tf), Name: meta.Name, Minutes: meta.Minutes})
	}
	return out
}
