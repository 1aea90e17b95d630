package market

import (
	"context"
	"errors"
	"time"
)

// ErrNotConnected is returned by provider operations attempted while the
// upstream feed is down.
var ErrNotConnected = errors.New("not connected to market data provider")

// TickHandler receives ticks pushed by a provider subscription.
type TickHandler func(Tick)

// Provider supplies fresh candlestick series and a real-time tick stream
// for a symbol. Implementations include the built-in mock generator and
// the live feed adapter; the cache engine treats them identically.
type Provider interface {
	// FetchCandles returns bars for the symbol and timeframe, optionally
	// bounded by start/end (inclusive). Fails with ErrNotConnected while
	// the provider is down.
	FetchCandles(ctx context.Context, symbol string, timeframe Timeframe, start, end *time.Time) ([]Candle, error)

	// SubscribeTicks registers handler for real-time ticks of symbol.
	// A later subscription for the same symbol replaces the earlier
	// handler. Fails with ErrNotConnected while the provider is down.
	SubscribeTicks(symbol string, handler TickHandler) error

	// UnsubscribeTicks stops the stream for symbol. Safe to call for a
	// symbol that was never subscribed.
	UnsubscribeTicks(symbol string)

	// IsConnected reports the provider connection state for health checks.
	IsConnected() bool
}
