package feed

import (
	"time"

	"mdcache/internal/market"
)

// envelope is the generic response wrapper of the feed's REST API.
// Code 0 means success; non-zero carries an upstream error message.
type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// klineResponse is the REST kline payload.
type klineResponse struct {
	envelope
	Data []klineRow `json:"data"`
}

// klineRow is one bar as the feed serializes it.
type klineRow struct {
	Time   int64   `json:"time"` // bar start, milliseconds since epoch
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

func (r klineRow) toCandle(symbol string, timeframe market.Timeframe) market.Candle {
	return market.Candle{
		Symbol:    symbol,
		Timeframe: timeframe,
		Timestamp: time.UnixMilli(r.Time).UTC(),
		Open:      r.Open,
		High:      r.High,
		Low:       r.Low,
		Close:     r.Close,
		Volume:    r.Volume,
	}
}

// tickMessage is one WebSocket push on a "tick.<symbol>" topic.
type tickMessage struct {
	Topic string `json:"topic"`
	Data  struct {
		Price  float64 `json:"price"`
		Volume int64   `json:"volume"`
		Ts     int64   `json:"ts"` // milliseconds since epoch
	} `json:"data"`
}
