package market

import (
	"fmt"
	"time"
)

// CandleJSON is the public wire representation of a Candle.
type CandleJSON struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	Time      string    `json:"time"` // RFC3339
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// ToJSON converts the candle to its wire representation.
func (c Candle) ToJSON() CandleJSON {
	return CandleJSON{
		Symbol:    c.Symbol,
		Timeframe: c.Timeframe,
		Time:      c.Timestamp.UTC().Format(time.RFC3339),
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
	}
}

// CandlesToJSON converts a batch, preserving order. The result is never
// nil so an empty range still serializes as [].
func CandlesToJSON(candles []Candle) []CandleJSON {
	out := make([]CandleJSON, 0, len(candles))
	for _, c := range candles {
		out = append(out, c.ToJSON())
	}
	return out
}

// Candle reconstructs the domain candle from the wire representation.
// CachedAt is not part of the public form and comes back zero.
func (j CandleJSON) Candle() (Candle, error) {
	ts, err := time.Parse(time.RFC3339, j.Time)
	if err != nil {
		return Candle{}, fmt.Errorf("parse candle time %q: %w", j.Time, err)
	}
	return Candle{
		Symbol:    j.Symbol,
		Timeframe: j.Timeframe,
		Timestamp: ts,
		Open:      j.Open,
		High:      j.High,
		Low:       j.Low,
		Close:     j.Close,
		Volume:    j.Volume,
	}, nil
}

// TickJSON is the public wire representation of a Tick.
type TickJSON struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Volume    int64   `json:"volume"`
	Timestamp string  `json:"timestamp"` // RFC3339
}

// ToJSON converts the tick to its wire representation.
func (t Tick) ToJSON() TickJSON {
	return TickJSON{
		Symbol:    t.Symbol,
		Price:     t.Price,
		Volume:    t.Volume,
		Timestamp: t.Timestamp.UTC().Format(time.RFC3339),
	}
}
