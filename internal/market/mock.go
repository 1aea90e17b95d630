package market

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

const defaultBarCount = 100

// MockProvider generates synthetic market data for development and
// testing. Prices follow a bounded random walk starting at basePrice.
type MockProvider struct {
	mu            sync.Mutex
	connected     bool
	subscriptions map[string]*tickStream
	tickInterval  time.Duration
	rng           *rand.Rand
}

type tickStream struct {
	handler TickHandler
	stop    chan struct{}
}

// NewMockProvider creates a disconnected mock provider pushing one tick
// per tickInterval on each subscribed symbol.
func NewMockProvider(tickInterval time.Duration) *MockProvider {
	if tickInterval <= 0 {
		tickInterval = time.Second
	}
	return &MockProvider{
		subscriptions: make(map[string]*tickStream),
		tickInterval:  tickInterval,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Connect marks the provider as connected.
func (p *MockProvider) Connect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = true
}

// Disconnect marks the provider as disconnected and stops every active
// tick stream.
func (p *MockProvider) Disconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	for symbol, stream := range p.subscriptions {
		close(stream.stop)
		delete(p.subscriptions, symbol)
	}
}

// IsConnected reports the connection state.
func (p *MockProvider) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// FetchCandles generates a random-walk bar series for the symbol. When
// both bounds are given the series covers [start, end] bucket by bucket
// (capped at 1000 bars); otherwise it is 100 bars ending now.
func (p *MockProvider) FetchCandles(ctx context.Context, symbol string, timeframe Timeframe, start, end *time.Time) ([]Candle, error) {
	if !p.IsConnected() {
		return nil, ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	step := time.Duration(timeframe.Minutes()) * time.Minute
	if step == 0 {
		step = time.Minute
	}

	var first time.Time
	count := defaultBarCount
	if start != nil && end != nil && !end.Before(*start) {
		first = start.Truncate(step)
		count = int(end.Sub(first)/step) + 1
		if count > 1000 {
			count = 1000
		}
	} else {
		first = time.Now().UTC().Truncate(step).Add(-time.Duration(count-1) * step)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	basePrice := 100.0
	out := make([]Candle, 0, count)
	for i := 0; i < count; i++ {
		open := basePrice + p.rng.Float64()*10 - 5
		closePrice := open + p.rng.Float64()*6 - 3
		high := open
		if closePrice > high {
			high = closePrice
		}
		high += p.rng.Float64() * 2
		low := open
		if closePrice < low {
			low = closePrice
		}
		low -= p.rng.Float64() * 2

		out = append(out, Candle{
			Symbol:    symbol,
			Timeframe: timeframe,
			Timestamp: first.Add(time.Duration(i) * step),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    1000 + int64(p.rng.Intn(9001)),
		})
		basePrice = closePrice
	}
	return out, nil
}

// SubscribeTicks starts a background stream of synthetic ticks for the
// symbol. Re-subscribing a symbol replaces the previous handler.
func (p *MockProvider) SubscribeTicks(symbol string, handler TickHandler) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return ErrNotConnected
	}

	if prev, ok := p.subscriptions[symbol]; ok {
		close(prev.stop)
	}
	stream := &tickStream{handler: handler, stop: make(chan struct{})}
	p.subscriptions[symbol] = stream

	go p.streamTicks(symbol, stream)
	return nil
}

// UnsubscribeTicks stops the stream for symbol, if any.
func (p *MockProvider) UnsubscribeTicks(symbol string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if stream, ok := p.subscriptions[symbol]; ok {
		close(stream.stop)
		delete(p.subscriptions, symbol)
	}
}

func (p *MockProvider) streamTicks(symbol string, stream *tickStream) {
	ticker := time.NewTicker(p.tickInterval)
	defer ticker.Stop()

	basePrice := 100.0
	for {
		select {
		case <-stream.stop:
			return
		case <-ticker.C:
			p.mu.Lock()
			price := basePrice + p.rng.Float64() - 0.5
			volume := 100 + int64(p.rng.Intn(901))
			p.mu.Unlock()
			basePrice = price

			stream.handler(Tick{
				Symbol:    symbol,
				Price:     price,
				Volume:    volume,
				Timestamp: time.Now().UTC(),
			})
		}
	}
}
