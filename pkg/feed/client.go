// Package feed implements the live market data provider: candles over
// the feed's REST API and real-time ticks over its WebSocket stream.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"mdcache/config"
	"mdcache/internal/market"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client talks to the live feed. It satisfies market.Provider.
type Client struct {
	baseURL       string
	wsURL         string
	httpClient    *http.Client
	logger        *zap.Logger
	retryInterval time.Duration

	mu            sync.Mutex
	connected     bool
	conn          *websocket.Conn
	subscriptions map[string]market.TickHandler
	done          chan struct{}
}

// New creates a disconnected feed client.
func New(cfg config.FeedConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL:       strings.TrimRight(cfg.RESTBaseURL, "/"),
		wsURL:         cfg.WSURL,
		httpClient:    &http.Client{Timeout: cfg.RESTTimeout},
		logger:        logger,
		retryInterval: 3 * time.Second,
		subscriptions: make(map[string]market.TickHandler),
	}
}

// Connect dials the WebSocket endpoint and starts the listener.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	conn, _, err := websocket.DefaultDialer.Dial(c.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial feed websocket %s: %w", c.wsURL, err)
	}
	c.conn = conn
	c.connected = true
	c.done = make(chan struct{})
	c.logger.Info("feed websocket connected", zap.String("url", c.wsURL))

	go c.listen(conn, c.done)
	return nil
}

// Disconnect closes the stream and drops all subscriptions.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return
	}
	c.connected = false
	close(c.done)
	_ = c.conn.Close()
	c.conn = nil
	c.subscriptions = make(map[string]market.TickHandler)
}

// IsConnected reports the connection state.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// FetchCandles loads bars from the feed's REST kline endpoint.
func (c *Client) FetchCandles(ctx context.Context, symbol string, timeframe market.Timeframe, start, end *time.Time) ([]market.Candle, error) {
	if !c.IsConnected() {
		return nil, market.ErrNotConnected
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("timeframe", string(timeframe))
	if start != nil {
		params.Set("start", fmt.Sprintf("%d", start.UnixMilli()))
	}
	if end != nil {
		params.Set("end", fmt.Sprintf("%d", end.UnixMilli()))
	}
	endpoint := c.baseURL + "/v1/market/kline?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("feed error: %s", body)
	}

	var parsed klineResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Code != 0 {
		return nil, fmt.Errorf("feed error %d: %s", parsed.Code, parsed.Message)
	}

	candles := make([]market.Candle, 0, len(parsed.Data))
	for _, row := range parsed.Data {
		candles = append(candles, row.toCandle(symbol, timeframe))
	}
	return candles, nil
}

// SubscribeTicks subscribes to the "tick.<symbol>" topic. A later
// subscription for the same symbol replaces the earlier handler.
func (c *Client) SubscribeTicks(symbol string, handler market.TickHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return market.ErrNotConnected
	}

	if err := c.writeOp("subscribe", symbol); err != nil {
		return fmt.Errorf("subscribe %s: %w", symbol, err)
	}
	c.subscriptions[symbol] = handler
	return nil
}

// UnsubscribeTicks drops the subscription for symbol, if any.
func (c *Client) UnsubscribeTicks(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.subscriptions[symbol]; !ok {
		return
	}
	delete(c.subscriptions, symbol)
	if c.connected {
		if err := c.writeOp("unsubscribe", symbol); err != nil {
			c.logger.Warn("unsubscribe failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}
}

// writeOp sends a subscribe/unsubscribe frame. Callers hold c.mu.
func (c *Client) writeOp(op, symbol string) error {
	msg := map[string]interface{}{
		"op":   op,
		"args": []string{"tick." + symbol},
	}
	return c.conn.WriteJSON(msg)
}

func (c *Client) listen(conn *websocket.Conn, done chan struct{}) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				return // deliberate disconnect
			default:
			}

			c.logger.Error("feed websocket read error", zap.Error(err))
			for {
				select {
				case <-done:
					return
				case <-time.After(c.retryInterval):
				}
				newConn, reconnectErr := c.reconnectAndResubscribe()
				if reconnectErr != nil {
					c.logger.Warn("retrying feed reconnect", zap.Error(reconnectErr))
					continue
				}
				conn = newConn
				c.logger.Info("feed reconnected")
				break
			}
			continue
		}

		c.dispatch(msg)
	}
}

// dispatch routes a tick frame to its subscription handler. Frames on
// other topics (subscription acks, heartbeats) are ignored.
func (c *Client) dispatch(msg []byte) {
	var parsed tickMessage
	if err := json.Unmarshal(msg, &parsed); err != nil {
		c.logger.Warn("failed to parse feed message", zap.Error(err))
		return
	}
	if !strings.HasPrefix(parsed.Topic, "tick.") {
		return
	}
	symbol := strings.TrimPrefix(parsed.Topic, "tick.")

	c.mu.Lock()
	handler, ok := c.subscriptions[symbol]
	c.mu.Unlock()
	if !ok {
		return
	}

	handler(market.Tick{
		Symbol:    symbol,
		Price:     parsed.Data.Price,
		Volume:    parsed.Data.Volume,
		Timestamp: time.UnixMilli(parsed.Data.Ts).UTC(),
	})
}

func (c *Client) reconnectAndResubscribe() (*websocket.Conn, error) {
	newConn, _, err := websocket.DefaultDialer.Dial(c.wsURL, nil)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		_ = newConn.Close()
		return nil, fmt.Errorf("disconnected while reconnecting")
	}

	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = newConn

	// Re-send subscriptions on the fresh connection.
	for symbol := range c.subscriptions {
		if err := c.writeOp("subscribe", symbol); err != nil {
			return nil, fmt.Errorf("resubscribe %s: %w", symbol, err)
		}
	}
	return newConn, nil
}
