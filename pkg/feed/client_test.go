package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"mdcache/config"
	"mdcache/internal/market"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFetchCandlesParsesFeedResponse(t *testing.T) {
	var gotQuery map[string]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/market/kline", r.URL.Path)
		gotQuery = map[string]string{
			"symbol":    r.URL.Query().Get("symbol"),
			"timeframe": r.URL.Query().Get("timeframe"),
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code":    0,
			"message": "ok",
			"data": []map[string]interface{}{
				{"time": int64(1767225600000), "open": 100.0, "high": 102.0, "low": 99.0, "close": 101.0, "volume": 5000},
				{"time": int64(1767225660000), "open": 101.0, "high": 103.0, "low": 100.0, "close": 102.0, "volume": 4000},
			},
		})
	}))
	defer ts.Close()

	client := New(config.FeedConfig{RESTBaseURL: ts.URL, RESTTimeout: 5 * time.Second}, zap.NewNop())
	client.connected = true // bypass the websocket side for the REST test

	candles, err := client.FetchCandles(context.Background(), "000001", market.Timeframe1Min, nil, nil)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, "000001", gotQuery["symbol"])
	assert.Equal(t, "1m", gotQuery["timeframe"])

	assert.Equal(t, "000001", candles[0].Symbol)
	assert.Equal(t, market.Timeframe1Min, candles[0].Timeframe)
	assert.True(t, candles[0].Timestamp.Equal(time.UnixMilli(1767225600000)))
	assert.Equal(t, 101.0, candles[0].Close)
	assert.EqualValues(t, 5000, candles[0].Volume)
	assert.NoError(t, candles[0].Validate())
}

func TestFetchCandlesRequiresConnection(t *testing.T) {
	client := New(config.FeedConfig{RESTBaseURL: "http://localhost:0", RESTTimeout: time.Second}, zap.NewNop())
	_, err := client.FetchCandles(context.Background(), "000001", market.Timeframe1Min, nil, nil)
	assert.ErrorIs(t, err, market.ErrNotConnected)
}

func TestFetchCandlesSurfacesFeedError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"code": 1001, "message": "symbol not found"})
	}))
	defer ts.Close()

	client := New(config.FeedConfig{RESTBaseURL: ts.URL, RESTTimeout: time.Second}, zap.NewNop())
	client.connected = true

	_, err := client.FetchCandles(context.Background(), "bogus", market.Timeframe1Min, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbol not found")
}

func TestListenerStopsRetryingAfterDisconnect(t *testing.T) {
	var upgrades int32
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&upgrades, 1)
		if n > 1 {
			// Refuse reconnects so the listener stays in its retry loop.
			http.Error(w, "gone", http.StatusGone)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close() // force a read error on the client side
	}))
	defer ts.Close()

	client := New(config.FeedConfig{WSURL: "ws" + strings.TrimPrefix(ts.URL, "http")}, zap.NewNop())
	client.retryInterval = 10 * time.Millisecond
	require.NoError(t, client.Connect())

	// Wait until the listener has hit the read error and started retrying.
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&upgrades) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	client.Disconnect()

	seen := atomic.LoadInt32(&upgrades)
	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, atomic.LoadInt32(&upgrades), seen+1, "retry loop kept dialing after disconnect")
}

func TestDispatchRoutesTicksToHandler(t *testing.T) {
	client := New(config.FeedConfig{}, zap.NewNop())

	var got []market.Tick
	client.subscriptions["000001"] = func(tick market.Tick) {
		got = append(got, tick)
	}

	// A frame for a subscribed symbol reaches the handler.
	client.dispatch([]byte(`{"topic":"tick.000001","data":{"price":12.34,"volume":500,"ts":1767225600000}}`))
	require.Len(t, got, 1)
	assert.Equal(t, "000001", got[0].Symbol)
	assert.Equal(t, 12.34, got[0].Price)
	assert.EqualValues(t, 500, got[0].Volume)
	assert.True(t, got[0].Timestamp.Equal(time.UnixMilli(1767225600000)))

	// Frames for other topics or unsubscribed symbols are dropped.
	client.dispatch([]byte(`{"op":"subscribe","success":true}`))
	client.dispatch([]byte(`{"topic":"tick.600000","data":{"price":1,"volume":1,"ts":1}}`))
	client.dispatch([]byte(`not json`))
	assert.Len(t, got, 1)
}
