package market

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandleJSONRoundTrip(t *testing.T) {
	original := Candle{
		Symbol:    "600036",
		Timeframe: Timeframe15Min,
		Timestamp: time.Date(2026, 3, 1, 9, 45, 0, 0, time.UTC),
		Open:      37.12,
		High:      37.80,
		Low:       36.95,
		Close:     37.55,
		Volume:    123456,
	}

	raw, err := json.Marshal(original.ToJSON())
	require.NoError(t, err)

	var wire CandleJSON
	require.NoError(t, json.Unmarshal(raw, &wire))

	back, err := wire.Candle()
	require.NoError(t, err)

	assert.Equal(t, original.Symbol, back.Symbol)
	assert.Equal(t, original.Timeframe, back.Timeframe)
	assert.True(t, original.Timestamp.Equal(back.Timestamp))
	assert.Equal(t, original.Open, back.Open)
	assert.Equal(t, original.High, back.High)
	assert.Equal(t, original.Low, back.Low)
	assert.Equal(t, original.Close, back.Close)
	assert.Equal(t, original.Volume, back.Volume)
}

func TestCandleJSONRejectsBadTime(t *testing.T) {
	wire := CandleJSON{Symbol: "000001", Timeframe: Timeframe1Min, Time: "yesterday"}
	_, err := wire.Candle()
	assert.Error(t, err)
}

func TestCandlesToJSONNeverNil(t *testing.T) {
	out := CandlesToJSON(nil)
	require.NotNil(t, out)

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}
