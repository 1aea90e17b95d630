package postgres_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"mdcache/internal/market"
	"mdcache/pkg/storage/postgres"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

// newTestClient opens a throwaway SQLite database with the production
// schema. The GORM queries are portable, so the tests exercise the same
// code paths as Postgres without needing a server.
func newTestClient(t *testing.T) *postgres.Client {
	t.Helper()

	client, err := postgres.Open(sqlite.Open(filepath.Join(t.TempDir(), "mdcache_test.db")))
	require.NoError(t, err)
	require.NoError(t, client.AutoMigrate())

	t.Cleanup(func() { _ = client.Close() })
	return client
}

func makeCandle(symbol string, tf market.Timeframe, ts time.Time, closePrice float64) market.Candle {
	return market.Candle{
		Symbol:    symbol,
		Timeframe: tf,
		Timestamp: ts,
		Open:      closePrice - 1,
		High:      closePrice + 2,
		Low:       closePrice - 2,
		Close:     closePrice,
		Volume:    1000,
	}
}

func TestReplaceCandlesReplacesExactly(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	// Seed rows for the target pair plus two unrelated pairs.
	var old []market.Candle
	for i := 0; i < 5; i++ {
		old = append(old, makeCandle("000001", market.Timeframe1Min, base.Add(time.Duration(i)*time.Minute), 100))
	}
	require.NoError(t, client.ReplaceCandles(ctx, "000001", market.Timeframe1Min, old))
	require.NoError(t, client.ReplaceCandles(ctx, "000001", market.Timeframe5Min,
		[]market.Candle{makeCandle("000001", market.Timeframe5Min, base, 50)}))
	require.NoError(t, client.ReplaceCandles(ctx, "600000", market.Timeframe1Min,
		[]market.Candle{makeCandle("600000", market.Timeframe1Min, base, 10)}))

	// Replace the pair with a smaller, different batch.
	fresh := []market.Candle{
		makeCandle("000001", market.Timeframe1Min, base, 200),
		makeCandle("000001", market.Timeframe1Min, base.Add(time.Minute), 201),
		makeCandle("000001", market.Timeframe1Min, base.Add(2*time.Minute), 202),
	}
	require.NoError(t, client.ReplaceCandles(ctx, "000001", market.Timeframe1Min, fresh))

	got, err := client.QueryCandles(ctx, "000001", market.Timeframe1Min, nil, nil)
	require.NoError(t, err)
	require.Len(t, got, 3, "old rows for the pair must be fully gone")
	assert.Equal(t, 200.0, got[0].Close)
	assert.False(t, got[0].CachedAt.IsZero(), "write path must stamp cached-at")

	// Unrelated pairs untouched.
	other, err := client.QueryCandles(ctx, "000001", market.Timeframe5Min, nil, nil)
	require.NoError(t, err)
	assert.Len(t, other, 1)
	other, err = client.QueryCandles(ctx, "600000", market.Timeframe1Min, nil, nil)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestReplaceCandlesRejectsInvalidBatch(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	require.NoError(t, client.ReplaceCandles(ctx, "000001", market.Timeframe1Min,
		[]market.Candle{makeCandle("000001", market.Timeframe1Min, base, 100)}))

	bad := makeCandle("000001", market.Timeframe1Min, base.Add(time.Minute), 100)
	bad.High = bad.Low - 1 // violates the OHLC invariant

	err := client.ReplaceCandles(ctx, "000001", market.Timeframe1Min,
		[]market.Candle{makeCandle("000001", market.Timeframe1Min, base, 101), bad})
	require.Error(t, err)

	// The rejected batch must not have touched the existing rows.
	got, err := client.QueryCandles(ctx, "000001", market.Timeframe1Min, nil, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 100.0, got[0].Close)
}

func TestQueryCandlesRangeInclusiveAscending(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	var batch []market.Candle
	for i := 0; i < 10; i++ {
		batch = append(batch, makeCandle("000002", market.Timeframe1Min, base.Add(time.Duration(i)*time.Minute), float64(100+i)))
	}
	require.NoError(t, client.ReplaceCandles(ctx, "000002", market.Timeframe1Min, batch))

	start := base.Add(2 * time.Minute)
	end := base.Add(6 * time.Minute)
	got, err := client.QueryCandles(ctx, "000002", market.Timeframe1Min, &start, &end)
	require.NoError(t, err)

	require.Len(t, got, 5, "both range edges are inclusive")
	assert.True(t, got[0].Timestamp.Equal(start))
	assert.True(t, got[4].Timestamp.Equal(end))
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i].Timestamp.After(got[i-1].Timestamp))
	}
}

func TestAppendTickPrunesToRetention(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	for i := 0; i < 1001; i++ {
		require.NoError(t, client.AppendTick(ctx, market.Tick{
			Symbol:    "000001",
			Price:     100 + float64(i)*0.01,
			Volume:    10,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}))
	}
	// A different symbol must not count against the retention window.
	require.NoError(t, client.AppendTick(ctx, market.Tick{
		Symbol: "600036", Price: 37, Volume: 1, Timestamp: base,
	}))

	var count int64
	require.NoError(t, client.DB.Model(&postgres.TickRecord{}).
		Where("symbol = ?", "000001").Count(&count).Error)
	assert.EqualValues(t, 1000, count)

	// The oldest tick is the one that was pruned.
	var oldest postgres.TickRecord
	require.NoError(t, client.DB.
		Where("symbol = ?", "000001").
		Order("timestamp ASC").
		First(&oldest).Error)
	assert.True(t, oldest.Timestamp.Equal(base.Add(time.Second)))

	var otherCount int64
	require.NoError(t, client.DB.Model(&postgres.TickRecord{}).
		Where("symbol = ?", "600036").Count(&otherCount).Error)
	assert.EqualValues(t, 1, otherCount)
}

func TestLatestLookups(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	tick, err := client.LatestTick(ctx, "000001")
	require.NoError(t, err)
	assert.Nil(t, tick)

	candle, err := client.LatestCandle(ctx, "000001")
	require.NoError(t, err)
	assert.Nil(t, candle)

	require.NoError(t, client.ReplaceCandles(ctx, "000001", market.Timeframe1Min, []market.Candle{
		makeCandle("000001", market.Timeframe1Min, base, 100),
		makeCandle("000001", market.Timeframe1Min, base.Add(time.Minute), 101),
	}))
	require.NoError(t, client.AppendTick(ctx, market.Tick{
		Symbol: "000001", Price: 99.9, Volume: 5, Timestamp: base.Add(30 * time.Second),
	}))
	require.NoError(t, client.AppendTick(ctx, market.Tick{
		Symbol: "000001", Price: 100.2, Volume: 5, Timestamp: base.Add(90 * time.Second),
	}))

	tick, err = client.LatestTick(ctx, "000001")
	require.NoError(t, err)
	require.NotNil(t, tick)
	assert.Equal(t, 100.2, tick.Price)

	candle, err = client.LatestCandle(ctx, "000001")
	require.NoError(t, err)
	require.NotNil(t, candle)
	assert.Equal(t, 101.0, candle.Close)
}

func TestPurgeOlderThanHitsBothTables(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cutoff := now.AddDate(0, 0, -30)

	require.NoError(t, client.ReplaceCandles(ctx, "000001", market.Timeframe1Day, []market.Candle{
		makeCandle("000001", market.Timeframe1Day, now.AddDate(0, 0, -45), 90),
		makeCandle("000001", market.Timeframe1Day, now.AddDate(0, 0, -10), 95),
	}))
	require.NoError(t, client.AppendTick(ctx, market.Tick{
		Symbol: "000001", Price: 90, Volume: 1, Timestamp: now.AddDate(0, 0, -45),
	}))
	require.NoError(t, client.AppendTick(ctx, market.Tick{
		Symbol: "000001", Price: 95, Volume: 1, Timestamp: now.AddDate(0, 0, -10),
	}))

	require.NoError(t, client.PurgeOlderThan(ctx, cutoff))

	candles, err := client.QueryCandles(ctx, "000001", market.Timeframe1Day, nil, nil)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, 95.0, candles[0].Close)

	tick, err := client.LatestTick(ctx, "000001")
	require.NoError(t, err)
	require.NotNil(t, tick)
	assert.Equal(t, 95.0, tick.Price)

	var tickCount int64
	require.NoError(t, client.DB.Model(&postgres.TickRecord{}).Count(&tickCount).Error)
	assert.EqualValues(t, 1, tickCount)
}
