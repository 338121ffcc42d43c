package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"BBWPScreener/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSeries(n int) model.Series {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := make(model.Series, n)
	for i := range s {
		p := 100 + float64(i)
		s[i] = model.OHLCV{
			Time:   start.Add(time.Duration(i) * 4 * time.Hour),
			Open:   p,
			High:   p + 1,
			Low:    p - 1,
			Close:  p + 0.5,
			Volume: 10,
		}
	}
	return s
}

func assertSameSeries(t *testing.T, want, got model.Series) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].Time.Equal(got[i].Time), "bar %d time", i)
		assert.Equal(t, want[i].Close, got[i].Close, "bar %d close", i)
		assert.Equal(t, want[i].Volume, got[i].Volume, "bar %d volume", i)
	}
}

var testKey = Key{Symbol: "BTC/USDT", Timeframe: model.Timeframe4h, Limit: 500}

func TestKey_String(t *testing.T) {
	assert.Equal(t, "BTC/USDT|4h|500", testKey.String())
	assert.NotEqual(t, testKey.String(), Key{Symbol: "BTC/USDT", Timeframe: model.Timeframe1d, Limit: 500}.String())
}

func TestMemoryCache_HitMissAndExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(50 * time.Millisecond)

	_, ok, err := c.Get(ctx, testKey)
	require.NoError(t, err)
	assert.False(t, ok)

	series := sampleSeries(5)
	require.NoError(t, c.Set(ctx, testKey, series))

	got, ok, err := c.Get(ctx, testKey)
	require.NoError(t, err)
	require.True(t, ok)
	assertSameSeries(t, series, got)
	assert.Equal(t, 1, c.Len())

	require.Eventually(t, func() bool {
		_, ok, err := c.Get(ctx, testKey)
		return err == nil && !ok
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryCache_Clear(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	require.NoError(t, c.Set(ctx, testKey, sampleSeries(2)))
	require.Equal(t, 1, c.Len())

	c.Clear()
	_, ok, err := c.Get(ctx, testKey)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_SetCopiesInput(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	series := sampleSeries(3)
	require.NoError(t, c.Set(ctx, testKey, series))

	series[0].Close = -1
	got, ok, err := c.Get(ctx, testKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, -1.0, got[0].Close)

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestNoopCache(t *testing.T) {
	ctx := context.Background()
	c := NewNoopCache()
	require.NoError(t, c.Set(ctx, testKey, sampleSeries(2)))
	_, ok, err := c.Get(ctx, testKey)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Close())
}

func TestSQLiteCache_RoundTripAndTTL(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "nested", "cache.db")

	c, err := NewSQLiteCache(dbPath, time.Hour, nil)
	require.NoError(t, err)
	defer c.Close()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, ok, err := c.Get(ctx, testKey)
	require.NoError(t, err)
	assert.False(t, ok)

	series := sampleSeries(30)
	require.NoError(t, c.Set(ctx, testKey, series))

	got, ok, err := c.Get(ctx, testKey)
	require.NoError(t, err)
	require.True(t, ok)
	assertSameSeries(t, series, got)

	// overwrite keeps a single row
	require.NoError(t, c.Set(ctx, testKey, series[:10]))
	got, ok, err = c.Get(ctx, testKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got, 10)

	now = now.Add(2 * time.Hour)
	_, ok, err = c.Get(ctx, testKey)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := c.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSQLiteCache_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "cache.db")

	c, err := NewSQLiteCache(dbPath, time.Hour, nil)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, testKey, sampleSeries(4)))
	require.NoError(t, c.Close())

	reopened, err := NewSQLiteCache(dbPath, time.Hour, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok, err := reopened.Get(ctx, testKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got, 4)
}

func TestRedisCache_KeyPrefix(t *testing.T) {
	c := NewRedisCacheWithClient(nil, "bbwp:", time.Minute)
	assert.Equal(t, "bbwp:series:BTC/USDT|4h|500", c.key(testKey))
}

func newTestRedis(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisCacheWithClient(client, "bbwp:", ttl)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCache_HitMissAndExpiry(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t, 10*time.Minute)

	_, ok, err := c.Get(ctx, testKey)
	require.NoError(t, err)
	assert.False(t, ok)

	series := sampleSeries(5)
	require.NoError(t, c.Set(ctx, testKey, series))
	assert.True(t, mr.Exists("bbwp:series:BTC/USDT|4h|500"))
	assert.Equal(t, 10*time.Minute, mr.TTL("bbwp:series:BTC/USDT|4h|500"))

	got, ok, err := c.Get(ctx, testKey)
	require.NoError(t, err)
	require.True(t, ok)
	assertSameSeries(t, series, got)

	mr.FastForward(11 * time.Minute)
	_, ok, err = c.Get(ctx, testKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_CorruptPayload(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t, time.Minute)
	require.NoError(t, mr.Set("bbwp:series:BTC/USDT|4h|500", "not json"))

	_, ok, err := c.Get(ctx, testKey)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRedisCache_PingFailsWhenServerGone(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t, time.Minute)
	require.NoError(t, c.Ping(ctx))

	mr.Close()
	assert.Error(t, c.Ping(ctx))
}
