package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"BBWPScreener/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const klinesPayload = `[
  [1704067200000, "100.5", "110.0", "99.0", "105.25", "1234.5", 1704081599999, "0", 10, "0", "0", "0"],
  [1704052800000, "98.0", "101.0", "97.5", "100.5", "900", 1704067199999, "0", 10, "0", "0", "0"],
  [1704067200000, "100.5", "111.0", "99.0", "106.00", "1300", 1704081599999, "0", 10, "0", "0", "0"]
]`

func newBinanceTestServer(t *testing.T, handler http.HandlerFunc) *BinanceFetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewBinanceFetcher(HTTPOptions{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil)
}

func TestBinanceFetcher_FetchBars(t *testing.T) {
	f := newBinanceTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "4h", r.URL.Query().Get("interval"))
		assert.Equal(t, "500", r.URL.Query().Get("limit"))
		fmt.Fprint(w, klinesPayload)
	})

	bars, err := f.FetchBars(context.Background(), "BTC/USDT", model.Timeframe4h, 500)
	require.NoError(t, err)
	require.Len(t, bars, 2, "duplicate open time must collapse")
	require.NoError(t, bars.Validate())

	assert.Equal(t, time.UnixMilli(1704052800000).UTC(), bars[0].Time)
	assert.Equal(t, 100.5, bars[0].Close)
	assert.Equal(t, 106.0, bars[1].Close, "latest duplicate wins")
	assert.Equal(t, 111.0, bars[1].High)
}

func TestBinanceFetcher_EmptyPayloadIsNotAnError(t *testing.T) {
	f := newBinanceTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	bars, err := f.FetchBars(context.Background(), "ETH/USDT", model.Timeframe1d, 10)
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestBinanceFetcher_ErrorStatusIsUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"rate limited", http.StatusTooManyRequests, `{"code":-1003}`},
		{"unknown symbol", http.StatusBadRequest, `{"code":-1121,"msg":"Invalid symbol."}`},
		{"server error", http.StatusBadGateway, `oops`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBinanceTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})
			_, err := f.FetchBars(context.Background(), "MATIC/USDT", model.Timeframe1d, 10)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnavailable))
		})
	}
}

func TestBinanceFetcher_RetriesRateLimit(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, klinesPayload)
	}))
	defer srv.Close()

	f := NewBinanceFetcher(HTTPOptions{BaseURL: srv.URL, Timeout: 5 * time.Second, Retries: 2}, nil)
	bars, err := f.FetchBars(context.Background(), "BTC/USDT", model.Timeframe4h, 500)
	require.NoError(t, err)
	assert.Len(t, bars, 2)
	assert.Equal(t, int32(2), hits.Load())
}

func TestBinanceFetcher_MalformedPayload(t *testing.T) {
	f := newBinanceTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[[1704067200000, "abc", "1", "1", "1", "1"]]`)
	})
	_, err := f.FetchBars(context.Background(), "BTC/USDT", model.Timeframe1d, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestBinanceFetcher_UnsupportedTimeframe(t *testing.T) {
	f := NewBinanceFetcher(HTTPOptions{BaseURL: "http://127.0.0.1:0"}, nil)
	_, err := f.FetchBars(context.Background(), "BTC/USDT", model.Timeframe("15m"), 10)
	assert.True(t, errors.Is(err, ErrUnsupportedTimeframe))
}

func TestBinanceSymbol(t *testing.T) {
	assert.Equal(t, "BTCUSDT", binanceSymbol("BTC/USDT"))
	assert.Equal(t, "ETHUSDT", binanceSymbol(" eth/usdt "))
}

func TestParseKlines_ShortRow(t *testing.T) {
	_, err := parseKlines([]byte(`[[1, "1", "1"]]`))
	assert.Error(t, err)
}
