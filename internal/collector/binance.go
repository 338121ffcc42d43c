package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"BBWPScreener/internal/model"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	binanceBaseURL  = "https://api.binance.com"
	binanceMaxLimit = 1000
)

var binanceIntervals = map[model.Timeframe]string{
	model.Timeframe4h: "4h",
	model.Timeframe1d: "1d",
	model.Timeframe1w: "1w",
}

// BinanceFetcher implements Fetcher using the Binance spot klines endpoint.
type BinanceFetcher struct {
	client *resty.Client
	logger *zap.Logger
}

// NewBinanceFetcher creates a fetcher with retry on rate limits and server errors.
func NewBinanceFetcher(opts HTTPOptions, logger *zap.Logger) *BinanceFetcher {
	opts = opts.withDefaults(binanceBaseURL)
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})
	if opts.Proxy != "" {
		client.SetProxy(opts.Proxy)
	}

	return &BinanceFetcher{client: client, logger: logger}
}

func (f *BinanceFetcher) Name() string { return "binance" }

// binanceSymbol turns "BTC/USDT" into the exchange's "BTCUSDT".
func binanceSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(symbol), "/", ""))
}

func (f *BinanceFetcher) FetchBars(ctx context.Context, symbol string, tf model.Timeframe, limit int) (model.Series, error) {
	interval, ok := binanceIntervals[tf]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTimeframe, tf)
	}
	if limit <= 0 || limit > binanceMaxLimit {
		limit = binanceMaxLimit
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":   binanceSymbol(symbol),
			"interval": interval,
			"limit":    strconv.Itoa(limit),
		}).
		Get("/api/v3/klines")
	if err != nil {
		return nil, fmt.Errorf("%w: binance klines %s: %w", ErrUnavailable, symbol, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: binance klines %s: status %d, body: %s",
			ErrUnavailable, symbol, resp.StatusCode(), truncate(resp.String(), 200))
	}

	bars, err := parseKlines(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("%w: binance klines %s: %w", ErrUnavailable, symbol, err)
	}
	f.logger.Debug("binance klines fetched",
		zap.String("symbol", symbol), zap.String("interval", interval), zap.Int("bars", len(bars)))
	return normalizeSeries(bars), nil
}

// parseKlines decodes the kline array format:
// [openTime, "open", "high", "low", "close", "volume", closeTime, ...].
func parseKlines(body []byte) (model.Series, error) {
	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}
	bars := make(model.Series, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("kline %d: expected at least 6 fields, got %d", i, len(row))
		}
		var openTime int64
		if err := json.Unmarshal(row[0], &openTime); err != nil {
			return nil, fmt.Errorf("kline %d open time: %w", i, err)
		}
		var vals [5]float64
		for j := range vals {
			v, err := decimalField(row[j+1])
			if err != nil {
				return nil, fmt.Errorf("kline %d field %d: %w", i, j+1, err)
			}
			vals[j] = v
		}
		bars = append(bars, model.OHLCV{
			Time:   time.UnixMilli(openTime).UTC(),
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}
	return bars, nil
}

func decimalField(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// some mirrors send bare numbers
		s = string(raw)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
