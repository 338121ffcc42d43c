package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"BBWPScreener/internal/model"

	"github.com/go-resty/resty/v2"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooFetcher implements Fetcher using the Yahoo Finance chart API.
type YahooFetcher struct {
	client    *resty.Client
	SymbolMap map[string]string // maps a universe symbol to a Yahoo ticker
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(opts HTTPOptions) *YahooFetcher {
	opts = opts.withDefaults(yahooBaseURL)
	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetHeader("User-Agent", "Mozilla/5.0")
	if opts.Proxy != "" {
		client.SetProxy(opts.Proxy)
	}
	return &YahooFetcher{
		client:    client,
		SymbolMap: map[string]string{},
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

// yahooSymbol maps "BTC/USDT" to "BTC-USD"; stablecoin quotes are priced in USD on Yahoo.
func (f *YahooFetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	base, quote, found := strings.Cut(symbol, "/")
	if !found {
		return symbol
	}
	switch quote {
	case "USDT", "USDC", "BUSD", "FDUSD":
		quote = "USD"
	}
	return base + "-" + quote
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func at(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return 0
	}
	return *vals[i]
}

func (f *YahooFetcher) FetchBars(ctx context.Context, symbol string, tf model.Timeframe, limit int) (model.Series, error) {
	var (
		bars model.Series
		err  error
	)
	switch tf {
	case model.Timeframe1d:
		bars, err = f.fetchChart(ctx, symbol, "1d", dailyRange(limit))
	case model.Timeframe1w:
		bars, err = f.fetchChart(ctx, symbol, "1wk", weeklyRange(limit))
	case model.Timeframe4h:
		// no native 4h interval: aggregate hourly bars, capped at Yahoo's two-year intraday window
		rng := dailyRange(limit/6 + 2)
		if rng == "5y" {
			rng = "2y"
		}
		bars, err = f.fetchChart(ctx, symbol, "1h", rng)
		if err == nil {
			bars = aggregateBars(bars, func(t time.Time) time.Time { return t.UTC().Truncate(4 * time.Hour) })
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTimeframe, tf)
	}
	if err != nil {
		return nil, err
	}
	return trimToLimit(bars, limit), nil
}

func dailyRange(days int) string {
	switch {
	case days <= 30:
		return "1mo"
	case days <= 90:
		return "3mo"
	case days <= 180:
		return "6mo"
	case days <= 365:
		return "1y"
	case days <= 730:
		return "2y"
	default:
		return "5y"
	}
}

func weeklyRange(weeks int) string {
	switch {
	case weeks <= 26:
		return "6mo"
	case weeks <= 52:
		return "1y"
	case weeks <= 104:
		return "2y"
	case weeks <= 260:
		return "5y"
	default:
		return "10y"
	}
}

func (f *YahooFetcher) fetchChart(ctx context.Context, symbol, interval, rng string) (model.Series, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"interval": interval, "range": rng}).
		Get("/v8/finance/chart/" + url.PathEscape(f.yahooSymbol(symbol)))
	if err != nil {
		return nil, fmt.Errorf("%w: yahoo fetch %s: %w", ErrUnavailable, symbol, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: yahoo %s: status %d, body: %s",
			ErrUnavailable, symbol, resp.StatusCode(), truncate(resp.String(), 200))
	}

	var chart yahooChart
	if err := json.Unmarshal(resp.Body(), &chart); err != nil {
		return nil, fmt.Errorf("%w: yahoo decode %s: %w", ErrUnavailable, symbol, err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("%w: yahoo api error: %s", ErrUnavailable, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return model.Series{}, nil
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make(model.Series, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		o, h, l, c := at(quote.Open, i), at(quote.High, i), at(quote.Low, i), at(quote.Close, i)
		if o == 0 && h == 0 && l == 0 && c == 0 {
			continue // null bars (exchange halts, partial candles)
		}
		bars = append(bars, model.OHLCV{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: at(quote.Volume, i),
		})
	}
	return normalizeSeries(bars), nil
}

// aggregateBars folds consecutive bars sharing a bucket start into one bar.
// Input must be chronological.
func aggregateBars(bars model.Series, bucket func(time.Time) time.Time) model.Series {
	if len(bars) == 0 {
		return bars
	}
	var (
		out     model.Series
		cur     model.OHLCV
		curKey  time.Time
		started bool
	)
	for _, b := range bars {
		key := bucket(b.Time)
		if !started || !key.Equal(curKey) {
			if started {
				out = append(out, cur)
			}
			cur = model.OHLCV{Time: key, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
			curKey = key
			started = true
			continue
		}
		if b.High > cur.High {
			cur.High = b.High
		}
		if b.Low < cur.Low {
			cur.Low = b.Low
		}
		cur.Close = b.Close
		cur.Volume += b.Volume
	}
	return append(out, cur)
}
