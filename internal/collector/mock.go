package collector

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"BBWPScreener/internal/model"
)

var mockAnchor = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// MockFetcher returns controllable fixed data for development and testing.
// Symbols without an entry in Series get a deterministic synthetic series.
type MockFetcher struct {
	BasePrice float64
	Series    map[string]model.Series
	Errors    map[string]error

	mu    sync.Mutex
	calls map[string]int
}

func NewMockFetcher(basePrice float64) *MockFetcher {
	return &MockFetcher{
		BasePrice: basePrice,
		Series:    map[string]model.Series{},
		Errors:    map[string]error{},
		calls:     map[string]int{},
	}
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchBars(ctx context.Context, symbol string, tf model.Timeframe, limit int) (model.Series, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[symbol]++
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := m.Errors[symbol]; ok {
		return nil, err
	}
	if s, ok := m.Series[symbol]; ok {
		return trimToLimit(append(model.Series(nil), s...), limit), nil
	}
	return generateMockBars(symbol, m.BasePrice, tf, limit), nil
}

// Calls reports how many times symbol was requested.
func (m *MockFetcher) Calls(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[symbol]
}

func generateMockBars(symbol string, basePrice float64, tf model.Timeframe, count int) model.Series {
	if basePrice <= 0 {
		basePrice = 100
	}
	h := fnv.New32a()
	h.Write([]byte(symbol))
	phase := float64(h.Sum32()%628) / 100

	step := tf.Duration()
	if step == 0 {
		step = 24 * time.Hour
	}
	bars := make(model.Series, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + 0.05*math.Sin(float64(i)/9+phase) + float64(i-count/2)*0.0005)
		bars[i] = model.OHLCV{
			Time:   mockAnchor.Add(time.Duration(i) * step),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}
