package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"BBWPScreener/internal/model"
	"BBWPScreener/internal/screener"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultOpts = Options{LowThreshold: 15, RecentWindow: 6}

func fixture() *model.BatchReport {
	return &model.BatchReport{
		Timeframe: model.Timeframe4h,
		Results: []model.SymbolResult{
			{Symbol: "BTC/USDT", LastValue: 7.125, HasLast: true, LowCount: 5},
			{Symbol: "ETH/USDT", LastValue: 88, HasLast: true, LowCount: 0},
			{Symbol: "DOT/USDT", LowCount: 2},
		},
		Failures:     []model.SymbolFailure{{Symbol: "APT/USDT", Reason: "NoValidIndicator"}},
		SuccessCount: 3,
		FailureCount: 1,
		Total:        4,
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, fixture(), defaultOpts))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Symbol", "Last BBWP", "Periods <15 (last 6)"},
		{"BTC/USDT", "7.13", "5"},
		{"ETH/USDT", "88.00", "0"},
		{"DOT/USDT", "", "2"},
	}, records)
}

func TestExportCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")

	path, err := ExportCSV(dir, fixture(), defaultOpts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bbwp_results_4h.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Symbol,Last BBWP,Periods <15 (last 6)\n"))
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, fixture(), defaultOpts))
	out := buf.String()

	assert.Contains(t, out, "BBWP ranking | 4h")
	assert.Contains(t, out, "Last BBWP")
	assert.Contains(t, out, "7.13")
	assert.Contains(t, out, "88.00")
	assert.Contains(t, out, "3 ok, 1 failed, 4 total")
	assert.Contains(t, out, "APT/USDT (NoValidIndicator)")
	assert.Less(t, strings.Index(out, "BTC/USDT"), strings.Index(out, "DOT/USDT"))
}

func TestRenderTable_NoData(t *testing.T) {
	r := fixture()
	r.Results = nil
	r.SuccessCount = 0
	r.FailureCount = 4

	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, r, defaultOpts))
	out := buf.String()
	assert.Contains(t, out, "No data: all 4 symbols failed.")
	assert.NotContains(t, out, "Last BBWP")
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressPrinter(&buf)

	p.OnSymbolProcessed(screener.Progress{Symbol: "BTC/USDT", Processed: 1, Total: 2, Fraction: 0.5})
	p.OnSymbolProcessed(screener.Progress{Symbol: "ETH/USDT", Processed: 2, Total: 2, Fraction: 1, Err: errors.New("x")})
	p.OnBatchFinished(fixture())

	out := buf.String()
	assert.Contains(t, out, " 50% (1/2) BTC/USDT")
	assert.Contains(t, out, "100% (2/2)")
	assert.Contains(t, out, "ETH/USDT skipped")
	assert.True(t, strings.HasSuffix(out, "\n"))
}
