package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"BBWPScreener/internal/model"

	"github.com/shopspring/decimal"
)

// maxRows keeps a report inside Telegram's 4096 character limit.
const maxRows = 60

// FormatOptions carries the extraction settings shown in a report.
type FormatOptions struct {
	LowThreshold float64
	RecentWindow int
}

func round2(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// FormatBatchReport formats a ranked batch into a Telegram HTML message.
func FormatBatchReport(r *model.BatchReport, opts FormatOptions) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>BBWP Screener</b> | %s | %s\n\n",
		r.Timeframe, r.FinishedAt.UTC().Format("2006-01-02 15:04 MST")))

	if r.NoData() {
		b.WriteString("⚠️ <b>No data</b>: no symbol could be processed.\n")
		b.WriteString(fmt.Sprintf("Failed: %d/%d\n", r.FailureCount, r.Total))
		writeFailures(&b, r.Failures)
		return b.String()
	}

	threshold := round2(opts.LowThreshold)
	b.WriteString(fmt.Sprintf("<pre>%-12s %8s %6s\n", "Symbol", "BBWP", html.EscapeString("<"+threshold)))
	for i, res := range r.Results {
		if i == maxRows {
			b.WriteString(fmt.Sprintf("... %d more\n", len(r.Results)-maxRows))
			break
		}
		last := "-"
		if res.HasLast {
			last = round2(res.LastValue)
		}
		b.WriteString(fmt.Sprintf("%-12s %8s %6s\n",
			html.EscapeString(res.Symbol), last, fmt.Sprintf("%d/%d", res.LowCount, opts.RecentWindow)))
	}
	b.WriteString("</pre>\n")

	var squeezed []string
	for _, res := range r.Results {
		if res.HasLast && res.LastValue < opts.LowThreshold {
			squeezed = append(squeezed, html.EscapeString(res.Symbol))
		}
	}
	if len(squeezed) > 0 {
		b.WriteString(fmt.Sprintf("🔻 Below %s: %s\n", threshold, strings.Join(squeezed, ", ")))
	}

	b.WriteString(fmt.Sprintf("\n✅ %d ok | ❌ %d failed | %s\n", r.SuccessCount, r.FailureCount, r.Duration().Round(time.Millisecond)))
	if r.Aborted {
		b.WriteString("⏹ Run aborted before the whole universe was processed.\n")
	}
	writeFailures(&b, r.Failures)
	return b.String()
}

func writeFailures(b *strings.Builder, failures []model.SymbolFailure) {
	if len(failures) == 0 {
		return
	}
	names := make([]string, len(failures))
	for i, f := range failures {
		names[i] = fmt.Sprintf("%s (%s)", html.EscapeString(f.Symbol), f.Reason)
	}
	b.WriteString("Skipped: " + strings.Join(names, ", ") + "\n")
}

// FormatHelp lists the bot commands.
func FormatHelp() string {
	var b strings.Builder
	b.WriteString("🤖 <b>BBWP Screener</b>\n\n")
	b.WriteString("/scan [4h|1d|1w] - run a scan now\n")
	b.WriteString("/status - last run per timeframe\n")
	b.WriteString("/help - this message\n")
	return b.String()
}
