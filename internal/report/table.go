package report

import (
	"fmt"
	"io"
	"strconv"

	"BBWPScreener/internal/model"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	lowStyle = cellStyle.
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

// Options carries the extraction settings shown in column headers.
type Options struct {
	LowThreshold float64
	RecentWindow int
}

func formatValue(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func formatThreshold(v float64) string {
	return decimal.NewFromFloat(v).String()
}

func lowCountHeader(opts Options) string {
	return fmt.Sprintf("Periods <%s (last %d)", formatThreshold(opts.LowThreshold), opts.RecentWindow)
}

// RenderTable writes the ranked results and a summary line. A report without a
// single success gets an explicit no-data banner instead of an empty table.
func RenderTable(w io.Writer, r *model.BatchReport, opts Options) error {
	title := titleStyle.Render(fmt.Sprintf("BBWP ranking | %s", r.Timeframe))

	if r.NoData() {
		_, err := fmt.Fprintf(w, "%s\n%s\n%s\n", title,
			errorStyle.Render(fmt.Sprintf("No data: all %d symbols failed.", r.Total)),
			failureLine(r))
		return err
	}

	rows := make([][]string, 0, len(r.Results))
	squeezed := make(map[int]bool)
	for i, res := range r.Results {
		last := "-"
		if res.HasLast {
			last = formatValue(res.LastValue)
			squeezed[i] = res.LastValue < opts.LowThreshold
		}
		rows = append(rows, []string{res.Symbol, last, strconv.Itoa(res.LowCount)})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers("Symbol", "Last BBWP", lowCountHeader(opts)).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case squeezed[row]:
				return lowStyle
			default:
				return cellStyle
			}
		})

	summary := fmt.Sprintf("%d ok, %d failed, %d total", r.SuccessCount, r.FailureCount, r.Total)
	if r.Aborted {
		summary += " (aborted)"
	}
	_, err := fmt.Fprintf(w, "%s\n%s\n%s\n%s\n", title, t.Render(), summary, failureLine(r))
	return err
}

func failureLine(r *model.BatchReport) string {
	if len(r.Failures) == 0 {
		return ""
	}
	line := "Skipped:"
	for _, f := range r.Failures {
		line += fmt.Sprintf(" %s (%s)", f.Symbol, f.Reason)
	}
	return mutedStyle.Render(line)
}
