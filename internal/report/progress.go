package report

import (
	"fmt"
	"io"
	"strings"

	"BBWPScreener/internal/model"
	"BBWPScreener/internal/screener"

	"github.com/charmbracelet/lipgloss"
)

const barWidth = 30

var (
	barStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
)

// ProgressPrinter renders a one-line progress bar, typically on stderr.
type ProgressPrinter struct {
	w io.Writer
}

func NewProgressPrinter(w io.Writer) *ProgressPrinter {
	return &ProgressPrinter{w: w}
}

func (p *ProgressPrinter) OnSymbolProcessed(pr screener.Progress) {
	filled := int(pr.Fraction * barWidth)
	bar := barStyle.Render(strings.Repeat("█", filled)) + strings.Repeat("░", barWidth-filled)
	status := pr.Symbol
	if pr.Err != nil {
		status = failStyle.Render(pr.Symbol + " skipped")
	}
	fmt.Fprintf(p.w, "\r\033[K%s %3.0f%% (%d/%d) %s", bar, pr.Fraction*100, pr.Processed, pr.Total, status)
}

func (p *ProgressPrinter) OnBatchFinished(*model.BatchReport) {
	fmt.Fprintln(p.w)
}
