package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"BBWPScreener/internal/model"
)

// FileName is the export name for a timeframe, e.g. bbwp_results_4h.csv.
func FileName(tf model.Timeframe) string {
	return fmt.Sprintf("bbwp_results_%s.csv", tf)
}

// WriteCSV writes the ranked rows. Missing last values are left empty.
func WriteCSV(w io.Writer, r *model.BatchReport, opts Options) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Symbol", "Last BBWP", lowCountHeader(opts)}); err != nil {
		return err
	}
	for _, res := range r.Results {
		last := ""
		if res.HasLast {
			last = formatValue(res.LastValue)
		}
		if err := cw.Write([]string{res.Symbol, last, strconv.Itoa(res.LowCount)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportCSV writes the report into dir and returns the file path.
func ExportCSV(dir string, r *model.BatchReport, opts Options) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, FileName(r.Timeframe))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	if err := WriteCSV(f, r, opts); err != nil {
		f.Close()
		return "", fmt.Errorf("write csv: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}
