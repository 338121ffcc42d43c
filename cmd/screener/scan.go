package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"BBWPScreener/internal/config"
	"BBWPScreener/internal/model"
	"BBWPScreener/internal/report"
	"BBWPScreener/internal/screener"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newScanCmd() *cobra.Command {
	var (
		timeframe string
		export    bool
		workers   int
		quiet     bool
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one scan over the universe and print the ranking",
		Example: `  screener scan --timeframe 4h
  screener scan -t 1w --export --workers 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cmd, func(cfg *config.Config) error {
				if timeframe != "" {
					cfg.Timeframe = timeframe
				}
				if workers > 0 {
					cfg.Workers = workers
				}
				return nil
			})
			if err != nil {
				return err
			}
			defer a.Close()

			return runScan(ctx, cmd, a, export, quiet)
		},
	}
	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "", "timeframe: 4h, 1d or 1w (default from config)")
	cmd.Flags().BoolVar(&export, "export", false, "write bbwp_results_<timeframe>.csv to the export dir")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "symbols processed concurrently (default from config)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide the progress bar")
	return cmd
}

func runScan(ctx context.Context, cmd *cobra.Command, a *app, export, quiet bool) error {
	cfg := a.cfg
	tf := cfg.DefaultTimeframe()

	var observers []screener.Observer
	if !quiet {
		observers = append(observers, report.NewProgressPrinter(cmd.ErrOrStderr()))
	}
	agg := screener.NewAggregator(a.fetcher,
		screener.WithParams(cfg.Params()),
		screener.WithWorkers(cfg.Workers),
		screener.WithObservers(observers...),
		screener.WithLogger(a.logger),
	)

	rep, runErr := agg.Run(ctx, cfg.Universe, tf)
	if rep == nil {
		return runErr
	}

	opts := report.Options{LowThreshold: cfg.Indicator.LowThreshold, RecentWindow: cfg.Indicator.RecentWindow}
	if err := report.RenderTable(cmd.OutOrStdout(), rep, opts); err != nil {
		return err
	}

	if export && !rep.NoData() {
		path, err := report.ExportCSV(cfg.Export.Dir, rep, opts)
		if err != nil {
			return err
		}
		a.logger.Info("results exported", zap.String("path", path))
		fmt.Fprintf(cmd.OutOrStdout(), "exported %s\n", path)
	}
	return scanResult(rep, runErr)
}

// scanResult keeps the global empty condition distinguishable for the exit code.
func scanResult(rep *model.BatchReport, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, screener.ErrGlobalEmptyResult):
		return fmt.Errorf("%s scan: %w", rep.Timeframe, err)
	case rep.Aborted:
		return fmt.Errorf("%s scan interrupted: %w", rep.Timeframe, err)
	}
	return err
}
