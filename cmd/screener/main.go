package main

import (
	"errors"
	"fmt"
	"os"

	"BBWPScreener/internal/screener"

	"github.com/spf13/cobra"
)

var version = "dev"

// exit codes
const (
	exitError  = 1
	exitNoData = 2
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, screener.ErrGlobalEmptyResult) {
			os.Exit(exitNoData)
		}
		os.Exit(exitError)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "screener",
		Short: "BBWP volatility screener",
		Long: `screener ranks a universe of symbols by BBWP, the position of the close inside
its trailing high-low range, and counts recent periods below the low threshold.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "", "configuration file path (default $CONFIG_PATH or configs/config.yaml)")

	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bbwp screener %s\n", version)
		},
	}
}
