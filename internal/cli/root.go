// Package cli holds the papertrader command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags.
var Version = "dev"

type rootOptions struct {
	logLevel  string
	logFormat string
}

func NewRootCmd() *cobra.Command {
	ro := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "papertrader",
		Short: "Deterministic paper brokerage backtests",
		Long: `papertrader replays historical bars through a simulated brokerage.

Strategies see the same broker interface a live account would offer:
orders, positions, an account and a trade update stream. The clock only
moves when every subscriber has finished with the current bar.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&ro.logLevel, "log-level", "", "override log level: debug|info|warn|error")
	cmd.PersistentFlags().StringVar(&ro.logFormat, "log-format", "", "override log format: console|json")

	cmd.AddCommand(
		newBacktestCmd(ro),
		newConfigCmd(),
		newJournalCmd(),
		newStrategiesCmd(),
		newVersionCmd(),
	)
	return cmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
