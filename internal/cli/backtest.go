package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rustyeddy/papertrader/backtest"
	"github.com/rustyeddy/papertrader/config"
	"github.com/rustyeddy/papertrader/internal/logging"
	"github.com/spf13/cobra"
)

type backtestOptions struct {
	configPath string
	start      string
	end        string
	strategy   string
	report     string
}

func newBacktestCmd(ro *rootOptions) *cobra.Command {
	o := &backtestOptions{}

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run a backtest from a config file",
		Long: `Run a strategy against historical bars as described by a config file.

Flags override the matching config values.

Example:
  papertrader backtest -c simulation.yaml --start 2024-02-01 --report run.org`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromFile(o.configPath)
			if err != nil {
				return err
			}
			if err := o.apply(cfg, ro); err != nil {
				return err
			}

			log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			res, err := backtest.Run(ctx, cfg, log)
			if err != nil {
				return err
			}
			backtest.Print(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&o.configPath, "config", "c", "simulation.yaml", "path to config file")
	cmd.Flags().StringVar(&o.start, "start", "", "override simulation.start (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&o.end, "end", "", "override simulation.end (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVarP(&o.strategy, "strategy", "s", "", "override strategy.name")
	cmd.Flags().StringVar(&o.report, "report", "", "write an Org report of the run to this path")
	return cmd
}

func (o *backtestOptions) apply(cfg *config.Config, ro *rootOptions) error {
	if o.start != "" {
		cfg.Simulation.Start = o.start
	}
	if o.end != "" {
		cfg.Simulation.End = o.end
	}
	if o.strategy != "" {
		cfg.Strategy.Name = o.strategy
	}
	if o.report != "" {
		cfg.Journal.Report = o.report
	}
	if ro.logLevel != "" {
		cfg.Log.Level = ro.logLevel
	}
	if ro.logFormat != "" {
		cfg.Log.Format = ro.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
