package cli

import (
	"fmt"

	"github.com/rustyeddy/papertrader/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Generate or validate configuration files",
		Long: `Manage backtest configuration files.

Examples:
  papertrader config init -o simulation.yaml
  papertrader config validate -f simulation.yaml`,
	}

	var output string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Default().SaveToFile(output); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created default configuration: %s\n", output)
			fmt.Fprintln(out, "\nEdit the file and run with:")
			fmt.Fprintf(out, "  papertrader backtest -c %s\n", output)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", "simulation.yaml", "output config file path (.yaml or .json)")

	var path string
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromFile(path)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration valid: %s\n", path)
			fmt.Fprintf(out, "  Account:  %s (%s %s, leverage %s)\n",
				cfg.Account.ID, cfg.Account.Cash.StringFixed(2), cfg.Account.Currency, cfg.Account.Leverage)
			fmt.Fprintf(out, "  Window:   %s .. %s @ %s\n",
				cfg.Simulation.Start, cfg.Simulation.End, cfg.Simulation.Resolution)
			fmt.Fprintf(out, "  Data:     %s %s\n", cfg.Data.Feed, cfg.Data.Source)
			fmt.Fprintf(out, "  Strategy: %s %s\n", cfg.Strategy.Name, cfg.Strategy.Symbol)
			fmt.Fprintf(out, "  Journal:  %s\n", cfg.Journal.Type)
			return nil
		},
	}
	validateCmd.Flags().StringVarP(&path, "file", "f", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("file")

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}
