package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/rustyeddy/papertrader/config"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/spf13/cobra"
)

func newJournalCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Query a SQLite trade journal",
		Long: `Query the trade updates and account snapshots a backtest recorded.

Examples:
  papertrader journal updates --db backtest.sqlite
  papertrader journal updates 01HZX3... --db backtest.sqlite
  papertrader journal account 2024-01-02 2024-02-01 --db backtest.sqlite`,
	}
	cmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "./papertrader.sqlite", "path to SQLite journal DB")

	updatesCmd := &cobra.Command{
		Use:   "updates [order-id]",
		Short: "List trade updates, optionally for one order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := journal.NewSQLite(dbPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer j.Close()

			var orderID string
			if len(args) == 1 {
				orderID = args[0]
			}
			recs, err := j.ListUpdates(orderID)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tEVENT\tORDER\tSYMBOL\tSIDE\tTYPE\tQTY\tSTATUS\tPRICE")
			for _, r := range recs {
				price := ""
				if r.FilledPrice.Valid {
					price = r.FilledPrice.Decimal.String()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.Time.Format(time.RFC3339), r.Event, r.OrderID, r.Symbol, r.Side, r.Type, r.Qty, r.Status, price)
			}
			return tw.Flush()
		},
	}

	accountCmd := &cobra.Command{
		Use:   "account <start> <end>",
		Short: "List account snapshots with start <= time < end",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := config.ParseTime(args[0])
			if err != nil {
				return err
			}
			end, err := config.ParseTime(args[1])
			if err != nil {
				return err
			}

			j, err := journal.NewSQLite(dbPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer j.Close()

			snaps, err := j.ListAccountBetween(start, end)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tCASH\tBUYING POWER\tPOSITIONS\tUPL\tOPEN ORDERS")
			for _, s := range snaps {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n",
					s.Time.Format(time.RFC3339), s.Cash.StringFixed(2), s.BuyingPower.StringFixed(2),
					s.PositionsValue.StringFixed(2), s.UnrealizedPL.StringFixed(2), s.OpenOrders)
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(updatesCmd, accountCmd)
	return cmd
}
