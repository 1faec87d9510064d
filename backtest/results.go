package backtest

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/config"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/pkg/id"
	"github.com/rustyeddy/papertrader/sim"
	"github.com/shopspring/decimal"
)

// Result is the summary of a backtest run.
type Result struct {
	RunID    string
	Strategy string

	Start time.Time
	End   time.Time

	StartCash decimal.Decimal
	Account   broker.Account
	Positions map[string]broker.Position

	// Orders counts orders by final status.
	Orders map[broker.OrderStatus]int
	Stats  sim.Stats

	Elapsed    time.Duration
	ReportPath string
}

func (r Result) NetPL() decimal.Decimal {
	return r.Account.Cash.Sub(r.StartCash)
}

func collect(ctx context.Context, e *sim.Engine, strategy string) Result {
	acct, _ := e.GetAccount(ctx)
	ec := e.Config()

	orders := make(map[broker.OrderStatus]int)
	for _, o := range e.GetOrders(ctx) {
		orders[o.Status]++
	}

	return Result{
		RunID:     id.NewRandomGenerator().New(time.Now()),
		Strategy:  strategy,
		Start:     ec.Start,
		End:       ec.End,
		StartCash: ec.Cash,
		Account:   acct,
		Positions: e.GetPositions(ctx),
		Orders:    orders,
		Stats:     e.Stats(),
	}
}

// Report converts r into the journal's Org report.
func (r Result) Report(cfg *config.Config) journal.RunReport {
	orders := make(map[string]int, len(r.Orders))
	for status, n := range r.Orders {
		orders[string(status)] = n
	}
	return journal.RunReport{
		RunID:       r.RunID,
		Created:     time.Now(),
		Account:     r.Account.ID,
		Strategy:    r.Strategy,
		Symbols:     cfg.Subscriptions,
		Resolution:  cfg.Simulation.Resolution,
		Dataset:     cfg.Data.Feed + ":" + cfg.Data.Source,
		Start:       r.Start,
		End:         r.End,
		Ticks:       r.Stats.Ticks,
		StartEquity: r.StartCash,
		EndEquity:   r.Account.Cash,
		MaxDDPct:    r.Stats.MaxDrawdownPct,
		Orders:      orders,
		Updates:     r.Stats.Updates,
	}
}

func Print(w io.Writer, r Result) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintf(w, "Run ID:        %s\n", r.RunID)
	fmt.Fprintf(w, "Strategy:      %s\n", r.Strategy)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Period")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start:         %s\n", r.Start.Format(time.RFC3339))
	fmt.Fprintf(w, "End:           %s\n", r.End.Format(time.RFC3339))
	fmt.Fprintf(w, "Ticks:         %d\n", r.Stats.Ticks)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Orders")
	fmt.Fprintln(w, "--------------------------------------------------")
	for _, status := range []broker.OrderStatus{broker.StatusNew, broker.StatusFilled, broker.StatusClosed, broker.StatusCanceled} {
		fmt.Fprintf(w, "%-14s %d\n", string(status)+":", r.Orders[status])
	}
	fmt.Fprintf(w, "Updates:       %d\n", r.Stats.Updates)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start Cash:    %s\n", r.StartCash.StringFixed(2))
	fmt.Fprintf(w, "End Cash:      %s\n", r.Account.Cash.StringFixed(2))
	fmt.Fprintf(w, "Buying Power:  %s\n", r.Account.BuyingPower.StringFixed(2))
	fmt.Fprintf(w, "Net P/L:       %s\n", r.NetPL().StringFixed(2))
	if r.Stats.MaxDrawdownPct.IsPositive() {
		fmt.Fprintf(w, "Max Drawdown:  %s%%\n", r.Stats.MaxDrawdownPct.StringFixed(2))
	}

	symbols := make([]string, 0, len(r.Positions))
	for sym, p := range r.Positions {
		if !p.Qty.IsZero() {
			symbols = append(symbols, sym)
		}
	}
	if len(symbols) > 0 {
		sort.Strings(symbols)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Open Positions")
		fmt.Fprintln(w, "--------------------------------------------------")
		for _, sym := range symbols {
			p := r.Positions[sym]
			fmt.Fprintf(w, "%-8s %s qty=%s avg=%s upl=%s\n",
				sym, p.Side, p.Qty, p.AvgEntryPrice.StringFixed(2), p.UnrealizedPL.StringFixed(2))
		}
	}

	if r.ReportPath != "" {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Org Report:    %s\n", r.ReportPath)
	}
	fmt.Fprintln(w)
}
