// Package backtest wires a configuration into a complete run: data provider,
// journal, strategy and simulator.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/config"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/market/data"
	"github.com/rustyeddy/papertrader/sim"
	"github.com/rustyeddy/papertrader/strategies"
	"go.uber.org/zap"
)

// Run executes the backtest described by cfg:
//  1. open the data provider and the journal
//  2. build the strategy and the engine
//  3. drive both engine loops until the window is exhausted
//
// The Org report is written when cfg.Journal.Report is set.
func Run(ctx context.Context, cfg *config.Config, log *zap.Logger) (Result, error) {
	if cfg == nil {
		return Result{}, fmt.Errorf("backtest: config is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return Result{}, fmt.Errorf("backtest: %w", err)
	}

	simCfg, err := engineConfig(cfg)
	if err != nil {
		return Result{}, fmt.Errorf("backtest: %w", err)
	}

	src, err := data.Open(cfg.Data.Feed, cfg.Data.Source)
	if err != nil {
		return Result{}, fmt.Errorf("backtest: open data: %w", err)
	}
	defer src.Close()

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return Result{}, fmt.Errorf("backtest: open journal: %w", err)
	}

	strat, err := strategies.ByName(cfg.Strategy.Name, cfg.StrategyParams())
	if err != nil {
		_ = j.Close()
		return Result{}, fmt.Errorf("backtest: %w", err)
	}

	opts := []sim.Option{sim.WithLogger(log), sim.WithJournal(j)}
	if cfg.Simulation.Seed != 0 {
		opts = append(opts, sim.WithSeed(cfg.Simulation.Seed))
	}
	e, err := sim.NewEngine(simCfg, src, opts...)
	if err != nil {
		_ = j.Close()
		return Result{}, fmt.Errorf("backtest: %w", err)
	}

	subs := make([]broker.Subscription, 0, len(cfg.Subscriptions))
	for _, sym := range cfg.Subscriptions {
		subs = append(subs, broker.Subscription{Symbol: sym, Type: broker.StreamBar})
	}

	log.Info("backtest starting",
		zap.String("strategy", strat.Name()),
		zap.Strings("symbols", cfg.Subscriptions),
		zap.Time("start", simCfg.Start),
		zap.Time("end", simCfg.End),
		zap.String("resolution", simCfg.Resolution.String()),
	)

	started := time.Now()
	runErr := e.Run(ctx,
		func(ctx context.Context, bar market.Bar) error { return strat.OnBar(ctx, e, bar) },
		func(ctx context.Context, u broker.TradeUpdate) error { return strat.OnTradeUpdate(ctx, e, u) },
		subs,
	)
	closeErr := j.Close()
	if runErr != nil {
		return Result{}, fmt.Errorf("backtest: %w", runErr)
	}
	if closeErr != nil {
		return Result{}, fmt.Errorf("backtest: close journal: %w", closeErr)
	}

	res := collect(ctx, e, strat.Name())
	res.Elapsed = time.Since(started)

	log.Info("backtest finished",
		zap.Int("ticks", res.Stats.Ticks),
		zap.Int("updates", res.Stats.Updates),
		zap.String("cash", res.Account.Cash.String()),
		zap.Duration("elapsed", res.Elapsed),
	)

	if path := cfg.Journal.Report; path != "" {
		if err := res.Report(cfg).WriteOrgFile(path); err != nil {
			return res, fmt.Errorf("backtest: %w", err)
		}
		res.ReportPath = path
	}
	return res, nil
}

// engineConfig maps the config file onto the simulator's settings.
func engineConfig(cfg *config.Config) (sim.Config, error) {
	start, end, err := cfg.Simulation.Window()
	if err != nil {
		return sim.Config{}, err
	}
	res, err := market.ParseResolution(cfg.Simulation.Resolution)
	if err != nil {
		return sim.Config{}, err
	}
	policy, err := sim.ParseTickFailure(cfg.Simulation.OnTickFailure)
	if err != nil {
		return sim.Config{}, err
	}
	return sim.Config{
		AccountID:     cfg.Account.ID,
		Currency:      cfg.Account.Currency,
		Cash:          cfg.Account.Cash,
		Leverage:      cfg.Account.Leverage,
		AllowShort:    cfg.Account.AllowShort,
		Mode:          strings.ToLower(cfg.Simulation.Mode),
		Start:         start,
		End:           end,
		Resolution:    res,
		TickRetries:   cfg.Simulation.TickRetries,
		OnTickFailure: policy,
	}, nil
}

func openJournal(c config.JournalConfig) (journal.Journal, error) {
	switch c.Type {
	case "", "none":
		return journal.Discard{}, nil
	case "csv":
		return journal.NewCSV(c.UpdatesFile, c.AccountFile)
	case "sqlite":
		return journal.NewSQLite(c.DBPath)
	default:
		return nil, errors.New("unknown journal type " + c.Type)
	}
}
