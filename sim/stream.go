package sim

import (
	"context"
	"errors"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/internal/lockstep"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/market"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StartTradeStream runs the matching engine: each tick it waits for the
// driver, matches, hands every trade update to onUpdate, journals, and
// releases the driver. It returns nil when the driver runs out of ticks or
// either side is stopped.
func (e *Engine) StartTradeStream(ctx context.Context, onUpdate broker.TradeUpdateHandler) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	e.ctl.Lock()
	e.stopTrade = cancel
	e.ctl.Unlock()

	err := e.tradeLoop(ctx, onUpdate)
	e.barrier.Close(err)
	return streamResult(err)
}

func (e *Engine) tradeLoop(ctx context.Context, onUpdate broker.TradeUpdateHandler) error {
	for {
		t, err := e.barrier.Await(ctx)
		if err != nil {
			return stopCause(ctx, err)
		}

		work := &tickWork{tick: t, updates: e.match(t.Time)}
		if err := e.runTick(ctx, "trade", t, func() error { return e.finishTick(ctx, work, onUpdate) }); err != nil {
			return err
		}
		e.stats.Ticks++

		if err := e.barrier.Ack(ctx, t); err != nil {
			return stopCause(ctx, err)
		}
	}
}

// tickWork is the engine side of one tick. Matching runs once; the cursors
// let a retry pick up delivery and journaling where they failed.
type tickWork struct {
	tick      lockstep.Tick
	updates   []broker.TradeUpdate
	delivered int
	journaled int
	snapshot  bool
}

func (e *Engine) finishTick(ctx context.Context, w *tickWork, onUpdate broker.TradeUpdateHandler) error {
	fail := func(stage, symbol string, err error) error {
		return &TickError{Seq: w.tick.Seq, Time: w.tick.Time, Stage: stage, Symbol: symbol, Err: err}
	}

	for ; w.delivered < len(w.updates); w.delivered++ {
		u := w.updates[w.delivered]
		if onUpdate != nil {
			if err := onUpdate(ctx, u); err != nil {
				return fail(StageDeliver, u.Order.Asset.Symbol, err)
			}
		}
		e.stats.Updates++
	}

	for ; w.journaled < len(w.updates); w.journaled++ {
		u := w.updates[w.journaled]
		if err := e.journal.RecordUpdate(updateRecord(u)); err != nil {
			return fail(StageJournal, u.Order.Asset.Symbol, err)
		}
	}

	if !w.snapshot {
		if err := e.journal.RecordAccount(e.accountSnapshot(w.tick)); err != nil {
			return fail(StageJournal, "", err)
		}
		w.snapshot = true
		e.trackDrawdown()
	}
	return nil
}

func updateRecord(u broker.TradeUpdate) journal.UpdateRecord {
	rec := journal.UpdateRecord{
		Time:    u.Time,
		Event:   string(u.Event),
		OrderID: u.Order.ID,
		Symbol:  u.Order.Asset.Symbol,
		Side:    string(u.Order.Side),
		Type:    string(u.Order.Type),
		Qty:     u.Order.Qty,
		Status:  string(u.Order.Status),
	}
	if u.Order.FilledPrice != nil {
		rec.FilledPrice = decimal.NewNullDecimal(*u.Order.FilledPrice)
	}
	if u.Order.StopPrice != nil {
		rec.StopPrice = decimal.NewNullDecimal(*u.Order.StopPrice)
	}
	return rec
}

func (e *Engine) accountSnapshot(t lockstep.Tick) journal.AccountSnapshot {
	value, upl := e.ledger.totals()
	return journal.AccountSnapshot{
		Time:           t.Time,
		Cash:           e.ledger.account.Cash,
		BuyingPower:    e.ledger.account.BuyingPower,
		PositionsValue: value,
		UnrealizedPL:   upl,
		OpenOrders:     e.book.open(),
	}
}

// trackDrawdown updates the equity peak and the deepest fall from it. Cash
// is marked to market every tick, so it is the account's equity.
func (e *Engine) trackDrawdown() {
	equity := e.ledger.account.Cash
	if equity.GreaterThan(e.stats.PeakEquity) {
		e.stats.PeakEquity = equity
		return
	}
	if !e.stats.PeakEquity.IsPositive() {
		return
	}
	dd := e.stats.PeakEquity.Sub(equity).Div(e.stats.PeakEquity).Mul(hundred)
	if dd.GreaterThan(e.stats.MaxDrawdownPct) {
		e.stats.MaxDrawdownPct = dd
	}
}

// StopTradeStream ends the matching loop at its next tick boundary.
func (e *Engine) StopTradeStream() {
	e.ctl.Lock()
	stop := e.stopTrade
	e.ctl.Unlock()
	if stop != nil {
		stop(lockstep.ErrStopped)
	}
	e.barrier.Close(lockstep.ErrStopped)
}

// StreamMarketData runs the driver: it loads every subscription's history,
// then walks the clock from Start to End one resolution step at a time. Each
// tick it hands every subscribed asset's bar to onBar, publishes the tick to
// the matching engine and waits for it to finish. Assets without a bar at a
// tick are skipped.
func (e *Engine) StreamMarketData(ctx context.Context, onBar broker.BarHandler, subs []broker.Subscription) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	e.ctl.Lock()
	e.stopMarket = cancel
	e.ctl.Unlock()

	err := e.marketLoop(ctx, onBar, subs)
	e.barrier.Close(err)
	return streamResult(err)
}

func (e *Engine) marketLoop(ctx context.Context, onBar broker.BarHandler, subs []broker.Subscription) error {
	if err := e.subscribe(ctx, subs); err != nil {
		return err
	}

	step := e.cfg.Resolution.Duration()
	var seq uint64
	for now := e.cfg.Start; !now.After(e.cfg.End); now = now.Add(step) {
		if err := context.Cause(ctx); err != nil {
			return err
		}
		if e.barrier.Closed() {
			return e.barrier.Err()
		}

		e.now = now
		t := lockstep.Tick{Seq: seq, Time: now}
		seq++

		next := 0
		err := e.runTick(ctx, "market", t, func() error {
			for ; next < len(e.subs); next++ {
				sym := e.subs[next].Symbol
				bar, ok := e.bar(sym, now)
				if !ok || onBar == nil {
					continue
				}
				if err := onBar(ctx, bar); err != nil {
					return &TickError{Seq: t.Seq, Time: now, Stage: StageBar, Symbol: sym, Err: err}
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		if err := e.barrier.Publish(ctx, t); err != nil {
			return stopCause(ctx, err)
		}
	}

	e.log.Info("market data exhausted",
		zap.Time("start", e.cfg.Start),
		zap.Time("end", e.cfg.End),
		zap.Uint64("ticks", seq),
	)
	return nil
}

// subscribe loads history for every bar subscription before the first tick.
func (e *Engine) subscribe(ctx context.Context, subs []broker.Subscription) error {
	seen := make(map[string]bool, len(subs))
	for _, s := range subs {
		if s.Type != "" && s.Type != broker.StreamBar {
			return broker.NewError(broker.CodeUnsupportedDataFeed, "symbol", s.Symbol, "stream", string(s.Type))
		}
		sym := market.NormalizeSymbol(s.Symbol)
		if seen[sym] {
			e.log.Warn("duplicate subscription ignored", zap.String("symbol", sym))
			continue
		}
		seen[sym] = true

		res := s.TimeFrame
		if res.IsZero() {
			res = e.cfg.Resolution
		}

		asset, err := e.GetAsset(ctx, sym)
		if err != nil {
			return err
		}
		series, err := e.provider.LoadHistory(ctx, asset.Symbol, e.cfg.Start, e.cfg.End, res)
		if err != nil {
			return err
		}

		e.history[asset.Symbol] = series
		e.subs = append(e.subs, broker.Subscription{Symbol: asset.Symbol, Type: broker.StreamBar, TimeFrame: res})
		e.log.Info("subscribed",
			zap.String("symbol", asset.Symbol),
			zap.String("resolution", res.String()),
			zap.Int("bars", series.Len()),
		)
	}
	return nil
}

// StopMarketStream ends the driver at its next tick boundary.
func (e *Engine) StopMarketStream() {
	e.ctl.Lock()
	stop := e.stopMarket
	e.ctl.Unlock()
	if stop != nil {
		stop(lockstep.ErrStopped)
	}
	e.barrier.Close(lockstep.ErrStopped)
}

// stopCause prefers the reason ctx ended over the barrier's error.
func stopCause(ctx context.Context, err error) error {
	if cerr := context.Cause(ctx); cerr != nil {
		return cerr
	}
	return err
}

// streamResult maps a loop's exit reason to what its caller sees. Running out
// of ticks, a stop request, or the peer closing the barrier are clean exits.
func streamResult(err error) error {
	if err == nil || errors.Is(err, lockstep.ErrClosed) || errors.Is(err, lockstep.ErrStopped) {
		return nil
	}
	return err
}
