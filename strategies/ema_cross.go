package strategies

import (
	"context"
	"errors"
	"fmt"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/market/indicators"
	"github.com/rustyeddy/papertrader/risk"
	"github.com/shopspring/decimal"
)

// EMACross trades one symbol long-only on a fast/slow EMA crossover of bar
// closes:
//   - enters on a bull cross when flat
//   - closes the position on a bear cross
//   - sizes from RiskPct and the stop distance when both are set
type EMACross struct {
	Params

	fast *indicators.EMA
	slow *indicators.EMA
	adx  *indicators.ADX

	lastDiff     float64
	haveLastDiff bool

	// Signals counts crosses seen, entries and exits taken.
	Signals, Entries, Exits int
	// Rejected counts entries the risk policy turned down.
	Rejected int
}

func NewEMACross(p Params) (*EMACross, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("ema-cross: symbol is required")
	}
	if p.Fast <= 0 {
		p.Fast = 10
	}
	if p.Slow <= 0 {
		p.Slow = 30
	}
	if p.Fast >= p.Slow {
		return nil, fmt.Errorf("ema-cross: fast period %d must be below slow period %d", p.Fast, p.Slow)
	}
	if !p.Qty.IsPositive() && !p.RiskPct.IsPositive() {
		return nil, fmt.Errorf("ema-cross: qty or risk_pct must be positive")
	}
	if p.RiskPct.IsPositive() && !p.StopLossPct.IsPositive() {
		return nil, fmt.Errorf("ema-cross: risk_pct sizing needs stop_loss_pct")
	}
	p.Symbol = market.NormalizeSymbol(p.Symbol)

	s := &EMACross{
		Params: p,
		fast:   indicators.NewEMA(p.Fast),
		slow:   indicators.NewEMA(p.Slow),
	}
	if p.ADXPeriod > 0 {
		s.adx = indicators.NewADX(p.ADXPeriod)
	}
	return s, nil
}

func (s *EMACross) Name() string { return "ema-cross" }

func (s *EMACross) OnBar(ctx context.Context, b broker.Broker, bar market.Bar) error {
	if bar.Symbol != s.Symbol {
		return nil
	}

	c := bar.Close.InexactFloat64()
	s.fast.Update(c)
	s.slow.Update(c)
	if s.adx != nil {
		s.adx.Update(bar)
	}

	if !s.fast.Ready() || !s.slow.Ready() {
		return nil
	}

	diff := s.fast.Float64() - s.slow.Float64()
	if !s.haveLastDiff {
		s.lastDiff = diff
		s.haveLastDiff = true
		return nil
	}

	bullCross := diff > 0 && s.lastDiff <= 0
	bearCross := diff < 0 && s.lastDiff >= 0
	s.lastDiff = diff

	switch {
	case bullCross:
		s.Signals++
		return s.enter(ctx, b, bar)
	case bearCross:
		s.Signals++
		return s.exit(ctx, b)
	}
	return nil
}

func (s *EMACross) trending() bool {
	return s.adx == nil || (s.adx.Ready() && s.adx.Float64() >= s.MinADX)
}

func (s *EMACross) enter(ctx context.Context, b broker.Broker, bar market.Bar) error {
	if pos, ok := b.GetPosition(ctx, s.Symbol); ok && !pos.Qty.IsZero() {
		return nil
	}
	if !s.trending() {
		return nil
	}

	asset, err := b.GetAsset(ctx, s.Symbol)
	if err != nil {
		return fmt.Errorf("ema-cross: %w", err)
	}
	acct, err := b.GetAccount(ctx)
	if err != nil {
		return fmt.Errorf("ema-cross: %w", err)
	}

	entry := bar.Close
	tp, sl := legs(asset, entry, s.TakeProfitPct, s.StopLossPct)

	qty := s.Qty
	if s.RiskPct.IsPositive() {
		res, err := risk.Size(risk.Inputs{
			Equity:       acct.Cash,
			RiskPct:      s.RiskPct,
			Entry:        entry,
			Stop:         *sl,
			Step:         asset.MinOrderSize,
			Fractionable: asset.Fractionable,
		})
		if err != nil {
			return fmt.Errorf("ema-cross: size: %w", err)
		}
		qty = res.Qty
	}
	if !qty.IsPositive() {
		s.Rejected++
		return nil
	}

	if sl != nil {
		intent := risk.Intent{Symbol: s.Symbol, Qty: qty, Entry: entry, Stop: *sl}
		if tp != nil {
			intent.TakeProfit = *tp
		}
		if d := risk.Evaluate(s.Policy, intent, exposure(ctx, b, acct.Cash)); !d.Allowed {
			s.Rejected++
			return nil
		}
	}

	_, err = b.SubmitOrder(ctx, broker.OrderRequest{
		Symbol:     s.Symbol,
		Qty:        qty,
		Side:       broker.Buy,
		Type:       broker.Market,
		TakeProfit: tp,
		StopLoss:   sl,
	})
	switch {
	case errors.Is(err, broker.ErrInsufficientBalance):
		s.Rejected++
		return nil
	case err != nil:
		return fmt.Errorf("ema-cross: submit: %w", err)
	}
	s.Entries++
	return nil
}

func (s *EMACross) exit(ctx context.Context, b broker.Broker) error {
	_, err := b.ClosePosition(ctx, s.Symbol, broker.ClosePositionOptions{})
	if errors.Is(err, broker.ErrNoPosition) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("ema-cross: close: %w", err)
	}
	s.Exits++
	return nil
}

func (s *EMACross) OnTradeUpdate(ctx context.Context, b broker.Broker, u broker.TradeUpdate) error {
	return nil
}

func exposure(ctx context.Context, b broker.Broker, equity decimal.Decimal) risk.Exposure {
	exp := risk.Exposure{Equity: equity}
	for _, p := range b.GetPositions(ctx) {
		if p.Qty.IsZero() {
			continue
		}
		exp.OpenPositions++
		exp.PositionsValue = exp.PositionsValue.Add(p.MarketValue)
	}
	return exp
}
