// Package strategies holds the sample strategies the backtest runner can
// drive. A strategy sees every bar and every trade update through the broker
// surface only.
package strategies

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/risk"
	"github.com/shopspring/decimal"
)

type Strategy interface {
	Name() string
	OnBar(ctx context.Context, b broker.Broker, bar market.Bar) error
	OnTradeUpdate(ctx context.Context, b broker.Broker, u broker.TradeUpdate) error
}

// Params is the union of every sample strategy's settings. Percentages are
// in percent of the entry price or of equity.
type Params struct {
	Symbol string
	Qty    decimal.Decimal

	Fast int
	Slow int

	TakeProfitPct decimal.Decimal
	StopLossPct   decimal.Decimal

	// RiskPct sizes ema-cross entries from equity and the stop distance
	// instead of using Qty.
	RiskPct decimal.Decimal
	Policy  risk.Policy

	// ADXPeriod > 0 only takes ema-cross entries while ADX >= MinADX.
	ADXPeriod int
	MinADX    float64
}

type factory func(Params) (Strategy, error)

var registry = map[string]factory{
	"noop": func(Params) (Strategy, error) { return Noop{}, nil },
	"open-once": func(p Params) (Strategy, error) {
		return NewOpenOnce(p)
	},
	"ema-cross": func(p Params) (Strategy, error) {
		return NewEMACross(p)
	},
}

// Names lists the registered strategies.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func ByName(name string, p Params) (Strategy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "", "none":
		key = "noop"
	case "emacross":
		key = "ema-cross"
	}
	f, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
	return f(p)
}

// legs turns percentage offsets from entry into take profit and stop loss
// prices for a long entry, rounded to the asset's price increment.
func legs(asset market.Asset, entry, tpPct, slPct decimal.Decimal) (tp, sl *decimal.Decimal) {
	one := decimal.NewFromInt(1)
	if tpPct.IsPositive() {
		tp = broker.Price(roundPrice(asset, entry.Mul(one.Add(tpPct.Div(hundred)))))
	}
	if slPct.IsPositive() {
		sl = broker.Price(roundPrice(asset, entry.Mul(one.Sub(slPct.Div(hundred)))))
	}
	return tp, sl
}

var hundred = decimal.NewFromInt(100)

func roundPrice(asset market.Asset, p decimal.Decimal) decimal.Decimal {
	inc := asset.MinPriceIncrement
	if !inc.IsPositive() {
		return p
	}
	return p.Div(inc).Round(0).Mul(inc)
}
