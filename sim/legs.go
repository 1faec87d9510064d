package sim

import (
	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/market"
	"github.com/shopspring/decimal"
)

// A leg protects the position its parent opened: a buy parent is long, so its
// take profit sits above and its stops below; a sell parent is the mirror.

func hitTakeProfit(side broker.OrderSide, level decimal.Decimal, bar market.Bar) bool {
	if side == broker.Buy {
		return bar.High.GreaterThanOrEqual(level)
	}
	return bar.Low.LessThanOrEqual(level)
}

func hitStopLoss(side broker.OrderSide, level decimal.Decimal, bar market.Bar) bool {
	if side == broker.Buy {
		return bar.Low.LessThanOrEqual(level)
	}
	return bar.High.GreaterThanOrEqual(level)
}

// trailLevel is the trailing stop price given the best price since fill.
func trailLevel(side broker.OrderSide, extreme, trail decimal.Decimal) decimal.Decimal {
	if side == broker.Buy {
		return extreme.Sub(trail)
	}
	return extreme.Add(trail)
}

// triggeredLeg picks the leg bar fires, if any, and the price it fills at.
//
// A bar that opens through a level fills that leg at the open, the first
// price the bar traded. Otherwise a leg fills at its own level, and take
// profit is checked before stop loss: OHLC data cannot say which level was
// touched first, so a bar that spans both counts as a take profit.
func triggeredLeg(en *entry, bar market.Bar) (*broker.Leg, decimal.Decimal, bool) {
	side := en.order.Side
	legs := en.order.Legs

	type armed struct {
		leg    *broker.Leg
		level  decimal.Decimal
		profit bool
	}
	var candidates []armed
	if tp := legs.TakeProfit; tp != nil && !tp.Triggered() {
		candidates = append(candidates, armed{tp, tp.LimitPrice, true})
	}
	if sl := legs.StopLoss; sl != nil && !sl.Triggered() {
		candidates = append(candidates, armed{sl, sl.LimitPrice, false})
	}
	if ts := legs.TrailingStop; ts != nil && !ts.Triggered() {
		candidates = append(candidates, armed{ts, trailLevel(side, en.extreme, ts.LimitPrice), false})
	}

	for _, c := range candidates {
		if gapped(side, c.level, bar, c.profit) {
			return c.leg, bar.Open, true
		}
	}
	for _, c := range candidates {
		if c.profit && hitTakeProfit(side, c.level, bar) {
			return c.leg, c.level, true
		}
		if !c.profit && hitStopLoss(side, c.level, bar) {
			return c.leg, c.level, true
		}
	}
	return nil, decimal.Zero, false
}

// gapped reports whether bar opened already past level.
func gapped(side broker.OrderSide, level decimal.Decimal, bar market.Bar, profit bool) bool {
	above := bar.Open.GreaterThanOrEqual(level)
	below := bar.Open.LessThanOrEqual(level)
	if side == broker.Buy {
		if profit {
			return above
		}
		return below
	}
	if profit {
		return below
	}
	return above
}

// trail moves the best price since fill with bar.
func trail(en *entry, bar market.Bar) {
	if en.order.Side == broker.Buy {
		en.extreme = decimal.Max(en.extreme, bar.High)
		return
	}
	en.extreme = decimal.Min(en.extreme, bar.Low)
}
