package sim

import (
	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/market"
	"github.com/shopspring/decimal"
)

// position is the ledger's per-symbol record. qty is signed; costBasis is
// always |qty| * avgEntry.
type position struct {
	asset        market.Asset
	qty          decimal.Decimal
	avgEntry     decimal.Decimal
	costBasis    decimal.Decimal
	marketValue  decimal.Decimal
	currentPrice decimal.Decimal
	unrealizedPL decimal.Decimal
}

func (p *position) long() bool  { return p.qty.IsPositive() }
func (p *position) short() bool { return p.qty.IsNegative() }

// pl is the unrealized P&L at the current market value: gains when price
// rises for longs and when it falls for shorts.
func (p *position) pl() decimal.Decimal {
	if p.short() {
		return p.costBasis.Sub(p.marketValue)
	}
	return p.marketValue.Sub(p.costBasis)
}

func (p *position) snapshot() broker.Position {
	side := broker.PositionFlat
	switch {
	case p.long():
		side = broker.PositionLong
	case p.short():
		side = broker.PositionShort
	}
	return broker.Position{
		Asset:         p.asset,
		Qty:           p.qty,
		Side:          side,
		AvgEntryPrice: p.avgEntry,
		CostBasis:     p.costBasis,
		MarketValue:   p.marketValue,
		CurrentPrice:  p.currentPrice,
		UnrealizedPL:  p.unrealizedPL,
	}
}

// ledger holds the account and its positions.
type ledger struct {
	account   broker.Account
	positions map[string]*position
}

func newLedger(acct broker.Account) *ledger {
	return &ledger{account: acct, positions: make(map[string]*position)}
}

func (l *ledger) position(asset market.Asset) *position {
	p, ok := l.positions[asset.Symbol]
	if !ok {
		p = &position{asset: asset}
		l.positions[asset.Symbol] = p
	}
	return p
}

func (l *ledger) credit(amount decimal.Decimal) {
	l.account.Cash = l.account.Cash.Add(amount)
	l.account.BuyingPower = l.account.BuyingPower.Add(amount)
}

// mark revalues p at price. The change in unrealized P&L, not its level, goes
// into cash and buying power. A flat position hands whatever cost basis it
// still carries back to buying power.
func (l *ledger) mark(p *position, price decimal.Decimal) {
	p.currentPrice = price
	if p.qty.IsZero() {
		l.account.BuyingPower = l.account.BuyingPower.Add(p.costBasis)
		p.costBasis = decimal.Zero
		p.marketValue = decimal.Zero
		p.unrealizedPL = decimal.Zero
		return
	}

	old := p.unrealizedPL
	p.marketValue = price.Mul(p.qty.Abs())
	p.unrealizedPL = p.pl()
	l.credit(p.unrealizedPL.Sub(old))
}

// fillResult says what a fill did to the exposure that existed before it.
type fillResult int

const (
	fillHeld    fillResult = iota // same direction, grown or reduced
	fillFlat                      // exactly closed out
	fillFlipped                   // closed out and reopened on the other side
)

// fill applies a signed quantity change at price.
func (l *ledger) fill(p *position, signed, price decimal.Decimal) fillResult {
	if signed.IsZero() {
		return fillHeld
	}

	sameDirection := p.qty.IsZero() || p.qty.Sign() == signed.Sign()
	if sameDirection {
		l.open(p, signed, price)
		return fillHeld
	}

	// Reduce, then open whatever is left on the other side.
	l.mark(p, price)

	closing := decimal.Min(signed.Abs(), p.qty.Abs())
	released := p.costBasis
	if closing.LessThan(p.qty.Abs()) {
		released = p.avgEntry.Mul(closing)
	}

	// The closed units' P&L is already in cash; only their cost basis moves.
	l.account.BuyingPower = l.account.BuyingPower.Add(released)
	p.costBasis = p.costBasis.Sub(released)
	if signed.IsPositive() {
		p.qty = p.qty.Add(closing)
	} else {
		p.qty = p.qty.Sub(closing)
	}

	if !p.qty.IsZero() {
		p.marketValue = price.Mul(p.qty.Abs())
		p.unrealizedPL = p.pl()
		return fillHeld
	}

	p.avgEntry = decimal.Zero
	p.marketValue = decimal.Zero
	p.unrealizedPL = decimal.Zero
	rest := signed.Abs().Sub(closing)
	if rest.IsPositive() {
		l.open(p, rest.Mul(decimal.NewFromInt(int64(signed.Sign()))), price)
		return fillFlipped
	}
	return fillFlat
}

// open grows (or starts) a position in the direction of signed. The notional
// becomes cost basis and is taken out of buying power.
func (l *ledger) open(p *position, signed, price decimal.Decimal) {
	if !p.qty.IsZero() {
		l.mark(p, price)
	} else {
		p.unrealizedPL = decimal.Zero
		p.costBasis = decimal.Zero
	}

	notional := price.Mul(signed.Abs())
	l.account.BuyingPower = l.account.BuyingPower.Sub(notional)

	p.qty = p.qty.Add(signed)
	p.costBasis = p.costBasis.Add(notional)
	p.avgEntry = p.costBasis.Div(p.qty.Abs())
	p.currentPrice = price
	p.marketValue = price.Mul(p.qty.Abs())
}

// totals sums market value and unrealized P&L over open positions.
func (l *ledger) totals() (value, upl decimal.Decimal) {
	for _, p := range l.positions {
		value = value.Add(p.marketValue)
		upl = upl.Add(p.unrealizedPL)
	}
	return value, upl
}
