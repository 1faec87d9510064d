package risk

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrNoStopDistance = errors.New("risk: entry and stop must differ")

type Inputs struct {
	Equity  decimal.Decimal
	RiskPct decimal.Decimal // 1 = 1% of equity
	Entry   decimal.Decimal
	Stop    decimal.Decimal

	// Step is the quantity increment, usually the asset's min order size.
	// Non-fractionable assets round down to whole units.
	Step         decimal.Decimal
	Fractionable bool
}

type Result struct {
	Qty          decimal.Decimal
	StopDistance decimal.Decimal
	RiskAmount   decimal.Decimal
}

// Size returns the largest quantity whose loss at the stop stays within
// RiskPct of equity.
func Size(in Inputs) (Result, error) {
	dist := in.Entry.Sub(in.Stop).Abs()
	if dist.IsZero() {
		return Result{}, ErrNoStopDistance
	}

	amount := in.Equity.Mul(in.RiskPct).Div(hundred)
	qty := amount.Div(dist)

	switch {
	case !in.Fractionable:
		qty = qty.Truncate(0)
	case in.Step.IsPositive():
		qty = qty.Div(in.Step).Truncate(0).Mul(in.Step)
	}
	if qty.IsNegative() {
		qty = decimal.Zero
	}

	return Result{Qty: qty, StopDistance: dist, RiskAmount: amount}, nil
}
