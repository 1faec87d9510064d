package risk

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// PlannedRisk is the loss in account currency if the stop is hit.
func PlannedRisk(qty, entry, stop decimal.Decimal) decimal.Decimal {
	return qty.Abs().Mul(entry.Sub(stop).Abs())
}

// RR is reward over risk. Zero when there is no risk to measure against.
func RR(entry, stop, takeProfit decimal.Decimal) decimal.Decimal {
	risk := entry.Sub(stop).Abs()
	if risk.IsZero() {
		return decimal.Zero
	}
	return takeProfit.Sub(entry).Abs().Div(risk)
}

// RiskPct is risk as a percentage of equity. ok is false when equity is not
// positive.
func RiskPct(risk, equity decimal.Decimal) (pct decimal.Decimal, ok bool) {
	if !equity.IsPositive() {
		return decimal.Zero, false
	}
	return risk.Div(equity).Mul(hundred), true
}
