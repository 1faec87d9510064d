package risk

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Violation struct {
	Code string
	Msg  string
}

type Decision struct {
	Allowed    bool
	Violations []Violation

	PlannedRisk    decimal.Decimal
	PlannedRiskPct decimal.Decimal
	PlannedRR      decimal.Decimal
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Evaluate checks intent against p. Every failed rule is listed.
func Evaluate(p Policy, intent Intent, exp Exposure) Decision {
	d := Decision{Allowed: true}

	if intent.Entry.IsZero() || intent.Stop.IsZero() {
		d.add("NO_STOP_OR_ENTRY", "entry and stop must be set")
		return d
	}
	if intent.Qty.IsZero() {
		d.add("NO_QTY", "qty must be non-zero")
		return d
	}

	d.PlannedRisk = PlannedRisk(intent.Qty, intent.Entry, intent.Stop)
	pct, ok := RiskPct(d.PlannedRisk, exp.Equity)
	if !ok {
		d.add("NO_EQUITY", "equity must be positive")
		return d
	}
	d.PlannedRiskPct = pct

	if p.MaxRiskPct.IsPositive() && pct.GreaterThan(p.MaxRiskPct) {
		d.add("RISK_TOO_HIGH", fmt.Sprintf("planned risk %s%% exceeds max %s%%", pct.StringFixed(2), p.MaxRiskPct))
	}

	if !intent.TakeProfit.IsZero() {
		d.PlannedRR = RR(intent.Entry, intent.Stop, intent.TakeProfit)
		if p.MinRR.IsPositive() && d.PlannedRR.LessThan(p.MinRR) {
			d.add("RR_TOO_LOW", fmt.Sprintf("RR %s below minimum %s", d.PlannedRR.StringFixed(2), p.MinRR))
		}
	}

	if p.MaxOpenPositions > 0 && exp.OpenPositions >= p.MaxOpenPositions {
		d.add("TOO_MANY_POSITIONS", fmt.Sprintf("open positions %d >= max %d", exp.OpenPositions, p.MaxOpenPositions))
	}

	if p.MaxExposurePct.IsPositive() {
		after := exp.PositionsValue.Add(intent.Qty.Abs().Mul(intent.Entry))
		if used, _ := RiskPct(after, exp.Equity); used.GreaterThan(p.MaxExposurePct) {
			d.add("EXPOSURE_TOO_HIGH", fmt.Sprintf("exposure %s%% exceeds max %s%%", used.StringFixed(2), p.MaxExposurePct))
		}
	}

	return d
}
