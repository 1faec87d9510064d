package risk

import "github.com/shopspring/decimal"

// Policy holds the limits an entry is checked against. Percentages are of
// account equity, in percent (1 means 1%). A zero limit is not enforced.
type Policy struct {
	// Per trade risk
	RiskPct    decimal.Decimal // 1
	MaxRiskPct decimal.Decimal // 2

	// Trade constraints
	MinRR decimal.Decimal // 1.5

	// Exposure limits
	MaxOpenPositions int             // 3
	MaxExposurePct   decimal.Decimal // 400 with 4x leverage
}

func DefaultPolicy() Policy {
	return Policy{
		RiskPct:          decimal.NewFromInt(1),
		MaxRiskPct:       decimal.NewFromInt(2),
		MinRR:            decimal.RequireFromString("1.5"),
		MaxOpenPositions: 3,
	}
}

// Intent is a planned entry.
type Intent struct {
	Symbol     string
	Qty        decimal.Decimal
	Entry      decimal.Decimal
	Stop       decimal.Decimal
	TakeProfit decimal.Decimal
}

// Exposure is the account as the checks see it.
type Exposure struct {
	Equity         decimal.Decimal
	PositionsValue decimal.Decimal
	OpenPositions  int
}
