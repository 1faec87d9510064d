package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar represents OHLCV data for one symbol over one interval. Time is the
// interval's open time in UTC.
type Bar struct {
	Symbol string
	Time   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

// Contains reports whether price lies within [Low, High].
func (b Bar) Contains(price decimal.Decimal) bool {
	return price.GreaterThanOrEqual(b.Low) && price.LessThanOrEqual(b.High)
}
