// journal/journal.go
package journal

import (
	"time"

	"github.com/shopspring/decimal"
)

// UpdateRecord is one order state transition as seen by the trade stream.
type UpdateRecord struct {
	Time        time.Time
	Event       string
	OrderID     string
	Symbol      string
	Side        string
	Type        string
	Qty         decimal.Decimal
	Status      string
	FilledPrice decimal.NullDecimal
	StopPrice   decimal.NullDecimal
}

// AccountSnapshot is the account at the end of one tick.
type AccountSnapshot struct {
	Time           time.Time
	Cash           decimal.Decimal
	BuyingPower    decimal.Decimal
	PositionsValue decimal.Decimal
	UnrealizedPL   decimal.Decimal
	OpenOrders     int
}

type Journal interface {
	RecordUpdate(UpdateRecord) error
	RecordAccount(AccountSnapshot) error
	Close() error
}

// Discard is a Journal that drops everything.
type Discard struct{}

func (Discard) RecordUpdate(UpdateRecord) error     { return nil }
func (Discard) RecordAccount(AccountSnapshot) error { return nil }
func (Discard) Close() error                        { return nil }
