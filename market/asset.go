package market

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Asset is the static metadata of a tradable instrument. It is immutable once
// resolved.
type Asset struct {
	ID                string          `json:"id" yaml:"id"`
	Symbol            string          `json:"symbol" yaml:"symbol"`
	Name              string          `json:"name" yaml:"name"`
	Class             string          `json:"class" yaml:"class"`
	Exchange          string          `json:"exchange" yaml:"exchange"`
	Status            string          `json:"status" yaml:"status"`
	Tradable          bool            `json:"tradable" yaml:"tradable"`
	Marginable        bool            `json:"marginable" yaml:"marginable"`
	Shortable         bool            `json:"shortable" yaml:"shortable"`
	Fractionable      bool            `json:"fractionable" yaml:"fractionable"`
	MinOrderSize      decimal.Decimal `json:"min_order_size" yaml:"min_order_size"`
	MinPriceIncrement decimal.Decimal `json:"min_price_increment" yaml:"min_price_increment"`
}

// AssetID derives a stable id for symbol, used when a data source does not
// carry its own.
func AssetID(symbol string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(NormalizeSymbol(symbol))).String()
}

// NormalizeSymbol upper-cases a symbol and maps "BTC-USD" style names to the
// "BTC/USD" form used throughout the engine.
func NormalizeSymbol(symbol string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(symbol)), "-", "/")
}

// DefaultAsset returns permissive metadata for symbol: tradable, marginable,
// shortable and fractionable, min size 0.001, tick 0.01.
func DefaultAsset(symbol string) Asset {
	symbol = NormalizeSymbol(symbol)
	return Asset{
		ID:                AssetID(symbol),
		Symbol:            symbol,
		Name:              symbol,
		Class:             "us_equity",
		Status:            "active",
		Tradable:          true,
		Marginable:        true,
		Shortable:         true,
		Fractionable:      true,
		MinOrderSize:      decimal.RequireFromString("0.001"),
		MinPriceIncrement: decimal.RequireFromString("0.01"),
	}
}
