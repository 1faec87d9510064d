package broker

import (
	"context"
	"time"

	"github.com/rustyeddy/papertrader/market"
	"github.com/shopspring/decimal"
)

// Broker is the trading surface a strategy talks to. The simulator implements
// it; a live adapter would too.
type Broker interface {
	SubmitOrder(ctx context.Context, req OrderRequest) (Order, error)
	CancelOrder(ctx context.Context, orderID string) (Order, error)
	CloseOrder(ctx context.Context, orderID string) (Order, error)
	ClosePosition(ctx context.Context, symbol string, opts ClosePositionOptions) (Order, error)
	CloseAllPositions(ctx context.Context) ([]Order, error)

	GetAccount(ctx context.Context) (Account, error)
	GetPosition(ctx context.Context, symbol string) (Position, bool)
	GetPositions(ctx context.Context) map[string]Position
	GetOrder(ctx context.Context, orderID string) (Order, bool)
	GetOrders(ctx context.Context) []Order

	GetAsset(ctx context.Context, symbol string) (market.Asset, error)
	GetHistory(ctx context.Context, asset market.Asset, start, end time.Time, res market.Resolution) (*market.Series, error)
}

// TradeUpdateHandler receives every order state transition.
type TradeUpdateHandler func(ctx context.Context, u TradeUpdate) error

// BarHandler receives one bar per subscribed asset per tick.
type BarHandler func(ctx context.Context, bar market.Bar) error

type Account struct {
	ID              string
	Cash            decimal.Decimal
	Currency        string
	BuyingPower     decimal.Decimal
	Leverage        decimal.Decimal
	ShortingEnabled bool
}

type PositionSide string

const (
	PositionLong  PositionSide = "long"
	PositionShort PositionSide = "short"
	PositionFlat  PositionSide = "flat"
)

// Position is the per-symbol holding. Qty is signed, negative for shorts.
// MarketValue = CurrentPrice * |Qty|; UnrealizedPL = MarketValue - CostBasis
// for longs and the negation for shorts.
type Position struct {
	Asset         market.Asset
	Qty           decimal.Decimal
	Side          PositionSide
	AvgEntryPrice decimal.Decimal
	CostBasis     decimal.Decimal
	MarketValue   decimal.Decimal
	CurrentPrice  decimal.Decimal
	UnrealizedPL  decimal.Decimal
}

// Subscription asks the market data driver to stream one symbol.
type Subscription struct {
	Symbol    string
	Type      StreamType
	TimeFrame market.Resolution
}

type StreamType string

const (
	StreamBar   StreamType = "bar"
	StreamQuote StreamType = "quote"
	StreamTrade StreamType = "trade"
)
