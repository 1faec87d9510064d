package broker

import (
	"time"

	"github.com/rustyeddy/papertrader/market"
	"github.com/shopspring/decimal"
)

type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// Opposite returns the counter side.
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

type OrderType string

const (
	Market    OrderType = "market"
	Limit     OrderType = "limit"
	Stop      OrderType = "stop"
	StopLimit OrderType = "stop_limit"
)

type TimeInForce string

const (
	Day TimeInForce = "day"
	GTC TimeInForce = "gtc"
	IOC TimeInForce = "ioc"
	FOK TimeInForce = "fok"
)

type OrderClass string

const (
	Simple  OrderClass = "simple"
	Bracket OrderClass = "bracket"
	OTO     OrderClass = "oto"
)

type OrderStatus string

const (
	StatusNew      OrderStatus = "new"
	StatusFilled   OrderStatus = "filled"
	StatusClosed   OrderStatus = "closed"
	StatusCanceled OrderStatus = "canceled"
)

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == StatusClosed || s == StatusCanceled
}

// OrderRequest is what a strategy submits. TakeProfit, StopLoss and
// TrailPrice attach legs; Class is derived from them when left empty.
type OrderRequest struct {
	Symbol      string
	Qty         decimal.Decimal
	Side        OrderSide
	Type        OrderType
	TimeInForce TimeInForce
	Class       OrderClass

	LimitPrice *decimal.Decimal
	StopPrice  *decimal.Decimal

	TakeProfit *decimal.Decimal
	StopLoss   *decimal.Decimal
	TrailPrice *decimal.Decimal
}

// Leg is a conditional exit attached to a parent order.
type Leg struct {
	LimitPrice  decimal.Decimal
	FilledPrice *decimal.Decimal
	Status      OrderStatus
	FilledAt    time.Time
	UpdatedAt   time.Time
}

// Triggered reports whether the leg has fired.
func (l *Leg) Triggered() bool {
	return l != nil && l.FilledPrice != nil
}

type Legs struct {
	TakeProfit   *Leg
	StopLoss     *Leg
	TrailingStop *Leg
}

func (l Legs) Empty() bool {
	return l.TakeProfit == nil && l.StopLoss == nil && l.TrailingStop == nil
}

type Order struct {
	ID          string
	Asset       market.Asset
	Side        OrderSide
	Type        OrderType
	Qty         decimal.Decimal
	TimeInForce TimeInForce
	Class       OrderClass

	LimitPrice  *decimal.Decimal
	StopPrice   *decimal.Decimal
	FilledPrice *decimal.Decimal

	Status OrderStatus
	Legs   Legs

	CreatedAt   time.Time
	SubmittedAt time.Time
	UpdatedAt   time.Time
	FilledAt    time.Time
	ClosedAt    time.Time
}

// Clone returns a deep copy, so snapshots handed to callers never alias
// ledger state.
func (o Order) Clone() Order {
	c := o
	c.LimitPrice = clonePrice(o.LimitPrice)
	c.StopPrice = clonePrice(o.StopPrice)
	c.FilledPrice = clonePrice(o.FilledPrice)
	c.Legs = Legs{
		TakeProfit:   cloneLeg(o.Legs.TakeProfit),
		StopLoss:     cloneLeg(o.Legs.StopLoss),
		TrailingStop: cloneLeg(o.Legs.TrailingStop),
	}
	return c
}

func clonePrice(p *decimal.Decimal) *decimal.Decimal {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneLeg(l *Leg) *Leg {
	if l == nil {
		return nil
	}
	c := *l
	c.FilledPrice = clonePrice(l.FilledPrice)
	return &c
}

// Price returns a pointer to a copy of v, handy for optional request fields.
func Price(v decimal.Decimal) *decimal.Decimal {
	return &v
}

// ClosePositionOptions selects how much of a position to close. Qty takes
// precedence over Percent; with neither set the whole position is closed.
type ClosePositionOptions struct {
	Qty     *decimal.Decimal
	Percent *decimal.Decimal
}

type TradeEvent string

const (
	EventNew      TradeEvent = "new"
	EventFilled   TradeEvent = "filled"
	EventClosed   TradeEvent = "closed"
	EventCanceled TradeEvent = "canceled"
)

// TradeUpdate carries an order snapshot taken at a state transition.
type TradeUpdate struct {
	Event TradeEvent
	Order Order
	Time  time.Time
}
