package sim

import (
	"context"
	"sort"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/market"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// SubmitOrder validates req, reserves qty x reference price of buying power
// and queues the order as NEW. Nothing changes when it is rejected.
func (e *Engine) SubmitOrder(ctx context.Context, req broker.OrderRequest) (broker.Order, error) {
	symbol := market.NormalizeSymbol(req.Symbol)

	if err := validateRequest(symbol, &req); err != nil {
		return broker.Order{}, err
	}

	asset, err := e.GetAsset(ctx, symbol)
	if err != nil {
		return broker.Order{}, err
	}
	if err := e.validateAsset(asset, req); err != nil {
		return broker.Order{}, err
	}

	ref, ok := e.referencePrice(symbol, req)
	if !ok {
		return broker.Order{}, invalidOrder(symbol, "no price available to reserve margin against")
	}

	margin := req.Qty.Mul(ref)
	available := e.ledger.account.BuyingPower
	if p, ok := e.ledger.positions[symbol]; ok && offsets(p, req.Side) {
		available = available.Add(p.marketValue)
	}
	if available.LessThan(margin) {
		return broker.Order{}, broker.NewError(broker.CodeInsufficientBalance,
			"symbol", symbol,
			"requires", margin.String(),
			"available", available.String(),
		)
	}

	en := e.newEntry(asset, req)
	en.reserved = margin
	e.ledger.account.BuyingPower = e.ledger.account.BuyingPower.Sub(margin)
	e.book.add(en)

	e.log.Debug("order submitted",
		zap.String("id", en.order.ID),
		zap.String("symbol", symbol),
		zap.String("side", string(req.Side)),
		zap.String("type", string(req.Type)),
		zap.String("qty", req.Qty.String()),
		zap.String("reserved", margin.String()),
	)
	return en.order.Clone(), nil
}

func invalidOrder(symbol, msg string) error {
	return broker.NewError(broker.CodeInvalidOrder, "symbol", symbol, "message", msg)
}

// validateRequest checks req on its own and fills in defaults.
func validateRequest(symbol string, req *broker.OrderRequest) error {
	if symbol == "" {
		return invalidOrder(symbol, "symbol is required")
	}
	if !req.Qty.IsPositive() {
		return invalidOrder(symbol, "order quantity must be greater than 0")
	}

	switch req.Side {
	case broker.Buy, broker.Sell:
	default:
		return invalidOrder(symbol, "side must be buy or sell")
	}

	if req.Type == "" {
		req.Type = broker.Market
	}
	switch req.Type {
	case broker.Market, broker.Limit, broker.Stop, broker.StopLimit:
	default:
		return invalidOrder(symbol, "unknown order type "+string(req.Type))
	}

	if req.TimeInForce == "" {
		req.TimeInForce = broker.GTC
	}
	switch req.TimeInForce {
	case broker.Day, broker.GTC, broker.IOC, broker.FOK:
	default:
		return invalidOrder(symbol, "unknown time in force "+string(req.TimeInForce))
	}

	if (req.Type == broker.Limit || req.Type == broker.StopLimit) && !positive(req.LimitPrice) {
		return invalidOrder(symbol, "limit price must be provided for limit orders")
	}
	if (req.Type == broker.Stop || req.Type == broker.StopLimit) && !positive(req.StopPrice) {
		return invalidOrder(symbol, "stop price must be provided for stop orders")
	}

	legs := []struct {
		name  string
		price *decimal.Decimal
	}{
		{"take profit", req.TakeProfit},
		{"stop loss", req.StopLoss},
		{"trail price", req.TrailPrice},
	}
	for _, leg := range legs {
		if leg.price != nil && !leg.price.IsPositive() {
			return invalidOrder(symbol, leg.name+" must be greater than 0")
		}
	}

	derived := broker.Simple
	switch {
	case req.TakeProfit != nil && req.StopLoss != nil:
		derived = broker.Bracket
	case req.TakeProfit != nil || req.StopLoss != nil || req.TrailPrice != nil:
		derived = broker.OTO
	}
	switch req.Class {
	case "":
		req.Class = derived
	case broker.Bracket:
		if derived != broker.Bracket {
			return invalidOrder(symbol, "bracket orders need both take profit and stop loss")
		}
	case broker.OTO:
		if derived == broker.Simple {
			return invalidOrder(symbol, "oto orders need at least one leg")
		}
	case broker.Simple:
		if derived != broker.Simple {
			return invalidOrder(symbol, "simple orders cannot carry legs")
		}
	default:
		return invalidOrder(symbol, "unknown order class "+string(req.Class))
	}
	return nil
}

func positive(p *decimal.Decimal) bool {
	return p != nil && p.IsPositive()
}

func (e *Engine) validateAsset(asset market.Asset, req broker.OrderRequest) error {
	symbol := asset.Symbol
	if !asset.Tradable {
		return invalidOrder(symbol, "asset is not tradable")
	}
	if asset.MinOrderSize.IsPositive() && req.Qty.LessThan(asset.MinOrderSize) {
		return invalidOrder(symbol, "quantity below minimum order size "+asset.MinOrderSize.String())
	}
	if !asset.Fractionable && !req.Qty.Equal(req.Qty.Truncate(0)) {
		return invalidOrder(symbol, "asset is not fractionable")
	}

	if req.Side == broker.Sell {
		held := decimal.Zero
		if p, ok := e.ledger.positions[symbol]; ok {
			held = p.qty
		}
		// sells already queued will take their share of the position first
		held = held.Sub(e.book.pendingQty(symbol, broker.Sell))
		if held.Sub(req.Qty).IsNegative() {
			if !e.ledger.account.ShortingEnabled {
				return invalidOrder(symbol, "shorting is disabled for this account")
			}
			if !asset.Shortable {
				return invalidOrder(symbol, "asset is not shortable")
			}
		}
	}
	return nil
}

// referencePrice is what margin is reserved against: the limit price, else
// the stop price, else the latest close.
func (e *Engine) referencePrice(symbol string, req broker.OrderRequest) (decimal.Decimal, bool) {
	switch {
	case req.LimitPrice != nil:
		return *req.LimitPrice, true
	case req.StopPrice != nil:
		return *req.StopPrice, true
	default:
		return e.lastPrice(symbol)
	}
}

// offsets reports whether an order on side would reduce p.
func offsets(p *position, side broker.OrderSide) bool {
	return (side == broker.Sell && p.long()) || (side == broker.Buy && p.short())
}

func (e *Engine) newEntry(asset market.Asset, req broker.OrderRequest) *entry {
	now := e.now
	o := broker.Order{
		ID:          e.ids.New(now),
		Asset:       asset,
		Side:        req.Side,
		Type:        req.Type,
		Qty:         req.Qty,
		TimeInForce: req.TimeInForce,
		Class:       req.Class,
		LimitPrice:  copyPrice(req.LimitPrice),
		StopPrice:   copyPrice(req.StopPrice),
		Status:      broker.StatusNew,
		CreatedAt:   now,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	if req.TakeProfit != nil {
		o.Legs.TakeProfit = &broker.Leg{LimitPrice: *req.TakeProfit, Status: broker.StatusNew, UpdatedAt: now}
	}
	if req.StopLoss != nil {
		o.Legs.StopLoss = &broker.Leg{LimitPrice: *req.StopLoss, Status: broker.StatusNew, UpdatedAt: now}
	}
	if req.TrailPrice != nil {
		o.Legs.TrailingStop = &broker.Leg{LimitPrice: *req.TrailPrice, Status: broker.StatusNew, UpdatedAt: now}
	}
	return &entry{order: o}
}

func copyPrice(p *decimal.Decimal) *decimal.Decimal {
	if p == nil {
		return nil
	}
	return broker.Price(*p)
}

func (e *Engine) lookup(orderID string) (*entry, error) {
	en, ok := e.book.get(orderID)
	if !ok {
		return nil, broker.NewError(broker.CodeOrderNotFound, "order_id", orderID)
	}
	return en, nil
}

// CancelOrder cancels a NEW order and returns its reserved buying power. The
// CANCELED trade update goes out on the next matching pass.
func (e *Engine) CancelOrder(ctx context.Context, orderID string) (broker.Order, error) {
	en, err := e.lookup(orderID)
	if err != nil {
		return broker.Order{}, err
	}

	switch en.order.Status {
	case broker.StatusFilled, broker.StatusClosed:
		return broker.Order{}, broker.NewError(broker.CodeAlreadyFilled, "order_id", orderID)
	case broker.StatusCanceled:
		return broker.Order{}, broker.NewError(broker.CodeAlreadyCanceled, "order_id", orderID)
	}

	e.cancel(en)
	return en.order.Clone(), nil
}

func (e *Engine) cancel(en *entry) {
	e.book.cancel(en, e.now)
	e.ledger.account.BuyingPower = e.ledger.account.BuyingPower.Add(en.reserved)
	en.reserved = decimal.Zero

	e.log.Debug("order canceled", zap.String("id", en.order.ID), zap.String("symbol", en.symbol()))
}

// CloseOrder asks for a FILLED order to be closed. It is filled at the next
// bar's open on the matching pass and then moves to CLOSED.
func (e *Engine) CloseOrder(ctx context.Context, orderID string) (broker.Order, error) {
	en, err := e.lookup(orderID)
	if err != nil {
		return broker.Order{}, err
	}

	switch en.order.Status {
	case broker.StatusNew:
		return broker.Order{}, broker.NewError(broker.CodeInvalidOrder,
			"order_id", orderID, "message", "order is not filled yet, cancel it instead")
	case broker.StatusCanceled:
		return broker.Order{}, broker.NewError(broker.CodeAlreadyCanceled, "order_id", orderID)
	case broker.StatusClosed:
		return broker.Order{}, broker.NewError(broker.CodeInvalidOrder,
			"order_id", orderID, "message", "order is already closed")
	}

	if !en.closeRequested {
		e.book.requestClose(en, e.now)
	}
	return en.order.Clone(), nil
}

// ClosePosition queues a counter-side market order for all or part of the
// position in symbol. Qty wins over Percent; both apply to what is not already
// being closed by queued counter-side orders. The order reserves no margin and
// never takes the position past flat.
func (e *Engine) ClosePosition(ctx context.Context, symbol string, opts broker.ClosePositionOptions) (broker.Order, error) {
	symbol = market.NormalizeSymbol(symbol)

	p, ok := e.ledger.positions[symbol]
	if !ok || p.qty.IsZero() {
		return broker.Order{}, broker.NewError(broker.CodeNoPosition, "symbol", symbol)
	}
	side := closingSide(p)
	open := e.closable(p)
	if !open.IsPositive() {
		return broker.Order{}, broker.NewError(broker.CodeNoPosition,
			"symbol", symbol, "message", "position is already being closed")
	}

	qty := open
	switch {
	case opts.Qty != nil:
		if !opts.Qty.IsPositive() || opts.Qty.GreaterThan(open) {
			return broker.Order{}, broker.NewError(broker.CodeInvalidQty,
				"symbol", symbol, "qty", opts.Qty.String(), "available", open.String())
		}
		qty = *opts.Qty
	case opts.Percent != nil:
		pct := *opts.Percent
		if !pct.IsPositive() || pct.GreaterThan(hundred) {
			return broker.Order{}, broker.NewError(broker.CodeInvalidPercent,
				"symbol", symbol, "percent", pct.String(), "message", "percent must be between 0 and 100")
		}
		qty = open.Mul(pct).Div(hundred)
		if !p.asset.Fractionable {
			qty = qty.Truncate(0)
		}
		if !qty.IsPositive() {
			return broker.Order{}, broker.NewError(broker.CodeInvalidQty,
				"symbol", symbol, "percent", pct.String(), "available", open.String())
		}
	}

	en := e.newEntry(p.asset, broker.OrderRequest{
		Symbol:      symbol,
		Qty:         qty,
		Side:        side,
		Type:        broker.Market,
		TimeInForce: broker.GTC,
		Class:       broker.Simple,
	})
	en.reduceOnly = true
	e.book.add(en)

	e.log.Debug("close position",
		zap.String("id", en.order.ID),
		zap.String("symbol", symbol),
		zap.String("qty", qty.String()),
	)
	return en.order.Clone(), nil
}

func closingSide(p *position) broker.OrderSide {
	if p.short() {
		return broker.Buy
	}
	return broker.Sell
}

// closable is the part of p that queued counter-side orders do not already
// account for.
func (e *Engine) closable(p *position) decimal.Decimal {
	return p.qty.Abs().Sub(e.book.pendingQty(p.asset.Symbol, closingSide(p)))
}

// fillable is the quantity en may fill given the position at fill time. A
// reduce-only order is capped at what is still held against its side; any
// other sell that would open a short on an account without shorting is
// refused.
func (e *Engine) fillable(en *entry) (decimal.Decimal, bool) {
	held := decimal.Zero
	if p, ok := e.ledger.positions[en.symbol()]; ok {
		held = p.qty
	}
	qty := en.order.Qty

	if en.reduceOnly {
		avail := decimal.Zero
		switch {
		case en.order.Side == broker.Sell && held.IsPositive():
			avail = held
		case en.order.Side == broker.Buy && held.IsNegative():
			avail = held.Neg()
		}
		qty = decimal.Min(qty, avail)
		return qty, qty.IsPositive()
	}
	if en.order.Side == broker.Sell && !e.ledger.account.ShortingEnabled && held.Sub(qty).IsNegative() {
		return qty, false
	}
	return qty, true
}

// CloseAllPositions closes every non-flat position that is not already being
// closed, in symbol order.
func (e *Engine) CloseAllPositions(ctx context.Context) ([]broker.Order, error) {
	symbols := make([]string, 0, len(e.ledger.positions))
	for sym, p := range e.ledger.positions {
		if !p.qty.IsZero() && e.closable(p).IsPositive() {
			symbols = append(symbols, sym)
		}
	}
	sort.Strings(symbols)

	out := make([]broker.Order, 0, len(symbols))
	for _, sym := range symbols {
		o, err := e.ClosePosition(ctx, sym, broker.ClosePositionOptions{})
		if err != nil {
			return out, err
		}
		out = append(out, o)
	}
	return out, nil
}
