package sim

import (
	"fmt"
	"time"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/market"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// pass is one matching pass over the order queues at tick time t.
type pass struct {
	e       *Engine
	t       time.Time
	updates []broker.TradeUpdate
}

// match evaluates pending, then active, then closing orders against the bars
// opening at t and returns the trade updates in the order they happened.
// Positions with a bar at t end the pass marked to its close.
func (e *Engine) match(t time.Time) []broker.TradeUpdate {
	m := &pass{e: e, t: t}

	m.reportCanceled()
	m.pending()
	m.reportCanceled()
	m.active()
	m.closing()
	m.settle()

	if err := e.book.verify(); err != nil {
		panic(fmt.Sprintf("sim: order queues out of step with status at %s: %v", t.Format(time.RFC3339), err))
	}
	return m.updates
}

func (m *pass) emit(ev broker.TradeEvent, en *entry) {
	m.updates = append(m.updates, broker.TradeUpdate{
		Event: ev,
		Order: en.order.Clone(),
		Time:  m.t,
	})
}

func (m *pass) announce(en *entry) {
	if en.announced {
		return
	}
	en.announced = true
	m.emit(broker.EventNew, en)
}

func (m *pass) reportCanceled() {
	for _, en := range m.e.book.drainCanceled() {
		m.announce(en)
		m.emit(broker.EventCanceled, en)
	}
}

func (m *pass) pending() {
	e := m.e
	for _, en := range e.book.pending.snapshot() {
		if en.order.Status != broker.StatusNew {
			continue
		}
		m.announce(en)

		if en.order.TimeInForce == broker.Day && !sameDay(en.order.CreatedAt, m.t) {
			e.log.Debug("day order expired", zap.String("id", en.order.ID))
			e.cancel(en)
			continue
		}

		bar, ok := e.bar(en.symbol(), m.t)
		if !ok {
			continue
		}

		price, ok := fillPrice(en.order, bar)
		if !ok {
			if tif := en.order.TimeInForce; tif == broker.IOC || tif == broker.FOK {
				e.cancel(en)
			}
			continue
		}
		m.fill(en, price)
	}
}

// fillPrice is where o fills within bar, if it does.
func fillPrice(o broker.Order, bar market.Bar) (decimal.Decimal, bool) {
	switch o.Type {
	case broker.Market:
		return bar.Close, true
	case broker.Limit:
		if bar.Contains(*o.LimitPrice) {
			return *o.LimitPrice, true
		}
	case broker.Stop:
		if bar.Contains(*o.StopPrice) {
			return *o.StopPrice, true
		}
	case broker.StopLimit:
		if bar.Contains(*o.StopPrice) && bar.Contains(*o.LimitPrice) {
			return *o.LimitPrice, true
		}
	}
	return decimal.Zero, false
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func signedQty(side broker.OrderSide, qty decimal.Decimal) decimal.Decimal {
	if side == broker.Sell {
		return qty.Neg()
	}
	return qty
}

func (m *pass) fill(en *entry, price decimal.Decimal) {
	e := m.e
	qty, ok := e.fillable(en)
	if !ok {
		e.log.Debug("order no longer fits the position, canceled",
			zap.String("id", en.order.ID),
			zap.String("symbol", en.symbol()),
		)
		e.cancel(en)
		return
	}
	en.order.Qty = qty

	e.ledger.account.BuyingPower = e.ledger.account.BuyingPower.Add(en.reserved)
	en.reserved = decimal.Zero

	e.book.fill(en, price, m.t)
	p := e.ledger.position(en.order.Asset)
	res := e.ledger.fill(p, signedQty(en.order.Side, en.order.Qty), price)

	e.log.Debug("order filled",
		zap.String("id", en.order.ID),
		zap.String("symbol", en.symbol()),
		zap.String("price", price.String()),
		zap.String("position", p.qty.String()),
	)
	m.emit(broker.EventFilled, en)

	switch res {
	case fillFlat:
		m.sweep(en.symbol(), nil)
	case fillFlipped:
		m.sweep(en.symbol(), en)
	}
}

// sweep closes every filled order on symbol except keep. It runs when the
// exposure those orders opened is gone, so their legs cannot fire against a
// flat or reversed book.
func (m *pass) sweep(symbol string, keep *entry) {
	e := m.e
	for _, q := range []*orderQueue{&e.book.active, &e.book.closing} {
		for _, en := range q.snapshot() {
			if en == keep || en.symbol() != symbol {
				continue
			}
			e.book.close(en, m.t)
			m.emit(broker.EventClosed, en)
		}
	}
}

func (m *pass) active() {
	e := m.e
	for _, sym := range e.symbols() {
		if bar, ok := e.bar(sym, m.t); ok {
			e.ledger.mark(e.ledger.positions[sym], bar.Close)
		}
	}

	for _, en := range e.book.active.snapshot() {
		if en.order.Status != broker.StatusFilled || en.closeRequested {
			continue
		}
		// Legs arm on the bar after the fill.
		if en.order.Legs.Empty() || !en.order.FilledAt.Before(m.t) {
			continue
		}
		bar, ok := e.bar(en.symbol(), m.t)
		if !ok {
			continue
		}

		leg, price, hit := triggeredLeg(en, bar)
		trail(en, bar)
		if !hit {
			continue
		}

		leg.FilledPrice = broker.Price(price)
		leg.Status = broker.StatusClosed
		leg.FilledAt = m.t
		leg.UpdatedAt = m.t
		en.order.StopPrice = broker.Price(price)

		e.log.Debug("leg triggered",
			zap.String("id", en.order.ID),
			zap.String("symbol", en.symbol()),
			zap.String("price", price.String()),
		)
		m.exit(en, price)
	}
}

func (m *pass) closing() {
	e := m.e
	for _, en := range e.book.closing.snapshot() {
		if en.order.Status != broker.StatusFilled {
			continue
		}
		bar, ok := e.bar(en.symbol(), m.t)
		if !ok {
			continue
		}
		en.order.StopPrice = broker.Price(bar.Open)
		m.exit(en, bar.Open)
	}
}

// exit closes en and takes its quantity back out of the position at price,
// capped at what is still held in en's direction.
func (m *pass) exit(en *entry, price decimal.Decimal) {
	e := m.e
	e.book.close(en, m.t)
	m.emit(broker.EventClosed, en)

	p, ok := e.ledger.positions[en.symbol()]
	if !ok {
		return
	}
	held := decimal.Zero
	if (en.order.Side == broker.Buy && p.long()) || (en.order.Side == broker.Sell && p.short()) {
		held = p.qty.Abs()
	}
	qty := decimal.Min(en.order.Qty, held)
	if !qty.IsPositive() {
		return
	}

	if e.ledger.fill(p, signedQty(en.order.Side, qty).Neg(), price) == fillFlat {
		m.sweep(en.symbol(), nil)
	}
}

func (m *pass) settle() {
	e := m.e
	for _, sym := range e.symbols() {
		if bar, ok := e.bar(sym, m.t); ok {
			e.ledger.mark(e.ledger.positions[sym], bar.Close)
		}
	}
}
