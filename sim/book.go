package sim

import (
	"fmt"
	"time"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/shopspring/decimal"
)

// entry is the ledger's record of one order plus the bookkeeping the public
// Order type does not carry.
type entry struct {
	order broker.Order

	// reserved is the buying power held back at submission, returned on fill
	// or cancel.
	reserved decimal.Decimal

	announced      bool
	closeRequested bool

	// reduceOnly orders only ever take quantity out of a position.
	reduceOnly bool

	// extreme is the best price seen since fill, for the trailing stop.
	extreme decimal.Decimal
}

func (e *entry) symbol() string { return e.order.Asset.Symbol }

type orderQueue struct {
	name    string
	entries []*entry
}

func (q *orderQueue) push(e *entry) {
	q.entries = append(q.entries, e)
}

func (q *orderQueue) remove(e *entry) bool {
	for i, x := range q.entries {
		if x == e {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// snapshot copies the queue so callers can mutate it while iterating.
func (q *orderQueue) snapshot() []*entry {
	out := make([]*entry, len(q.entries))
	copy(out, q.entries)
	return out
}

func (q *orderQueue) len() int { return len(q.entries) }

// orderBook owns every order by id. The four queues hold references into it
// and are kept in step with each order's status.
type orderBook struct {
	byID  map[string]*entry
	order []*entry

	pending  orderQueue
	active   orderQueue
	closing  orderQueue
	canceled orderQueue

	// unreported holds cancels not yet sent as trade updates.
	unreported []*entry
}

func newOrderBook() *orderBook {
	return &orderBook{
		byID:     make(map[string]*entry),
		pending:  orderQueue{name: "pending"},
		active:   orderQueue{name: "active"},
		closing:  orderQueue{name: "closing"},
		canceled: orderQueue{name: "canceled"},
	}
}

func (b *orderBook) get(id string) (*entry, bool) {
	e, ok := b.byID[id]
	return e, ok
}

func (b *orderBook) add(e *entry) {
	b.byID[e.order.ID] = e
	b.order = append(b.order, e)
	b.pending.push(e)
}

func (b *orderBook) fill(e *entry, price decimal.Decimal, at time.Time) {
	b.pending.remove(e)
	e.order.Status = broker.StatusFilled
	e.order.FilledPrice = broker.Price(price)
	e.order.FilledAt = at
	e.order.UpdatedAt = at
	e.extreme = price
	b.active.push(e)
}

func (b *orderBook) cancel(e *entry, at time.Time) {
	b.pending.remove(e)
	e.order.Status = broker.StatusCanceled
	e.order.UpdatedAt = at
	b.canceled.push(e)
	b.unreported = append(b.unreported, e)
}

// drainCanceled returns and forgets the cancels not yet reported.
func (b *orderBook) drainCanceled() []*entry {
	out := b.unreported
	b.unreported = nil
	return out
}

func (b *orderBook) requestClose(e *entry, at time.Time) {
	b.active.remove(e)
	e.closeRequested = true
	e.order.UpdatedAt = at
	b.closing.push(e)
}

func (b *orderBook) close(e *entry, at time.Time) {
	b.active.remove(e)
	b.closing.remove(e)
	e.order.Status = broker.StatusClosed
	e.order.UpdatedAt = at
	e.order.ClosedAt = at
}

// pendingQty sums the NEW orders on side for symbol.
func (b *orderBook) pendingQty(symbol string, side broker.OrderSide) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range b.pending.entries {
		if e.order.Status == broker.StatusNew && e.order.Side == side && e.symbol() == symbol {
			sum = sum.Add(e.order.Qty)
		}
	}
	return sum
}

// open counts orders that are not terminal.
func (b *orderBook) open() int {
	return b.pending.len() + b.active.len() + b.closing.len()
}

// expectedQueue is the queue an order must be in given its status, or nil
// when it must be in none.
func (b *orderBook) expectedQueue(e *entry) *orderQueue {
	switch e.order.Status {
	case broker.StatusNew:
		return &b.pending
	case broker.StatusFilled:
		if e.closeRequested {
			return &b.closing
		}
		return &b.active
	case broker.StatusCanceled:
		return &b.canceled
	default:
		return nil
	}
}

// verify checks that every order sits in exactly the queue its status calls
// for and that every queued order is known.
func (b *orderBook) verify() error {
	member := make(map[*entry]*orderQueue, len(b.order))
	for _, q := range []*orderQueue{&b.pending, &b.active, &b.closing, &b.canceled} {
		for _, e := range q.entries {
			if b.byID[e.order.ID] != e {
				return fmt.Errorf("order %s in %s queue is not in the book", e.order.ID, q.name)
			}
			if prev, dup := member[e]; dup {
				return fmt.Errorf("order %s is in both %s and %s queues", e.order.ID, prev.name, q.name)
			}
			member[e] = q
		}
	}

	for _, e := range b.order {
		want, got := b.expectedQueue(e), member[e]
		if want == got {
			continue
		}
		switch {
		case got == nil:
			return fmt.Errorf("order %s (%s) missing from %s queue", e.order.ID, e.order.Status, want.name)
		case want == nil:
			return fmt.Errorf("order %s (%s) found in %s queue", e.order.ID, e.order.Status, got.name)
		default:
			return fmt.Errorf("order %s (%s) in %s queue, want %s", e.order.ID, e.order.Status, got.name, want.name)
		}
	}
	return nil
}
