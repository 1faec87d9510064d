// Package lockstep coordinates a producer and a consumer that must take turns
// once per simulated tick.
//
// The producer publishes tick T and blocks until the consumer acknowledges T.
// The consumer awaits T, does its work, then acknowledges. Both hand-offs go
// over unbuffered channels, so everything the producer wrote before Publish is
// visible to the consumer after Await, and everything the consumer wrote
// before Ack is visible to the producer when Publish returns. Shared state
// touched only inside those windows needs no further locking.
package lockstep

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrClosed is returned to a waiter once the barrier is closed without a
	// cause, normally because the producer ran out of ticks.
	ErrClosed = errors.New("lockstep: barrier closed")

	// ErrStopped is the cause used when either side is stopped on request.
	ErrStopped = errors.New("lockstep: stopped")
)

// Tick identifies one simulated timestep.
type Tick struct {
	Seq  uint64
	Time time.Time
}

type Barrier struct {
	ready chan Tick
	done  chan uint64
	quit  chan struct{}

	once  sync.Once
	mu    sync.Mutex
	cause error
}

func New() *Barrier {
	return &Barrier{
		ready: make(chan Tick),
		done:  make(chan uint64),
		quit:  make(chan struct{}),
	}
}

// Publish hands tick t to the consumer and waits until the consumer
// acknowledges it.
func (b *Barrier) Publish(ctx context.Context, t Tick) error {
	select {
	case b.ready <- t:
	case <-b.quit:
		return b.Err()
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		select {
		case seq := <-b.done:
			if seq == t.Seq {
				return nil
			}
		case <-b.quit:
			return b.Err()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Await blocks until the producer publishes the next tick.
func (b *Barrier) Await(ctx context.Context) (Tick, error) {
	select {
	case t := <-b.ready:
		return t, nil
	case <-b.quit:
		return Tick{}, b.Err()
	case <-ctx.Done():
		return Tick{}, ctx.Err()
	}
}

// Ack releases the producer waiting on t.
func (b *Barrier) Ack(ctx context.Context, t Tick) error {
	select {
	case b.done <- t.Seq:
		return nil
	case <-b.quit:
		return b.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close wakes every waiter. The first call wins; cause nil means ErrClosed.
func (b *Barrier) Close(cause error) {
	b.once.Do(func() {
		if cause == nil {
			cause = ErrClosed
		}
		b.mu.Lock()
		b.cause = cause
		b.mu.Unlock()
		close(b.quit)
	})
}

// Err returns the close cause, or nil while the barrier is open.
func (b *Barrier) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cause
}

// Closed reports whether Close has been called.
func (b *Barrier) Closed() bool {
	select {
	case <-b.quit:
		return true
	default:
		return false
	}
}

// Done is closed when the barrier closes.
func (b *Barrier) Done() <-chan struct{} {
	return b.quit
}
