package jsr166

import (
	"context"
)

// Exchanger is a synchronization point where two goroutines swap values.
//
// The first goroutine arriving at the exchange point waits for the
// second. When the second arrives, they exchange values and continue.
//
// Implementation: a single Ref slot. nil means empty; non-nil means a
// waiter is present with its value. The second arrival claims the slot by
// CASing it back to nil, deposits its own value for the waiter, and wakes
// it.
type Exchanger[T any] struct {
	_    noCopy
	slot Ref[exchangeItem[T]]
}

type exchangeItem[T any] struct {
	value T
	match Ref[T]
	done  chan struct{}
}

// NewExchanger returns a new two-party exchanger. The zero value is also
// ready to use.
func NewExchanger[T any]() *Exchanger[T] {
	return &Exchanger[T]{}
}

// Exchange waits for another goroutine to arrive, then swaps values. It
// returns the value provided by the other goroutine.
func (e *Exchanger[T]) Exchange(v T) T {
	out, _ := e.exchange(nil, v)
	return out
}

// ExchangeCtx is Exchange unless ctx is cancelled before a partner
// arrives. A cancelled call retracts its offer; once a partner has
// committed to the swap, the exchange completes and ctx is ignored.
func (e *Exchanger[T]) ExchangeCtx(ctx context.Context, v T) (T, error) {
	return e.exchange(ctx, v)
}

func (e *Exchanger[T]) exchange(ctx context.Context, v T) (T, error) {
	var done <-chan struct{}
	if ctx != nil {
		done = ctx.Done()
	}
	me := &exchangeItem[T]{value: v, done: make(chan struct{})}
	var spins int
	for {
		peer := e.slot.Load()
		if peer == nil {
			if e.slot.CompareAndSwap(nil, me) {
				// Wait for a partner to fill our match slot.
				select {
				case <-me.done:
				case <-done:
					if e.slot.CompareAndSwap(me, nil) {
						var zero T
						return zero, ctx.Err()
					}
					// A partner already claimed us; finish the swap.
					<-me.done
				}
				return *me.match.Load(), nil
			}
		} else if e.slot.CompareAndSwap(peer, nil) {
			// Second arrival: hand over our value and wake the waiter.
			peer.match.Store(&v)
			close(peer.done)
			return peer.value, nil
		}
		if closed(done) {
			var zero T
			return zero, ctx.Err()
		}
		delay(&spins)
	}
}
