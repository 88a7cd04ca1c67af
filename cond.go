package jsr166

import (
	"context"
	"time"
)

// Cond is a condition queue bound to a Synchronizer held in exclusive
// mode. Waiters fully release the synchronizer, block on the condition's
// own queue (disjoint from the main wait queue), and re-acquire with their
// saved state before Wait returns. Signal moves waiters onto the main
// queue where they contend like any other acquirer.
//
// Every method panics if the synchronizer is not exclusively held; the
// check is as strong as the backend's IsHeldExclusively can make it (Go
// has no goroutine identity, so holding BY THE CALLER cannot be verified).
type Cond struct {
	_ noCopy
	s *Synchronizer
	// first/last form the condition queue via condNext; both are guarded
	// by the exclusive hold, so plain fields suffice.
	first *node
	last  *node
}

// NewCond returns a new condition queue for s, which must have an
// exclusive backend.
func (s *Synchronizer) NewCond() *Cond {
	if s.excl == nil {
		panic("jsr166: conditions require an exclusive backend")
	}
	return &Cond{s: s}
}

// Wait blocks until the condition is signalled. The synchronizer is fully
// released while waiting and re-acquired (with the same state argument)
// before Wait returns. Wakeups may be spurious: callers loop over their
// predicate.
func (c *Cond) Wait() {
	c.doWait(nil, false, time.Time{})
}

// WaitCtx is Wait bounded by ctx. On cancellation the waiter is removed
// from the condition queue, the synchronizer is re-acquired, and ctx.Err()
// is returned.
func (c *Cond) WaitCtx(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		// Still observe the illegal-state contract before reporting.
		if !c.s.excl.IsHeldExclusively() {
			panic("jsr166: condition wait without exclusively held synchronizer")
		}
		return err
	}
	if c.doWait(ctx.Done(), false, time.Time{}) {
		return nil
	}
	return ctx.Err()
}

// WaitTimeout is Wait bounded by a deadline d from now. It reports false
// when the deadline expired before a signal; the synchronizer is
// re-acquired either way.
func (c *Cond) WaitTimeout(d time.Duration) bool {
	return c.doWait(nil, true, time.Now().Add(d))
}

// Signal moves the longest-waiting waiter, if any, to the main queue.
func (c *Cond) Signal() {
	if !c.s.excl.IsHeldExclusively() {
		panic("jsr166: signal without exclusively held synchronizer")
	}
	if c.first != nil {
		c.doSignal(c.first, false)
	}
}

// Broadcast moves all waiters to the main queue.
func (c *Cond) Broadcast() {
	if !c.s.excl.IsHeldExclusively() {
		panic("jsr166: signal without exclusively held synchronizer")
	}
	if c.first != nil {
		c.doSignal(c.first, true)
	}
}

// HasWaiters reports whether any waiter is on the condition queue. Caller
// must hold the synchronizer exclusively.
func (c *Cond) HasWaiters() bool {
	if !c.s.excl.IsHeldExclusively() {
		panic("jsr166: condition query without exclusively held synchronizer")
	}
	for w := c.first; w != nil; w = w.condNext {
		if w.status.Load()&statusCond != 0 {
			return true
		}
	}
	return false
}

func (c *Cond) doSignal(first *node, all bool) {
	for first != nil {
		next := first.condNext
		c.first = next
		if next == nil {
			c.last = nil
		}
		if first.getAndClearStatus(statusCond)&statusCond != 0 {
			c.s.enqueueFromCond(first)
			if !all {
				break
			}
		}
		first = next
	}
}

// doWait reports true when the wait ended by signal, false when it was
// cancelled by ctx/deadline. In every case the synchronizer has been
// re-acquired on return and the node removed from any wait structure.
func (c *Cond) doWait(done <-chan struct{}, timed bool, deadline time.Time) bool {
	n := newNode(false)
	saved := c.enableWait(n)
	cancelled := false
	for !c.canReacquire(n) {
		switch {
		case closed(done) || (timed && !time.Now().Before(deadline)):
			if n.getAndClearStatus(statusCond)&statusCond != 0 {
				cancelled = true
			} else {
				// A signal won the race; wait out the transfer.
				runtime_doSpin()
			}
		case n.status.Load()&statusCond != 0:
			await(n.permit, done, timed, deadline)
		default:
			runtime_doSpin() // woken while being enqueued
		}
		if cancelled {
			break
		}
	}
	n.status.Store(0)
	c.s.doAcquire(n, saved, false, nil, false, time.Time{})
	if cancelled {
		c.unlinkCancelled(n)
	}
	return !cancelled
}

// enableWait links n onto the condition queue and fully releases the
// synchronizer, returning the saved state for re-acquisition. Panics when
// the synchronizer is not exclusively held.
func (c *Cond) enableWait(n *node) int32 {
	s := c.s
	if s.excl.IsHeldExclusively() {
		n.status.StorePlain(statusCond | statusWaiting)
		if c.last == nil {
			c.first = n
		} else {
			c.last.condNext = n
		}
		c.last = n
		saved := s.State()
		if s.Release(saved) {
			return saved
		}
	}
	n.status.Store(statusCancelled)
	c.unlinkCancelled(n)
	panic("jsr166: condition wait without exclusively held synchronizer")
}

// canReacquire reports whether n has been transferred to the main queue.
// Links, not status, are checked to avoid racing the transfer itself.
func (c *Cond) canReacquire(n *node) bool {
	if n == nil {
		return false
	}
	p := n.prev.Load()
	if p == nil {
		return false
	}
	return p.next.Load() == n || c.s.isEnqueued(n)
}

// unlinkCancelled prunes cancelled waiters from the condition queue.
// Called with the synchronizer held exclusively.
func (c *Cond) unlinkCancelled(n *node) {
	if n != nil && n.condNext == nil && n != c.last {
		return
	}
	trail := (*node)(nil)
	w := c.first
	for w != nil {
		next := w.condNext
		if w.status.Load()&statusCond == 0 {
			w.condNext = nil
			if trail == nil {
				c.first = next
			} else {
				trail.condNext = next
			}
			if next == nil {
				c.last = trail
			}
		} else {
			trail = w
		}
		w = next
	}
}
