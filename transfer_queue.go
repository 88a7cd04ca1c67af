package jsr166

import (
	"context"
	"time"

	"github.com/kabutz/jsr166-sub000/internal/opt"
)

// TransferQueue is an unbounded FIFO blocking queue in which producers may
// additionally wait for a consumer to receive an element (Transfer).
//
// It is a dual queue: a single linked chain holds either data nodes
// (producers waiting to be taken) or reservation nodes (consumers waiting
// for data), never unmatched nodes of both kinds at once. An arriving
// operation first tries to match the node at the head; only when the chain
// holds its own kind (or nothing) does it append itself. Matching is a
// single CAS on the node's item slot, so hand-off is atomic and
// immediate.
//
// Matched nodes are unlinked lazily during later traversals and
// self-linked so dead prefixes are collectable.
type TransferQueue[T any] struct {
	_    noCopy
	head Ref[tnode[T]]
	// Consumers hammer head while producers hammer tail; keep them on
	// separate cache lines.
	_    [opt.CacheLineSize_ - 8]byte
	tail Ref[tnode[T]]
	_    [opt.CacheLineSize_ - 8]byte
	// cancel is this queue's cancelled-item sentinel: a cancelled waiter
	// CASes its item slot to cancel, which reads as matched to everyone
	// else. Per-queue so distinct queues never alias.
	cancel *T
}

// tnode is one link of the dual chain. isData is fixed at creation; the
// item slot carries the node through its life cycle:
//
//	data node:        item = &v  --(taken)-->  nil | cancel
//	reservation node: item = nil --(filled)--> &v  | cancel
type tnode[T any] struct {
	isData bool
	item   Ref[T]
	next   Ref[tnode[T]]
	// waiter is the parked goroutine's one-slot permit, nil for async
	// producers that never wait.
	waiter chan struct{}
}

// transfer modes
const (
	xferNow   = iota // immediate only: TryTransfer, Poll
	xferAsync        // enqueue and return: Put, Offer
	xferSync         // block until matched: Transfer, Take
	xferTimed        // block with deadline
)

// NewTransferQueue returns an empty queue.
func NewTransferQueue[T any]() *TransferQueue[T] {
	return &TransferQueue[T]{cancel: new(T)}
}

// isMatched reports whether n no longer awaits a partner: a data node
// whose item was taken, a reservation that was filled, or a cancelled
// node of either kind.
func (q *TransferQueue[T]) isMatched(n *tnode[T]) bool {
	x := n.item.Load()
	return x == q.cancel || (x == nil) == n.isData
}

// cannotPrecede reports whether a new node carrying haveData may not be
// appended after n: n is unmatched and of the opposite kind, so the new
// arrival must match it instead.
func (q *TransferQueue[T]) cannotPrecede(n *tnode[T], haveData bool) bool {
	if n.isData == haveData {
		return false
	}
	x := n.item.Load()
	return x != q.cancel && (x != nil) == n.isData
}

// Put appends v to the queue. The queue is unbounded, so Put never
// blocks.
func (q *TransferQueue[T]) Put(v T) {
	q.xfer(nil, &v, true, xferAsync, time.Time{})
}

// Offer appends v and reports true. It exists for callers written against
// a bounded-queue interface; an unbounded queue never refuses.
func (q *TransferQueue[T]) Offer(v T) bool {
	q.xfer(nil, &v, true, xferAsync, time.Time{})
	return true
}

// OfferTimeout is Offer with a deadline, again for bounded-queue callers:
// an unbounded queue never needs the wait, so the element is appended
// immediately and the deadline goes unused.
func (q *TransferQueue[T]) OfferTimeout(v T, d time.Duration) bool {
	q.xfer(nil, &v, true, xferAsync, time.Time{})
	return true
}

// Transfer hands v to a consumer, blocking until one receives it.
func (q *TransferQueue[T]) Transfer(v T) {
	q.xfer(nil, &v, true, xferSync, time.Time{})
}

// TransferCtx is Transfer unless ctx is cancelled first, in which case the
// element is withdrawn and ctx.Err() returned.
func (q *TransferQueue[T]) TransferCtx(ctx context.Context, v T) error {
	_, err := q.xfer(ctx, &v, true, xferSync, time.Time{})
	return err
}

// TryTransfer hands v to a consumer already waiting, or reports false
// without enqueueing it.
func (q *TransferQueue[T]) TryTransfer(v T) bool {
	matched, _ := q.xfer(nil, &v, true, xferNow, time.Time{})
	return matched != nil
}

// TryTransferTimeout is Transfer bounded by d; on timeout the element is
// withdrawn and false returned.
func (q *TransferQueue[T]) TryTransferTimeout(v T, d time.Duration) bool {
	matched, _ := q.xfer(nil, &v, true, xferTimed, time.Now().Add(d))
	return matched != nil
}

// Take removes and returns the head element, blocking until one is
// available.
func (q *TransferQueue[T]) Take() T {
	p, _ := q.xfer(nil, nil, false, xferSync, time.Time{})
	return *p
}

// TakeCtx is Take unless ctx is cancelled first.
func (q *TransferQueue[T]) TakeCtx(ctx context.Context) (T, error) {
	p, err := q.xfer(ctx, nil, false, xferSync, time.Time{})
	if err != nil {
		var zero T
		return zero, err
	}
	return *p, nil
}

// Poll removes and returns the head element, or reports false when the
// queue holds none.
func (q *TransferQueue[T]) Poll() (T, bool) {
	p, _ := q.xfer(nil, nil, false, xferNow, time.Time{})
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}

// PollTimeout is Poll that waits up to d for an element.
func (q *TransferQueue[T]) PollTimeout(d time.Duration) (T, bool) {
	p, _ := q.xfer(nil, nil, false, xferTimed, time.Now().Add(d))
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}

// xfer is the single engine behind all queue operations. For producers
// (haveData) e points at the element; for consumers e is nil. It returns
// the matched item pointer: the taken element for consumers, the caller's
// own e for producers, nil when mode xferNow/xferTimed found or produced
// no match. err is non-nil only for ctx cancellation.
func (q *TransferQueue[T]) xfer(ctx context.Context, e *T, haveData bool, how int, deadline time.Time) (*T, error) {
	var done <-chan struct{}
	if ctx != nil {
		done = ctx.Done()
	}
	var s *tnode[T]
	for {
		h := q.head.Load()
		for p := h; p != nil; {
			if x := p.item.Load(); x != q.cancel && (x != nil) == p.isData {
				// p is unmatched.
				if p.isData == haveData {
					break // same kind ahead: must append
				}
				if p.item.CompareAndSwap(x, e) {
					q.advanceHead(h, p)
					unpark(p.waiter)
					if haveData {
						return e, nil
					}
					return x, nil
				}
				continue // lost the item race, retry from p
			}
			n := p.next.Load()
			if n == p {
				// Self-linked off the chain: restart from head.
				h = q.head.Load()
				p = h
			} else {
				p = n
			}
		}
		if how == xferNow {
			return nil, nil
		}
		if s == nil {
			s = &tnode[T]{isData: haveData}
			s.item.StorePlain(e)
			if how != xferAsync {
				s.waiter = make(chan struct{}, 1)
			}
		}
		pred := q.tryAppend(s, haveData)
		if pred == nil {
			continue // chain flipped to the opposite kind; go match
		}
		if how == xferAsync {
			return e, nil
		}
		return q.awaitMatch(s, pred, e, done, how == xferTimed, deadline, ctx)
	}
}

// tryAppend links s to the end of the chain, returning s's predecessor
// (s itself when it became the first node) or nil when an unmatched node
// of the opposite kind was found, meaning s must match instead.
func (q *TransferQueue[T]) tryAppend(s *tnode[T], haveData bool) *tnode[T] {
	p := q.tail.Load()
	if p == nil {
		p = q.head.Load()
	}
	for {
		if p == nil {
			if q.head.CompareAndSwap(nil, s) {
				return s
			}
			p = q.head.Load()
			continue
		}
		if q.cannotPrecede(p, haveData) {
			return nil
		}
		n := p.next.Load()
		if n == p {
			// Self-linked, off the chain. The tail may keep pointing at
			// this dead node until the lagging swing lands; fall back to
			// head instead of spinning on it.
			if t := q.tail.Load(); t != p && t != nil {
				p = t
			} else {
				p = q.head.Load()
			}
			continue
		}
		if n != nil {
			p = n
			continue
		}
		if !p.next.CompareAndSwap(nil, s) {
			p = p.next.Load()
			continue
		}
		if t := q.tail.Load(); t != s {
			// Lagging tail; a best-effort swing, losing is fine.
			q.tail.CompareAndSwap(t, s)
		}
		return p
	}
}

// advanceHead swings head past the just-matched node p (and any other
// matched prefix), self-linking what it skips.
func (q *TransferQueue[T]) advanceHead(h, p *tnode[T]) {
	for s := p; h != nil && s != h; {
		n := s.next.Load()
		target := s
		if n != nil && n != s {
			target = n
		}
		if q.head.Load() == h && q.head.CompareAndSwap(h, target) {
			h.next.Store(h) // self-link for GC
			return
		}
		h = q.head.Load()
		if h == nil {
			return
		}
		s = h.next.Load()
		if s == nil || !q.isMatched(s) {
			return
		}
	}
}

// awaitMatch parks s's owner until the node is matched or the wait is
// abandoned via deadline/ctx. A brief spin precedes parking: hand-offs
// usually complete within a few hundred cycles.
func (q *TransferQueue[T]) awaitMatch(s, pred *tnode[T], e *T, done <-chan struct{}, timed bool, deadline time.Time, ctx context.Context) (*T, error) {
	spins := 0
	for {
		x := s.item.Load()
		if x != e {
			// Matched. Self-link so a dead node pins nothing.
			s.next.Store(s)
			if s.isData {
				return e, nil
			}
			return x, nil
		}
		expired := timed && !time.Now().Before(deadline)
		if expired || closed(done) {
			if s.item.CompareAndSwap(e, q.cancel) {
				q.unsplice(pred, s)
				if ctx != nil && closed(done) {
					return nil, ctx.Err()
				}
				return nil, nil
			}
			continue // a match won the race; loop reads it
		}
		if trySpin(&spins) {
			continue
		}
		await(s.waiter, done, timed, deadline)
	}
}

// unsplice unlinks the cancelled node s from its predecessor when
// possible. A trailing cancelled node cannot be unlinked here and is left
// for later traversals to pass over.
func (q *TransferQueue[T]) unsplice(pred, s *tnode[T]) {
	s.waiter = nil
	if pred == nil || pred == s || q.isMatched(pred) {
		return
	}
	if n := s.next.Load(); n != nil && n != s && pred.next.Load() == s {
		pred.next.CompareAndSwap(s, n)
	}
}

// firstDataNode returns the first unmatched data node, or nil.
func (q *TransferQueue[T]) firstDataNode() *tnode[T] {
	for p := q.head.Load(); p != nil; {
		if !q.isMatched(p) {
			if p.isData {
				return p
			}
			return nil // reservations queued: no data present
		}
		n := p.next.Load()
		if n == p {
			p = q.head.Load()
		} else {
			p = n
		}
	}
	return nil
}

// Peek returns the head element without removing it, reporting false when
// the queue holds none.
func (q *TransferQueue[T]) Peek() (T, bool) {
	if p := q.firstDataNode(); p != nil {
		if x := p.item.Load(); x != nil && x != q.cancel {
			return *x, true
		}
	}
	var zero T
	return zero, false
}

// IsEmpty reports whether the queue holds no element. Like Len it is a
// moment-in-time observation.
func (q *TransferQueue[T]) IsEmpty() bool {
	return q.firstDataNode() == nil
}

// HasWaitingConsumer reports whether a consumer is blocked waiting for an
// element.
func (q *TransferQueue[T]) HasWaitingConsumer() bool {
	for p := q.head.Load(); p != nil; {
		if !q.isMatched(p) {
			return !p.isData
		}
		n := p.next.Load()
		if n == p {
			p = q.head.Load()
		} else {
			p = n
		}
	}
	return false
}

// Len returns a best-effort count of queued elements. Traversal is not a
// snapshot: concurrent arrivals and removals may or may not be counted.
func (q *TransferQueue[T]) Len() int {
	count := 0
	for p := q.head.Load(); p != nil; {
		if !q.isMatched(p) {
			if !p.isData {
				return 0 // reservations queued: no data present
			}
			count++
		}
		n := p.next.Load()
		if n == p {
			count = 0
			p = q.head.Load()
		} else {
			p = n
		}
	}
	return count
}

// DrainTo moves all immediately available elements into *buf, returning
// how many were moved. Elements transferred concurrently with the drain
// may be missed; each element is delivered exactly once.
func (q *TransferQueue[T]) DrainTo(buf *[]T) int {
	n := 0
	for {
		v, ok := q.Poll()
		if !ok {
			return n
		}
		*buf = append(*buf, v)
		n++
	}
}

// DrainToLimit is DrainTo bounded to at most max elements.
func (q *TransferQueue[T]) DrainToLimit(buf *[]T, max int) int {
	n := 0
	for n < max {
		v, ok := q.Poll()
		if !ok {
			break
		}
		*buf = append(*buf, v)
		n++
	}
	return n
}

// Range calls fn for each queued element until fn returns false. The
// iteration is weakly consistent: it never fails under concurrent
// modification, but reflects no particular snapshot of the queue.
func (q *TransferQueue[T]) Range(fn func(v T) bool) {
	for p := q.head.Load(); p != nil; {
		if !q.isMatched(p) && p.isData {
			if x := p.item.Load(); x != nil && x != q.cancel {
				if !fn(*x) {
					return
				}
			}
		}
		n := p.next.Load()
		if n == p {
			p = q.head.Load()
		} else {
			p = n
		}
	}
}
