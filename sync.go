package jsr166

import (
	"context"
	"time"
	"unsafe"

	"github.com/kabutz/jsr166-sub000/internal/opt"
)

// ExclusiveBackend supplies the exclusive-mode acquisition policy for a
// Synchronizer. Implementations interpret the synchronizer's int32 state
// (lock bit, hold count, ...) but never touch the wait queue: queue
// management is the framework's job and happens exclusively through CAS.
//
// TryAcquire and TryRelease are predicates over State(): they observe and
// update it via State/SetState/CompareAndSwapState and report success.
// They must not block.
type ExclusiveBackend interface {
	// TryAcquire attempts the fast-path acquisition. A false return is a
	// contention signal, not an error; the framework will enqueue and park
	// the caller.
	TryAcquire(arg int32) bool
	// TryRelease attempts to release. On true, the framework wakes the
	// first queued waiter so it can retry.
	TryRelease(arg int32) bool
	// IsHeldExclusively reports whether the synchronizer is currently held
	// in exclusive mode. Used by conditions to fail fast on misuse.
	IsHeldExclusively() bool
}

// SharedBackend supplies the shared-mode acquisition policy.
type SharedBackend interface {
	// TryAcquireShared returns a negative value on failure, zero on
	// success without remaining capacity, and a positive value on success
	// with capacity left over for further shared acquirers. The framework
	// treats any non-negative return as success and propagates wakeups to
	// the next queued shared waiter, which may cost a spurious wakeup when
	// zero is returned but can never lose one.
	TryAcquireShared(arg int32) int32
	// TryReleaseShared reports whether the release may allow a waiting
	// acquire (shared or exclusive) to succeed.
	TryReleaseShared(arg int32) bool
}

// Waiter status bits. Cancelled is the only negative value and is
// permanent: a cancelled node is never handed the resource.
const (
	statusWaiting   int32 = 1
	statusCond      int32 = 2
	statusCancelled int32 = -1 << 31
)

// node is one blocked waiter in the synchronizer's FIFO queue (or in a
// condition's queue before transfer). Link fields are mutated only through
// CAS or by the single thread entitled to the write at that point of the
// protocol; the queue has no enclosing lock.
type node struct {
	prev   Ref[node]
	next   Ref[node]
	status Cell[int32]
	shared bool
	// permit is a one-slot channel carrying the park/unpark permit, so a
	// park can select against deadlines and cancellation. nil for the
	// dummy head node, which never parks.
	permit chan struct{}
	// condNext links the condition queue; guarded by the exclusive hold.
	condNext *node
}

func newNode(shared bool) *node {
	return &node{shared: shared, permit: make(chan struct{}, 1)}
}

func (n *node) getAndClearStatus(bit int32) int32 {
	return n.status.GetAndUpdate(func(v int32) int32 { return v &^ bit })
}

// Synchronizer is a framework for building blocking synchronization
// primitives (mutexes, semaphores, latches, read-write locks) from an
// atomic int32 state plus a FIFO wait queue of parked goroutines.
//
// The division of labor: a backend supplied at construction decides
// WHETHER an acquire or release succeeds by interpreting the state; the
// framework decides WHO waits, in what order, and when to wake them. Both
// exclusive and shared modes are supported, and exclusive holders can
// create condition queues with Cond.
//
// By default a newly arriving goroutine may barge: if the resource is free
// at the instant it calls Acquire it wins even if others are queued.
// Queued waiters themselves are woken and granted strictly FIFO. A fair
// synchronizer refuses the barging fast path whenever the queue is
// non-empty, giving strict FIFO even against newcomers at the cost of
// throughput.
type Synchronizer struct {
	_     noCopy
	state Cell[int32]
	// The state word is the fast-path hot spot; keep the queue ends off its
	// cache line.
	_    [opt.CacheLineSize_ - unsafe.Sizeof(Cell[int32]{})]byte
	head Ref[node]
	tail Ref[node]
	excl ExclusiveBackend
	shr  SharedBackend
	fair bool
}

// NewSynchronizer returns a synchronizer driven by backend, which must
// implement ExclusiveBackend, SharedBackend, or both. The fair flag
// selects strict FIFO ordering over barging.
//
// Backends usually keep a pointer back to the returned Synchronizer to
// reach its state accessors.
func NewSynchronizer(backend any, fair bool) *Synchronizer {
	s := &Synchronizer{fair: fair}
	if e, ok := backend.(ExclusiveBackend); ok {
		s.excl = e
	}
	if sh, ok := backend.(SharedBackend); ok {
		s.shr = sh
	}
	if s.excl == nil && s.shr == nil {
		panic("jsr166: backend implements neither ExclusiveBackend nor SharedBackend")
	}
	return s
}

// State returns the synchronization state with full ordering.
func (s *Synchronizer) State() int32 {
	return s.state.Load()
}

// SetState writes the synchronization state with full ordering.
func (s *Synchronizer) SetState(v int32) {
	s.state.Store(v)
}

// CompareAndSwapState performs a CAS on the synchronization state.
func (s *Synchronizer) CompareAndSwapState(old, new int32) bool {
	return s.state.CompareAndSwap(old, new)
}

// Fair reports whether the synchronizer was constructed in fair mode.
func (s *Synchronizer) Fair() bool {
	return s.fair
}

// Acquire acquires in exclusive mode, blocking until the backend's
// TryAcquire succeeds. It ignores deadlines and cancellation; use
// AcquireCtx or AcquireTimeout for bounded blocking.
func (s *Synchronizer) Acquire(arg int32) {
	if !s.tryFast(false, arg) {
		s.doAcquire(nil, arg, false, nil, false, time.Time{})
	}
}

// AcquireCtx is Acquire bounded by ctx. On cancellation the waiter's node
// is fully unlinked from the queue before ctx.Err() is returned.
func (s *Synchronizer) AcquireCtx(ctx context.Context, arg int32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.tryFast(false, arg) {
		return nil
	}
	if s.doAcquire(nil, arg, false, ctx.Done(), false, time.Time{}) {
		return nil
	}
	return ctx.Err()
}

// AcquireTimeout is Acquire bounded by a deadline d from now. It reports
// false on expiry, after unlinking the waiter's node.
func (s *Synchronizer) AcquireTimeout(arg int32, d time.Duration) bool {
	if s.tryFast(false, arg) {
		return true
	}
	if d <= 0 {
		return false
	}
	return s.doAcquire(nil, arg, false, nil, true, time.Now().Add(d))
}

// Release releases in exclusive mode. If the backend's TryRelease reports
// true, the first queued waiter (if any) is unparked to retry its acquire,
// and Release reports true.
func (s *Synchronizer) Release(arg int32) bool {
	s.checkBackend(false)
	if s.excl.TryRelease(arg) {
		s.signalNext(s.head.Load())
		return true
	}
	return false
}

// AcquireShared acquires in shared mode, blocking until the backend's
// TryAcquireShared returns a non-negative value.
func (s *Synchronizer) AcquireShared(arg int32) {
	if !s.tryFast(true, arg) {
		s.doAcquire(nil, arg, true, nil, false, time.Time{})
	}
}

// AcquireSharedCtx is AcquireShared bounded by ctx.
func (s *Synchronizer) AcquireSharedCtx(ctx context.Context, arg int32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.tryFast(true, arg) {
		return nil
	}
	if s.doAcquire(nil, arg, true, ctx.Done(), false, time.Time{}) {
		return nil
	}
	return ctx.Err()
}

// AcquireSharedTimeout is AcquireShared bounded by a deadline d from now.
func (s *Synchronizer) AcquireSharedTimeout(arg int32, d time.Duration) bool {
	if s.tryFast(true, arg) {
		return true
	}
	if d <= 0 {
		return false
	}
	return s.doAcquire(nil, arg, true, nil, true, time.Now().Add(d))
}

// ReleaseShared releases in shared mode, waking the first queued waiter on
// success so that wakeups can cascade across consecutive shared waiters.
func (s *Synchronizer) ReleaseShared(arg int32) bool {
	s.checkBackend(true)
	if s.shr.TryReleaseShared(arg) {
		s.signalNext(s.head.Load())
		return true
	}
	return false
}

// HasQueuedWaiters reports whether any goroutine is queued waiting to
// acquire. Like all queue introspection this is a moment-in-time estimate.
func (s *Synchronizer) HasQueuedWaiters() bool {
	h := s.head.Load()
	for p := s.tail.Load(); p != h && p != nil; p = p.prev.Load() {
		if p.status.Load() >= 0 {
			return true
		}
	}
	return false
}

// QueueLength returns an estimate of the number of queued waiters.
func (s *Synchronizer) QueueLength() int {
	n := 0
	h := s.head.Load()
	for p := s.tail.Load(); p != h && p != nil; p = p.prev.Load() {
		if p.status.Load() >= 0 {
			n++
		}
	}
	return n
}

// ApparentlyFirstQueuedIsExclusive reports whether the first queued waiter,
// if any, is waiting in exclusive mode. Read-write locks use this to keep
// barging readers from starving a queued writer.
func (s *Synchronizer) ApparentlyFirstQueuedIsExclusive() bool {
	h := s.head.Load()
	if h == nil {
		return false
	}
	first := h.next.Load()
	return first != nil && !first.shared && first.status.Load() >= 0
}

// tryFast is the barging fast path: a single backend attempt before any
// queueing, refused in fair mode while waiters are queued.
func (s *Synchronizer) tryFast(shared bool, arg int32) bool {
	s.checkBackend(shared)
	if s.fair && s.HasQueuedWaiters() {
		return false
	}
	if shared {
		return s.shr.TryAcquireShared(arg) >= 0
	}
	return s.excl.TryAcquire(arg)
}

func (s *Synchronizer) checkBackend(shared bool) {
	if shared {
		if s.shr == nil {
			panic("jsr166: synchronizer has no shared backend")
		}
	} else if s.excl == nil {
		panic("jsr166: synchronizer has no exclusive backend")
	}
}

// tryBackend invokes the backend predicate on behalf of node n, unlinking
// n before propagating any panic so a throwing predicate cannot strand a
// queued waiter.
func (s *Synchronizer) tryBackend(n *node, shared bool, arg int32) (acquired bool) {
	defer func() {
		if r := recover(); r != nil {
			s.cancelAcquire(n)
			panic(r)
		}
	}()
	if shared {
		return s.shr.TryAcquireShared(arg) >= 0
	}
	return s.excl.TryAcquire(arg)
}

// doAcquire is the main acquire loop, shared by every blocking entry
// point. n is nil until the first failed attempt forces allocation. done
// and the deadline bound the park; when either fires the node is cancelled
// and false returned.
//
// The loop maintains: only the node whose predecessor is the head (or a
// barger not yet enqueued) invokes the backend; everyone else parks.
// Queue repair (skipping cancelled predecessors, completing half-finished
// enqueues) happens on the way.
func (s *Synchronizer) doAcquire(n *node, arg int32, shared bool, done <-chan struct{}, timed bool, deadline time.Time) bool {
	s.checkBackend(shared)
	var (
		spins, postSpins int
		first            bool
		pred             *node
	)
	for {
		if !first {
			pred = nil
			if n != nil {
				pred = n.prev.Load()
			}
			if pred != nil {
				if first = s.head.Load() == pred; !first {
					if pred.status.Load() < 0 {
						s.cleanQueue() // predecessor cancelled
						continue
					} else if pred.prev.Load() == nil {
						runtime_doSpin() // predecessor mid-enqueue
						continue
					}
				}
			}
		}
		if first || pred == nil {
			// A not-yet-enqueued caller may barge only in non-fair mode
			// or while the queue is empty.
			if first || !s.fair || !s.HasQueuedWaiters() {
				if s.tryBackend(n, shared, arg) {
					if first {
						n.prev.Store(nil)
						s.head.Store(n)
						pred.next.Store(nil)
						if shared {
							s.signalNextIfShared(n)
						}
					}
					return true
				}
			}
		}
		switch {
		case n == nil:
			n = newNode(shared)
		case pred == nil:
			// Enqueue at the tail. The prev link is published by the tail
			// CAS; the next link is a best-effort optimization filled in
			// afterwards (readers fall back to prev traversal).
			t := s.tail.Load()
			n.prev.StorePlain(t)
			if t == nil {
				s.tryInitializeHead()
			} else if !s.tail.CompareAndSwap(t, n) {
				n.prev.StorePlain(nil)
			} else {
				t.next.Store(n)
			}
		case first && spins != 0:
			spins--
			runtime_doSpin()
		case n.status.Load() == 0:
			n.status.Store(statusWaiting)
		default:
			// Exponential spin allowance after each wakeup reduces
			// unfairness when the first waiter repeatedly loses the race
			// against bargers.
			postSpins = min(postSpins<<1|1, 255)
			spins = postSpins
			if !await(n.permit, done, timed, deadline) {
				return s.cancelAcquire(n)
			}
			n.status.Store(0)
			if closed(done) {
				return s.cancelAcquire(n)
			}
		}
	}
}

// tryInitializeHead installs the dummy head node, returning the current
// tail once one exists.
func (s *Synchronizer) tryInitializeHead() *node {
	var h *node
	for {
		if t := s.tail.Load(); t != nil {
			return t
		} else if s.head.Load() != nil {
			runtime_doSpin() // another initializer is mid-publish
		} else {
			if h == nil {
				h = &node{}
			}
			if s.head.CompareAndSwap(nil, h) {
				s.tail.Store(h)
				return h
			}
		}
	}
}

// signalNext wakes the successor of h, if one exists and is parked.
func (s *Synchronizer) signalNext(h *node) {
	if h == nil {
		return
	}
	if next := h.next.Load(); next != nil && next.status.Load() != 0 {
		next.getAndClearStatus(statusWaiting)
		unpark(next.permit)
	}
}

// signalNextIfShared is signalNext restricted to shared-mode successors,
// used to cascade wakeups when a shared acquire succeeds at the head.
func (s *Synchronizer) signalNextIfShared(h *node) {
	if h == nil {
		return
	}
	if next := h.next.Load(); next != nil && next.shared && next.status.Load() != 0 {
		next.getAndClearStatus(statusWaiting)
		unpark(next.permit)
	}
}

// cancelAcquire marks n cancelled and repairs the queue around it. Always
// returns false, the acquire outcome of every cancellation path.
func (s *Synchronizer) cancelAcquire(n *node) bool {
	if n != nil {
		n.status.Store(statusCancelled)
		if n.prev.Load() != nil {
			s.cleanQueue()
		}
	}
	return false
}

// cleanQueue unlinks cancelled nodes, walking tail-to-head and restarting
// whenever a racing mutation makes the local picture inconsistent. The
// invariant preserved: no live node ends up reachable only through a
// cancelled one, and a node whose new predecessor is the head gets a
// wakeup so it cannot be stranded.
func (s *Synchronizer) cleanQueue() {
restart:
	for {
		var succ *node // known live successor of q, or nil when q is tail
		q := s.tail.Load()
		for {
			if q == nil {
				return
			}
			p := q.prev.Load()
			if p == nil {
				return
			}
			if succ == nil {
				if s.tail.Load() != q {
					continue restart
				}
			} else if succ.prev.Load() != q || succ.status.Load() < 0 {
				continue restart
			}
			if q.status.Load() < 0 { // cancelled: splice q out
				var spliced bool
				if succ == nil {
					spliced = s.tail.CompareAndSwap(q, p)
				} else {
					spliced = succ.prev.CompareAndSwap(q, p)
				}
				if spliced && q.prev.Load() == p {
					p.next.CompareAndSwap(q, succ) // OK if this fails
					if p.prev.Load() == nil {
						s.signalNext(p)
					}
				}
				continue restart
			}
			if nx := p.next.Load(); nx != q { // help finish the next link
				if nx != nil && q.prev.Load() == p {
					p.next.CompareAndSwap(nx, q)
					if p.prev.Load() == nil {
						s.signalNext(p)
					}
				}
				continue restart
			}
			succ = q
			q = p
		}
	}
}

// isEnqueued reports whether n is linked into the main queue, traversing
// the always-accurate prev chain.
func (s *Synchronizer) isEnqueued(n *node) bool {
	for t := s.tail.Load(); t != nil; t = t.prev.Load() {
		if t == n {
			return true
		}
	}
	return false
}

// enqueueFromCond links a node signalled off a condition queue onto the
// tail of the main queue, waking it immediately if its predecessor is
// already cancelled so it can re-park behind a live one.
func (s *Synchronizer) enqueueFromCond(n *node) {
	wake := false
	for {
		t := s.tail.Load()
		if t == nil {
			t = s.tryInitializeHead()
		}
		n.prev.StorePlain(t)
		if s.tail.CompareAndSwap(t, n) {
			t.next.Store(n)
			if t.status.Load() < 0 {
				wake = true
			}
			break
		}
	}
	if wake {
		unpark(n.permit)
	}
}
