package jsr166

import (
	"sync/atomic"
	"unsafe"

	"github.com/kabutz/jsr166-sub000/internal/opt"
)

// Ref is a single-slot atomic reference to a T, with the same ordering
// surface as Cell. The zero Ref holds nil.
//
// There is deliberately no field-updater equivalent: where a larger
// structure needs one atomically-updated field, embed a Ref (or Cell)
// directly as that field.
type Ref[T any] struct {
	_ noCopy
	p unsafe.Pointer
}

// NewRef returns a reference cell initialized to p.
func NewRef[T any](p *T) *Ref[T] {
	return &Ref[T]{p: unsafe.Pointer(p)}
}

// Load returns the referent with full ordering.
func (r *Ref[T]) Load() *T {
	return (*T)(atomic.LoadPointer(&r.p))
}

// LoadAcquire returns the referent with acquire ordering.
func (r *Ref[T]) LoadAcquire() *T {
	return (*T)(atomic.LoadPointer(&r.p))
}

// LoadOpaque returns the referent with opaque ordering.
func (r *Ref[T]) LoadOpaque() *T {
	return (*T)(opt.LoadPtr(&r.p))
}

// LoadPlain returns the referent as an ordinary read.
func (r *Ref[T]) LoadPlain() *T {
	return (*T)(opt.LoadPtrFast(&r.p))
}

// Store writes p with full ordering.
func (r *Ref[T]) Store(p *T) {
	atomic.StorePointer(&r.p, unsafe.Pointer(p))
}

// StoreRelease writes p with release ordering.
func (r *Ref[T]) StoreRelease(p *T) {
	atomic.StorePointer(&r.p, unsafe.Pointer(p))
}

// StoreOpaque writes p with opaque ordering.
func (r *Ref[T]) StoreOpaque(p *T) {
	opt.StorePtr(&r.p, unsafe.Pointer(p))
}

// StorePlain writes p as an ordinary write.
func (r *Ref[T]) StorePlain(p *T) {
	opt.StorePtrFast(&r.p, unsafe.Pointer(p))
}

// Swap atomically stores p and returns the previous referent.
func (r *Ref[T]) Swap(p *T) *T {
	return (*T)(atomic.SwapPointer(&r.p, unsafe.Pointer(p)))
}

// CompareAndSwap atomically replaces the referent with new if it equals
// old, reporting whether the replacement happened.
func (r *Ref[T]) CompareAndSwap(old, new *T) bool {
	return atomic.CompareAndSwapPointer(
		&r.p, unsafe.Pointer(old), unsafe.Pointer(new))
}

// WeakCompareAndSwap is CompareAndSwap under the loop-required weak
// contract; see Cell.WeakCompareAndSwap.
func (r *Ref[T]) WeakCompareAndSwap(old, new *T) bool {
	return r.CompareAndSwap(old, new)
}

// CompareAndExchange atomically replaces the referent with new if it
// equals old, returning the witness: old on success, the differing current
// referent on failure.
func (r *Ref[T]) CompareAndExchange(old, new *T) *T {
	for {
		cur := r.Load()
		if cur != old {
			return cur
		}
		if r.CompareAndSwap(old, new) {
			return old
		}
	}
}

// GetAndUpdate atomically replaces the referent with fn(current) and
// returns the previous referent. fn must be side-effect free: it may be
// invoked more than once under contention, but is re-invoked only when the
// observed referent actually changed since the last attempt.
func (r *Ref[T]) GetAndUpdate(fn func(*T) *T) *T {
	prev := r.Load()
	for {
		next := fn(prev)
		if w := r.CompareAndExchange(prev, next); w == prev {
			return prev
		} else {
			prev = w
		}
	}
}

// UpdateAndGet is GetAndUpdate returning the updated referent.
func (r *Ref[T]) UpdateAndGet(fn func(*T) *T) *T {
	prev := r.Load()
	for {
		next := fn(prev)
		if w := r.CompareAndExchange(prev, next); w == prev {
			return next
		} else {
			prev = w
		}
	}
}

// GetAndAccumulate atomically replaces the referent with fn(current, x)
// and returns the previous referent. The same re-invocation rules as
// GetAndUpdate apply to fn.
func (r *Ref[T]) GetAndAccumulate(x *T, fn func(cur, x *T) *T) *T {
	prev := r.Load()
	for {
		next := fn(prev, x)
		if w := r.CompareAndExchange(prev, next); w == prev {
			return prev
		} else {
			prev = w
		}
	}
}
