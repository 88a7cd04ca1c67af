package jsr166

import (
	"sync/atomic"
	"unsafe"

	"github.com/kabutz/jsr166-sub000/internal/opt"
)

// Int is the set of integer types a Cell can hold: anything that fits a
// single machine word on every supported platform. Arithmetic wraps around
// in two's complement at the width of the concrete type.
type Int interface {
	~int32 | ~uint32 | ~int64 | ~uint64 | ~int | ~uint | ~uintptr
}

// Cell is a single-slot atomic integer variable exposing loads and stores
// under several ordering strengths plus compare-and-swap and derived
// read-modify-write operations.
//
// Ordering strengths, weakest to strongest:
//
//   - plain: an ordinary access with no inter-goroutine guarantee. Use only
//     when the caller already holds exclusive access or a stronger barrier
//     elsewhere.
//   - opaque: eventual visibility, no ordering relative to surrounding
//     operations. On TSO architectures this compiles to a plain access.
//   - acquire/release: one-directional fences pairing a release store with
//     an acquire load.
//   - full: acquire-on-read plus release-on-write with a total order over
//     all full accesses to the slot. This is the default Load/Store.
//
// Go's sync/atomic operations carry full ordering, so the acquire, release
// and full variants map to the same instructions; the distinct methods keep
// call sites honest about the strength they rely on. All methods stronger
// than plain are safe under the race detector; the plain variants degrade
// to atomics when built with -race.
//
// The zero Cell holds the zero value of T. A Cell must not be copied after
// first use. 64-bit cells embedded in structs must be 64-bit aligned on
// 32-bit platforms, same as sync/atomic.
type Cell[T Int] struct {
	_ noCopy
	v T
}

// NewCell returns a cell initialized to v.
func NewCell[T Int](v T) *Cell[T] {
	return &Cell[T]{v: v}
}

// Load returns the value with full ordering.
func (c *Cell[T]) Load() T {
	if unsafe.Sizeof(c.v) == 4 {
		return T(atomic.LoadUint32((*uint32)(unsafe.Pointer(&c.v))))
	}
	return T(atomic.LoadUint64((*uint64)(unsafe.Pointer(&c.v))))
}

// LoadAcquire returns the value with acquire ordering: no read or write
// after this load may be reordered before it.
func (c *Cell[T]) LoadAcquire() T {
	return c.Load()
}

// LoadOpaque returns the value with opaque ordering: the read is untorn and
// eventually sees the latest value, but carries no ordering.
func (c *Cell[T]) LoadOpaque() T {
	return opt.LoadInt(&c.v)
}

// LoadPlain returns the value as an ordinary read.
func (c *Cell[T]) LoadPlain() T {
	return opt.LoadIntFast(&c.v)
}

// Store writes v with full ordering.
func (c *Cell[T]) Store(v T) {
	if unsafe.Sizeof(c.v) == 4 {
		atomic.StoreUint32((*uint32)(unsafe.Pointer(&c.v)), uint32(v))
		return
	}
	atomic.StoreUint64((*uint64)(unsafe.Pointer(&c.v)), uint64(v))
}

// StoreRelease writes v with release ordering: no read or write before this
// store may be reordered after it.
func (c *Cell[T]) StoreRelease(v T) {
	c.Store(v)
}

// StoreOpaque writes v with opaque ordering.
func (c *Cell[T]) StoreOpaque(v T) {
	opt.StoreInt(&c.v, v)
}

// StorePlain writes v as an ordinary write.
func (c *Cell[T]) StorePlain(v T) {
	opt.StoreIntFast(&c.v, v)
}

// Swap atomically stores v and returns the previous value.
func (c *Cell[T]) Swap(v T) T {
	if unsafe.Sizeof(c.v) == 4 {
		return T(atomic.SwapUint32((*uint32)(unsafe.Pointer(&c.v)), uint32(v)))
	}
	return T(atomic.SwapUint64((*uint64)(unsafe.Pointer(&c.v)), uint64(v)))
}

// CompareAndSwap atomically replaces the value with new if it equals old,
// reporting whether the replacement happened. Failure is a first-class
// retry signal, never an error.
func (c *Cell[T]) CompareAndSwap(old, new T) bool {
	if unsafe.Sizeof(c.v) == 4 {
		return atomic.CompareAndSwapUint32(
			(*uint32)(unsafe.Pointer(&c.v)), uint32(old), uint32(new))
	}
	return atomic.CompareAndSwapUint64(
		(*uint64)(unsafe.Pointer(&c.v)), uint64(old), uint64(new))
}

// WeakCompareAndSwap is CompareAndSwap with a weaker contract: it is
// permitted to fail spuriously even when the current value equals old, so
// it must only be called inside a retry loop. On the architectures Go
// targets it maps to the same instruction as CompareAndSwap; the separate
// method preserves the loop-required contract for portable callers.
func (c *Cell[T]) WeakCompareAndSwap(old, new T) bool {
	return c.CompareAndSwap(old, new)
}

// CompareAndExchange atomically replaces the value with new if it equals
// old, returning the witness value: old on success, the differing current
// value on failure.
func (c *Cell[T]) CompareAndExchange(old, new T) T {
	for {
		cur := c.Load()
		if cur != old {
			return cur
		}
		if c.CompareAndSwap(old, new) {
			return old
		}
	}
}

// Add atomically adds delta and returns the new value. Wraparound follows
// two's complement at the width of T.
func (c *Cell[T]) Add(delta T) T {
	if unsafe.Sizeof(c.v) == 4 {
		return T(atomic.AddUint32((*uint32)(unsafe.Pointer(&c.v)), uint32(delta)))
	}
	return T(atomic.AddUint64((*uint64)(unsafe.Pointer(&c.v)), uint64(delta)))
}

// GetAndAdd atomically adds delta and returns the previous value.
func (c *Cell[T]) GetAndAdd(delta T) T {
	return c.Add(delta) - delta
}

// GetAndUpdate atomically replaces the value with fn(current) and returns
// the previous value. fn must be side-effect free: it may be invoked more
// than once under contention, but is re-invoked only when the observed
// value actually changed since the last attempt.
func (c *Cell[T]) GetAndUpdate(fn func(T) T) T {
	prev := c.Load()
	for {
		next := fn(prev)
		if w := c.CompareAndExchange(prev, next); w == prev {
			return prev
		} else {
			prev = w
		}
	}
}

// UpdateAndGet is GetAndUpdate returning the updated value.
func (c *Cell[T]) UpdateAndGet(fn func(T) T) T {
	prev := c.Load()
	for {
		next := fn(prev)
		if w := c.CompareAndExchange(prev, next); w == prev {
			return next
		} else {
			prev = w
		}
	}
}

// GetAndAccumulate atomically replaces the value with fn(current, x) and
// returns the previous value. The same re-invocation rules as GetAndUpdate
// apply to fn.
func (c *Cell[T]) GetAndAccumulate(x T, fn func(cur, x T) T) T {
	prev := c.Load()
	for {
		next := fn(prev, x)
		if w := c.CompareAndExchange(prev, next); w == prev {
			return prev
		} else {
			prev = w
		}
	}
}
