package jsr166

import (
	"context"
	"time"
)

// RWMutex is a reader-writer lock built on a single Synchronizer using
// both of its modes: the write lock is an exclusive acquire, read locks
// are shared acquires. State encoding: -1 writer held, 0 free, n > 0 the
// number of active readers.
//
// Non-reentrant, no lock downgrading. In the default non-fair mode an
// arriving reader still yields to a queued writer (writer preference
// prevents reader streams from starving writers); in fair mode both sides
// queue strictly FIFO.
type RWMutex struct {
	_ noCopy
	s *Synchronizer
}

const rwWriter = -1
const rwMaxReaders = 1<<31 - 2

type rwSync struct {
	s    *Synchronizer
	fair bool
}

// NewRWMutex returns an unlocked reader-writer lock.
func NewRWMutex(fair bool) *RWMutex {
	b := &rwSync{fair: fair}
	b.s = NewSynchronizer(b, fair)
	return &RWMutex{s: b.s}
}

func (b *rwSync) TryAcquire(arg int32) bool {
	return b.s.CompareAndSwapState(0, rwWriter)
}

func (b *rwSync) TryRelease(arg int32) bool {
	if b.s.State() != rwWriter {
		panic("jsr166: write-unlock of rwmutex not write-locked")
	}
	b.s.SetState(0)
	return true
}

func (b *rwSync) IsHeldExclusively() bool {
	return b.s.State() == rwWriter
}

func (b *rwSync) TryAcquireShared(arg int32) int32 {
	for {
		c := b.s.State()
		if c < 0 {
			return -1 // writer active
		}
		if !b.fair && b.s.ApparentlyFirstQueuedIsExclusive() {
			return -1 // let the queued writer go first
		}
		if c >= rwMaxReaders {
			panic("jsr166: rwmutex reader count overflow")
		}
		if b.s.CompareAndSwapState(c, c+1) {
			return 1
		}
	}
}

func (b *rwSync) TryReleaseShared(arg int32) bool {
	for {
		c := b.s.State()
		if c <= 0 {
			panic("jsr166: read-unlock of rwmutex not read-locked")
		}
		if b.s.CompareAndSwapState(c, c-1) {
			return c == 1 // last reader out may admit a writer
		}
	}
}

// Lock acquires the write lock, blocking until no writer or reader holds
// the lock.
func (rw *RWMutex) Lock() {
	rw.s.Acquire(1)
}

// LockCtx acquires the write lock unless ctx is cancelled first.
func (rw *RWMutex) LockCtx(ctx context.Context) error {
	return rw.s.AcquireCtx(ctx, 1)
}

// LockTimeout acquires the write lock, giving up after d.
func (rw *RWMutex) LockTimeout(d time.Duration) bool {
	return rw.s.AcquireTimeout(1, d)
}

// TryLock acquires the write lock only if it is free right now.
func (rw *RWMutex) TryLock() bool {
	return rw.s.CompareAndSwapState(0, rwWriter)
}

// Unlock releases the write lock. It panics if the write lock is not held.
func (rw *RWMutex) Unlock() {
	rw.s.Release(1)
}

// RLock acquires a read lock, blocking while a writer holds or (non-fair
// mode) the first queued waiter is a writer.
func (rw *RWMutex) RLock() {
	rw.s.AcquireShared(1)
}

// RLockCtx acquires a read lock unless ctx is cancelled first.
func (rw *RWMutex) RLockCtx(ctx context.Context) error {
	return rw.s.AcquireSharedCtx(ctx, 1)
}

// RLockTimeout acquires a read lock, giving up after d.
func (rw *RWMutex) RLockTimeout(d time.Duration) bool {
	return rw.s.AcquireSharedTimeout(1, d)
}

// TryRLock acquires a read lock only if no writer holds the lock, without
// regard for queued writers.
func (rw *RWMutex) TryRLock() bool {
	for {
		c := rw.s.State()
		if c < 0 {
			return false
		}
		if rw.s.CompareAndSwapState(c, c+1) {
			return true
		}
	}
}

// RUnlock releases one read lock. It panics if no read lock is held.
func (rw *RWMutex) RUnlock() {
	rw.s.ReleaseShared(1)
}

// HasQueuedWaiters reports whether any goroutine is blocked acquiring
// either lock.
func (rw *RWMutex) HasQueuedWaiters() bool {
	return rw.s.HasQueuedWaiters()
}

// ReaderCount returns the number of currently held read locks, or 0 when
// a writer holds the lock.
func (rw *RWMutex) ReaderCount() int {
	if c := rw.s.State(); c > 0 {
		return int(c)
	}
	return 0
}
