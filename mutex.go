package jsr166

import (
	"context"
	"time"
)

// Mutex is a non-reentrant exclusive lock built on Synchronizer: state 0
// means unlocked, 1 means locked. It satisfies sync.Locker and, unlike
// sync.Mutex, offers try/timeout/context acquisition, optional strict
// FIFO fairness, and condition queues.
//
// Locking an already-held mutex from the same goroutine deadlocks (there
// is no owner tracking); unlocking an unheld mutex panics.
type Mutex struct {
	_ noCopy
	s *Synchronizer
}

type mutexSync struct {
	s *Synchronizer
}

// NewMutex returns an unlocked mutex. With fair set, competing Lock calls
// that block are granted in strict arrival order and newcomers never barge
// ahead of queued waiters.
func NewMutex(fair bool) *Mutex {
	b := &mutexSync{}
	b.s = NewSynchronizer(b, fair)
	return &Mutex{s: b.s}
}

func (b *mutexSync) TryAcquire(arg int32) bool {
	return b.s.CompareAndSwapState(0, arg)
}

func (b *mutexSync) TryRelease(arg int32) bool {
	if b.s.State() == 0 {
		panic("jsr166: unlock of unlocked mutex")
	}
	b.s.SetState(0)
	return true
}

func (b *mutexSync) IsHeldExclusively() bool {
	return b.s.State() != 0
}

// Lock acquires the mutex, blocking until it is available.
func (m *Mutex) Lock() {
	m.s.Acquire(1)
}

// LockCtx acquires the mutex unless ctx is cancelled first.
func (m *Mutex) LockCtx(ctx context.Context) error {
	return m.s.AcquireCtx(ctx, 1)
}

// LockTimeout acquires the mutex, giving up after d. It reports whether
// the lock was acquired.
func (m *Mutex) LockTimeout(d time.Duration) bool {
	return m.s.AcquireTimeout(1, d)
}

// TryLock acquires the mutex only if it is free right now. Even on a fair
// mutex TryLock may barge.
func (m *Mutex) TryLock() bool {
	return m.s.CompareAndSwapState(0, 1)
}

// Unlock releases the mutex and wakes the first queued waiter, if any.
// It panics if the mutex is not locked.
func (m *Mutex) Unlock() {
	m.s.Release(1)
}

// IsLocked reports whether the mutex is currently held.
func (m *Mutex) IsLocked() bool {
	return m.s.State() != 0
}

// HasQueuedWaiters reports whether any goroutine is blocked in Lock.
func (m *Mutex) HasQueuedWaiters() bool {
	return m.s.HasQueuedWaiters()
}

// QueueLength returns an estimate of the number of goroutines blocked in
// Lock.
func (m *Mutex) QueueLength() int {
	return m.s.QueueLength()
}

// NewCond returns a condition queue bound to this mutex.
func (m *Mutex) NewCond() *Cond {
	return m.s.NewCond()
}
