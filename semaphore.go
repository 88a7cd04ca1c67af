package jsr166

import (
	"context"
	"fmt"
	"time"
)

// Semaphore is a counting semaphore built on Synchronizer's shared mode:
// the state is the number of available permits. It allows a fixed number
// of concurrent accesses to a resource.
//
// Unlike a mutex it has no owner: permits released by one goroutine may
// have been acquired by another. The fair variant grants permits to
// blocked acquirers in strict arrival order; the default variant permits
// barging, which has higher throughput but no ordering guarantee.
type Semaphore struct {
	_ noCopy
	s *Synchronizer
}

type semSync struct {
	s *Synchronizer
}

// NewSemaphore returns a semaphore with the given number of initial
// permits. permits may be negative, in which case releases must occur
// before any acquire succeeds.
func NewSemaphore(permits int, fair bool) *Semaphore {
	b := &semSync{}
	b.s = NewSynchronizer(b, fair)
	b.s.SetState(int32(permits))
	return &Semaphore{s: b.s}
}

func (b *semSync) TryAcquireShared(n int32) int32 {
	for {
		available := b.s.State()
		remaining := available - n
		if remaining < 0 {
			return remaining
		}
		if b.s.CompareAndSwapState(available, remaining) {
			return remaining
		}
	}
}

func (b *semSync) TryReleaseShared(n int32) bool {
	for {
		current := b.s.State()
		next := current + n
		if next < current {
			panic("jsr166: semaphore permit count overflow")
		}
		if b.s.CompareAndSwapState(current, next) {
			return true
		}
	}
}

// Acquire acquires n permits, blocking until all are available. Permits
// are taken all-or-nothing: a blocked bulk acquire never holds a partial
// set.
func (s *Semaphore) Acquire(n int) {
	s.s.AcquireShared(checkPermits(n))
}

// AcquireCtx is Acquire unless ctx is cancelled first.
func (s *Semaphore) AcquireCtx(ctx context.Context, n int) error {
	return s.s.AcquireSharedCtx(ctx, checkPermits(n))
}

// TryAcquire acquires n permits only if all are available right now.
func (s *Semaphore) TryAcquire(n int) bool {
	return s.s.shr.TryAcquireShared(checkPermits(n)) >= 0
}

// TryAcquireTimeout acquires n permits, giving up after d.
func (s *Semaphore) TryAcquireTimeout(n int, d time.Duration) bool {
	return s.s.AcquireSharedTimeout(checkPermits(n), d)
}

// Release returns n permits and wakes blocked acquirers that can now
// proceed.
func (s *Semaphore) Release(n int) {
	s.s.ReleaseShared(checkPermits(n))
}

// AvailablePermits returns the current number of available permits.
func (s *Semaphore) AvailablePermits() int {
	return int(s.s.State())
}

// DrainPermits atomically takes and returns all available permits, or 0
// when none (or a deficit) are available.
func (s *Semaphore) DrainPermits() int {
	for {
		current := s.s.State()
		if current <= 0 {
			return 0
		}
		if s.s.CompareAndSwapState(current, 0) {
			return int(current)
		}
	}
}

// HasQueuedAcquirers reports whether any goroutine is blocked acquiring.
func (s *Semaphore) HasQueuedAcquirers() bool {
	return s.s.HasQueuedWaiters()
}

func checkPermits(n int) int32 {
	if n <= 0 || n > 1<<31-1 {
		panic(fmt.Sprintf("jsr166: invalid permit count %d", n))
	}
	return int32(n)
}
