package jsr166

import (
	"context"
	"fmt"
	"time"
)

// CountDownLatch is a one-shot "wait for N completions" barrier built on
// Synchronizer's shared mode: the state is the remaining count. Wait
// blocks until the count reaches zero; once open it can never close
// again, and all current and future Wait calls return immediately.
//
// Shared-mode propagation means a single CountDown that reaches zero
// releases every waiter in one cascading wave rather than one at a time.
type CountDownLatch struct {
	_ noCopy
	s *Synchronizer
}

type latchSync struct {
	s *Synchronizer
}

// NewCountDownLatch returns a latch that opens after count calls to
// CountDown. count zero yields an already-open latch.
func NewCountDownLatch(count int) *CountDownLatch {
	if count < 0 {
		panic(fmt.Sprintf("jsr166: negative latch count %d", count))
	}
	b := &latchSync{}
	b.s = NewSynchronizer(b, false)
	b.s.SetState(int32(count))
	return &CountDownLatch{s: b.s}
}

func (b *latchSync) TryAcquireShared(int32) int32 {
	if b.s.State() == 0 {
		return 1
	}
	return -1
}

func (b *latchSync) TryReleaseShared(int32) bool {
	for {
		c := b.s.State()
		if c == 0 {
			return false // already open
		}
		if b.s.CompareAndSwapState(c, c-1) {
			return c == 1
		}
	}
}

// Wait blocks until the count reaches zero. If it already has, Wait
// returns immediately.
func (l *CountDownLatch) Wait() {
	l.s.AcquireShared(1)
}

// WaitCtx is Wait unless ctx is cancelled first.
func (l *CountDownLatch) WaitCtx(ctx context.Context) error {
	return l.s.AcquireSharedCtx(ctx, 1)
}

// WaitTimeout is Wait bounded by d; it reports whether the latch opened
// within the deadline.
func (l *CountDownLatch) WaitTimeout(d time.Duration) bool {
	return l.s.AcquireSharedTimeout(1, d)
}

// CountDown decrements the count, releasing all waiters when it reaches
// zero. Calls on an open latch are no-ops.
func (l *CountDownLatch) CountDown() {
	l.s.ReleaseShared(1)
}

// Count returns the current remaining count.
func (l *CountDownLatch) Count() int {
	return int(l.s.State())
}
