package jsr166

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func TestSemaphoreSimple(t *testing.T) {
	s := NewSemaphore(1, false)

	s.Acquire(1)
	if s.TryAcquire(1) {
		t.Error("TryAcquire succeeded when empty")
	}
	s.Release(1)
	s.Acquire(1)
}

func TestSemaphoreOrdering(t *testing.T) {
	s := NewSemaphore(0, false)

	var wg sync.WaitGroup
	wg.Add(2)
	for range 2 {
		go func() {
			defer wg.Done()
			s.Acquire(1)
		}()
	}

	time.Sleep(10 * time.Millisecond) // Wait for them to block

	s.Release(2)
	wg.Wait()
}

// A bulk acquire is all-or-nothing: it must not strand partial permits.
func TestSemaphoreBatch(t *testing.T) {
	s := NewSemaphore(2, false)

	if s.TryAcquire(3) {
		t.Fatal("TryAcquire(3) succeeded with 2 permits")
	}
	if got := s.AvailablePermits(); got != 2 {
		t.Fatalf("failed bulk try consumed permits: %d left", got)
	}

	acquired := make(chan struct{})
	go func() {
		s.Acquire(3)
		close(acquired)
	}()
	time.Sleep(20 * time.Millisecond)
	select {
	case <-acquired:
		t.Fatal("Acquire(3) completed with 2 permits")
	default:
	}

	s.Release(1)
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("Acquire(3) did not complete at 3 permits")
	}
	if got := s.AvailablePermits(); got != 0 {
		t.Errorf("AvailablePermits() = %d, want 0", got)
	}
}

func TestSemaphoreBounds(t *testing.T) {
	const permits = 3
	const workers = 10

	s := NewSemaphore(permits, false)
	var active, peak Cell[int32]
	var g errgroup.Group
	for range workers {
		g.Go(func() error {
			for range 200 {
				s.Acquire(1)
				n := active.Add(1)
				peak.GetAndAccumulate(n, func(cur, x int32) int32 { return max(cur, x) })
				active.Add(-1)
				s.Release(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if p := peak.Load(); p > permits {
		t.Errorf("observed %d concurrent holders, limit %d", p, permits)
	}
	if got := s.AvailablePermits(); got != permits {
		t.Errorf("AvailablePermits() = %d, want %d", got, permits)
	}
}

func TestSemaphoreTimeoutAndCtx(t *testing.T) {
	s := NewSemaphore(0, false)

	if s.TryAcquireTimeout(1, 20*time.Millisecond) {
		t.Error("timed acquire succeeded with no permits")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.AcquireCtx(ctx, 1); err != context.DeadlineExceeded {
		t.Errorf("AcquireCtx = %v, want context.DeadlineExceeded", err)
	}
}

func TestSemaphoreDrain(t *testing.T) {
	s := NewSemaphore(5, false)
	if got := s.DrainPermits(); got != 5 {
		t.Errorf("DrainPermits() = %d, want 5", got)
	}
	if got := s.DrainPermits(); got != 0 {
		t.Errorf("second DrainPermits() = %d, want 0", got)
	}
	s.Release(2)
	if got := s.AvailablePermits(); got != 2 {
		t.Errorf("AvailablePermits() = %d, want 2", got)
	}
}

func TestSemaphoreInvalidCount(t *testing.T) {
	s := NewSemaphore(1, false)
	defer func() {
		if recover() == nil {
			t.Error("Acquire(0) did not panic")
		}
	}()
	s.Acquire(0)
}

func TestSemaphoreNegativeInitial(t *testing.T) {
	s := NewSemaphore(-1, false)
	if s.TryAcquire(1) {
		t.Fatal("TryAcquire succeeded on deficit semaphore")
	}
	s.Release(2)
	if !s.TryAcquire(1) {
		t.Fatal("TryAcquire failed after deficit repaid")
	}
}
