package jsr166

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPhaserSingleParty(t *testing.T) {
	p := NewPhaser(1)

	if got := p.Phase(); got != 0 {
		t.Fatalf("initial Phase() = %d", got)
	}
	if got := p.Arrive(); got != 0 {
		t.Errorf("Arrive() = %d, want 0", got)
	}
	if got := p.Phase(); got != 1 {
		t.Errorf("Phase() after solo arrival = %d, want 1", got)
	}
}

func TestPhaserBarrier(t *testing.T) {
	const parties = 4
	const phases = 10

	p := NewPhaser(parties)
	var mu sync.Mutex
	counts := make([]int, phases)

	var wg sync.WaitGroup
	wg.Add(parties)
	for range parties {
		go func() {
			defer wg.Done()
			for ph := 0; ph < phases; ph++ {
				mu.Lock()
				counts[ph]++
				mu.Unlock()
				p.ArriveAndAwaitAdvance()
			}
		}()
	}
	wg.Wait()

	// Barrier semantics: no party enters phase k+1 before all finished k,
	// so each per-phase count must have been complete at the advance.
	for ph, c := range counts {
		if c != parties {
			t.Errorf("phase %d saw %d arrivals, want %d", ph, c, parties)
		}
	}
	if got := p.Phase(); got != phases {
		t.Errorf("Phase() = %d, want %d", got, phases)
	}
}

func TestPhaserAwaitAdvance(t *testing.T) {
	p := NewPhaser(2)

	phase := p.Arrive()
	advanced := make(chan int, 1)
	go func() {
		advanced <- p.AwaitAdvance(phase)
	}()

	select {
	case <-advanced:
		t.Fatal("AwaitAdvance returned before all parties arrived")
	case <-time.After(50 * time.Millisecond):
	}

	p.Arrive()
	select {
	case next := <-advanced:
		if next != phase+1 {
			t.Errorf("AwaitAdvance = %d, want %d", next, phase+1)
		}
	case <-time.After(time.Second):
		t.Fatal("AwaitAdvance did not return after phase completed")
	}

	// A stale phase number returns immediately.
	if got := p.AwaitAdvance(phase); got != phase+1 {
		t.Errorf("stale AwaitAdvance = %d, want %d", got, phase+1)
	}
}

func TestPhaserRegisterDeregister(t *testing.T) {
	p := NewPhaser(1)

	if got := p.Register(); got != 0 {
		t.Errorf("Register() = %d, want 0", got)
	}
	if got := p.Parties(); got != 2 {
		t.Errorf("Parties() = %d, want 2", got)
	}

	p.Arrive()
	if got := p.Phase(); got != 0 {
		t.Fatalf("phase advanced with one of two arrivals")
	}
	p.ArriveAndDeregister()
	if got := p.Phase(); got != 1 {
		t.Errorf("Phase() = %d, want 1", got)
	}
	if got := p.Parties(); got != 1 {
		t.Errorf("Parties() = %d, want 1", got)
	}
}

func TestPhaserArriveUnregisteredPanics(t *testing.T) {
	p := NewPhaser(0)
	defer func() {
		if recover() == nil {
			t.Error("Arrive with no registered parties did not panic")
		}
	}()
	p.Arrive()
}

func TestPhaserAwaitAdvanceCtx(t *testing.T) {
	p := NewPhaser(2)
	phase := p.Arrive()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := p.AwaitAdvanceCtx(ctx, phase); err != context.DeadlineExceeded {
		t.Errorf("AwaitAdvanceCtx = %v, want context.DeadlineExceeded", err)
	}

	p.Arrive()
	got, err := p.AwaitAdvanceCtx(context.Background(), phase)
	if err != nil || got != phase+1 {
		t.Errorf("AwaitAdvanceCtx = (%d, %v), want (%d, nil)", got, err, phase+1)
	}
}
