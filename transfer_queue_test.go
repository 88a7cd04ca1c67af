package jsr166

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func TestQueueFIFO(t *testing.T) {
	q := NewTransferQueue[int]()

	for i := range 10 {
		q.Put(i)
	}
	if got := q.Len(); got != 10 {
		t.Errorf("Len() = %d, want 10", got)
	}
	if v, ok := q.Peek(); !ok || v != 0 {
		t.Errorf("Peek() = (%d, %v), want (0, true)", v, ok)
	}
	for i := range 10 {
		v, ok := q.Poll()
		if !ok || v != i {
			t.Fatalf("Poll() = (%d, %v), want (%d, true)", v, ok, i)
		}
	}
	if _, ok := q.Poll(); ok {
		t.Error("Poll() on empty queue reported a value")
	}
	if !q.IsEmpty() {
		t.Error("IsEmpty() = false on drained queue")
	}
}

func TestQueueTakeBlocks(t *testing.T) {
	q := NewTransferQueue[string]()

	got := make(chan string, 1)
	go func() {
		got <- q.Take()
	}()

	select {
	case v := <-got:
		t.Fatalf("Take() = %q on empty queue", v)
	case <-time.After(50 * time.Millisecond):
	}

	q.Put("x")
	select {
	case v := <-got:
		if v != "x" {
			t.Errorf("Take() = %q, want %q", v, "x")
		}
	case <-time.After(time.Second):
		t.Fatal("Take did not receive after Put")
	}
}

// Transfer must block until a consumer receives the element; Take wakes
// the producer.
func TestQueueTransferHandOff(t *testing.T) {
	q := NewTransferQueue[int]()

	delivered := make(chan struct{})
	go func() {
		q.Transfer(42)
		close(delivered)
	}()

	select {
	case <-delivered:
		t.Fatal("Transfer returned with no consumer")
	case <-time.After(50 * time.Millisecond):
	}
	if q.IsEmpty() {
		t.Error("queued transfer element invisible")
	}

	if v := q.Take(); v != 42 {
		t.Errorf("Take() = %d, want 42", v)
	}
	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("Transfer did not return after Take")
	}
}

func TestQueueTryTransfer(t *testing.T) {
	q := NewTransferQueue[int]()

	if q.TryTransfer(1) {
		t.Fatal("TryTransfer succeeded with no waiting consumer")
	}
	if !q.IsEmpty() {
		t.Fatal("failed TryTransfer left the element enqueued")
	}

	got := make(chan int, 1)
	go func() {
		got <- q.Take()
	}()
	for !q.HasWaitingConsumer() {
		time.Sleep(time.Millisecond)
	}

	if !q.TryTransfer(7) {
		t.Fatal("TryTransfer failed with a waiting consumer")
	}
	if v := <-got; v != 7 {
		t.Errorf("Take() = %d, want 7", v)
	}
}

func TestQueueTryTransferTimeout(t *testing.T) {
	q := NewTransferQueue[int]()

	start := time.Now()
	if q.TryTransferTimeout(1, 50*time.Millisecond) {
		t.Fatal("timed transfer succeeded with no consumer")
	}
	if d := time.Since(start); d < 50*time.Millisecond {
		t.Errorf("timed transfer returned after %v, want >= 50ms", d)
	}
	if !q.IsEmpty() {
		t.Error("timed-out transfer left the element enqueued")
	}
}

func TestQueuePollTimeout(t *testing.T) {
	q := NewTransferQueue[int]()

	if _, ok := q.PollTimeout(30 * time.Millisecond); ok {
		t.Error("PollTimeout reported a value on empty queue")
	}

	time.AfterFunc(30*time.Millisecond, func() { q.Put(5) })
	if v, ok := q.PollTimeout(time.Second); !ok || v != 5 {
		t.Errorf("PollTimeout = (%d, %v), want (5, true)", v, ok)
	}
}

func TestQueueTakeCtx(t *testing.T) {
	q := NewTransferQueue[int]()
	ctx, cancel := context.WithCancel(context.Background())

	errs := make(chan error, 1)
	go func() {
		_, err := q.TakeCtx(ctx)
		errs <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errs:
		if err != context.Canceled {
			t.Errorf("TakeCtx = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("TakeCtx did not return after cancel")
	}

	// The cancelled reservation must not swallow a later element.
	q.Put(9)
	if v, ok := q.Poll(); !ok || v != 9 {
		t.Errorf("Poll() = (%d, %v) after cancelled TakeCtx, want (9, true)", v, ok)
	}
}

func TestQueueTransferCtx(t *testing.T) {
	q := NewTransferQueue[int]()
	ctx, cancel := context.WithCancel(context.Background())

	errs := make(chan error, 1)
	go func() {
		errs <- q.TransferCtx(ctx, 3)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-errs; err != context.Canceled {
		t.Errorf("TransferCtx = %v, want context.Canceled", err)
	}
	if !q.IsEmpty() {
		t.Error("cancelled transfer left the element visible")
	}
}

func TestQueueDrainTo(t *testing.T) {
	q := NewTransferQueue[int]()
	for i := range 5 {
		q.Put(i)
	}

	var buf []int
	if n := q.DrainTo(&buf); n != 5 {
		t.Fatalf("DrainTo = %d, want 5", n)
	}
	for i, v := range buf {
		if v != i {
			t.Fatalf("drained %v, want FIFO order", buf)
		}
	}
	if _, ok := q.Poll(); ok {
		t.Error("queue not empty after drain")
	}

	for i := range 5 {
		q.Put(i)
	}
	buf = buf[:0]
	if n := q.DrainToLimit(&buf, 3); n != 3 || len(buf) != 3 {
		t.Fatalf("DrainToLimit = %d (len %d), want 3", n, len(buf))
	}
	if got := q.Len(); got != 2 {
		t.Errorf("Len() = %d after limited drain, want 2", got)
	}
}

func TestQueueRange(t *testing.T) {
	q := NewTransferQueue[int]()
	for i := range 4 {
		q.Put(i)
	}

	var seen []int
	q.Range(func(v int) bool {
		seen = append(seen, v)
		return v < 2 // stop after 2
	})
	want := []int{0, 1, 2}
	if len(seen) != len(want) {
		t.Fatalf("Range visited %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("Range visited %v, want %v", seen, want)
		}
	}
	// Range does not consume.
	if got := q.Len(); got != 4 {
		t.Errorf("Len() = %d after Range, want 4", got)
	}
}

func TestQueueConcurrentProducersConsumers(t *testing.T) {
	q := NewTransferQueue[int]()
	const producers = 4
	const consumers = 4
	const perProducer = 2500
	const total = producers * perProducer

	var g errgroup.Group
	for p := range producers {
		g.Go(func() error {
			for i := range perProducer {
				v := p*perProducer + i
				if i%3 == 0 {
					q.Transfer(v)
				} else {
					q.Put(v)
				}
			}
			return nil
		})
	}

	var mu sync.Mutex
	got := make(map[int]bool, total)
	for range consumers {
		g.Go(func() error {
			for {
				mu.Lock()
				if len(got) == total {
					mu.Unlock()
					return nil
				}
				mu.Unlock()
				v, ok := q.PollTimeout(200 * time.Millisecond)
				if !ok {
					continue
				}
				mu.Lock()
				if got[v] {
					mu.Unlock()
					t.Errorf("value %d delivered twice", v)
					return nil
				}
				got[v] = true
				mu.Unlock()
			}
		})
	}

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("producers/consumers did not finish")
	}
	if len(got) != total {
		t.Fatalf("delivered %d values, want %d", len(got), total)
	}
}

func TestQueueOfferTimeout(t *testing.T) {
	q := NewTransferQueue[int]()

	start := time.Now()
	if !q.OfferTimeout(1, time.Second) {
		t.Fatal("OfferTimeout refused on unbounded queue")
	}
	if d := time.Since(start); d > 100*time.Millisecond {
		t.Errorf("OfferTimeout blocked for %v, want immediate", d)
	}
	if v, ok := q.Poll(); !ok || v != 1 {
		t.Errorf("Poll() = (%d, %v) after OfferTimeout, want (1, true)", v, ok)
	}
}

// After a drain the spent nodes are self-linked; later appends must walk
// off them (falling back to head past a stale tail) instead of spinning.
func TestQueueReuseAfterDrain(t *testing.T) {
	q := NewTransferQueue[int]()
	for round := range 100 {
		for i := range 10 {
			q.Put(round*10 + i)
		}
		for i := range 10 {
			v, ok := q.Poll()
			if !ok || v != round*10+i {
				t.Fatalf("round %d: Poll() = (%d, %v), want (%d, true)",
					round, v, ok, round*10+i)
			}
		}
	}
	if !q.IsEmpty() {
		t.Error("queue not empty after final drain")
	}
}

// Tight hand-off loop: every Transfer races the consumer's head advance
// and the producer's tail swing, so appends repeatedly land while the old
// chain is being self-linked.
func TestQueueHandOffHammer(t *testing.T) {
	q := NewTransferQueue[int]()
	const n = 20_000

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range n {
			if v := q.Take(); v != i {
				t.Errorf("Take() = %d, want %d", v, i)
				return
			}
		}
	}()

	for i := range n {
		q.Transfer(i)
	}
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("hand-off loop stalled")
	}
}

// Per-producer FIFO: elements from one producer arrive in order.
func TestQueueProducerOrderPreserved(t *testing.T) {
	q := NewTransferQueue[int]()
	const n = 5000

	done := make(chan struct{})
	go func() {
		defer close(done)
		last := -1
		for range n {
			v := q.Take()
			if v <= last {
				t.Errorf("received %d after %d", v, last)
				return
			}
			last = v
		}
	}()

	for i := range n {
		q.Put(i)
	}
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("consumer did not drain")
	}
}
