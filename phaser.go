package jsr166

import "context"

// Phaser is a reusable synchronization barrier with dynamically
// registered parties, synchronizing in numbered phases.
//
// Concepts:
//   - Phase: an integer generation number, advancing when all registered
//     parties have arrived.
//   - Arrive: a party signals it reached the barrier (and may continue).
//   - AwaitAdvance: a party waits for the phase observed earlier to end.
//
// Unlike a WaitGroup, parties can be added and removed at any time, and
// Arrive/AwaitAdvance are split so "arrive and continue" patterns work.
//
// Implementation: the counts are guarded by a Mutex and phase advances are
// announced on a single condition queue; phase transitions are rare
// compared to waits, so the lock is not the bottleneck.
type Phaser struct {
	_       noCopy
	mu      *Mutex
	advance *Cond
	phase   int
	parties int
	arrived int
}

// NewPhaser creates a phaser with the given number of initially
// registered parties (which may be zero).
func NewPhaser(parties int) *Phaser {
	if parties < 0 {
		panic("jsr166: negative party count")
	}
	mu := NewMutex(false)
	return &Phaser{mu: mu, advance: mu.NewCond(), parties: parties}
}

// Register adds a party and returns the current phase number.
func (p *Phaser) Register() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.parties++
	return p.phase
}

// Arrive signals that one party reached the barrier without waiting for
// the others. It returns the phase number of the arrival.
func (p *Phaser) Arrive() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doArrive(false)
}

// ArriveAndDeregister signals arrival and removes the party from future
// phases. It returns the phase number of the arrival.
func (p *Phaser) ArriveAndDeregister() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doArrive(true)
}

// ArriveAndAwaitAdvance arrives and then waits for the current phase to
// complete, returning the next phase number.
func (p *Phaser) ArriveAndAwaitAdvance() int {
	p.mu.Lock()
	phase := p.doArrive(false)
	next := p.awaitLocked(phase)
	p.mu.Unlock()
	return next
}

// AwaitAdvance waits until the given phase has completed. If the phaser
// has already moved past it, AwaitAdvance returns immediately. It returns
// the current phase.
func (p *Phaser) AwaitAdvance(phase int) int {
	p.mu.Lock()
	cur := p.awaitLocked(phase)
	p.mu.Unlock()
	return cur
}

// AwaitAdvanceCtx is AwaitAdvance unless ctx is cancelled first.
func (p *Phaser) AwaitAdvanceCtx(ctx context.Context, phase int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.phase == phase {
		if err := p.advance.WaitCtx(ctx); err != nil {
			return p.phase, err
		}
	}
	return p.phase, nil
}

// Phase returns the current phase number.
func (p *Phaser) Phase() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

// Parties returns the number of registered parties.
func (p *Phaser) Parties() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.parties
}

// doArrive records one arrival (optionally deregistering the party) and
// advances the phase when it was the last one outstanding. Caller holds
// p.mu. Returns the phase the arrival counted toward.
func (p *Phaser) doArrive(deregister bool) int {
	if p.parties == 0 {
		panic("jsr166: arrive on phaser with no registered parties")
	}
	phase := p.phase
	p.arrived++
	if deregister {
		p.parties--
	}
	if p.arrived >= p.parties {
		p.phase++
		p.arrived = 0
		p.advance.Broadcast()
	}
	return phase
}

func (p *Phaser) awaitLocked(phase int) int {
	for p.phase == phase {
		p.advance.Wait()
	}
	return p.phase
}
