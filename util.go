package jsr166

import (
	"time"
	_ "unsafe" // for linkname

	"github.com/valyala/fastrand"
)

// noCopy may be added to structs which must not be copied
// after the first use.
//
// See https://golang.org/issues/8005#issuecomment-190753527
// for details.
//
// Note that it must not be embedded, due to the Lock and Unlock methods.
type noCopy struct{}

// Lock is a no-op used by -copylocks checker from `go vet`.
func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

func trySpin(spins *int) bool {
	if runtime_canSpin(*spins) {
		*spins++
		runtime_doSpin()
		return true
	}
	return false
}

func delay(spins *int) {
	if trySpin(spins) {
		return
	}
	*spins = 0
	// Short sleep as backoff under high concurrency. The ~500µs base is
	// derived from Facebook/folly's Sleeper; the jitter de-synchronizes
	// contending spinners so they do not wake in lockstep.
	// https://github.com/facebook/folly/blob/main/folly/synchronization/detail/Sleeper.h
	time.Sleep(time.Duration(400+fastrand.Uint32n(200)) * time.Microsecond)
}

// await blocks on a one-slot permit channel until a permit arrives, the
// deadline expires, or done is closed. It reports true when a permit was
// consumed. Wakeups may be spurious relative to the caller's predicate;
// callers always re-check their condition in a loop.
func await(permit <-chan struct{}, done <-chan struct{}, timed bool, deadline time.Time) bool {
	if !timed && done == nil {
		<-permit
		return true
	}
	var timerC <-chan time.Time
	if timed {
		rem := time.Until(deadline)
		if rem <= 0 {
			return false
		}
		t := time.NewTimer(rem)
		defer t.Stop()
		timerC = t.C
	}
	select {
	case <-permit:
		return true
	case <-timerC:
		return false
	case <-done:
		return false
	}
}

// unpark delivers a permit to a one-slot permit channel without blocking.
// The slot saturates at one permit: delivering into a full slot is a
// no-op, so unpark-before-park never deadlocks and never accumulates.
func unpark(permit chan<- struct{}) {
	if permit == nil {
		return
	}
	select {
	case permit <- struct{}{}:
	default:
	}
}

// closed reports whether done is closed, without blocking.
func closed(done <-chan struct{}) bool {
	if done == nil {
		return false
	}
	select {
	case <-done:
		return true
	default:
		return false
	}
}

// nolint:all
//
//go:linkname runtime_canSpin sync.runtime_canSpin
//goland:noinspection ALL
func runtime_canSpin(i int) bool

// nolint:all
//
//go:linkname runtime_doSpin sync.runtime_doSpin
//goland:noinspection ALL
func runtime_doSpin()
