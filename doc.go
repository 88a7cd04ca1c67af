// Package jsr166 provides low-level concurrency building blocks: atomic
// cells with explicit memory-ordering modes, a queue-based blocking
// synchronizer framework, synchronizers built on it (Mutex, Semaphore,
// CountDownLatch, RWMutex, Phaser), a two-party Exchanger, and an
// unbounded dual TransferQueue with producer/consumer hand-off.
//
// # Atomics
//
// Cell[T] (integers) and Ref[T] (pointers) expose plain, opaque,
// acquire/release and fully sequentially consistent access modes, plus
// read-modify-write operations (Swap, CompareAndSwap, CompareAndExchange,
// Add, GetAndUpdate, GetAndAccumulate). On Go's sync/atomic substrate the
// weaker modes are permitted to execute with stronger ordering than
// requested; they exist so call sites state the ordering they rely on.
// CellArray and RefArray provide the same per-element.
//
// There is no reflection- or offset-based field updater: a struct field
// that needs atomic updates is declared as a Cell or Ref directly.
//
// # Synchronizer
//
// Synchronizer implements the blocking machinery every synchronizer
// needs once: a lock-free FIFO wait queue (CLH-style, with prev/next
// links and explicit wakeup status), parking on one-slot permit channels,
// timeout and context cancellation with queue repair on every exit path,
// exclusive and shared modes with wakeup propagation, and condition
// queues for exclusive holders. Concrete synchronizers supply only the
// state meaning via a small backend interface (TryAcquire/TryRelease or
// their shared counterparts).
//
// Cancellation is expressed with context.Context; every blocking
// operation has plain, Ctx and Timeout variants.
package jsr166
