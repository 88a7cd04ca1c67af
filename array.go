package jsr166

import "fmt"

// CellArray is a fixed-length sequence of independently-atomic integer
// slots. Length is set at construction and never changes. Any index outside
// [0, Len()) panics before touching memory; that is the only hard failure.
// CAS failure on a slot remains an ordinary boolean result.
type CellArray[T Int] struct {
	_     noCopy
	cells []Cell[T]
}

// NewCellArray returns an array of n zero-valued slots.
func NewCellArray[T Int](n int) *CellArray[T] {
	if n < 0 {
		panic(fmt.Sprintf("jsr166: negative array length %d", n))
	}
	return &CellArray[T]{cells: make([]Cell[T], n)}
}

// NewCellArrayFrom returns an array whose slots are initialized by copying
// src. Later changes to src are not observed.
func NewCellArrayFrom[T Int](src []T) *CellArray[T] {
	a := NewCellArray[T](len(src))
	for i, v := range src {
		a.cells[i].StorePlain(v)
	}
	return a
}

// Len returns the number of slots.
func (a *CellArray[T]) Len() int {
	return len(a.cells)
}

// At returns slot i, through which the full Cell operation set (ordering
// variants, CAS, derived read-modify-writes) is available.
func (a *CellArray[T]) At(i int) *Cell[T] {
	a.check(i)
	return &a.cells[i]
}

// Load returns slot i with full ordering.
func (a *CellArray[T]) Load(i int) T {
	a.check(i)
	return a.cells[i].Load()
}

// Store writes slot i with full ordering.
func (a *CellArray[T]) Store(i int, v T) {
	a.check(i)
	a.cells[i].Store(v)
}

// Swap atomically stores v into slot i and returns the previous value.
func (a *CellArray[T]) Swap(i int, v T) T {
	a.check(i)
	return a.cells[i].Swap(v)
}

// CompareAndSwap performs a CAS on slot i.
func (a *CellArray[T]) CompareAndSwap(i int, old, new T) bool {
	a.check(i)
	return a.cells[i].CompareAndSwap(old, new)
}

// Add atomically adds delta to slot i and returns the new value.
func (a *CellArray[T]) Add(i int, delta T) T {
	a.check(i)
	return a.cells[i].Add(delta)
}

// GetAndAdd atomically adds delta to slot i and returns the previous value.
func (a *CellArray[T]) GetAndAdd(i int, delta T) T {
	a.check(i)
	return a.cells[i].GetAndAdd(delta)
}

func (a *CellArray[T]) check(i int) {
	if uint(i) >= uint(len(a.cells)) {
		panic(fmt.Sprintf("jsr166: index %d out of range [0, %d)", i, len(a.cells)))
	}
}

// RefArray is the reference counterpart of CellArray: a fixed-length
// sequence of independently-atomic references.
type RefArray[T any] struct {
	_    noCopy
	refs []Ref[T]
}

// NewRefArray returns an array of n nil slots.
func NewRefArray[T any](n int) *RefArray[T] {
	if n < 0 {
		panic(fmt.Sprintf("jsr166: negative array length %d", n))
	}
	return &RefArray[T]{refs: make([]Ref[T], n)}
}

// Len returns the number of slots.
func (a *RefArray[T]) Len() int {
	return len(a.refs)
}

// At returns slot i.
func (a *RefArray[T]) At(i int) *Ref[T] {
	if uint(i) >= uint(len(a.refs)) {
		panic(fmt.Sprintf("jsr166: index %d out of range [0, %d)", i, len(a.refs)))
	}
	return &a.refs[i]
}

// Load returns slot i with full ordering.
func (a *RefArray[T]) Load(i int) *T {
	return a.At(i).Load()
}

// Store writes slot i with full ordering.
func (a *RefArray[T]) Store(i int, p *T) {
	a.At(i).Store(p)
}

// CompareAndSwap performs a CAS on slot i.
func (a *RefArray[T]) CompareAndSwap(i int, old, new *T) bool {
	return a.At(i).CompareAndSwap(old, new)
}
