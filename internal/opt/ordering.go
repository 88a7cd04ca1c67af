package opt

import (
	"sync/atomic"
	"unsafe"
)

// Int is the set of integer shapes the cell layer can hold in a single
// machine word.
type Int interface {
	~int32 | ~uint32 | ~int64 | ~uint64 | ~int | ~uint | ~uintptr
}

// LoadPtr is an opaque-grade pointer load: plain on TSO architectures,
// atomic elsewhere (and always atomic under the race detector).
//
//go:nosplit
func LoadPtr(addr *unsafe.Pointer) unsafe.Pointer {
	if IsTSO_ {
		return *addr
	}
	return atomic.LoadPointer(addr)
}

// StorePtr is an opaque-grade pointer store; see LoadPtr.
//
//go:nosplit
func StorePtr(addr *unsafe.Pointer, val unsafe.Pointer) {
	if IsTSO_ {
		*addr = val
		return
	}
	atomic.StorePointer(addr, val)
}

// LoadInt is an opaque-grade integer load; plain on TSO when the width
// cannot tear, otherwise atomic.
//
//go:nosplit
func LoadInt[T Int](addr *T) T {
	if unsafe.Sizeof(T(0)) == 4 {
		if IsTSO_ {
			return *addr
		}
		return T(atomic.LoadUint32((*uint32)(unsafe.Pointer(addr))))
	}
	if IsTSO_ && intSize == 64 {
		return *addr
	}
	return T(atomic.LoadUint64((*uint64)(unsafe.Pointer(addr))))
}

// StoreInt is an opaque-grade integer store; see LoadInt.
//
//go:nosplit
func StoreInt[T Int](addr *T, val T) {
	if unsafe.Sizeof(T(0)) == 4 {
		if IsTSO_ {
			*addr = val
			return
		}
		atomic.StoreUint32((*uint32)(unsafe.Pointer(addr)), uint32(val))
		return
	}
	if IsTSO_ && intSize == 64 {
		*addr = val
		return
	}
	atomic.StoreUint64((*uint64)(unsafe.Pointer(addr)), uint64(val))
}

// LoadIntFast performs a plain read, downgraded to LoadInt under the race
// detector. Safe only when the caller already holds exclusive access or a
// stronger barrier elsewhere.
//
//go:nosplit
func LoadIntFast[T Int](addr *T) T {
	if Race_ {
		return LoadInt(addr)
	}
	return *addr
}

// StoreIntFast performs a plain write, downgraded to StoreInt under the race
// detector. Safe only for locations not concurrently accessed.
//
//go:nosplit
func StoreIntFast[T Int](addr *T, val T) {
	if Race_ {
		StoreInt(addr, val)
		return
	}
	*addr = val
}

// LoadPtrFast / StorePtrFast are the pointer counterparts of the Fast
// integer accessors.
//
//go:nosplit
func LoadPtrFast(addr *unsafe.Pointer) unsafe.Pointer {
	if Race_ {
		return atomic.LoadPointer(addr)
	}
	return *addr
}

//go:nosplit
func StorePtrFast(addr *unsafe.Pointer, val unsafe.Pointer) {
	if Race_ {
		atomic.StorePointer(addr, val)
		return
	}
	*addr = val
}

const intSize = 32 << (^uint(0) >> 63) // 32 or 64
