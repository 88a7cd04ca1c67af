//go:build !race

package opt

import "runtime"

const Race_ = false

// IsTSO_ detects Total Store Order architectures. On TSO, aligned plain
// reads/writes of native words cannot tear and are safe wherever the caller
// only needs eventual visibility (opaque mode).
const IsTSO_ = runtime.GOARCH == "amd64" ||
	runtime.GOARCH == "386" ||
	runtime.GOARCH == "s390x"
