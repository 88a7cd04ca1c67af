//go:build race

package opt

const Race_ = true

// IsTSO_ under race detector, disable TSO optimizations and use conservative
// atomic loads/stores
const IsTSO_ = false
