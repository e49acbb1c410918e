//go:build debug

package partition

// Strict makes partition inconsistencies fatal.
const Strict = true
