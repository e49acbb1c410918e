// Package partition divides the body index range into blocks of work and
// orders those blocks into passes.
//
// A [Block] is a plain range value. A [Pass] is scheduling: a list of blocks
// that may run concurrently, tagged with the [Stage] the kernel runs for them.
// Passes run strictly in order with a barrier between them.
//
// Every pass of a plan tiles [0, numBodies) exactly once. [Validate] checks
// that; [Repair] rebuilds a tiling from a broken plan. Builds tagged debug
// set [Strict], which makes the driver panic instead of repairing.
//
// Which blocks get collision handling is decided by a [CollidePolicy].
package partition
