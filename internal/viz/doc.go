// Package viz draws a running simulation in the terminal.
//
// The dashboard is a Bubble Tea program: a braille [Canvas] showing the
// rendered subset of bodies around the spectator, next to step statistics
// and an energy graph.
//
// # Key Bindings
//
//	Space - Pause/Resume
//	V     - Toggle top-down and eye views
//	F     - Cycle follow modes
//	hjkl  - Nudge the spectator
//	R     - Reseed, n/N double or halve the body count
//	T     - Cycle color themes
//	?     - Show help overlay
package viz
