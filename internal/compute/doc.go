// Package compute provides gravitational field backends.
//
// A [Backend] freezes the positions of the old buffer once per step and
// returns a [Field] that answers acceleration queries against them. Fields
// are read-only after Prepare and safe for concurrent use by every block of
// a pass and by the spectator.
//
//   - direct: exact pairwise sum, O(N) per query
//   - barneshut: octree approximation from gonum, O(log N) per query
//
// Pick one by name:
//
//	backend, err := compute.Lookup("barneshut", 0.5)
//	field, err := backend.Prepare(old.Positions, params)
//	a := field.Acceleration(p, i)
//
// With theta = 0 the Barnes-Hut backend degenerates to the exact sum.
package compute
