// Package physics is the per-block force integrator.
//
// For every body of a block the [Integrator] reads the old buffer, sums the
// softened gravity of every other body through a [compute.Field], optionally
// resolves collisions, and writes the damped result into the new buffer:
//
//	v' = (v + dv + a*dt) * damping
//	p' = p + v'*dt
//
// Results that are not finite are replaced by the body's previous state and
// counted as anomalies.
package physics
