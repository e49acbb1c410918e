// Package dynamo holds the shared data layout of the starfield kernel.
//
// Every other kernel package speaks in these types:
//
//   - [Buffer]: one arena of body positions and velocities
//   - [SimParams]: the per-step configuration record
//   - [Tracking]: the spectator's position and velocity
//
// A body is a pair of [mgl32.Vec4] values at the same index of a Buffer's
// Positions and Velocities. The fourth component of a position is the star
// size; [Mass] turns it into a gravitating mass.
//
// # Errors
//
// Configuration problems are reported as [*ConfigError] values wrapping
// [ErrConfiguration]. Non-finite kernel results are clamped, never returned,
// and surface only as [StepError] values wrapping [ErrNumericalAnomaly].
package dynamo
