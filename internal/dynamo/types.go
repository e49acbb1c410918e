package dynamo

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Squeeze bounds. Values outside are clamped rather than rejected.
const (
	MinSqueeze = 0.9
	MaxSqueeze = 1.1
)

// Buffer is one arena of body state. Slot identifies the arena inside its
// store and never changes for the lifetime of the allocation.
type Buffer struct {
	Slot       int
	Positions  []mgl32.Vec4
	Velocities []mgl32.Vec4
}

// NewBuffer allocates an arena for n bodies.
func NewBuffer(slot, n int) Buffer {
	return Buffer{
		Slot:       slot,
		Positions:  make([]mgl32.Vec4, n),
		Velocities: make([]mgl32.Vec4, n),
	}
}

func (b Buffer) Len() int { return len(b.Positions) }

// CopyFrom overwrites b with the contents of src. Lengths must match.
func (b Buffer) CopyFrom(src Buffer) {
	copy(b.Positions, src.Positions)
	copy(b.Velocities, src.Velocities)
}

// Clone returns an independent copy of b that is not attached to any store.
func (b Buffer) Clone() Buffer {
	c := NewBuffer(b.Slot, b.Len())
	c.CopyFrom(b)
	return c
}

// Tracking is the spectator's state. It has the shape of a body but lives
// outside every Buffer.
type Tracking struct {
	Position mgl32.Vec4
	Velocity mgl32.Vec4
}

// SimParams is the record consumed by every step.
type SimParams struct {
	Timestep     float32
	Damping      float32
	SofteningSqr float32
	NumBodies    int
	Gravity      float32
	Squeeze      float32

	// UniformMass gives every body mass 1 instead of size cubed.
	UniformMass bool
	// CollisionScale converts star size to collision radius.
	CollisionScale float32
}

// Validate rejects parameter sets the kernel cannot run.
func (p SimParams) Validate() error {
	switch {
	case p.NumBodies <= 0:
		return &ConfigError{Field: "num_bodies", Value: p.NumBodies, Reason: "must be positive"}
	case !(p.SofteningSqr > 0) || math.IsInf(float64(p.SofteningSqr), 0):
		return &ConfigError{Field: "softening_sqr", Value: p.SofteningSqr, Reason: "must be positive and finite"}
	case !(p.Damping >= 0 && p.Damping <= 1):
		return &ConfigError{Field: "damping", Value: p.Damping, Reason: "must be within [0, 1]"}
	case !(p.Timestep > 0) || math.IsInf(float64(p.Timestep), 0):
		return &ConfigError{Field: "timestep", Value: p.Timestep, Reason: "must be positive and finite"}
	case math.IsNaN(float64(p.Gravity)) || math.IsInf(float64(p.Gravity), 0):
		return &ConfigError{Field: "gravity", Value: p.Gravity, Reason: "must be finite"}
	case p.CollisionScale < 0:
		return &ConfigError{Field: "collision_scale", Value: p.CollisionScale, Reason: "must not be negative"}
	}
	return nil
}

// SqueezeFactor is the force scaling applied by the kernel.
func (p SimParams) SqueezeFactor() float32 {
	return ClampSqueeze(p.Squeeze)
}

// ClampSqueeze maps zero (unset) to 1 and clamps everything else to
// [MinSqueeze, MaxSqueeze].
func ClampSqueeze(s float32) float32 {
	if s == 0 || math.IsNaN(float64(s)) {
		return 1
	}
	return mgl32.Clamp(s, MinSqueeze, MaxSqueeze)
}

// Mass returns the gravitating mass of a body of the given size.
func Mass(size float32, uniform bool) float32 {
	if uniform {
		return 1
	}
	return size * size * size
}

// Finite reports whether every component of v is a real number.
func Finite(v mgl32.Vec4) bool {
	for _, c := range v {
		if math.IsNaN(float64(c)) || math.IsInf(float64(c), 0) {
			return false
		}
	}
	return true
}

// Finite3 is Finite for three components.
func Finite3(v mgl32.Vec3) bool {
	return Finite(v.Vec4(0))
}
