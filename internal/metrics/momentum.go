package metrics

import (
	"math"

	"github.com/san-kum/starfield/internal/dynamo"
	"github.com/san-kum/starfield/internal/sim"
)

// Momentum is the magnitude of the total linear momentum.
type Momentum struct {
	uniform bool
	value   float64
}

func NewMomentum(params dynamo.SimParams) *Momentum {
	return &Momentum{uniform: params.UniformMass}
}

func (m *Momentum) Name() string { return "momentum" }

func (m *Momentum) Observe(f sim.Frame) {
	var px, py, pz float64
	for i, p := range f.Positions {
		mass := float64(dynamo.Mass(p[3], m.uniform))
		v := f.Velocities[i]
		px += mass * float64(v[0])
		py += mass * float64(v[1])
		pz += mass * float64(v[2])
	}
	m.value = math.Sqrt(px*px + py*py + pz*pz)
}

func (m *Momentum) Value() float64 { return m.value }
func (m *Momentum) Reset()         { m.value = 0 }

// Spread is the mass weighted RMS distance of the bodies from their centre
// of mass.
type Spread struct {
	uniform bool
	value   float64
}

func NewSpread(params dynamo.SimParams) *Spread {
	return &Spread{uniform: params.UniformMass}
}

func (s *Spread) Name() string { return "spread" }

func (s *Spread) Observe(f sim.Frame) {
	var total, cx, cy, cz float64
	for _, p := range f.Positions {
		m := float64(dynamo.Mass(p[3], s.uniform))
		total += m
		cx += m * float64(p[0])
		cy += m * float64(p[1])
		cz += m * float64(p[2])
	}
	if total == 0 {
		s.value = 0
		return
	}
	cx, cy, cz = cx/total, cy/total, cz/total

	var sum float64
	for _, p := range f.Positions {
		m := float64(dynamo.Mass(p[3], s.uniform))
		dx, dy, dz := float64(p[0])-cx, float64(p[1])-cy, float64(p[2])-cz
		sum += m * (dx*dx + dy*dy + dz*dz)
	}
	s.value = math.Sqrt(sum / total)
}

func (s *Spread) Value() float64 { return s.value }
func (s *Spread) Reset()         { s.value = 0 }
