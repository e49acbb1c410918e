package metrics

import (
	"math"

	"github.com/san-kum/starfield/internal/dynamo"
	"github.com/san-kum/starfield/internal/sim"
)

// Energies returns the kinetic and softened potential energy of a frame.
// The potential is a pairwise sum and costs O(N^2).
func Energies(f sim.Frame, params dynamo.SimParams) (kinetic, potential float64) {
	n := len(f.Positions)
	mass := make([]float64, n)
	for i, p := range f.Positions {
		mass[i] = float64(dynamo.Mass(p[3], params.UniformMass))
		v := f.Velocities[i].Vec3()
		kinetic += 0.5 * mass[i] * float64(v.Dot(v))
	}

	g, eps2 := float64(params.Gravity), float64(params.SofteningSqr)
	if g == 0 {
		return kinetic, 0
	}
	for i := 0; i < n; i++ {
		if mass[i] == 0 {
			continue
		}
		pi := f.Positions[i]
		for j := i + 1; j < n; j++ {
			if mass[j] == 0 {
				continue
			}
			d := f.Positions[j].Sub(pi).Vec3()
			r := math.Sqrt(float64(d.Dot(d)) + eps2)
			potential -= g * mass[i] * mass[j] / r
		}
	}
	return kinetic, potential
}

// Energy reports the total energy of the latest sampled frame.
type Energy struct {
	name   string
	params dynamo.SimParams
	every  int
	seen   int
	value  float64
}

// NewEnergy samples every n-th frame; n <= 1 samples all of them.
func NewEnergy(params dynamo.SimParams, every int) *Energy {
	return &Energy{name: "energy", params: params, every: max(every, 1)}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(f sim.Frame) {
	e.seen++
	if (e.seen-1)%e.every != 0 {
		return
	}
	k, u := Energies(f, e.params)
	e.value = k + u
}

func (e *Energy) Value() float64 { return e.value }

func (e *Energy) Reset() {
	e.seen = 0
	e.value = 0
}

// EnergyDrift is the largest relative deviation from the first sampled
// energy. Damping below 1 drains energy, so drift is expected then.
type EnergyDrift struct {
	name     string
	params   dynamo.SimParams
	every    int
	seen     int
	initial  float64
	maxDrift float64
}

func NewEnergyDrift(params dynamo.SimParams, every int) *EnergyDrift {
	return &EnergyDrift{name: "energy_drift", params: params, every: max(every, 1)}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(f sim.Frame) {
	e.seen++
	if (e.seen-1)%e.every != 0 {
		return
	}
	k, u := Energies(f, e.params)
	total := k + u
	if e.seen == 1 {
		e.initial = total
		return
	}
	if e.initial == 0 {
		return
	}
	if drift := math.Abs(total-e.initial) / math.Abs(e.initial); drift > e.maxDrift {
		e.maxDrift = drift
	}
}

func (e *EnergyDrift) Value() float64 { return e.maxDrift }

func (e *EnergyDrift) Reset() {
	e.seen = 0
	e.initial = 0
	e.maxDrift = 0
}
