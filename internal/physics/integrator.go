package physics

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/starfield/internal/compute"
	"github.com/san-kum/starfield/internal/dynamo"
	"github.com/san-kum/starfield/internal/partition"
)

// Integrator runs the kernel for one block at a time. It holds no per-step
// state, so a single Integrator serves every block of every pass.
type Integrator struct {
	params  dynamo.SimParams
	squeeze float32
}

func NewIntegrator(params dynamo.SimParams) (*Integrator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Integrator{params: params, squeeze: params.SqueezeFactor()}, nil
}

func (it *Integrator) Params() dynamo.SimParams { return it.params }

// Run executes stage for block. old is read-only; only the block's indices
// of next are written. colliders is the pass mask from Pass.Colliders. It
// returns the number of bodies whose result was clamped.
func (it *Integrator) Run(stage partition.Stage, block partition.Block, colliders []bool, old, next dynamo.Buffer, field compute.Field) int {
	switch stage {
	case partition.StageResolve:
		if !block.Collide {
			return 0
		}
		return it.resolve(block, colliders, old, next)
	default:
		return it.integrate(block, colliders, old, next, field)
	}
}

func (it *Integrator) integrate(block partition.Block, colliders []bool, old, next dynamo.Buffer, field compute.Field) int {
	anomalies := 0
	for i := block.Begin; i < block.Split; i++ {
		p, v := old.Positions[i], old.Velocities[i]

		a := field.Acceleration(p.Vec3(), i).Mul(it.squeeze)
		var dv mgl32.Vec3
		if block.Collide {
			dv = it.Impulse(i, old, colliders)
		}

		np, nv, ok := Advance(p, v, dv, a, it.params)
		if !ok {
			anomalies++
		}
		next.Positions[i], next.Velocities[i] = np, nv
	}
	return anomalies
}

// resolve adds the damped collision impulse on top of an integrate pass
// that ran without collisions.
func (it *Integrator) resolve(block partition.Block, colliders []bool, old, next dynamo.Buffer) int {
	anomalies := 0
	dt, damping := it.params.Timestep, it.params.Damping
	for i := block.Begin; i < block.Split; i++ {
		dv := it.Impulse(i, old, colliders)
		if dv == (mgl32.Vec3{}) {
			continue
		}
		dv = dv.Mul(damping)

		p, v := next.Positions[i], next.Velocities[i]
		nv := v.Vec3().Add(dv)
		np := p.Vec3().Add(dv.Mul(dt))
		if !dynamo.Finite3(nv) || !dynamo.Finite3(np) {
			anomalies++
			continue
		}
		next.Positions[i] = np.Vec4(p[3])
		next.Velocities[i] = nv.Vec4(v[3])
	}
	return anomalies
}

// Impulse is the velocity change of body i from elastic collisions with
// every overlapping body that is approaching it, computed on old state.
// Each side of a pair computes its own share, so only bodies marked in
// colliders are partners; a nil mask admits every body.
func (it *Integrator) Impulse(i int, old dynamo.Buffer, colliders []bool) mgl32.Vec3 {
	scale := it.params.CollisionScale
	if scale == 0 {
		return mgl32.Vec3{}
	}

	pi, vi := old.Positions[i], old.Velocities[i].Vec3()
	mi := dynamo.Mass(pi[3], it.params.UniformMass)

	var dv mgl32.Vec3
	for j, pj := range old.Positions {
		if j == i || (colliders != nil && !colliders[j]) {
			continue
		}
		reach := scale * (pi[3] + pj[3])
		d := pj.Vec3().Sub(pi.Vec3())
		dist2 := d.Dot(d)
		if reach <= 0 || dist2 == 0 || dist2 >= reach*reach {
			continue
		}

		mj := dynamo.Mass(pj[3], it.params.UniformMass)
		if mi+mj == 0 {
			continue
		}

		n := d.Normalize()
		closing := old.Velocities[j].Vec3().Sub(vi).Dot(n)
		if closing >= 0 {
			continue
		}
		dv = dv.Add(n.Mul(2 * mj / (mi + mj) * closing))
	}
	return dv
}

// Advance applies one damped step to a single body. a must already include
// gravity and any squeeze. When the result is not finite the input state is
// returned with ok false.
func Advance(p, v mgl32.Vec4, dv, a mgl32.Vec3, params dynamo.SimParams) (np, nv mgl32.Vec4, ok bool) {
	vel := v.Vec3().Add(dv).Add(a.Mul(params.Timestep)).Mul(params.Damping)
	pos := p.Vec3().Add(vel.Mul(params.Timestep))
	if !dynamo.Finite3(vel) || !dynamo.Finite3(pos) {
		return p, v, false
	}
	return pos.Vec4(p[3]), vel.Vec4(v[3]), true
}
