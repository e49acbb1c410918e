// Package models builds the initial body distributions.
//
// Every scene is made of galaxies occupying contiguous index ranges. The
// first body of a galaxy is a reserved massless particle, the last one its
// massive core, and the bodies in between are stars on a thick shell around
// the core. The first index of the last galaxy is the pivot, where
// collisions between galaxies are most likely.
package models

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/starfield/internal/dynamo"
	"golang.org/x/exp/rand"
)

// Shell radii in units of the cluster scale.
const (
	InnerRadius = 2.5
	OuterRadius = 4.0
)

// CoreFraction is the share of a galaxy's star mass given to its core.
const CoreFraction = 1.0 / 400

// Scene holds the scale parameters shared by every galaxy.
type Scene struct {
	ClusterScale  float32
	VelocityScale float32
	Seed          uint64
}

// Galaxy describes one galaxy in index range [First, Last].
type Galaxy struct {
	First, Last int

	Offset         mgl32.Vec3
	VelocityOffset mgl32.Vec3
	// Axis holds rotation angles around x, y and z.
	Axis mgl32.Vec3

	Flatten     float32
	Prescale    float32
	VRescale    float32
	VRandomness float32
	// Squeeze stretches velocities and pulls stars near the disc plane
	// into a bar, which gives the galaxy spiral arms once it runs.
	Squeeze float32
}

func NewGalaxy(first, last int) Galaxy {
	return Galaxy{First: first, Last: last, Flatten: 1, Prescale: 1, VRescale: 1, Squeeze: 1}
}

func (g Galaxy) Len() int { return g.Last - g.First + 1 }

// Range is a contiguous block of body indices, inclusive.
type Range struct {
	First, Last int
}

// Layout records where a model placed its galaxies.
type Layout struct {
	Model    string
	Pivot    int
	Galaxies []Range
	Zeroed   []Range
}

type builder struct {
	buf   dynamo.Buffer
	scene Scene
	rnd   *rand.Rand
	out   Layout
}

func (b *builder) uniform(lo, hi float32) float32 {
	return lo + (hi-lo)*float32(b.rnd.Float64())
}

// direction picks r along a direction with polar angle uniform in [0, pi]
// and azimuth uniform in [0, 2pi].
func (b *builder) direction(r float32) mgl32.Vec3 {
	theta := float64(b.uniform(0, math.Pi))
	phi := float64(b.uniform(0, 2*math.Pi))
	st, ct := math.Sincos(theta)
	sp, cp := math.Sincos(phi)
	return mgl32.Vec3{r * float32(st*cp), r * float32(st*sp), r * float32(ct)}
}

func (b *builder) zero(first, last int) {
	if last < first {
		return
	}
	for i := first; i <= last; i++ {
		b.buf.Positions[i] = mgl32.Vec4{}
		b.buf.Velocities[i] = mgl32.Vec4{}
	}
	b.out.Zeroed = append(b.out.Zeroed, Range{first, last})
}

func (b *builder) galaxy(g Galaxy) {
	if g.Last < g.First {
		return
	}
	pscale := b.scene.ClusterScale * g.Prescale
	vscale := b.scene.VelocityScale * pscale * g.VRescale
	inner, outer := InnerRadius*pscale, OuterRadius*pscale

	rot := mgl32.AnglesToQuat(g.Axis[0], g.Axis[1], g.Axis[2], mgl32.XYZ).Mat4()
	posXform := mgl32.Translate3D(g.Offset[0], g.Offset[1], g.Offset[2]).Mul4(rot)
	dv := g.VelocityOffset.Mul(b.scene.ClusterScale * b.scene.VelocityScale)
	velXform := mgl32.Translate3D(dv[0], dv[1], dv[2]).Mul4(rot)

	b.out.Pivot = g.First
	b.out.Galaxies = append(b.out.Galaxies, Range{g.First, g.Last})

	var starMass float32
	for i := g.First; i <= g.Last; i++ {
		var pos, vel mgl32.Vec3
		var size float32

		switch {
		case i == g.First:
		case i == g.Last:
			size = float32(math.Cbrt(float64(CoreFraction * starMass)))
		default:
			pos, vel, size = b.star(g, inner, outer, vscale)
			starMass += dynamo.Mass(size, false)
		}

		p := posXform.Mul4x1(pos.Vec4(1))
		v := velXform.Mul4x1(vel.Vec4(1))
		b.buf.Positions[i] = mgl32.Vec4{p[0], p[1], p[2], size}
		b.buf.Velocities[i] = mgl32.Vec4{v[0], v[1], v[2], 0}
	}
}

func (b *builder) star(g Galaxy, inner, outer, vscale float32) (pos, vel mgl32.Vec3, size float32) {
	dir := b.direction(1)
	depth := b.direction(1)
	for k := range depth {
		depth[k] = float32(math.Abs(float64(depth[k])))
	}
	pos = mgl32.Vec3{
		dir[0] * (inner + (outer-inner)*depth[0]),
		dir[1] * (inner + (outer-inner)*depth[1]),
		dir[2] * (inner + (outer-inner)*depth[2]),
	}
	size = 1 / b.uniform(0.465, 1)

	axis := mgl32.Vec3{0, 0, 1}
	facing := dir.Dot(axis)
	if 1-facing < 1e-6 {
		axis = mgl32.Vec3{dir[1], dir[0], 1}.Normalize()
	}

	npos := pos.Normalize()
	vel = npos.Cross(axis)
	if g.VRandomness != 0 {
		jitter := b.direction(1)
		for k := range vel {
			vel[k] *= 1 + g.VRandomness*jitter[k]
		}
	}
	vel = vel.Mul(vscale)
	vel[0] /= g.Squeeze
	vel[1] *= g.Squeeze

	pos[2] *= g.Flatten
	if 1-facing < 0.5 {
		pos[1] /= g.Squeeze
	}
	return pos, vel, size
}
