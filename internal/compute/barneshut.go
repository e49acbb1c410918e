package compute

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/starfield/internal/dynamo"
	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/r3"
)

// BarnesHutBackend approximates the field with gonum's octree. Theta is the
// opening angle; zero gives the exact sum.
type BarnesHutBackend struct {
	Theta float64
}

func NewBarnesHutBackend(theta float64) *BarnesHutBackend {
	return &BarnesHutBackend{Theta: theta}
}

func (b *BarnesHutBackend) Name() string { return "barneshut" }

type star struct {
	at   r3.Vec
	mass float64
}

func (s *star) Coord3() r3.Vec { return s.at }
func (s *star) Mass() float64  { return s.mass }

func (b *BarnesHutBackend) Prepare(positions []mgl32.Vec4, params dynamo.SimParams) (Field, error) {
	m := masses(positions, params.UniformMass)

	// Bodies sharing a coordinate are merged into one particle. The tree
	// cannot separate them and they exert no force on each other.
	byCoord := make(map[r3.Vec]*star)
	index := make([]*star, len(positions))
	particles := make([]barneshut.Particle3, 0, len(positions))
	for i, p := range positions {
		if m[i] == 0 {
			continue
		}
		at := toR3(p.Vec3())
		s, ok := byCoord[at]
		if !ok {
			s = &star{at: at}
			byCoord[at] = s
			particles = append(particles, s)
		}
		s.mass += float64(m[i])
		index[i] = s
	}

	f := &treeField{
		index:   index,
		theta:   b.Theta,
		gravity: float64(params.Gravity),
		eps2:    float64(params.SofteningSqr),
	}
	if b.Theta == 0 {
		f.volume = &barneshut.Volume{Particles: particles}
		return f, nil
	}
	vol, err := barneshut.NewVolume(particles)
	if err != nil {
		return nil, fmt.Errorf("barneshut: build tree over %d particles: %w", len(particles), err)
	}
	f.volume = vol
	return f, nil
}

type treeField struct {
	volume  *barneshut.Volume
	index   []*star
	theta   float64
	gravity float64
	eps2    float64
}

func (f *treeField) Acceleration(p mgl32.Vec3, skip int) mgl32.Vec3 {
	if f.gravity == 0 || len(f.volume.Particles) == 0 {
		return mgl32.Vec3{}
	}

	var self barneshut.Particle3 = &star{at: toR3(p), mass: 1}
	if skip >= 0 && skip < len(f.index) && f.index[skip] != nil {
		self = f.index[skip]
	}
	a := f.volume.ForceOn(self, f.theta, f.softened)
	return fromR3(r3.Scale(f.gravity, a))
}

// softened is the Plummer-softened acceleration on p1 from p2. v runs from
// p1 to p2.
func (f *treeField) softened(p1, p2 barneshut.Particle3, _, m2 float64, v r3.Vec) r3.Vec {
	if p1 == p2 {
		return r3.Vec{}
	}
	d2 := r3.Norm2(v) + f.eps2
	return r3.Scale(m2/(d2*math.Sqrt(d2)), v)
}

func toR3(v mgl32.Vec3) r3.Vec {
	return r3.Vec{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
}

func fromR3(v r3.Vec) mgl32.Vec3 {
	return mgl32.Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
}
