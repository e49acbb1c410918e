package compute

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/starfield/internal/dynamo"
)

// CPUBackend computes the exact softened pairwise sum.
type CPUBackend struct{}

func NewCPUBackend() *CPUBackend {
	return &CPUBackend{}
}

func (c *CPUBackend) Name() string { return "direct" }

func (c *CPUBackend) Prepare(positions []mgl32.Vec4, params dynamo.SimParams) (Field, error) {
	return &directField{
		pos:     positions,
		mass:    masses(positions, params.UniformMass),
		gravity: params.Gravity,
		eps2:    params.SofteningSqr,
	}, nil
}

type directField struct {
	pos     []mgl32.Vec4
	mass    []float32
	gravity float32
	eps2    float32
}

func (f *directField) Acceleration(p mgl32.Vec3, skip int) mgl32.Vec3 {
	if f.gravity == 0 {
		return mgl32.Vec3{}
	}

	var ax, ay, az float32
	for j, q := range f.pos {
		m := f.mass[j]
		if j == skip || m == 0 {
			continue
		}

		dx := q[0] - p[0]
		dy := q[1] - p[1]
		dz := q[2] - p[2]
		if dx == 0 && dy == 0 && dz == 0 {
			continue
		}
		d2 := dx*dx + dy*dy + dz*dz + f.eps2

		inv := 1 / float32(math.Sqrt(float64(d2)))
		s := m * inv * inv * inv
		ax += s * dx
		ay += s * dy
		az += s * dz
	}
	return mgl32.Vec3{ax * f.gravity, ay * f.gravity, az * f.gravity}
}
