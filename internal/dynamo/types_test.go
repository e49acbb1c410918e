package dynamo

import (
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func validParams() SimParams {
	return SimParams{
		Timestep:     0.01,
		Damping:      0.999,
		SofteningSqr: 0.01,
		NumBodies:    16,
		Gravity:      1,
	}
}

func TestSimParams_Validate(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	tests := []struct {
		name   string
		mutate func(*SimParams)
		field  string
	}{
		{"valid", func(*SimParams) {}, ""},
		{"zero bodies", func(p *SimParams) { p.NumBodies = 0 }, "num_bodies"},
		{"zero softening", func(p *SimParams) { p.SofteningSqr = 0 }, "softening_sqr"},
		{"negative softening", func(p *SimParams) { p.SofteningSqr = -1 }, "softening_sqr"},
		{"NaN softening", func(p *SimParams) { p.SofteningSqr = nan }, "softening_sqr"},
		{"damping above one", func(p *SimParams) { p.Damping = 1.5 }, "damping"},
		{"negative damping", func(p *SimParams) { p.Damping = -0.1 }, "damping"},
		{"damping one", func(p *SimParams) { p.Damping = 1 }, ""},
		{"zero timestep", func(p *SimParams) { p.Timestep = 0 }, "timestep"},
		{"infinite timestep", func(p *SimParams) { p.Timestep = inf }, "timestep"},
		{"NaN gravity", func(p *SimParams) { p.Gravity = nan }, "gravity"},
		{"zero gravity", func(p *SimParams) { p.Gravity = 0 }, ""},
		{"negative collision scale", func(p *SimParams) { p.CollisionScale = -1 }, "collision_scale"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("Validate() = %v, want *ConfigError", err)
			}
			if cerr.Field != tt.field {
				t.Errorf("Field = %q, want %q", cerr.Field, tt.field)
			}
			if !errors.Is(err, ErrConfiguration) {
				t.Error("error does not wrap ErrConfiguration")
			}
		})
	}
}

func TestClampSqueeze(t *testing.T) {
	tests := []struct {
		in, want float32
	}{
		{0, 1},
		{float32(math.NaN()), 1},
		{1, 1},
		{0.95, 0.95},
		{0.5, MinSqueeze},
		{2, MaxSqueeze},
		{-3, MinSqueeze},
	}
	for _, tt := range tests {
		if got := ClampSqueeze(tt.in); got != tt.want {
			t.Errorf("ClampSqueeze(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMass(t *testing.T) {
	if got := Mass(2, false); got != 8 {
		t.Errorf("Mass(2) = %v, want 8", got)
	}
	if got := Mass(0, false); got != 0 {
		t.Errorf("Mass(0) = %v, want 0", got)
	}
	if got := Mass(2, true); got != 1 {
		t.Errorf("uniform Mass(2) = %v, want 1", got)
	}
}

func TestFinite(t *testing.T) {
	if !Finite(mgl32.Vec4{1, 2, 3, 4}) {
		t.Error("finite vector reported non-finite")
	}
	if Finite(mgl32.Vec4{1, float32(math.NaN()), 3, 4}) {
		t.Error("NaN not detected")
	}
	if Finite3(mgl32.Vec3{0, 0, float32(math.Inf(-1))}) {
		t.Error("-Inf not detected")
	}
}

func TestBuffer_CloneIsIndependent(t *testing.T) {
	b := NewBuffer(1, 3)
	b.Positions[0] = mgl32.Vec4{1, 2, 3, 1}
	c := b.Clone()
	c.Positions[0][0] = 99

	if b.Positions[0][0] != 1 {
		t.Error("Clone shares storage with the original")
	}
	if c.Slot != 1 || c.Len() != 3 {
		t.Errorf("Clone = slot %d len %d, want slot 1 len 3", c.Slot, c.Len())
	}
}

func TestStepError(t *testing.T) {
	err := &StepError{Step: 4, Time: 0.04, Count: 2, Wrapped: ErrNumericalAnomaly}
	if !errors.Is(err, ErrNumericalAnomaly) {
		t.Error("StepError does not unwrap")
	}
	if err.Error() == "" {
		t.Error("empty message")
	}
}

func TestParallelFor(t *testing.T) {
	for _, workers := range []int{0, 1, 3, 64} {
		var hits [100]atomic.Int32
		ParallelFor(len(hits), workers, func(i int) { hits[i].Add(1) })
		for i := range hits {
			if n := hits[i].Load(); n != 1 {
				t.Fatalf("workers=%d: index %d visited %d times", workers, i, n)
			}
		}
	}
}
