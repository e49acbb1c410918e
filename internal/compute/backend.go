package compute

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/starfield/internal/dynamo"
)

// Field is the gravitational acceleration produced by a frozen set of bodies,
// already scaled by gravity.
type Field interface {
	// Acceleration at p, ignoring body skip. Pass a negative skip for a
	// point that is not one of the bodies.
	Acceleration(p mgl32.Vec3, skip int) mgl32.Vec3
}

type Backend interface {
	Name() string
	// Prepare borrows positions for the duration of one step.
	Prepare(positions []mgl32.Vec4, params dynamo.SimParams) (Field, error)
}

// AutoThreshold is the body count above which "auto" switches from the
// direct sum to Barnes-Hut.
const AutoThreshold = 8192

var constructors = map[string]func(theta float64) Backend{
	"direct":    func(float64) Backend { return NewCPUBackend() },
	"barneshut": func(theta float64) Backend { return NewBarnesHutBackend(theta) },
	"auto":      func(theta float64) Backend { return NewAutoBackend(theta) },
}

// Lookup returns the backend registered under name. theta is only used by
// tree backends.
func Lookup(name string, theta float64) (Backend, error) {
	if name == "" {
		name = "direct"
	}
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("backend %q: %w", name, dynamo.ErrUnknownName)
	}
	if theta < 0 {
		return nil, &dynamo.ConfigError{Field: "theta", Value: theta, Reason: "must not be negative"}
	}
	return ctor(theta), nil
}

func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AutoBackend uses the direct sum for small systems and Barnes-Hut above
// AutoThreshold bodies.
type AutoBackend struct {
	direct *CPUBackend
	tree   *BarnesHutBackend
}

func NewAutoBackend(theta float64) *AutoBackend {
	return &AutoBackend{direct: NewCPUBackend(), tree: NewBarnesHutBackend(theta)}
}

func (a *AutoBackend) Name() string { return "auto" }

func (a *AutoBackend) Prepare(positions []mgl32.Vec4, params dynamo.SimParams) (Field, error) {
	if len(positions) > AutoThreshold && a.tree.Theta > 0 {
		return a.tree.Prepare(positions, params)
	}
	return a.direct.Prepare(positions, params)
}

// masses computes the gravitating mass of every body once per step.
func masses(positions []mgl32.Vec4, uniform bool) []float32 {
	m := make([]float32, len(positions))
	for i, p := range positions {
		m[i] = dynamo.Mass(p[3], uniform)
	}
	return m
}
