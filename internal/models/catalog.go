package models

import (
	"fmt"
	"math"
	"strconv"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/starfield/internal/dynamo"
	"golang.org/x/exp/rand"
)

// Model is a named scene recipe.
type Model struct {
	Name        string
	Description string
	build       func(b *builder, n int)
}

const halfPi = math.Pi / 2

func flat(first, last int) Galaxy {
	g := NewGalaxy(first, last)
	g.Flatten = 0.05
	g.Squeeze = 2
	return g
}

func pair(n int, left, right mgl32.Vec3, squeezeRight float32) (Galaxy, Galaxy) {
	a := flat(0, n/2-1)
	a.Offset = mgl32.Vec3{-0.15, 0.05, 0}
	a.Axis = left
	b := flat(n/2, n-1)
	b.Offset = mgl32.Vec3{0.15, 0, 0}
	b.Axis = right
	b.Squeeze = squeezeRight
	return a, b
}

func swarm(count int, prescale float32) func(b *builder, n int) {
	return func(b *builder, n int) {
		for i := 0; i < count; i++ {
			g := NewGalaxy(i*n/count, (i+1)*n/count-1)
			g.Offset = mgl32.Vec3{b.uniform(-0.2, 0.2), b.uniform(-0.2, 0.2), b.uniform(-0.3, 0)}
			g.Axis = mgl32.Vec3{b.uniform(0, math.Pi), b.uniform(0, math.Pi), b.uniform(0, math.Pi)}
			g.Flatten = b.uniform(0.05, 1)
			g.Prescale = prescale
			g.Squeeze = b.uniform(1, 2)
			b.galaxy(g)
		}
	}
}

var catalog = []Model{
	{"flat", "one flat galaxy", func(b *builder, n int) {
		b.galaxy(flat(0, n-1))
	}},
	{"round", "one round galaxy", func(b *builder, n int) {
		g := NewGalaxy(0, n-1)
		g.Squeeze = 2
		b.galaxy(g)
	}},
	{"small-big", "a small and a big galaxy", func(b *builder, n int) {
		small := flat(0, n/8-1)
		small.Offset = mgl32.Vec3{-0.15, 0.05, 0}
		small.Prescale = 0.125
		b.galaxy(small)
		b.zero(n/8, n/2-1)
		big := flat(n/2, n-1)
		big.Offset = mgl32.Vec3{0.15, 0, 0}
		big.Axis = mgl32.Vec3{0, halfPi, 0}
		b.galaxy(big)
	}},
	{"parallel", "equal galaxies on parallel planes", func(b *builder, n int) {
		axis := mgl32.Vec3{0, halfPi, halfPi}
		l, r := pair(n, axis, axis, 1)
		b.galaxy(l)
		b.galaxy(r)
	}},
	{"parallel-opposite", "equal galaxies on parallel planes, opposite spin", func(b *builder, n int) {
		l, r := pair(n, mgl32.Vec3{0, -halfPi, 0}, mgl32.Vec3{0, halfPi, 0}, 2)
		b.galaxy(l)
		b.galaxy(r)
	}},
	{"coplanar", "equal galaxies in one plane", func(b *builder, n int) {
		l, r := pair(n, mgl32.Vec3{}, mgl32.Vec3{}, 2)
		b.galaxy(l)
		b.galaxy(r)
	}},
	{"coplanar-opposite", "equal galaxies in one plane, opposite spin", func(b *builder, n int) {
		l, r := pair(n, mgl32.Vec3{0, 0, math.Pi}, mgl32.Vec3{}, 2)
		b.galaxy(l)
		b.galaxy(r)
	}},
	{"skewed", "equal galaxies at right angles", func(b *builder, n int) {
		l, r := pair(n, mgl32.Vec3{}, mgl32.Vec3{0, halfPi, 0}, 2)
		b.galaxy(l)
		b.galaxy(r)
	}},
	{"eight", "eight small galaxies", swarm(8, 0.125)},
	{"sixteen", "sixteen smaller galaxies", swarm(16, 0.0625)},
}

func All() []Model {
	return append([]Model(nil), catalog...)
}

func Names() []string {
	names := make([]string, len(catalog))
	for i, m := range catalog {
		names[i] = m.Name
	}
	return names
}

// Lookup finds a model by name or by its index in the catalog.
func Lookup(name string) (Model, error) {
	for _, m := range catalog {
		if m.Name == name {
			return m, nil
		}
	}
	if i, err := strconv.Atoi(name); err == nil && i >= 0 && i < len(catalog) {
		return catalog[i], nil
	}
	return Model{}, fmt.Errorf("model %q: %w", name, dynamo.ErrUnknownName)
}

// Build writes the model into buf and returns where the galaxies went.
// The same scene seed always produces the same bodies.
func (m Model) Build(buf dynamo.Buffer, scene Scene) (Layout, error) {
	if buf.Len() == 0 {
		return Layout{}, &dynamo.ConfigError{Field: "num_bodies", Value: 0, Reason: "must be positive"}
	}
	if !(scene.ClusterScale > 0) {
		return Layout{}, &dynamo.ConfigError{Field: "cluster_scale", Value: scene.ClusterScale, Reason: "must be positive"}
	}
	b := &builder{
		buf:   buf,
		scene: scene,
		rnd:   rand.New(rand.NewSource(scene.Seed)),
		out:   Layout{Model: m.Name},
	}
	m.build(b, buf.Len())
	return b.out, nil
}
