package sim

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/starfield/internal/dynamo"
	"github.com/san-kum/starfield/internal/partition"
)

type State int32

const (
	Idle State = iota
	Stepping
)

func (s State) String() string {
	if s == Stepping {
		return "stepping"
	}
	return "idle"
}

// Frame is the output of one step. Positions and Velocities are borrowed
// from the store's current arena: they stay read-only through the next Step
// and are overwritten by the one after it. Copy them with
// bodies.Pool.SnapshotFrom to keep them longer.
type Frame struct {
	Step       int
	Time       float64
	Slot       int
	Positions  []mgl32.Vec4
	Velocities []mgl32.Vec4
	Spectator  dynamo.Tracking
	Anomalies  int
	Elapsed    time.Duration
}

// Visible returns the first k positions, the subset handed to a renderer.
// k <= 0 or beyond the body count means all of them.
func (f Frame) Visible(k int) []mgl32.Vec4 {
	if k <= 0 || k >= len(f.Positions) {
		return f.Positions
	}
	return f.Positions[:k]
}

// Planner yields the ordered passes for a body count.
type Planner interface {
	Plan(numBodies int) []partition.Pass
}

type Metric interface {
	Name() string
	Observe(f Frame)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(f Frame)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(f Frame)

func (fn ObserverFunc) OnStep(f Frame) { fn(f) }

type Result struct {
	StepsTaken int
	Times      []float64
	Metrics    map[string]float64
	Series     map[string][]float64
	Anomalies  int
	Errors     []error
	Final      Frame
}
