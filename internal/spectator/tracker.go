// Package spectator advances the camera body that watches the simulation.
//
// The spectator is a body outside the bulk arrays. It feels the gravity of
// every bulk body in the pre-step buffer but exerts none, never collides and
// ignores squeeze.
package spectator

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/starfield/internal/compute"
	"github.com/san-kum/starfield/internal/dynamo"
	"github.com/san-kum/starfield/internal/physics"
)

// FollowRate is the fraction of the offset to the target closed per step.
const FollowRate = 0.1

type Mode int

const (
	Free Mode = iota
	// FollowCore tracks the last body, the core of the last galaxy.
	FollowCore
	// FollowPivot tracks the body just before the pivot, the core of the
	// galaxy preceding the last one.
	FollowPivot
	// FollowMidpoint tracks the midpoint of both cores.
	FollowMidpoint
)

var modeNames = []string{"free", "core", "pivot", "midpoint"}

func (m Mode) String() string {
	if m >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

func ParseMode(name string) (Mode, error) {
	if name == "" || name == "none" {
		return Free, nil
	}
	for i, n := range modeNames {
		if n == name {
			return Mode(i), nil
		}
	}
	return Free, fmt.Errorf("track mode %q: %w", name, dynamo.ErrUnknownName)
}

func ModeNames() []string {
	return append([]string(nil), modeNames...)
}

// Tracker owns the spectator state. All methods are safe for concurrent
// use; the driver advances it once per step while a UI may nudge it.
type Tracker struct {
	mu      sync.Mutex
	state   dynamo.Tracking
	nudgeP  mgl32.Vec3
	nudgeV  mgl32.Vec3
	mode    Mode
	pivot   int
	clamped int
}

func New(initial dynamo.Tracking) *Tracker {
	return &Tracker{state: initial}
}

func (t *Tracker) State() dynamo.Tracking {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Set replaces the spectator state and drops pending nudges.
func (t *Tracker) Set(s dynamo.Tracking) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
	t.nudgeP, t.nudgeV = mgl32.Vec3{}, mgl32.Vec3{}
}

// Move queues a position and velocity nudge. Nudges accumulate until the
// next Advance consumes them.
func (t *Tracker) Move(dp, dv mgl32.Vec3) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nudgeP = t.nudgeP.Add(dp)
	t.nudgeV = t.nudgeV.Add(dv)
}

// Follow selects a tracking mode. pivot is the first index of the last
// galaxy; it is only used by FollowPivot and FollowMidpoint.
func (t *Tracker) Follow(mode Mode, pivot int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mode, t.pivot = mode, pivot
}

func (t *Tracker) Mode() Mode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

func (t *Tracker) Pivot() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pivot
}

// Clamped counts the advances whose result was not finite.
func (t *Tracker) Clamped() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.clamped
}

// Advance moves the spectator one step through field, which must have been
// prepared on old. It reports false when the result was not finite and the
// previous state was kept.
func (t *Tracker) Advance(old dynamo.Buffer, field compute.Field, params dynamo.SimParams) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.state.Position.Vec3().Add(t.nudgeP).Vec4(t.state.Position[3])
	v := t.state.Velocity.Vec3().Add(t.nudgeV).Vec4(t.state.Velocity[3])
	t.nudgeP, t.nudgeV = mgl32.Vec3{}, mgl32.Vec3{}

	a := field.Acceleration(p.Vec3(), -1)
	np, nv, ok := physics.Advance(p, v, mgl32.Vec3{}, a, params)
	if !ok {
		t.clamped++
		return false
	}

	if tp, tv, found := t.target(old); found {
		nv = tv.Vec4(nv[3])
		np = np.Vec3().Add(tp.Sub(np.Vec3()).Mul(FollowRate)).Vec4(np[3])
	}
	t.state = dynamo.Tracking{Position: np, Velocity: nv}
	return true
}

func (t *Tracker) target(old dynamo.Buffer) (pos, vel mgl32.Vec3, ok bool) {
	n := old.Len()
	body := func(i int) (mgl32.Vec3, mgl32.Vec3, bool) {
		if i < 0 || i >= n {
			return mgl32.Vec3{}, mgl32.Vec3{}, false
		}
		return old.Positions[i].Vec3(), old.Velocities[i].Vec3(), true
	}

	switch t.mode {
	case FollowCore:
		return body(n - 1)
	case FollowPivot:
		return body(t.pivot - 1)
	case FollowMidpoint:
		cp, cv, ok1 := body(n - 1)
		pp, pv, ok2 := body(t.pivot - 1)
		if !ok1 || !ok2 {
			return mgl32.Vec3{}, mgl32.Vec3{}, false
		}
		return cp.Add(pp).Mul(0.5), cv.Add(pv).Mul(0.5), true
	}
	return mgl32.Vec3{}, mgl32.Vec3{}, false
}
