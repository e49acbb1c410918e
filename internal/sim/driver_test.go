package sim_test

import (
	"context"
	"errors"

	"github.com/go-gl/mathgl/mgl32"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/exp/rand"

	"github.com/san-kum/starfield/internal/bodies"
	"github.com/san-kum/starfield/internal/dynamo"
	"github.com/san-kum/starfield/internal/partition"
	"github.com/san-kum/starfield/internal/sim"
	"github.com/san-kum/starfield/internal/spectator"
)

func seededStore(n int, seed uint64) *bodies.Store {
	store, err := bodies.New(n)
	Expect(err).NotTo(HaveOccurred())
	rnd := rand.New(rand.NewSource(seed))
	store.Seed(func(b dynamo.Buffer) {
		for i := range b.Positions {
			b.Positions[i] = mgl32.Vec4{
				float32(rnd.NormFloat64()) * 4,
				float32(rnd.NormFloat64()) * 4,
				float32(rnd.NormFloat64()),
				0.5 + float32(rnd.Float64())*0.5,
			}
			b.Velocities[i] = mgl32.Vec4{float32(rnd.NormFloat64()) * 0.1, float32(rnd.NormFloat64()) * 0.1, 0, 0}
		}
	})
	return store
}

func params(n int) dynamo.SimParams {
	return dynamo.SimParams{Timestep: 0.01, Damping: 0.999, SofteningSqr: 0.01, NumBodies: n, Gravity: 1}
}

func planner(g int, opts ...partition.Option) *partition.Partitioner {
	p, err := partition.New(g, opts...)
	Expect(err).NotTo(HaveOccurred())
	return p
}

type countingPlanner struct {
	inner sim.Planner
	calls int
}

func (c *countingPlanner) Plan(n int) []partition.Pass {
	c.calls++
	return c.inner.Plan(n)
}

type gappyPlanner struct{}

func (gappyPlanner) Plan(n int) []partition.Pass {
	return []partition.Pass{{Blocks: []partition.Block{{Begin: 0, Split: n / 2}, {Begin: n/2 + 3, Split: n + 5}}}}
}

type stepCounter struct{ n int }

func (s *stepCounter) Name() string      { return "steps" }
func (s *stepCounter) Observe(sim.Frame) { s.n++ }
func (s *stepCounter) Value() float64    { return float64(s.n) }
func (s *stepCounter) Reset()            { s.n = 0 }

func allFinite(b dynamo.Buffer) bool {
	for i := range b.Positions {
		if !dynamo.Finite(b.Positions[i]) || !dynamo.Finite(b.Velocities[i]) {
			return false
		}
	}
	return true
}

var _ = Describe("Driver", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("rejects a store whose size disagrees with the parameters", func() {
		_, err := sim.New(seededStore(10, 1), params(11), planner(4))
		Expect(errors.Is(err, dynamo.ErrConfiguration)).To(BeTrue())
	})

	It("rejects malformed parameters", func() {
		p := params(10)
		p.SofteningSqr = 0
		_, err := sim.New(seededStore(10, 1), p, planner(4))
		Expect(err).To(MatchError(dynamo.ErrConfiguration))
	})

	It("runs 100 steps of 1000 bodies and stays finite", func() {
		store := seededStore(1000, 42)
		initial := store.Current().Clone()

		d, err := sim.New(store, params(1000), planner(128))
		Expect(err).NotTo(HaveOccurred())

		var frame sim.Frame
		for i := 0; i < 100; i++ {
			frame, err = d.Step(ctx)
			Expect(err).NotTo(HaveOccurred())
		}

		Expect(d.State()).To(Equal(sim.Idle))
		Expect(frame.Step).To(Equal(100))
		Expect(frame.Time).To(BeNumerically("~", 1.0, 1e-6))
		Expect(store.Swaps()).To(BeEquivalentTo(100))
		Expect(frame.Slot).To(Equal(store.Current().Slot))
		Expect(allFinite(store.Current())).To(BeTrue())
		Expect(store.Current().Positions).NotTo(Equal(initial.Positions))
		Expect(dynamo.Finite(frame.Spectator.Position)).To(BeTrue())
	})

	It("hands out the other arena after every step", func() {
		store := seededStore(16, 1)
		d, err := sim.New(store, params(16), planner(4))
		Expect(err).NotTo(HaveOccurred())

		first := store.Current().Slot
		frame, err := d.Step(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(frame.Slot).NotTo(Equal(first))
		frame, err = d.Step(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(frame.Slot).To(Equal(first))
	})

	It("does not start a step once the context is done", func() {
		store := seededStore(8, 1)
		d, err := sim.New(store, params(8), planner(4))
		Expect(err).NotTo(HaveOccurred())

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err = d.Step(cancelled)
		Expect(err).To(MatchError(context.Canceled))
		Expect(store.Swaps()).To(BeZero())
	})

	It("produces the same bodies with inline and split strategies", func() {
		p := params(64)
		p.CollisionScale = 0.2
		policy := partition.WithPolicy(partition.Always{})

		inline, err := sim.New(seededStore(64, 9), p, planner(8, policy), sim.WithWorkers(4))
		Expect(err).NotTo(HaveOccurred())
		split, err := sim.New(seededStore(64, 9), p, planner(8, policy, partition.WithStrategy(partition.Split)), sim.WithWorkers(4))
		Expect(err).NotTo(HaveOccurred())

		a, err := inline.Step(ctx)
		Expect(err).NotTo(HaveOccurred())
		b, err := split.Step(ctx)
		Expect(err).NotTo(HaveOccurred())
		for i := range a.Positions {
			Expect(a.Positions[i].Sub(b.Positions[i]).Len()).To(BeNumerically("<", 1e-4))
			Expect(a.Velocities[i].Sub(b.Velocities[i]).Len()).To(BeNumerically("<", 1e-4))
		}
	})

	It("advances the spectator regardless of collide flags and squeeze", func() {
		start := dynamo.Tracking{Position: mgl32.Vec4{0, 0, 10, 0}, Velocity: mgl32.Vec4{0.1, 0, 0, 0}}

		quiet := params(32)
		d1, err := sim.New(seededStore(32, 5), quiet, planner(8),
			sim.WithTracker(spectator.New(start)))
		Expect(err).NotTo(HaveOccurred())

		busy := params(32)
		busy.Squeeze = 1.1
		busy.CollisionScale = 1
		d2, err := sim.New(seededStore(32, 5), busy, planner(8, partition.WithPolicy(partition.Always{})),
			sim.WithTracker(spectator.New(start)))
		Expect(err).NotTo(HaveOccurred())

		f1, err := d1.Step(ctx)
		Expect(err).NotTo(HaveOccurred())
		f2, err := d2.Step(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(f1.Spectator).To(Equal(f2.Spectator))
		Expect(f1.Spectator).NotTo(Equal(start))
		Expect(f1.Positions).NotTo(Equal(f2.Positions))
	})

	It("caches the plan per body count", func() {
		counting := &countingPlanner{inner: planner(4)}
		d, err := sim.New(seededStore(20, 1), params(20), counting)
		Expect(err).NotTo(HaveOccurred())

		for i := 0; i < 3; i++ {
			_, err = d.Step(ctx)
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(counting.calls).To(Equal(1))

		Expect(d.Reset(seededStore(30, 2))).To(Succeed())
		_, err = d.Step(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(counting.calls).To(Equal(2))
	})

	It("keeps the spectator across a reset to a new body count", func() {
		tracker := spectator.New(dynamo.Tracking{Position: mgl32.Vec4{1, 2, 3, 0}})
		d, err := sim.New(seededStore(20, 1), params(20), planner(4), sim.WithTracker(tracker))
		Expect(err).NotTo(HaveOccurred())
		_, err = d.Step(ctx)
		Expect(err).NotTo(HaveOccurred())
		before := tracker.State()

		next := seededStore(50, 3)
		Expect(d.Reset(next)).To(Succeed())
		Expect(d.Tracker().State()).To(Equal(before))
		Expect(d.Params().NumBodies).To(Equal(50))

		frame, err := d.Step(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(frame.Step).To(Equal(1))
		Expect(frame.Positions).To(HaveLen(50))
		Expect(next.Swaps()).To(BeEquivalentTo(1))
	})

	It("repairs a plan that does not tile the bodies", func() {
		if partition.Strict {
			Skip("debug builds panic on inconsistent partitions")
		}
		store := seededStore(40, 1)
		initial := store.Current().Clone()
		d, err := sim.New(store, params(40), gappyPlanner{})
		Expect(err).NotTo(HaveOccurred())

		frame, err := d.Step(ctx)
		Expect(err).NotTo(HaveOccurred())
		for i := range frame.Positions {
			Expect(frame.Positions[i]).NotTo(Equal(initial.Positions[i]), "body %d was skipped", i)
		}
	})

	It("panics on a plan that does not tile the bodies in debug builds", func() {
		if !partition.Strict {
			Skip("release builds repair inconsistent partitions")
		}
		d, err := sim.New(seededStore(40, 1), params(40), gappyPlanner{})
		Expect(err).NotTo(HaveOccurred())
		Expect(func() { _, _ = d.Step(ctx) }).To(Panic())
	})

	It("reports full progress after a step", func() {
		d, err := sim.New(seededStore(20, 1), params(20), planner(3))
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Progress()).To(BeZero())
		_, err = d.Step(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Progress()).To(BeNumerically("==", 1))
	})

	It("refuses parameter updates that change the body count", func() {
		d, err := sim.New(seededStore(20, 1), params(20), planner(3))
		Expect(err).NotTo(HaveOccurred())

		Expect(d.UpdateParams(func(p *dynamo.SimParams) { p.NumBodies = 21 })).To(MatchError(dynamo.ErrConfiguration))
		Expect(d.UpdateParams(func(p *dynamo.SimParams) { p.Damping = 2 })).To(MatchError(dynamo.ErrConfiguration))
		Expect(d.UpdateParams(func(p *dynamo.SimParams) { p.Gravity = 2 })).To(Succeed())
		Expect(d.Params().Gravity).To(BeNumerically("==", 2))
	})

	It("lets observers call back into the driver", func() {
		d, err := sim.New(seededStore(20, 1), params(20), planner(4))
		Expect(err).NotTo(HaveOccurred())

		var bodiesSeen, stepsSeen int
		d.AddObserver(sim.ObserverFunc(func(f sim.Frame) {
			bodiesSeen = d.Store().Len()
			Expect(d.UpdateParams(func(p *dynamo.SimParams) { p.Gravity = 0.5 })).To(Succeed())
			if f.Step == 1 {
				next, err := d.Step(ctx)
				Expect(err).NotTo(HaveOccurred())
				stepsSeen = next.Step
			}
		}))

		_, err = d.Step(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(bodiesSeen).To(Equal(20))
		Expect(stepsSeen).To(Equal(2))
		Expect(d.Params().Gravity).To(BeNumerically("==", 0.5))
	})

	It("conserves momentum when only one of two touching blocks collides", func() {
		for _, strategy := range []partition.Strategy{partition.Inline, partition.Split} {
			store, err := bodies.New(2)
			Expect(err).NotTo(HaveOccurred())
			store.Seed(func(b dynamo.Buffer) {
				b.Positions[0], b.Positions[1] = mgl32.Vec4{-0.1, 0, 0, 1}, mgl32.Vec4{0.1, 0, 0, 1}
				b.Velocities[0], b.Velocities[1] = mgl32.Vec4{1, 0, 0, 0}, mgl32.Vec4{-1, 0, 0, 0}
			})
			p := params(2)
			p.Gravity, p.Damping, p.CollisionScale = 0, 1, 1
			firstOnly := partition.PolicyFunc(func(begin, split, n int) bool { return begin == 0 })

			d, err := sim.New(store, p, planner(1, partition.WithPolicy(firstOnly), partition.WithStrategy(strategy)))
			Expect(err).NotTo(HaveOccurred())
			frame, err := d.Step(ctx)
			Expect(err).NotTo(HaveOccurred())

			momentum := frame.Velocities[0].Vec3().Add(frame.Velocities[1].Vec3())
			Expect(momentum.Len()).To(BeNumerically("<", 1e-6), "strategy %v", strategy)
		}
	})

	Describe("Run", func() {
		It("steps for the requested duration and feeds metrics and observers", func() {
			d, err := sim.New(seededStore(20, 1), params(20), planner(4))
			Expect(err).NotTo(HaveOccurred())

			counter := &stepCounter{}
			seen := 0
			d.AddMetric(counter)
			d.AddObserver(sim.ObserverFunc(func(sim.Frame) { seen++ }))

			result, err := d.Run(ctx, 0.25)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.StepsTaken).To(Equal(25))
			Expect(seen).To(Equal(25))
			Expect(result.Metrics).To(HaveKeyWithValue("steps", 25.0))
			Expect(result.Series["steps"]).To(HaveLen(25))
			Expect(result.Times).To(HaveLen(25))
		})

		It("rejects a non-positive duration", func() {
			d, err := sim.New(seededStore(4, 1), params(4), planner(4))
			Expect(err).NotTo(HaveOccurred())
			_, err = d.Run(ctx, 0)
			Expect(err).To(MatchError(dynamo.ErrConfiguration))
		})
	})
})

var _ = Describe("Frame", func() {
	It("limits the visible subset", func() {
		f := sim.Frame{Positions: make([]mgl32.Vec4, 10)}
		Expect(f.Visible(4)).To(HaveLen(4))
		Expect(f.Visible(0)).To(HaveLen(10))
		Expect(f.Visible(50)).To(HaveLen(10))
	})
})
