package sim

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/san-kum/starfield/internal/bodies"
	"github.com/san-kum/starfield/internal/compute"
	"github.com/san-kum/starfield/internal/dynamo"
	"github.com/san-kum/starfield/internal/partition"
	"github.com/san-kum/starfield/internal/physics"
	"github.com/san-kum/starfield/internal/spectator"
)

// Driver advances a body store one step at a time.
type Driver struct {
	mu sync.Mutex

	store   *bodies.Store
	params  dynamo.SimParams
	integ   *physics.Integrator
	planner Planner
	backend compute.Backend
	tracker *spectator.Tracker
	logger  *log.Logger
	workers int

	plans     map[int]plan
	step      int
	time      float64
	anomalies int

	state      atomic.Int32
	blocksDone atomic.Int64
	blocksAll  atomic.Int64

	metrics   []Metric
	observers []Observer
}

type Option func(*Driver)

func WithLogger(l *log.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithWorkers bounds the goroutines running blocks of one pass. Zero or
// less means one per CPU.
func WithWorkers(n int) Option {
	return func(d *Driver) { d.workers = n }
}

func WithBackend(b compute.Backend) Option {
	return func(d *Driver) { d.backend = b }
}

func WithTracker(t *spectator.Tracker) Option {
	return func(d *Driver) { d.tracker = t }
}

// New creates an idle driver. params.NumBodies must match the store.
func New(store *bodies.Store, params dynamo.SimParams, planner Planner, opts ...Option) (*Driver, error) {
	if store == nil {
		return nil, &dynamo.ConfigError{Field: "store", Value: nil, Reason: "is required"}
	}
	if planner == nil {
		return nil, &dynamo.ConfigError{Field: "planner", Value: nil, Reason: "is required"}
	}
	if params.NumBodies != store.Len() {
		return nil, &dynamo.ConfigError{Field: "num_bodies", Value: params.NumBodies,
			Reason: fmt.Sprintf("does not match %d allocated bodies", store.Len())}
	}
	integ, err := physics.NewIntegrator(params)
	if err != nil {
		return nil, err
	}

	d := &Driver{
		store:   store,
		params:  params,
		integ:   integ,
		planner: planner,
		plans:   make(map[int]plan),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.backend == nil {
		d.backend = compute.NewCPUBackend()
	}
	if d.tracker == nil {
		d.tracker = spectator.New(dynamo.Tracking{})
	}
	if d.logger == nil {
		d.logger = log.New(io.Discard)
	}
	return d, nil
}

func (d *Driver) AddMetric(m Metric)     { d.metrics = append(d.metrics, m) }
func (d *Driver) AddObserver(o Observer) { d.observers = append(d.observers, o) }

func (d *Driver) State() State                { return State(d.state.Load()) }
func (d *Driver) Tracker() *spectator.Tracker { return d.tracker }
func (d *Driver) Backend() compute.Backend    { return d.backend }

func (d *Driver) Store() *bodies.Store {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store
}

func (d *Driver) Params() dynamo.SimParams {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.params
}

// Progress is the fraction of blocks finished in the current step. It is 1
// between steps once the first step has run.
func (d *Driver) Progress() float64 {
	all := d.blocksAll.Load()
	if all == 0 {
		return 0
	}
	return float64(d.blocksDone.Load()) / float64(all)
}

// UpdateParams changes parameters between steps. The body count is fixed;
// use Reset to change it.
func (d *Driver) UpdateParams(fn func(*dynamo.SimParams)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p := d.params
	fn(&p)
	if p.NumBodies != d.params.NumBodies {
		return &dynamo.ConfigError{Field: "num_bodies", Value: p.NumBodies, Reason: "cannot change without Reset"}
	}
	integ, err := physics.NewIntegrator(p)
	if err != nil {
		return err
	}
	d.params, d.integ = p, integ
	return nil
}

// Reset swaps in a freshly allocated and seeded store, possibly of a
// different size. Step count and time restart; the spectator is kept.
func (d *Driver) Reset(store *bodies.Store) error {
	if store == nil {
		return &dynamo.ConfigError{Field: "store", Value: nil, Reason: "is required"}
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	p := d.params
	p.NumBodies = store.Len()
	integ, err := physics.NewIntegrator(p)
	if err != nil {
		return err
	}
	d.store, d.params, d.integ = store, p, integ
	d.step, d.time, d.anomalies = 0, 0, 0
	d.blocksDone.Store(0)
	d.blocksAll.Store(0)
	d.logger.Info("store reset", "bodies", p.NumBodies)
	return nil
}

// Step runs one full step. ctx is only checked before the step starts;
// a started step always completes. Metrics and observers see the frame
// after the driver is unlocked, so they may call back into it.
func (d *Driver) Step(ctx context.Context) (Frame, error) {
	frame, err := d.advance(ctx)
	if err != nil {
		return Frame{}, err
	}
	for _, m := range d.metrics {
		m.Observe(frame)
	}
	for _, obs := range d.observers {
		obs.OnStep(frame)
	}
	return frame, nil
}

func (d *Driver) advance(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.state.Store(int32(Stepping))
	defer d.state.Store(int32(Idle))
	start := time.Now()

	n := d.params.NumBodies
	pl := d.plan(n)
	old, next := d.store.Current(), d.store.Next()

	field, err := d.backend.Prepare(old.Positions, d.params)
	if err != nil {
		return Frame{}, &dynamo.StepError{Step: d.step, Time: d.time, Wrapped: err}
	}

	total := 0
	for _, pass := range pl.passes {
		total += len(pass.Blocks)
	}
	d.blocksDone.Store(0)
	d.blocksAll.Store(int64(total))

	var clamped atomic.Int64
	for k, pass := range pl.passes {
		colliders := pl.colliders[k]
		dynamo.ParallelFor(len(pass.Blocks), d.workers, func(i int) {
			if c := d.integ.Run(pass.Stage, pass.Blocks[i], colliders, old, next, field); c > 0 {
				clamped.Add(int64(c))
			}
			d.blocksDone.Add(1)
		})
	}

	if !d.tracker.Advance(old, field, d.params) {
		d.logger.Warn("spectator clamped", "step", d.step)
	}
	d.store.Swap()

	d.step++
	d.time += float64(d.params.Timestep)

	count := int(clamped.Load())
	if count > 0 {
		d.anomalies += count
		err := &dynamo.StepError{Step: d.step, Time: d.time, Count: count, Wrapped: dynamo.ErrNumericalAnomaly}
		d.logger.Warn("clamped non-finite bodies", "err", err)
	}

	cur := d.store.Current()
	frame := Frame{
		Step:       d.step,
		Time:       d.time,
		Slot:       cur.Slot,
		Positions:  cur.Positions,
		Velocities: cur.Velocities,
		Spectator:  d.tracker.State(),
		Anomalies:  count,
		Elapsed:    time.Since(start),
	}
	d.logger.Debug("step", "n", d.step, "passes", len(pl.passes), "blocks", total, "elapsed", frame.Elapsed)
	return frame, nil
}

type plan struct {
	passes    []partition.Pass
	colliders [][]bool
}

// plan returns the cached passes for n with their collider masks, building
// and checking them on first use.
func (d *Driver) plan(n int) plan {
	if pl, ok := d.plans[n]; ok {
		return pl
	}

	passes := d.planner.Plan(n)
	if err := partition.Validate(passes, n); err != nil {
		if partition.Strict {
			panic(err)
		}
		d.logger.Error("repairing partition", "err", err)
		passes = partition.Repair(passes, n)
	}

	pl := plan{passes: passes, colliders: make([][]bool, len(passes))}
	blocks := 0
	for k, p := range passes {
		blocks += len(p.Blocks)
		pl.colliders[k] = p.Colliders(n)
	}
	d.logger.Info("plan built", "bodies", n, "passes", len(passes), "blocks", blocks)
	d.plans[n] = pl
	return pl
}

// Run steps for duration of simulated time, or until ctx is done.
func (d *Driver) Run(ctx context.Context, duration float64) (*Result, error) {
	dt := float64(d.Params().Timestep)
	if !(duration > 0) {
		return nil, &dynamo.ConfigError{Field: "sim_duration", Value: duration, Reason: "must be positive"}
	}

	steps := int(duration/dt + 0.5)
	result := &Result{
		Times:   make([]float64, 0, steps),
		Metrics: make(map[string]float64),
		Series:  make(map[string][]float64),
	}
	for _, m := range d.metrics {
		m.Reset()
	}

	for i := 0; i < steps; i++ {
		frame, err := d.Step(ctx)
		if err != nil {
			result.Errors = append(result.Errors, err)
			return result, err
		}

		result.StepsTaken++
		result.Anomalies += frame.Anomalies
		result.Times = append(result.Times, frame.Time)
		for _, m := range d.metrics {
			result.Series[m.Name()] = append(result.Series[m.Name()], m.Value())
		}
		result.Final = frame
	}

	for _, m := range d.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, nil
}
