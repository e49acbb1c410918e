package experiment

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/starfield/internal/bodies"
	"github.com/san-kum/starfield/internal/config"
	"github.com/san-kum/starfield/internal/dynamo"
	"github.com/san-kum/starfield/internal/models"
	"github.com/san-kum/starfield/internal/partition"
	"github.com/san-kum/starfield/internal/sim"
	"github.com/san-kum/starfield/internal/spectator"
	"github.com/san-kum/starfield/internal/storage"
)

type Experiment struct {
	cfg      config.Config
	registry *Registry
	logger   *log.Logger

	model   models.Model
	layout  models.Layout
	planner *partition.Partitioner
	driver  *sim.Driver
	metrics []sim.Metric
}

type Option func(*Experiment)

func WithLogger(l *log.Logger) Option {
	return func(e *Experiment) { e.logger = l }
}

func WithRegistry(r *Registry) Option {
	return func(e *Experiment) { e.registry = r }
}

// New validates cfg against the registry, seeds the scene and wires a
// driver ready to step.
func New(cfg *config.Config, opts ...Option) (*Experiment, error) {
	e := &Experiment{cfg: *cfg}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = NewRegistry()
	}
	if e.logger == nil {
		e.logger = log.New(io.Discard)
	}

	if err := cfg.ValidatePolicies(e.registry.ListPolicies()); err != nil {
		return nil, err
	}

	model, err := e.registry.GetModel(cfg.Scene.Model)
	if err != nil {
		return nil, err
	}
	e.model = model

	store, layout, err := e.seed(cfg.Simulation.NumBodies)
	if err != nil {
		return nil, err
	}
	e.layout = layout

	k := cfg.Kernel
	strategy, err := partition.ParseStrategy(k.Strategy)
	if err != nil {
		return nil, err
	}
	policy, err := e.registry.GetPolicy(k.Collide, func() int { return e.layout.Pivot }, k.CollideReach)
	if err != nil {
		return nil, err
	}
	pOpts := []partition.Option{partition.WithStrategy(strategy), partition.WithPolicy(policy)}
	if k.ResolveBlockSize > 0 {
		pOpts = append(pOpts, partition.WithResolveGranularity(k.ResolveBlockSize))
	}
	e.planner, err = partition.New(k.BlockSize, pOpts...)
	if err != nil {
		return nil, err
	}

	backend, err := e.registry.GetBackend(k.Backend, k.Theta)
	if err != nil {
		return nil, err
	}

	mode, err := e.registry.GetTrackMode(cfg.Scene.Track)
	if err != nil {
		return nil, err
	}
	distance := float32(cfg.Scene.Distance * cfg.Simulation.ClusterScale)
	tracker := spectator.New(dynamo.Tracking{Position: mgl32.Vec4{0, 0, distance, 0}})
	tracker.Follow(mode, e.layout.Pivot)

	e.driver, err = sim.New(store, cfg.Params(), e.planner,
		sim.WithLogger(e.logger),
		sim.WithWorkers(k.Workers),
		sim.WithBackend(backend),
		sim.WithTracker(tracker),
	)
	if err != nil {
		return nil, err
	}

	e.metrics = e.registry.DefaultMetrics(cfg.Params(), cfg.Steps())
	for _, m := range e.metrics {
		e.driver.AddMetric(m)
	}

	e.logger.Info("experiment ready",
		"model", model.Name,
		"bodies", store.Len(),
		"pivot", e.layout.Pivot,
		"backend", backend.Name(),
		"strategy", strategy,
		"collide", k.Collide,
	)
	return e, nil
}

func (e *Experiment) seed(n int) (*bodies.Store, models.Layout, error) {
	store, err := bodies.New(n)
	if err != nil {
		return nil, models.Layout{}, err
	}
	scene := models.Scene{
		ClusterScale:  float32(e.cfg.Simulation.ClusterScale),
		VelocityScale: float32(e.cfg.Simulation.VelocityScale),
		Seed:          e.cfg.Scene.Seed,
	}
	var (
		layout   models.Layout
		buildErr error
	)
	store.Seed(func(b dynamo.Buffer) {
		layout, buildErr = e.model.Build(b, scene)
	})
	if buildErr != nil {
		return nil, models.Layout{}, fmt.Errorf("seed %s: %w", e.model.Name, buildErr)
	}
	return store, layout, nil
}

// Reseed rebuilds the scene with a new body count. The spectator keeps its
// state and follows the new pivot. On error the running scene is untouched.
func (e *Experiment) Reseed(numBodies int) error {
	if numBodies <= 0 {
		return &dynamo.ConfigError{Field: "num_bodies", Value: numBodies, Reason: "must be positive"}
	}
	store, layout, err := e.seed(numBodies)
	if err != nil {
		return err
	}
	if err := e.driver.Reset(store); err != nil {
		return err
	}
	e.layout = layout
	tracker := e.driver.Tracker()
	tracker.Follow(tracker.Mode(), layout.Pivot)
	e.cfg.Simulation.NumBodies = numBodies
	return nil
}

// Run advances the driver for the configured duration.
func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	start := time.Now()
	result, err := e.driver.Run(ctx, e.cfg.Simulation.SimDuration)
	if err != nil {
		return result, err
	}
	e.logger.Info("run finished",
		"steps", result.StepsTaken,
		"anomalies", result.Anomalies,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return result, nil
}

// Record packages a finished run for storage. The snapshot is copied out of
// the store so it stays valid after further steps.
func (e *Experiment) Record(result *sim.Result, elapsed time.Duration) storage.Run {
	snap := e.driver.Store().Snapshot(dynamo.Buffer{}, 0)
	return storage.Run{
		Meta: storage.RunMetadata{
			Model:     e.model.Name,
			Timestamp: time.Now(),
			Seed:      e.cfg.Scene.Seed,
			NumBodies: e.cfg.Simulation.NumBodies,
			Timestep:  e.cfg.Simulation.SimInterval,
			Duration:  e.cfg.Simulation.SimDuration,
			Steps:     result.StepsTaken,
			Strategy:  e.planner.Strategy().String(),
			Collide:   e.cfg.Kernel.Collide,
			Backend:   e.driver.Backend().Name(),
			Pivot:     e.layout.Pivot,
			Anomalies: result.Anomalies,
			Elapsed:   elapsed,
			Metrics:   result.Metrics,
		},
		Times:     result.Times,
		Series:    result.Series,
		Snapshot:  snap,
		Spectator: result.Final.Spectator,
	}
}

func (e *Experiment) Config() config.Config           { return e.cfg }
func (e *Experiment) Driver() *sim.Driver             { return e.driver }
func (e *Experiment) Layout() models.Layout           { return e.layout }
func (e *Experiment) Planner() *partition.Partitioner { return e.planner }
func (e *Experiment) Model() models.Model             { return e.model }
