package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/starfield/internal/compute"
	"github.com/san-kum/starfield/internal/dynamo"
	"github.com/san-kum/starfield/internal/metrics"
	"github.com/san-kum/starfield/internal/models"
	"github.com/san-kum/starfield/internal/partition"
	"github.com/san-kum/starfield/internal/sim"
	"github.com/san-kum/starfield/internal/spectator"
)

// PolicyFactory builds a collide policy. pivot reports the pivot of the
// scene currently loaded, so a policy stays correct across reseeds.
type PolicyFactory func(pivot func() int, reach int) partition.CollidePolicy

type Registry struct {
	policies map[string]PolicyFactory
	metrics  []string
}

func NewRegistry() *Registry {
	r := &Registry{
		policies: make(map[string]PolicyFactory),
		metrics:  []string{"energy", "momentum", "spread", "stability", "anomalies"},
	}

	r.policies["none"] = func(func() int, int) partition.CollidePolicy { return partition.Never{} }
	r.policies["all"] = func(func() int, int) partition.CollidePolicy { return partition.Always{} }
	r.policies["pivot"] = func(pivot func() int, reach int) partition.CollidePolicy {
		return partition.PolicyFunc(func(begin, split, n int) bool {
			return partition.Pivot{Index: pivot(), Reach: reach}.Collide(begin, split, n)
		})
	}

	return r
}

// RegisterPolicy adds or replaces a collide policy.
func (r *Registry) RegisterPolicy(name string, f PolicyFactory) {
	r.policies[name] = f
}

func (r *Registry) GetModel(name string) (models.Model, error) {
	return models.Lookup(name)
}

func (r *Registry) GetBackend(name string, theta float64) (compute.Backend, error) {
	return compute.Lookup(name, theta)
}

func (r *Registry) GetPolicy(name string, pivot func() int, reach int) (partition.CollidePolicy, error) {
	if name == "" {
		name = "none"
	}
	fn, ok := r.policies[name]
	if !ok {
		return nil, fmt.Errorf("collide policy %q: %w", name, dynamo.ErrUnknownName)
	}
	return fn(pivot, reach), nil
}

func (r *Registry) GetTrackMode(name string) (spectator.Mode, error) {
	return spectator.ParseMode(name)
}

func (r *Registry) ListModels() []string   { return models.Names() }
func (r *Registry) ListBackends() []string { return compute.Names() }
func (r *Registry) ListTracks() []string   { return spectator.ModeNames() }

func (r *Registry) ListPolicies() []string {
	names := make([]string, 0, len(r.policies))
	for name := range r.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// energySamples caps how many times per run the O(N^2) energy metric is
// evaluated.
const energySamples = 64

// DefaultMetrics returns the metrics recorded for a run of the given length.
func (r *Registry) DefaultMetrics(params dynamo.SimParams, steps int) []sim.Metric {
	every := max(1, steps/energySamples)
	out := make([]sim.Metric, 0, len(r.metrics))
	for _, name := range r.metrics {
		m, err := metrics.New(name, params, every)
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}
