package metrics

import (
	"fmt"

	"github.com/san-kum/starfield/internal/dynamo"
	"github.com/san-kum/starfield/internal/sim"
)

// Stability is the fraction of frames that needed no clamping.
type Stability struct {
	name       string
	violations int
	samples    int
}

func NewStability() *Stability {
	return &Stability{name: "stability"}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(f sim.Frame) {
	s.samples++
	if f.Anomalies > 0 {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// Anomalies counts clamped bodies over the run.
type Anomalies struct {
	total int
}

func NewAnomalies() *Anomalies { return &Anomalies{} }

func (a *Anomalies) Name() string        { return "anomalies" }
func (a *Anomalies) Observe(f sim.Frame) { a.total += f.Anomalies }
func (a *Anomalies) Value() float64      { return float64(a.total) }
func (a *Anomalies) Reset()              { a.total = 0 }

var constructors = map[string]func(params dynamo.SimParams, every int) sim.Metric{
	"energy":       func(p dynamo.SimParams, every int) sim.Metric { return NewEnergy(p, every) },
	"energy_drift": func(p dynamo.SimParams, every int) sim.Metric { return NewEnergyDrift(p, every) },
	"momentum":     func(p dynamo.SimParams, _ int) sim.Metric { return NewMomentum(p) },
	"spread":       func(p dynamo.SimParams, _ int) sim.Metric { return NewSpread(p) },
	"stability":    func(dynamo.SimParams, int) sim.Metric { return NewStability() },
	"anomalies":    func(dynamo.SimParams, int) sim.Metric { return NewAnomalies() },
}

// Names lists every metric in reporting order.
func Names() []string {
	return []string{"energy", "energy_drift", "momentum", "spread", "stability", "anomalies"}
}

// New builds a metric by name. every thins out the O(N^2) energy metrics.
func New(name string, params dynamo.SimParams, every int) (sim.Metric, error) {
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("metric %q: %w", name, dynamo.ErrUnknownName)
	}
	return ctor(params, every), nil
}
