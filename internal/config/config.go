package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/san-kum/starfield/internal/compute"
	"github.com/san-kum/starfield/internal/dynamo"
	"github.com/san-kum/starfield/internal/models"
	"github.com/san-kum/starfield/internal/partition"
	"github.com/san-kum/starfield/internal/spectator"
	"gopkg.in/gcfg.v1"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBodies        = 4096
	DefaultBlockSize     = 512
	DefaultDamping       = 0.999
	DefaultSofteningSqr  = 0.128
	DefaultClusterScale  = 0.035
	DefaultVelocityScale = 4000
	DefaultSimInterval   = 0.000256
	DefaultSteps         = 100
	DefaultTheta         = 0.5
	DefaultCollideReach  = 64
)

// Collide policy names.
var policies = []string{"none", "all", "pivot"}

// Config is the startup configuration. YAML files use the yaml tags;
// .gcfg and .ini files use git-config syntax with the gcfg names.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation" gcfg:"simulation"`
	Kernel     KernelConfig     `yaml:"kernel" gcfg:"kernel"`
	Scene      SceneConfig      `yaml:"scene" gcfg:"scene"`
	Log        LogConfig        `yaml:"log" gcfg:"log"`
}

type SimulationConfig struct {
	Damping       float64 `yaml:"damping" gcfg:"damping"`
	SofteningSqr  float64 `yaml:"softening_sqr" gcfg:"softening-sqr"`
	NumBodies     int     `yaml:"num_bodies" gcfg:"num-bodies"`
	ClusterScale  float64 `yaml:"cluster_scale" gcfg:"cluster-scale"`
	VelocityScale float64 `yaml:"velocity_scale" gcfg:"velocity-scale"`
	RenderScale   float64 `yaml:"render_scale" gcfg:"render-scale"`
	RenderBodies  int     `yaml:"render_bodies" gcfg:"render-bodies"`
	SimInterval   float64 `yaml:"sim_interval" gcfg:"sim-interval"`
	SimDuration   float64 `yaml:"sim_duration" gcfg:"sim-duration"`
	Gravity       float64 `yaml:"gravity" gcfg:"gravity"`
	Squeeze       float64 `yaml:"squeeze" gcfg:"squeeze"`
	UniformMass   bool    `yaml:"uniform_mass" gcfg:"uniform-mass"`
}

type KernelConfig struct {
	BlockSize        int     `yaml:"block_size" gcfg:"block-size"`
	ResolveBlockSize int     `yaml:"resolve_block_size" gcfg:"resolve-block-size"`
	Strategy         string  `yaml:"strategy" gcfg:"strategy"`
	Collide          string  `yaml:"collide" gcfg:"collide"`
	CollideReach     int     `yaml:"collide_reach" gcfg:"collide-reach"`
	CollisionScale   float64 `yaml:"collision_scale" gcfg:"collision-scale"`
	Backend          string  `yaml:"backend" gcfg:"backend"`
	Theta            float64 `yaml:"theta" gcfg:"theta"`
	Workers          int     `yaml:"workers" gcfg:"workers"`
}

type SceneConfig struct {
	Model string `yaml:"model" gcfg:"model"`
	Seed  uint64 `yaml:"seed" gcfg:"seed"`
	Track string `yaml:"track" gcfg:"track"`
	// Distance places the spectator on the +z axis, in cluster scales.
	Distance float64 `yaml:"distance" gcfg:"distance"`
}

type LogConfig struct {
	Level string `yaml:"level" gcfg:"level"`
}

func DefaultConfig() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Damping:       DefaultDamping,
			SofteningSqr:  DefaultSofteningSqr,
			NumBodies:     DefaultBodies,
			ClusterScale:  DefaultClusterScale,
			VelocityScale: DefaultVelocityScale,
			RenderScale:   1,
			SimInterval:   DefaultSimInterval,
			SimDuration:   DefaultSteps * DefaultSimInterval,
			Gravity:       1,
		},
		Kernel: KernelConfig{
			BlockSize:    DefaultBlockSize,
			Strategy:     "inline",
			Collide:      "none",
			CollideReach: DefaultCollideReach,
			Backend:      "direct",
			Theta:        DefaultTheta,
		},
		Scene: SceneConfig{
			Model:    "coplanar",
			Seed:     1,
			Track:    "free",
			Distance: 20,
		},
		Log: LogConfig{Level: "info"},
	}
}

func isGcfg(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gcfg", ".ini", ".conf":
		return true
	}
	return false
}

// Load reads a YAML or git-config style file on top of a copy of base.
// Fields the file does not set keep their base values. A nil base means
// DefaultConfig.
func Load(path string, base *Config) (*Config, error) {
	cfg := DefaultConfig()
	if base != nil {
		*cfg = *base
	}
	if isGcfg(path) {
		if err := gcfg.ReadFileInto(cfg, path); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func Save(path string, cfg *Config) error {
	if isGcfg(path) {
		return fmt.Errorf("config %s: only YAML can be written", path)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Params maps the configuration onto the kernel parameters.
func (c *Config) Params() dynamo.SimParams {
	s := c.Simulation
	return dynamo.SimParams{
		Timestep:       float32(s.SimInterval),
		Damping:        float32(s.Damping),
		SofteningSqr:   float32(s.SofteningSqr),
		NumBodies:      s.NumBodies,
		Gravity:        float32(s.Gravity),
		Squeeze:        float32(s.Squeeze),
		UniformMass:    s.UniformMass,
		CollisionScale: float32(c.Kernel.CollisionScale),
	}
}

// Steps is the number of steps that cover SimDuration.
func (c *Config) Steps() int {
	return int(c.Simulation.SimDuration/c.Simulation.SimInterval + 0.5)
}

func invalid(field string, value any, reason string) error {
	return &dynamo.ConfigError{Field: field, Value: value, Reason: reason}
}

func unknown(field, value string, known []string) error {
	return invalid(field, value, "unknown, want one of "+strings.Join(known, ", "))
}

// Validate rejects configurations the simulation cannot start with. The
// collide policy must be one of the built-in names.
func (c *Config) Validate() error {
	return c.ValidatePolicies(policies)
}

// ValidatePolicies is Validate against the collide policy names in known,
// for callers that register their own policies.
func (c *Config) ValidatePolicies(known []string) error {
	s, k := c.Simulation, c.Kernel
	switch {
	case s.NumBodies <= 0:
		return invalid("num_bodies", s.NumBodies, "must be positive")
	case !(s.SofteningSqr > 0):
		return invalid("softening_sqr", s.SofteningSqr, "must be positive")
	case !(s.Damping >= 0 && s.Damping <= 1):
		return invalid("damping", s.Damping, "must be within [0, 1]")
	case s.RenderBodies < 0 || s.RenderBodies > s.NumBodies:
		return invalid("render_bodies", s.RenderBodies, fmt.Sprintf("must be within [0, %d]", s.NumBodies))
	case !(s.SimInterval > 0):
		return invalid("sim_interval", s.SimInterval, "must be positive")
	case !(s.SimDuration > 0):
		return invalid("sim_duration", s.SimDuration, "must be positive")
	case !(s.ClusterScale > 0):
		return invalid("cluster_scale", s.ClusterScale, "must be positive")
	case !(s.RenderScale > 0):
		return invalid("render_scale", s.RenderScale, "must be positive")
	case k.BlockSize <= 0:
		return invalid("block_size", k.BlockSize, "must be positive")
	case k.ResolveBlockSize < 0:
		return invalid("resolve_block_size", k.ResolveBlockSize, "must not be negative")
	case k.CollideReach < 0:
		return invalid("collide_reach", k.CollideReach, "must not be negative")
	case k.CollisionScale < 0:
		return invalid("collision_scale", k.CollisionScale, "must not be negative")
	case k.Theta < 0:
		return invalid("theta", k.Theta, "must not be negative")
	case k.Workers < 0:
		return invalid("workers", k.Workers, "must not be negative")
	}

	if _, err := partition.ParseStrategy(k.Strategy); err != nil {
		return unknown("strategy", k.Strategy, []string{"inline", "split"})
	}
	if !slices.Contains(known, k.Collide) {
		return unknown("collide", k.Collide, known)
	}
	if !slices.Contains(compute.Names(), k.Backend) {
		return unknown("backend", k.Backend, compute.Names())
	}
	if _, err := models.Lookup(c.Scene.Model); err != nil {
		return unknown("model", c.Scene.Model, models.Names())
	}
	if _, err := spectator.ParseMode(c.Scene.Track); err != nil {
		return unknown("track", c.Scene.Track, spectator.ModeNames())
	}
	return c.Params().Validate()
}

// Policies lists the collide policy names.
func Policies() []string {
	return append([]string(nil), policies...)
}
