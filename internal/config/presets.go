package config

import "sort"

// Presets are the device profiles the simulation was tuned on, plus small
// scenes for quick runs.
var Presets = map[string]func(*Config){
	"phone": func(c *Config) {
		c.Simulation.NumBodies = 32768
		c.Kernel.BlockSize = 2048
		c.Kernel.Backend = "auto"
	},
	"tablet": func(c *Config) {
		c.Simulation.NumBodies = 262144
		c.Simulation.SimInterval = DefaultSimInterval / 16
		c.Simulation.SimDuration = DefaultSteps * c.Simulation.SimInterval
		c.Kernel.BlockSize = 4096
		c.Kernel.Backend = "barneshut"
	},
	"realistic": func(c *Config) {
		c.Simulation.Damping = 1
		c.Simulation.SofteningSqr = 0.08
		c.Simulation.NumBodies = 16384
		c.Simulation.ClusterScale = 0.05
		c.Simulation.VelocityScale = 25000
		c.Simulation.RenderScale = 20
		c.Simulation.SimInterval = 0.000064
		c.Simulation.SimDuration = DefaultSteps * c.Simulation.SimInterval
		c.Kernel.BlockSize = 2048
		c.Kernel.Backend = "auto"
	},
	"small": func(c *Config) {
		c.Simulation.NumBodies = 1024
		c.Kernel.BlockSize = 128
		c.Scene.Model = "flat"
	},
	"collision": func(c *Config) {
		c.Simulation.NumBodies = 2048
		c.Kernel.BlockSize = 256
		c.Kernel.Strategy = "split"
		c.Kernel.Collide = "pivot"
		c.Kernel.CollisionScale = 0.0005
		c.Scene.Model = "coplanar"
		c.Scene.Track = "midpoint"
	},
}

// GetPreset returns DefaultConfig with the named preset applied, or nil.
func GetPreset(name string) *Config {
	apply, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
