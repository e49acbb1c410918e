package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigLayersPresetFileAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scene:\n  seed: 7\nsimulation:\n  num_bodies: 1024\n"), 0644))

	preset, configFile = "collision", path
	t.Cleanup(func() { preset, configFile = "", "" })

	cmd := &cobra.Command{Use: "run"}
	addSimFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--bodies", "512"}))

	cfg, err := loadConfig(cmd, []string{"eight"})
	require.NoError(t, err)
	assert.Equal(t, "pivot", cfg.Kernel.Collide, "from the preset")
	assert.Equal(t, "split", cfg.Kernel.Strategy, "from the preset")
	assert.Equal(t, uint64(7), cfg.Scene.Seed, "from the file")
	assert.Equal(t, "eight", cfg.Scene.Model, "from the argument")
	assert.Equal(t, 512, cfg.Simulation.NumBodies, "from the flag")
}
