package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/log"
	"github.com/san-kum/starfield/internal/config"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	configFile string
	preset     string
	logLevel   string

	model        string
	numBodies    int
	seed         uint64
	dt           float64
	duration     float64
	damping      float64
	softening    float64
	gravity      float64
	squeeze      float64
	renderBodies int
	blockSize    int
	strategy     string
	collide      string
	backend      string
	theta        float64
	workers      int
	track        string

	noSave     bool
	outFile    string
	metricName string
	snapshot   bool
	benchSteps int
	stepsTick  int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "starfield",
		Short:         "galaxy collision n-body simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return watch(cmd, nil)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".starfield", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml, gcfg or ini)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "use preset configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	addSimFlags(rootCmd)

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "run a simulation and store its results",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addSimFlags(runCmd)
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the metric series of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&metricName, "metric", "", "plot only this metric")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a run to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default stdout)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export the series or final snapshot of a run to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default stdout)")
	exportCSVCmd.Flags().BoolVar(&snapshot, "snapshot", false, "export final body state instead of metric series")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list galaxy models",
		Args:  cobra.NoArgs,
		RunE:  listModels,
	}

	planCmd := &cobra.Command{
		Use:   "plan [model]",
		Short: "show the block plan for the configured kernel",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showPlan,
	}
	addSimFlags(planCmd)

	benchCmd := &cobra.Command{
		Use:   "bench [model]",
		Short: "benchmark backends and strategies",
		Args:  cobra.MaximumNArgs(1),
		RunE:  benchKernels,
	}
	addSimFlags(benchCmd)
	benchCmd.Flags().IntVar(&benchSteps, "steps", 10, "steps per measurement")

	watchCmd := &cobra.Command{
		Use:   "watch [model]",
		Short: "run a simulation with a live terminal dashboard",
		Args:  cobra.MaximumNArgs(1),
		RunE:  watch,
	}
	addSimFlags(watchCmd)
	watchCmd.Flags().IntVar(&stepsTick, "steps-per-frame", 1, "simulation steps per frame")

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportJSONCmd, exportCSVCmd, presetsCmd, modelsCmd, planCmd, benchCmd, watchCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func addSimFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&model, "model", "", "galaxy model")
	f.IntVar(&numBodies, "bodies", config.DefaultBodies, "number of bodies")
	f.Uint64Var(&seed, "seed", 1, "scene seed")
	f.Float64Var(&dt, "dt", config.DefaultSimInterval, "timestep")
	f.Float64Var(&duration, "time", config.DefaultSteps*config.DefaultSimInterval, "simulated duration")
	f.Float64Var(&damping, "damping", config.DefaultDamping, "velocity damping per step")
	f.Float64Var(&softening, "softening", config.DefaultSofteningSqr, "squared softening length")
	f.Float64Var(&gravity, "gravity", 1, "gravitational constant")
	f.Float64Var(&squeeze, "squeeze", 0, "force scale, clamped to [0.9, 1.1]")
	f.IntVar(&renderBodies, "render-bodies", 0, "bodies drawn by the dashboard (0 = all)")
	f.IntVar(&blockSize, "block-size", config.DefaultBlockSize, "bodies per block")
	f.StringVar(&strategy, "strategy", "inline", "collision strategy (inline, split)")
	f.StringVar(&collide, "collide", "none", "collide policy (none, all, pivot)")
	f.StringVar(&backend, "backend", "direct", "force backend (direct, barneshut, auto)")
	f.Float64Var(&theta, "theta", config.DefaultTheta, "barnes-hut opening angle")
	f.IntVar(&workers, "workers", 0, "goroutines per pass (0 = one per CPU)")
	f.StringVar(&track, "track", "free", "spectator mode (free, core, pivot, midpoint)")
}

// loadConfig resolves defaults, preset, config file, positional model and
// flags, in that order. Flags only apply when set explicitly.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	if configFile != "" {
		loaded, err := config.Load(configFile, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if len(args) > 0 {
		cfg.Scene.Model = args[0]
	}

	flags := cmd.Flags()
	changed := flags.Changed
	if changed("model") {
		cfg.Scene.Model = model
	}
	if changed("bodies") {
		cfg.Simulation.NumBodies = numBodies
	}
	if changed("seed") {
		cfg.Scene.Seed = seed
	}
	if changed("dt") {
		cfg.Simulation.SimInterval = dt
	}
	if changed("time") {
		cfg.Simulation.SimDuration = duration
	}
	if changed("damping") {
		cfg.Simulation.Damping = damping
	}
	if changed("softening") {
		cfg.Simulation.SofteningSqr = softening
	}
	if changed("gravity") {
		cfg.Simulation.Gravity = gravity
	}
	if changed("squeeze") {
		cfg.Simulation.Squeeze = squeeze
	}
	if changed("render-bodies") {
		cfg.Simulation.RenderBodies = renderBodies
	}
	if changed("block-size") {
		cfg.Kernel.BlockSize = blockSize
	}
	if changed("strategy") {
		cfg.Kernel.Strategy = strategy
	}
	if changed("collide") {
		cfg.Kernel.Collide = collide
	}
	if changed("backend") {
		cfg.Kernel.Backend = backend
	}
	if changed("theta") {
		cfg.Kernel.Theta = theta
	}
	if changed("workers") {
		cfg.Kernel.Workers = workers
	}
	if changed("track") {
		cfg.Scene.Track = track
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "starfield",
	})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		logger.Warn("unknown log level, using info", "level", level)
		lvl = log.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}
