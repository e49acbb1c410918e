package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/starfield/internal/config"
	"github.com/san-kum/starfield/internal/experiment"
	"github.com/san-kum/starfield/internal/models"
	"github.com/san-kum/starfield/internal/partition"
	"github.com/san-kum/starfield/internal/storage"
	"github.com/san-kum/starfield/internal/viz"
	"github.com/spf13/cobra"
)

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log.Level)

	exp, err := experiment.New(cfg, experiment.WithLogger(logger))
	if err != nil {
		return err
	}

	fmt.Printf("running %s with %d bodies for %d steps...\n", cfg.Scene.Model, cfg.Simulation.NumBodies, cfg.Steps())
	start := time.Now()
	result, err := exp.Run(cmd.Context())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Printf("completed in %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("steps: %d\n", result.StepsTaken)
	fmt.Printf("anomalies: %d\n", result.Anomalies)

	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(exp.Record(result, elapsed))
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
	}

	fmt.Println("\nmetrics:")
	names := make([]string, 0, len(result.Metrics))
	for name := range result.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.6g\n", name, result.Metrics[name])
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tBODIES\tSTEPS\tBACKEND\tSTRATEGY\tANOMALIES")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\t%d\n",
			run.ID,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.NumBodies,
			run.Steps,
			run.Backend,
			run.Strategy,
			run.Anomalies,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	times, series, err := st.LoadSeries(runID)
	if err != nil {
		return err
	}
	if len(times) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("model: %s\n", meta.Model)
	fmt.Printf("samples: %d\n\n", len(times))

	names := make([]string, 0, len(series))
	for name := range series {
		if metricName == "" || name == metricName {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return fmt.Errorf("no metric %q in run %s", metricName, runID)
	}
	sort.Strings(names)

	for _, name := range names {
		if len(series[name]) < 2 {
			continue
		}
		graph := asciigraph.Plot(series[name],
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(name+" vs step"),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

// output opens outFile, or stdout when it is empty.
func output() (io.WriteCloser, error) {
	if outFile == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(outFile)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func loadRun(runID string, withSnapshot bool) (storage.Run, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return storage.Run{}, err
	}
	times, series, err := st.LoadSeries(runID)
	if err != nil {
		return storage.Run{}, err
	}
	run := storage.Run{Meta: *meta, Times: times, Series: series}
	if withSnapshot {
		snap, err := st.LoadSnapshot(runID)
		if err != nil && !os.IsNotExist(err) {
			return storage.Run{}, err
		}
		run.Snapshot = snap
	}
	return run, nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	run, err := loadRun(args[0], true)
	if err != nil {
		return err
	}
	w, err := output()
	if err != nil {
		return err
	}
	if err := storage.ExportJSON(w, run); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	if outFile != "" {
		fmt.Fprintf(os.Stderr, "exported %s to %s\n", args[0], outFile)
	}
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	run, err := loadRun(args[0], snapshot)
	if err != nil {
		return err
	}
	if snapshot && run.Snapshot.Len() == 0 {
		return fmt.Errorf("run %s has no snapshot", args[0])
	}

	w, err := output()
	if err != nil {
		return err
	}
	if snapshot {
		err = storage.WriteSnapshotCSV(w, run.Snapshot)
	} else {
		err = storage.WriteSeriesCSV(w, run.Times, run.Series)
	}
	if err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tBODIES\tBLOCK\tSTRATEGY\tCOLLIDE\tMODEL")
	for _, name := range config.ListPresets() {
		cfg := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%s\n",
			name,
			cfg.Simulation.NumBodies,
			cfg.Kernel.BlockSize,
			cfg.Kernel.Strategy,
			cfg.Kernel.Collide,
			cfg.Scene.Model,
		)
	}
	return w.Flush()
}

func listModels(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tMODEL\tDESCRIPTION")
	for i, m := range models.All() {
		fmt.Fprintf(w, "%d\t%s\t%s\n", i, m.Name, m.Description)
	}
	return w.Flush()
}

func showPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	exp, err := experiment.New(cfg)
	if err != nil {
		return err
	}

	n := cfg.Simulation.NumBodies
	passes := exp.Planner().Plan(n)
	fmt.Printf("bodies: %d  pivot: %d  strategy: %s  collide: %s\n\n",
		n, exp.Layout().Pivot, exp.Planner().Strategy(), cfg.Kernel.Collide)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PASS\tSTAGE\tBLOCKS\tCOLLIDING\tSMALLEST\tLARGEST")
	for i, p := range passes {
		smallest, largest := n, 0
		for _, b := range p.Blocks {
			smallest, largest = min(smallest, b.Len()), max(largest, b.Len())
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%d\n", i, p.Stage, len(p.Blocks), p.Colliding(), smallest, largest)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if err := partition.Validate(passes, n); err != nil {
		return err
	}
	fmt.Println("\nplan covers every body exactly once per pass")
	return nil
}

func benchKernels(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	fmt.Printf("benchmarking %s with %d bodies, %d steps each\n\n", cfg.Scene.Model, cfg.Simulation.NumBodies, benchSteps)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BACKEND\tSTRATEGY\tSTEPS\tTIME\tSTEPS/SEC\tANOMALIES")

	for _, be := range []string{"direct", "barneshut"} {
		for _, strat := range []string{"inline", "split"} {
			c := *cfg
			c.Kernel.Backend = be
			c.Kernel.Strategy = strat
			c.Simulation.SimDuration = float64(benchSteps) * c.Simulation.SimInterval

			steps, elapsed, anomalies, err := benchOnce(cmd.Context(), &c)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%v\t%.1f\t%d\n",
				be, strat, steps, elapsed.Round(time.Millisecond), float64(steps)/elapsed.Seconds(), anomalies)
		}
	}
	return w.Flush()
}

func benchOnce(ctx context.Context, cfg *config.Config) (int, time.Duration, int, error) {
	exp, err := experiment.New(cfg)
	if err != nil {
		return 0, 0, 0, err
	}
	d := exp.Driver()

	start := time.Now()
	anomalies := 0
	for i := 0; i < benchSteps; i++ {
		frame, err := d.Step(ctx)
		if err != nil {
			return i, time.Since(start), anomalies, err
		}
		anomalies += frame.Anomalies
	}
	return benchSteps, time.Since(start), anomalies, nil
}

func watch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	// The dashboard owns the terminal; only errors reach the log.
	logger := newLogger("error")

	launch := func(name string) (viz.Source, viz.Options, error) {
		c := *cfg
		c.Scene.Model = name
		exp, err := experiment.New(&c, experiment.WithLogger(logger))
		if err != nil {
			return nil, viz.Options{}, err
		}
		return exp, viz.Options{
			Title:        name,
			RenderBodies: c.Simulation.RenderBodies,
			Extent:       float32(12 * c.Simulation.ClusterScale / c.Simulation.RenderScale),
			StepsPerTick: stepsTick,
			EnergyEvery:  max(1, c.Simulation.NumBodies/1024),
		}, nil
	}

	modelChosen := len(args) > 0 || cmd.Flags().Changed("model") || configFile != "" || preset != ""
	if !modelChosen {
		return viz.RunInteractive(cmd.Context(), launch)
	}

	src, opts, err := launch(cfg.Scene.Model)
	if err != nil {
		return err
	}
	return viz.Run(cmd.Context(), src, opts)
}
