package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/isingsim/internal/config"
	"github.com/san-kum/isingsim/internal/export"
	"github.com/san-kum/isingsim/internal/ising"
	"github.com/san-kum/isingsim/internal/observables"
	"github.com/san-kum/isingsim/internal/storage"
	"github.com/san-kum/isingsim/internal/sweep"
	"github.com/san-kum/isingsim/internal/tui"
	"github.com/spf13/cobra"
)

var (
	dataDir   string
	logLevel  string
	logFormat string

	size  int
	temp  float64
	j     float64
	h     float64
	steps int
	seed  int64
	start string

	sizes      []int
	temps      []float64
	tMin       float64
	tMax       float64
	tCount     int
	stepScale  int
	baseSeed   int64
	workers    int
	bySize     bool
	keepSeries bool
	configFile string
	preset     string

	quantity  string
	normalize bool
	output    string
	cellSize  float64
	perFrame  int
)

// main registers the commands and exits with status 1 when one fails.
func main() {
	rootCmd := &cobra.Command{
		Use:           "isingsim",
		Short:         "2d ising model monte carlo lab",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".isingsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a single (L, T) simulation",
		Args:  cobra.NoArgs,
		RunE:  runSingle,
	}
	addRunFlags(runCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "run an L x T grid on a worker pool",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addSweepFlags(sweepCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show run observables",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&quantity, "quantity", "", "observable to plot for sweeps (default all)")
	plotCmd.Flags().BoolVar(&normalize, "normalize", false, "divide each curve by its largest magnitude")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export observables (sweep) or series (run) to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "export final state (run) or observable curves (sweep) to SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <run_id>.svg)")
	exportSVGCmd.Flags().StringVar(&quantity, "quantity", string(observables.QuantityHeatCapacity), "observable for sweep curves")
	exportSVGCmd.Flags().Float64Var(&cellSize, "cell", 8, "pixels per lattice site")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run a chain with live visualization",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addModelFlags(liveCmd)
	liveCmd.Flags().IntVar(&perFrame, "sweeps", 1, "lattice sweeps per frame")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available sweep presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	rootCmd.AddCommand(runCmd, sweepCmd, listCmd, showCmd, plotCmd, exportCSVCmd, exportJSONCmd, exportSVGCmd, liveCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&size, "size", config.DefaultSize, "lattice size L")
	cmd.Flags().Float64Var(&temp, "temp", 2.27, "temperature")
	cmd.Flags().Float64Var(&j, "j", config.DefaultJ, "coupling constant")
	cmd.Flags().Float64Var(&h, "h", config.DefaultH, "external field")
	cmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")
	cmd.Flags().StringVar(&start, "start", config.DefaultStart, "initial state (ordered, random)")
}

func addRunFlags(cmd *cobra.Command) {
	addModelFlags(cmd)
	cmd.Flags().IntVar(&steps, "steps", 0, "proposed flips (default step-scale * L)")
}

func addSweepFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().IntSliceVar(&sizes, "sizes", []int{config.DefaultSize}, "lattice sizes")
	cmd.Flags().Float64SliceVar(&temps, "temps", nil, "explicit temperatures (overrides range)")
	cmd.Flags().Float64Var(&tMin, "tmin", config.DefaultTMin, "lowest temperature")
	cmd.Flags().Float64Var(&tMax, "tmax", config.DefaultTMax, "highest temperature")
	cmd.Flags().IntVar(&tCount, "tcount", config.DefaultTCount, "number of temperatures")
	cmd.Flags().Float64Var(&j, "j", config.DefaultJ, "coupling constant")
	cmd.Flags().Float64Var(&h, "h", config.DefaultH, "external field")
	cmd.Flags().IntVar(&stepScale, "step-scale", config.DefaultStepScale, "steps per unit of L")
	cmd.Flags().IntVar(&steps, "steps", 0, "fixed steps per task (when step-scale is 0)")
	cmd.Flags().Int64Var(&baseSeed, "seed", 0, "base seed; task i uses seed+i")
	cmd.Flags().StringVar(&start, "start", config.DefaultStart, "initial state (ordered, random)")
	cmd.Flags().IntVar(&workers, "workers", 0, "worker count (0 = one per cpu)")
	cmd.Flags().BoolVar(&bySize, "by-size", false, "submit and time each lattice size separately")
	cmd.Flags().BoolVar(&keepSeries, "keep-series", false, "store the raw series of every task")
}

func newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch logFormat {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return nil, fmt.Errorf("invalid log format %q (available: text, json)", logFormat)
}

// buildTask uses --steps when it was given, otherwise step-scale * L.
// Invalid values are left for NewTask to reject.
func buildTask(cmd *cobra.Command) (sweep.Task, error) {
	s, err := sweep.ParseStart(start)
	if err != nil {
		return sweep.Task{}, err
	}
	n := config.DefaultStepScale * size
	if cmd.Flags().Changed("steps") {
		n = steps
	}
	opt := sweep.WithOrderedStart(ising.Up)
	if s == sweep.StartRandom {
		opt = sweep.WithRandomStart()
	}
	return sweep.NewTask(size, j, h, temp, n, seed, opt)
}

func runSingle(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	task, err := buildTask(cmd)
	if err != nil {
		return err
	}

	logger.Info("running", "task", task.String(), "steps", task.Steps)
	result, err := sweep.Execute(task)
	if err != nil {
		return err
	}

	agg, err := observables.Reduce(task.L, result.Series[0], result.Duration)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.SaveRun(&storage.Run{
		Meta: storage.RunMetadata{
			Name:         "run",
			Seed:         task.Seed,
			J:            task.J,
			H:            task.H,
			Sizes:        []int{task.L},
			Temperatures: []float64{task.T},
			Steps:        task.Steps,
			Start:        string(task.Start),
			Elapsed:      result.Duration,
		},
		Series:    result.Series[0],
		Final:     result.Final,
		Aggregate: agg,
	})
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", runID)
	printAggregates([]observables.Aggregate{agg})
	return nil
}

// sweepConfig layers preset, config file and explicitly set flags, in that order.
func sweepConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %s)", preset, strings.Join(config.ListPresets(), ", "))
		}
	}
	if configFile != "" {
		var err error
		if cfg, err = config.LoadOver(configFile, cfg); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("sizes") {
		cfg.Sizes = sizes
	}
	if flags.Changed("temps") {
		cfg.Temperatures = config.TemperatureConfig{Values: temps}
	} else if flags.Changed("tmin") || flags.Changed("tmax") || flags.Changed("tcount") {
		cfg.Temperatures = config.TemperatureConfig{Min: tMin, Max: tMax, Count: tCount}
	}
	if flags.Changed("j") {
		cfg.J = j
	}
	if flags.Changed("h") {
		cfg.H = h
	}
	if flags.Changed("step-scale") {
		cfg.StepScale = stepScale
	}
	if flags.Changed("steps") {
		cfg.Steps = steps
		if !flags.Changed("step-scale") {
			cfg.StepScale = 0
		}
	}
	if flags.Changed("seed") {
		cfg.Seed = baseSeed
	}
	if flags.Changed("start") {
		cfg.Start = start
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("by-size") {
		cfg.BySize = bySize
	}
	if flags.Changed("keep-series") {
		cfg.KeepSeries = keepSeries
	}
	return cfg, nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	cfg, err := sweepConfig(cmd)
	if err != nil {
		return err
	}
	grid, err := cfg.Grid()
	if err != nil {
		return err
	}

	opts := []sweep.Option{sweep.WithLogger(logger)}
	if !cfg.KeepSeries {
		opts = append(opts, sweep.DiscardSeries())
	}
	pool := sweep.NewPool(cfg.Workers, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger.Info("sweep started", "name", cfg.Name, "sizes", len(grid.Sizes), "temperatures", len(grid.Temperatures), "workers", pool.Workers(), "by_size", cfg.BySize)
	sw, runErr := sweep.RunGrid(ctx, pool, grid, cfg.BySize)
	if sw == nil {
		return runErr
	}

	failures := sw.Failures()
	meta := storage.RunMetadata{
		Name:         cfg.Name,
		Seed:         grid.Seed,
		J:            grid.J,
		H:            grid.H,
		Sizes:        grid.Sizes,
		Temperatures: grid.Temperatures,
		Steps:        grid.Steps,
		StepScale:    grid.StepScale,
		Start:        string(grid.Start),
		Workers:      pool.Workers(),
		Elapsed:      sw.Elapsed,
	}
	for _, f := range failures {
		meta.Failures = append(meta.Failures, f.Error())
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.SaveSweep(meta, sw.Table(), sw.Timings)
	if err != nil {
		return err
	}

	if cfg.KeepSeries {
		for _, o := range sw.Outcomes {
			if o.Failed() || o.Result == nil || len(o.Result.Series) == 0 {
				continue
			}
			if err := st.SaveSeries(runID, o.Task.L, o.Result.Series[0]); err != nil {
				return err
			}
		}
	}

	logger.Info("sweep finished", "id", runID, "elapsed", sw.Elapsed, "failed", len(failures))
	fmt.Printf("sweep: %s\n", runID)
	printTimings(sw.Timings)

	if runErr != nil {
		return fmt.Errorf("%d of %d tasks failed: %w", len(failures), len(sw.Outcomes), runErr)
	}
	return nil
}

func printAggregates(rows []observables.Aggregate) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "L\tT\t<E>\t<M>\tC\tCHI\tACC\tTIME")
	for _, a := range rows {
		fmt.Fprintf(w, "%d\t%.4f\t%.4f\t%.4f\t%.4g\t%.4g\t%.3f\t%s\n",
			a.L, a.T, a.MeanEnergy, a.MeanMagnetization, a.HeatCapacity, a.Susceptibility, a.Acceptance, a.Duration.Round(time.Microsecond))
	}
	w.Flush()
}

func printTimings(timings []sweep.SizeTiming) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "L\tTASKS\tINTERNAL\tEXTERNAL")
	for _, t := range timings {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", t.L, t.Tasks, t.MeanInternal.Round(time.Microsecond), t.External.Round(time.Millisecond))
	}
	w.Flush()
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
	fmt.Fprintln(w, "ID\tKIND\tNAME\tTIME\tSIZES\tTEMPS\tELAPSED\tFAILED")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%d\n",
			run.ID,
			run.Kind,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			len(run.Sizes),
			len(run.Temperatures),
			run.Elapsed.Round(time.Millisecond),
			len(run.Failures),
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	tbl, err := st.LoadTable(runID)
	if err != nil {
		return err
	}

	fmt.Printf("id: %s (%s)\n", meta.ID, meta.Kind)
	fmt.Printf("j=%g h=%g seed=%d start=%s elapsed=%s\n\n", meta.J, meta.H, meta.Seed, meta.Start, meta.Elapsed.Round(time.Millisecond))
	printAggregates(tbl.Rows())

	if meta.Kind == storage.KindSweep {
		timings, err := st.LoadTimings(runID)
		if err != nil {
			return err
		}
		fmt.Println()
		printTimings(timings)
	}

	for _, f := range meta.Failures {
		fmt.Printf("failed: %s\n", f)
	}
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	if meta.Kind == storage.KindRun {
		series, err := st.LoadSeries(runID)
		if err != nil {
			return err
		}
		mag := make([]float64, len(series.Magnetization))
		for i, m := range series.Magnetization {
			mag[i] = float64(m)
		}
		plot(series.Energy, fmt.Sprintf("energy vs step (T=%g)", series.Temperature))
		plot(mag, fmt.Sprintf("magnetization vs step (T=%g)", series.Temperature))
		return nil
	}

	tbl, err := st.LoadTable(runID)
	if err != nil {
		return err
	}

	quantities := observables.Quantities
	if quantity != "" {
		q, err := observables.ParseQuantity(quantity)
		if err != nil {
			return err
		}
		quantities = []observables.Quantity{q}
	}

	fmt.Printf("sweep: %s (%d sizes)\n\n", meta.ID, len(tbl.Sizes()))
	for _, q := range quantities {
		for _, l := range tbl.Sizes() {
			data := tbl.Column(l, q)
			if normalize {
				data = observables.Normalize(data)
			}
			plot(data, fmt.Sprintf("%s vs T (L=%d)", q, l))
		}
	}
	return nil
}

func plot(data []float64, caption string) {
	if len(data) == 0 {
		return
	}
	graph := asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(caption),
	)
	fmt.Println(graph)
	fmt.Println()
}

func createOutput(path string) (*os.File, error) {
	if path == "" {
		return os.Stdout, nil
	}
	return os.Create(path)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	data, err := st.Export(runID)
	if err != nil {
		return err
	}

	f, err := createOutput(output)
	if err != nil {
		return err
	}
	if f != os.Stdout {
		defer f.Close()
	}

	w := csv.NewWriter(f)
	defer w.Flush()

	if data.Series != nil {
		if err := w.Write([]string{"step", "energy", "magnetization"}); err != nil {
			return err
		}
		for i := range data.Series.Energy {
			row := []string{
				strconv.Itoa(i),
				strconv.FormatFloat(data.Series.Energy[i], 'f', 6, 64),
				strconv.Itoa(data.Series.Magnetization[i]),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	}

	header := []string{"L", "T"}
	for _, q := range observables.Quantities {
		header = append(header, string(q))
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, a := range data.Observables {
		row := []string{strconv.Itoa(a.L), strconv.FormatFloat(a.T, 'f', 6, 64)}
		for _, q := range observables.Quantities {
			row = append(row, strconv.FormatFloat(a.Value(q), 'f', 6, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	data, err := st.Export(runID)
	if err != nil {
		return err
	}

	if output == "" {
		return storage.WriteJSON(os.Stdout, data)
	}
	if err := storage.ExportJSONFile(output, data); err != nil {
		return err
	}
	fmt.Printf("exported %s to %s\n", runID, output)
	return nil
}

func exportSVG(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	var svg string
	if meta.Kind == storage.KindRun {
		final, err := st.LoadFinalState(runID)
		if err != nil {
			return err
		}
		if len(meta.Sizes) == 0 {
			return fmt.Errorf("run %s has no lattice size", runID)
		}
		lat, err := ising.NewLattice(meta.Sizes[0])
		if err != nil {
			return err
		}
		grid, err := lat.Reshape(final)
		if err != nil {
			return err
		}
		svg = export.LatticeToSVG(grid, cellSize)
	} else {
		q, err := observables.ParseQuantity(quantity)
		if err != nil {
			return err
		}
		tbl, err := st.LoadTable(runID)
		if err != nil {
			return err
		}
		var curves []export.Curve
		for _, l := range tbl.Sizes() {
			ts := tbl.Temperatures(l)
			ys := tbl.Column(l, q)
			pts := make([]export.Point, len(ts))
			for i := range ts {
				pts[i] = export.Point{X: ts[i], Y: ys[i]}
			}
			curves = append(curves, export.Curve{Label: fmt.Sprintf("L=%d", l), Points: pts})
		}
		svg = export.CurvesToSVG(curves, 800, 500)
	}

	if svg == "" {
		return fmt.Errorf("no data to export")
	}

	path := output
	if path == "" {
		path = runID + ".svg"
	}
	if err := os.WriteFile(path, []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Printf("exported %s to %s\n", runID, path)
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	task, err := buildTask(cmd)
	if err != nil {
		return err
	}
	return tui.Run(task, perFrame)
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZES\tTEMPS\tSTEP_SCALE\tSTART\tWORKERS\tBY_SIZE")
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%d\t%t\n",
			name, sizeRange(p.Sizes), len(p.Temperatures.List()), p.StepScale, p.Start, p.Workers, p.BySize)
	}
	return w.Flush()
}

func sizeRange(sizes []int) string {
	switch len(sizes) {
	case 0:
		return "-"
	case 1:
		return strconv.Itoa(sizes[0])
	}
	return fmt.Sprintf("%d..%d (%d)", sizes[0], sizes[len(sizes)-1], len(sizes))
}
