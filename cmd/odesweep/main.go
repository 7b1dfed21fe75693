package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/odesweep/internal/config"
	"github.com/san-kum/odesweep/internal/engine"
	"github.com/san-kum/odesweep/internal/export"
	"github.com/san-kum/odesweep/internal/models"
	"github.com/san-kum/odesweep/internal/solver"
)

var (
	logLevel string

	configFile  string
	preset      string
	initialFile string
	ratesFile   string
	samples     int
	sampleSeed  uint64
	workers     string
	chunkSize   int
	maxRetries  int
	absTol      float64
	relTol      float64
	withNoise   bool
	zeta        float64
	noiseSeed   uint64
	steadyOnly  bool
	outDir      string
	writeJSON   bool
	live        bool
	metricsAddr string

	plotSample  int
	plotSpecies int
)

var log = logrus.New()

func main() {
	rootCmd := &cobra.Command{
		Use:   "odesweep",
		Short: "batch stiff ODE parameter sweeps",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			log.SetLevel(level)
			log.SetOutput(os.Stderr)
			log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			return nil
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "integrate a batch of samples",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runBatch,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	runCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	runCmd.Flags().StringVar(&initialFile, "initial", "", "csv of initial conditions, one sample per row")
	runCmd.Flags().StringVar(&ratesFile, "rates", "", "csv of rate parameters, one sample per row")
	runCmd.Flags().IntVar(&samples, "samples", 0, "number of samples to draw")
	runCmd.Flags().Uint64Var(&sampleSeed, "seed", 0, "sampling seed (0 = random)")
	runCmd.Flags().StringVar(&workers, "workers", "", "worker pool size or auto")
	runCmd.Flags().IntVar(&chunkSize, "chunk", 0, "samples per unit of work")
	runCmd.Flags().IntVar(&maxRetries, "retries", 0, "attempts per sample")
	runCmd.Flags().Float64Var(&absTol, "abs-tol", 0, "absolute tolerance")
	runCmd.Flags().Float64Var(&relTol, "rel-tol", 0, "relative tolerance")
	runCmd.Flags().BoolVar(&withNoise, "noise", false, "add Langevin noise at every output time")
	runCmd.Flags().Float64Var(&zeta, "zeta", 0, "particles per concentration unit for noise")
	runCmd.Flags().Uint64Var(&noiseSeed, "noise-seed", 0, "noise seed (0 = random)")
	runCmd.Flags().BoolVar(&steadyOnly, "steady-only", false, "skip trajectories, keep final states")
	runCmd.Flags().StringVar(&outDir, "out", "", "output directory")
	runCmd.Flags().BoolVar(&writeJSON, "json", false, "also write results.json")
	runCmd.Flags().BoolVar(&live, "live", false, "show live progress")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address during the run")

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list built-in models",
		Args:  cobra.NoArgs,
		RunE:  listModels,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [dir]",
		Short: "plot one sample's trajectory from a result directory",
		Args:  cobra.ExactArgs(1),
		RunE:  plotSampleCmd,
	}
	plotCmd.Flags().IntVar(&plotSample, "sample", 0, "sample index")
	plotCmd.Flags().IntVar(&plotSpecies, "species", -1, "species index (-1 = all)")

	benchCmd := &cobra.Command{
		Use:   "bench [model]",
		Short: "measure throughput across worker counts",
		Args:  cobra.ExactArgs(1),
		RunE:  benchModel,
	}
	benchCmd.Flags().IntVar(&samples, "samples", 500, "samples per run")

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write a config file to start from",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if preset != "" {
				if cfg = config.GetPreset(cfg.Model, preset); cfg == nil {
					return fmt.Errorf("unknown preset: %s", preset)
				}
			}
			if err := config.Save(args[0], cfg); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", args[0])
			return nil
		},
	}
	initCmd.Flags().StringVar(&preset, "preset", "", "start from a preset of the default model")

	rootCmd.AddCommand(runCmd, modelsCmd, presetsCmd, plotCmd, benchCmd, initCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func listModels(cmd *cobra.Command, args []string) error {
	registry := models.NewRegistry()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tSPECIES\tPARAMS\tPRESETS")
	for _, name := range registry.List() {
		m, err := registry.Get(name)
		if err != nil {
			return err
		}
		species, params := models.Names(m)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			name,
			strings.Join(species, ","),
			strings.Join(params, ","),
			strings.Join(config.ListPresets(name), ","),
		)
	}
	return w.Flush()
}

func listPresets(cmd *cobra.Command, args []string) error {
	names := models.NewRegistry().List()
	if len(args) == 1 {
		names = args
	}
	for _, model := range names {
		presets := config.ListPresets(model)
		if len(presets) == 0 {
			fmt.Printf("no presets for model: %s\n", model)
			continue
		}
		fmt.Printf("presets for %s:\n", model)
		for _, p := range presets {
			cfg := config.GetPreset(model, p)
			fmt.Printf("  %-12s %d samples, %s\n", p, cfg.Sampling.Samples, describeSampling(cfg))
		}
	}
	return nil
}

func describeSampling(cfg *config.Config) string {
	s := cfg.Sampling
	switch {
	case len(s.Rates) > 0:
		return "fixed rates"
	case s.Mode == "grid":
		return fmt.Sprintf("%d-point grid", s.GridPoints)
	case s.Distribution != "":
		return s.Distribution + " rates"
	default:
		return "uniform rates"
	}
}

func plotSampleCmd(cmd *cobra.Command, args []string) error {
	dir := args[0]

	traj, err := export.LoadTrajectory(dir, plotSample)
	if err != nil {
		return err
	}
	if meta, err := export.LoadMetadata(dir); err == nil {
		fmt.Printf("model: %s\n", meta.Model)
		fmt.Printf("samples: %d, failed: %d, elapsed: %s\n", meta.Samples, meta.Failed, meta.Elapsed)
	}
	fmt.Printf("sample: %d (%d timepoints, t=%g..%g)\n\n",
		plotSample, len(traj.Times), traj.Times[0], traj.Times[len(traj.Times)-1])

	indices := make([]int, 0, len(traj.Species))
	if plotSpecies >= 0 {
		if plotSpecies >= len(traj.Species) {
			return fmt.Errorf("species %d out of range (%d species)", plotSpecies, len(traj.Species))
		}
		indices = append(indices, plotSpecies)
	} else {
		for j := range traj.Species {
			indices = append(indices, j)
		}
	}

	for _, j := range indices {
		graph := asciigraph.Plot(traj.Column(j),
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("%s vs time", traj.Species[j])),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func benchModel(cmd *cobra.Command, args []string) error {
	model, err := models.NewRegistry().Resolve(args[0])
	if err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	if presets := config.ListPresets(model.Name()); len(presets) > 0 {
		cfg = config.GetPreset(model.Name(), presets[0])
	}
	cfg.Sampling.Samples = samples
	cfg.Sampling.Seed = 42
	if len(cfg.Sampling.Initial) == 0 && len(cfg.Sampling.InitialRanges) == 0 {
		cfg.Sampling.Initial = make([]float64, model.Species())
		for i := range cfg.Sampling.Initial {
			cfg.Sampling.Initial[i] = 1
		}
	}

	species, params := models.Names(model)
	initial, rates, err := cfg.Inputs(species, params)
	if err != nil {
		return err
	}
	times, err := cfg.Times()
	if err != nil {
		return err
	}

	quiet := logrus.New()
	quiet.SetLevel(logrus.ErrorLevel)
	eng := engine.New(solver.NewRosenbrock(), model, engine.WithLogger(quiet))

	fmt.Printf("benchmarking %s (%d samples, %d timepoints)\n\n", model.Name(), initial.Rows, len(times))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WORKERS\tCHUNK\tTIME\tSAMPLES/SEC\tFAILED")

	counts := []int{1, 2, 4, 8, runtime.GOMAXPROCS(0)}
	for _, n := range counts {
		sc := cfg.SolverConfig()
		sc.Workers = n
		batch := engine.Batch{Times: times, Initial: initial, Rates: rates, Solver: sc, SteadyOnly: true}

		start := time.Now()
		res, err := eng.Run(cmd.Context(), batch)
		if err != nil {
			return err
		}
		elapsed := time.Since(start)

		chunk := sc.ChunkSize
		if n == 1 {
			chunk = 1
		}
		fmt.Fprintf(w, "%d\t%d\t%v\t%.0f\t%d\n",
			n, chunk, elapsed.Round(time.Millisecond), float64(res.Samples)/elapsed.Seconds(), len(res.Failed()))
	}
	return w.Flush()
}
