package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/san-kum/odesweep/internal/config"
	"github.com/san-kum/odesweep/internal/engine"
	"github.com/san-kum/odesweep/internal/export"
	"github.com/san-kum/odesweep/internal/layout"
	"github.com/san-kum/odesweep/internal/models"
	"github.com/san-kum/odesweep/internal/sampling"
	"github.com/san-kum/odesweep/internal/solver"
	"github.com/san-kum/odesweep/internal/telemetry"
	"github.com/san-kum/odesweep/internal/tui"
)

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	registry := models.NewRegistry()
	model, err := registry.Resolve(cfg.Model)
	if err != nil {
		return err
	}
	species, params := models.Names(model)

	initial, rates, err := buildInputs(cfg, species, params)
	if err != nil {
		return err
	}
	times, err := cfg.Times()
	if err != nil {
		return err
	}

	batch := engine.Batch{
		Times:      times,
		Initial:    initial,
		Rates:      rates,
		Solver:     cfg.SolverConfig(),
		Noise:      cfg.NoiseConfig(),
		SteadyOnly: cfg.Output.SteadyOnly,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eng := engine.New(solver.NewRosenbrock(), model, engine.WithLogger(log))

	if metricsAddr != "" {
		rec := telemetry.NewRecorder(model.Name())
		eng.AddObserver(rec)
		go func() {
			if err := rec.Serve(ctx, metricsAddr, log); err != nil {
				log.Warnf("metrics server: %v", err)
			}
		}()
	}

	var res *engine.Result
	var runErr error
	if live {
		// The progress view owns the terminal while it runs.
		log.SetOutput(io.Discard)
		view := tui.NewLive(model.Name(), initial.Rows)
		eng.AddObserver(view)
		runErr = view.Run(cancel, func() error {
			var err error
			res, err = eng.Run(ctx, batch)
			return err
		})
		log.SetOutput(os.Stderr)
	} else {
		res, runErr = eng.Run(ctx, batch)
	}
	if res == nil {
		return runErr
	}

	fmt.Println(tui.Summary(model.Name(), species, res))

	w := export.NewWriter(cfg.Output.Dir)
	meta := export.NewMetadata(model.Name(), species, params, res)
	if err := w.Write(res, meta); err != nil {
		return err
	}
	if cfg.Output.JSON {
		if err := w.WriteJSON(res, meta); err != nil {
			return err
		}
	}
	log.Infof("results written to %s", w.Dir())

	return runErr
}

// loadRunConfig layers the default config, a preset, a config file and
// finally any flags the user set.
func loadRunConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	model := cfg.Model
	if len(args) == 1 {
		model = args[0]
	}

	if preset != "" {
		p := config.GetPreset(model, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(model))
		}
		cfg = p
	}
	if configFile != "" {
		if err := config.LoadInto(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	if len(args) == 1 {
		cfg.Model = args[0]
	}

	flags := cmd.Flags()
	if flags.Changed("samples") {
		cfg.Sampling.Samples = samples
	}
	if flags.Changed("seed") {
		cfg.Sampling.Seed = sampleSeed
	}
	if flags.Changed("workers") {
		w, err := config.ParseWorkers(workers)
		if err != nil {
			return nil, err
		}
		cfg.Solver.Workers = w
	}
	if flags.Changed("chunk") {
		cfg.Solver.ChunkSize = chunkSize
	}
	if flags.Changed("retries") {
		cfg.Solver.MaxRetries = maxRetries
	}
	if flags.Changed("abs-tol") {
		cfg.Solver.AbsTol = absTol
	}
	if flags.Changed("rel-tol") {
		cfg.Solver.RelTol = relTol
	}
	if withNoise || flags.Changed("zeta") || flags.Changed("noise-seed") {
		if cfg.Noise == nil {
			cfg.Noise = &config.NoiseSection{}
		}
		cfg.Noise.Enabled = true
		if flags.Changed("zeta") {
			cfg.Noise.Zeta = zeta
		}
		if flags.Changed("noise-seed") {
			cfg.Noise.Seed = noiseSeed
		}
	}
	if flags.Changed("steady-only") {
		cfg.Output.SteadyOnly = steadyOnly
	}
	if flags.Changed("out") {
		cfg.Output.Dir = outDir
	}
	if flags.Changed("json") {
		cfg.Output.JSON = writeJSON
	}
	return cfg, nil
}

// buildInputs reads the CSV matrices given on the command line and fills
// in the other side from the config, replicating fixed vectors to match.
func buildInputs(cfg *config.Config, species, params []string) (initial, rates layout.Matrix, err error) {
	var fromFile bool
	if initialFile != "" {
		if initial, _, err = export.ReadMatrix(initialFile); err != nil {
			return initial, rates, err
		}
		fromFile = true
	}
	if ratesFile != "" {
		if rates, _, err = export.ReadMatrix(ratesFile); err != nil {
			return initial, rates, err
		}
		fromFile = true
	}
	if !fromFile {
		return cfg.Inputs(species, params)
	}

	switch {
	case initialFile == "":
		if len(cfg.Sampling.Initial) == 0 {
			return initial, rates, fmt.Errorf("--rates needs --initial or a fixed initial state in the config")
		}
		initial = sampling.Fixed(cfg.Sampling.Initial, rates.Rows)
	case ratesFile == "":
		if len(cfg.Sampling.Rates) > 0 {
			rates = sampling.Fixed(cfg.Sampling.Rates, initial.Rows)
			break
		}
		c := cfg.Clone()
		c.Sampling.Samples = initial.Rows
		c.Sampling.Mode = "random"
		c.Sampling.Initial = make([]float64, len(species))
		if initial.Rows > 0 {
			c.Sampling.Initial = initial.Row(0)
		}
		if _, rates, err = c.Inputs(species, params); err != nil {
			return initial, rates, err
		}
	}
	return initial, rates, nil
}
