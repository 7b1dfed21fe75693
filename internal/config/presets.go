package config

import (
	"sort"

	"github.com/san-kum/odesweep/internal/sampling"
)

func grid(stop float64, points int) TimeGrid {
	return TimeGrid{Start: 0, Stop: stop, Count: points}
}

func solverDefaults() SolverSection {
	return DefaultConfig().Solver
}

var Presets = map[string]map[string]*Config{
	"conversion": {
		"decay": {
			Model: "conversion", TimeGrid: grid(10, 21), Solver: solverDefaults(),
			Sampling: SamplingSection{Samples: 100, Mode: "random", Initial: []float64{1, 0}},
		},
		"noisy": {
			Model: "conversion", TimeGrid: grid(10, 21), Solver: solverDefaults(),
			Noise:    &NoiseSection{Enabled: true, Zeta: 50},
			Sampling: SamplingSection{Samples: 50, Mode: "random", Initial: []float64{1, 0}, Rates: []float64{0.5}},
		},
	},
	"reversible": {
		"equilibrium": {
			Model: "reversible", TimeGrid: grid(20, 41), Solver: solverDefaults(),
			Sampling: SamplingSection{
				Samples: 200, Mode: "random", Distribution: string(sampling.LogUniform),
				Initial: []float64{1, 0},
			},
		},
	},
	"robertson": {
		"classic": {
			Model:    "robertson",
			TimeGrid: TimeGrid{Times: []float64{0, 0.4, 4, 40, 400, 4000, 40000}},
			Solver:   solverDefaults(),
			Sampling: SamplingSection{Samples: 1, Initial: []float64{1, 0, 0}, Rates: []float64{0.04, 3e7, 1e4}},
			Output:   OutputSection{Dir: DefaultOutputDir},
		},
		"perturbed": {
			Model:    "robertson",
			TimeGrid: TimeGrid{Times: []float64{0, 0.4, 4, 40, 400, 4000, 40000}},
			Solver:   solverDefaults(),
			Sampling: SamplingSection{
				Samples: 200, Mode: "random", Distribution: string(sampling.LogUniform),
				Initial: []float64{1, 0, 0},
				RateRanges: map[string]sampling.Range{
					"k1": {Lower: 0.01, Upper: 0.1},
					"k2": {Lower: 1e7, Upper: 1e8},
					"k3": {Lower: 1e3, Upper: 1e5},
				},
			},
		},
	},
	"michaelis_menten": {
		"saturating": {
			Model: "michaelis_menten", TimeGrid: grid(50, 26), Solver: solverDefaults(),
			Sampling: SamplingSection{
				Samples: 500, Mode: "random", Distribution: string(sampling.LogUniform),
				Initial: []float64{1, 10, 0, 0},
			},
		},
		"grid": {
			Model: "michaelis_menten", TimeGrid: grid(50, 26), Solver: solverDefaults(),
			Sampling: SamplingSection{
				Mode: "grid", GridPoints: 5, Distribution: string(sampling.LogUniform),
				Initial: []float64{1, 10, 0, 0},
			},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	out := cfg.Clone()
	if out.Output.Dir == "" {
		out.Output.Dir = DefaultOutputDir
	}
	return out
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
