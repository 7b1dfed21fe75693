package config

import (
	"fmt"

	"github.com/san-kum/odesweep/internal/layout"
	"github.com/san-kum/odesweep/internal/noise"
	"github.com/san-kum/odesweep/internal/sampling"
)

// Inputs builds the initial-condition and rate matrices described by the
// sampling section for a model with the given species and parameter names.
// Fixed vectors are replicated; otherwise values are drawn from ranges,
// falling back to the default range for unnamed entries.
func (c *Config) Inputs(species, params []string) (initial, rates layout.Matrix, err error) {
	s := c.Sampling
	dist, err := sampling.ParseDistribution(s.Distribution)
	if err != nil {
		return initial, rates, err
	}
	seed := s.Seed
	if seed == 0 {
		seed = noise.BatchSeed()
	}

	n := s.Samples
	switch {
	case len(s.Rates) > 0:
		if len(s.Rates) != len(params) {
			return initial, rates, fmt.Errorf("config: %d fixed rates for %d parameters", len(s.Rates), len(params))
		}
		rates = sampling.Fixed(s.Rates, n)
	case s.Mode == "grid":
		points := s.GridPoints
		if points < 1 {
			points = 3
		}
		axes, err := sampling.Axes(sampling.Ranges(params, s.RateRanges), points, dist)
		if err != nil {
			return initial, rates, err
		}
		rates = sampling.Grid(axes)
		if len(params) == 0 {
			rates = layout.NewMatrix(n, 0, layout.RowMajor)
		}
		n = rates.Rows
	default:
		sampler, err := sampling.NewSampler(sampling.Ranges(params, s.RateRanges), dist, seed)
		if err != nil {
			return initial, rates, err
		}
		rates = sampler.Draw(n)
	}

	switch {
	case len(s.Initial) > 0:
		if len(s.Initial) != len(species) {
			return initial, rates, fmt.Errorf("config: %d initial values for %d species", len(s.Initial), len(species))
		}
		initial = sampling.Fixed(s.Initial, n)
	case len(s.InitialRanges) > 0:
		// Unlisted species start at zero.
		ranges := make([]sampling.Range, len(species))
		for i, name := range species {
			ranges[i] = s.InitialRanges[name]
		}
		sampler, err := sampling.NewSampler(ranges, sampling.Uniform, seed+1)
		if err != nil {
			return initial, rates, err
		}
		initial = sampler.Draw(n)
	default:
		return initial, rates, fmt.Errorf("config: sampling needs initial or initial_ranges")
	}
	return initial, rates, nil
}
