package engine

import (
	"math"
	"runtime"

	"github.com/san-kum/odesweep/internal/noise"
	"github.com/san-kum/odesweep/internal/solver"
)

const (
	DefaultAbsTol     = 1e-8
	DefaultRelTol     = 1e-7
	DefaultMaxSteps   = 100000
	DefaultMaxRetries = 3
	DefaultChunkSize  = 10
	DefaultWorkers    = 64

	// AutoWorkers sizes the pool to GOMAXPROCS.
	AutoWorkers = -1
)

// SolverConfig is fixed for the duration of one Run. Zero fields take the
// defaults above.
type SolverConfig struct {
	AbsTol float64
	RelTol float64
	// MaxSteps bounds the internal steps of one advance between two grid
	// points.
	MaxSteps int
	// MaxRetries is the number of attempts per sample before giving up.
	MaxRetries int
	ChunkSize  int
	// Workers bounds the pool; AutoWorkers uses every available CPU.
	Workers int
	// ContinueOnRetry makes a retry resume from the last state the solver
	// reached, with the clock reset to zero. The zero value restarts a failed
	// sample from its initial condition.
	ContinueOnRetry bool
}

func DefaultSolverConfig() SolverConfig {
	return SolverConfig{
		AbsTol:     DefaultAbsTol,
		RelTol:     DefaultRelTol,
		MaxSteps:   DefaultMaxSteps,
		MaxRetries: DefaultMaxRetries,
		ChunkSize:  DefaultChunkSize,
		Workers:    DefaultWorkers,
	}
}

func (c SolverConfig) withDefaults() SolverConfig {
	if c.AbsTol == 0 {
		c.AbsTol = DefaultAbsTol
	}
	if c.RelTol == 0 {
		c.RelTol = DefaultRelTol
	}
	if c.MaxSteps == 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	switch c.Workers {
	case 0:
		c.Workers = DefaultWorkers
	case AutoWorkers:
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Workers == 1 {
		c.ChunkSize = 1
	}
	return c
}

func (c SolverConfig) validate() error {
	if !(c.AbsTol > 0) || math.IsInf(c.AbsTol, 0) {
		return configErrorf("abs_tol", "must be positive, got %g", c.AbsTol)
	}
	if !(c.RelTol > 0) || math.IsInf(c.RelTol, 0) {
		return configErrorf("rel_tol", "must be positive, got %g", c.RelTol)
	}
	if c.MaxSteps < 0 {
		return configErrorf("max_steps", "must not be negative, got %d", c.MaxSteps)
	}
	if c.MaxRetries < 1 {
		return configErrorf("max_retries", "must be at least 1, got %d", c.MaxRetries)
	}
	if c.ChunkSize < 1 {
		return configErrorf("chunk_size", "must be at least 1, got %d", c.ChunkSize)
	}
	if c.Workers < 1 {
		return configErrorf("workers", "must be at least 1 or auto, got %d", c.Workers)
	}
	return nil
}

func (c SolverConfig) tolerances() solver.Tolerances {
	return solver.Tolerances{AbsTol: c.AbsTol, RelTol: c.RelTol}
}

// NoiseConfig switches on Langevin perturbation. Zeta converts the model's
// units to particle counts (zero means noise.DefaultZeta); Seed fixes the
// batch seed (zero draws one from pid and clock).
type NoiseConfig struct {
	Zeta float64
	Seed uint64
}

func (n NoiseConfig) withDefaults() NoiseConfig {
	if n.Zeta == 0 {
		n.Zeta = noise.DefaultZeta
	}
	if n.Seed == 0 {
		n.Seed = noise.BatchSeed()
	}
	return n
}

func (n NoiseConfig) validate() error {
	if !(n.Zeta > 0) || math.IsInf(n.Zeta, 0) {
		return configErrorf("noise.zeta", "must be positive, got %g", n.Zeta)
	}
	return nil
}
