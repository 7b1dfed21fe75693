package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/odesweep/internal/engine"
	"github.com/san-kum/odesweep/internal/noise"
	"github.com/san-kum/odesweep/internal/sampling"
)

const (
	DefaultModel     = "conversion"
	DefaultStop      = 10.0
	DefaultPoints    = 11
	DefaultSamples   = 100
	DefaultOutputDir = "out"
)

type Config struct {
	Model    string          `yaml:"model"`
	TimeGrid TimeGrid        `yaml:"time_grid"`
	Solver   SolverSection   `yaml:"solver"`
	Noise    *NoiseSection   `yaml:"noise,omitempty"`
	Sampling SamplingSection `yaml:"sampling"`
	Output   OutputSection   `yaml:"output"`
}

// TimeGrid is either an explicit list of output times or an evenly spaced
// range. In YAML it is written as a sequence or as {start, stop, points}.
type TimeGrid struct {
	Times []float64
	Start float64
	Stop  float64
	Count int
}

type gridRange struct {
	Start  float64 `yaml:"start"`
	Stop   float64 `yaml:"stop"`
	Points int     `yaml:"points"`
}

func (g *TimeGrid) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var times []float64
		if err := value.Decode(&times); err != nil {
			return err
		}
		*g = TimeGrid{Times: times}
		return nil
	case yaml.MappingNode:
		var r gridRange
		if err := value.Decode(&r); err != nil {
			return err
		}
		*g = TimeGrid{Start: r.Start, Stop: r.Stop, Count: r.Points}
		return nil
	default:
		return fmt.Errorf("line %d: time_grid must be a list or {start, stop, points}", value.Line)
	}
}

func (g TimeGrid) MarshalYAML() (interface{}, error) {
	if len(g.Times) > 0 {
		return g.Times, nil
	}
	return gridRange{Start: g.Start, Stop: g.Stop, Points: g.Count}, nil
}

func (g TimeGrid) Points() []float64 {
	if len(g.Times) > 0 {
		return append([]float64(nil), g.Times...)
	}
	return sampling.Linspace(g.Start, g.Stop, g.Count)
}

// Workers is a pool size that also accepts "auto".
type Workers int

func (w *Workers) UnmarshalYAML(value *yaml.Node) error {
	if strings.EqualFold(strings.TrimSpace(value.Value), "auto") {
		*w = Workers(engine.AutoWorkers)
		return nil
	}
	n, err := strconv.Atoi(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: workers must be an integer or auto, got %q", value.Line, value.Value)
	}
	*w = Workers(n)
	return nil
}

// ParseWorkers accepts the same forms as the YAML key.
func ParseWorkers(s string) (Workers, error) {
	var w Workers
	err := w.UnmarshalYAML(&yaml.Node{Kind: yaml.ScalarNode, Value: s})
	return w, err
}

func (w Workers) MarshalYAML() (interface{}, error) {
	if int(w) == engine.AutoWorkers {
		return "auto", nil
	}
	return int(w), nil
}

type SolverSection struct {
	AbsTol            float64 `yaml:"abs_tol"`
	RelTol            float64 `yaml:"rel_tol"`
	MaxSteps          int     `yaml:"max_steps"`
	MaxRetries        int     `yaml:"max_retries"`
	ChunkSize         int     `yaml:"chunk_size"`
	Workers           Workers `yaml:"workers"`
	ResetStateOnRetry *bool   `yaml:"reset_state_on_retry,omitempty"`
}

type NoiseSection struct {
	Enabled bool    `yaml:"enabled"`
	Zeta    float64 `yaml:"zeta,omitempty"`
	Seed    uint64  `yaml:"seed,omitempty"`
	// MolarUnit and VolumeLiters derive zeta when it is not given.
	MolarUnit    float64 `yaml:"molar_unit,omitempty"`
	VolumeLiters float64 `yaml:"volume_liters,omitempty"`
}

type SamplingSection struct {
	Samples      int    `yaml:"samples"`
	Seed         uint64 `yaml:"seed,omitempty"`
	Distribution string `yaml:"distribution,omitempty"`
	// Mode is "random" or "grid". Grid mode spans the rate ranges with
	// GridPoints values each and ignores Samples.
	Mode       string `yaml:"mode,omitempty"`
	GridPoints int    `yaml:"grid_points,omitempty"`

	Initial       []float64                 `yaml:"initial,omitempty"`
	InitialRanges map[string]sampling.Range `yaml:"initial_ranges,omitempty"`
	Rates         []float64                 `yaml:"rates,omitempty"`
	RateRanges    map[string]sampling.Range `yaml:"rate_ranges,omitempty"`
}

type OutputSection struct {
	Dir        string `yaml:"dir"`
	JSON       bool   `yaml:"json,omitempty"`
	SteadyOnly bool   `yaml:"steady_only,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:    DefaultModel,
		TimeGrid: TimeGrid{Start: 0, Stop: DefaultStop, Count: DefaultPoints},
		Solver: SolverSection{
			AbsTol:     engine.DefaultAbsTol,
			RelTol:     engine.DefaultRelTol,
			MaxSteps:   engine.DefaultMaxSteps,
			MaxRetries: engine.DefaultMaxRetries,
			ChunkSize:  engine.DefaultChunkSize,
			Workers:    engine.DefaultWorkers,
		},
		Sampling: SamplingSection{
			Samples:      DefaultSamples,
			Distribution: string(sampling.Uniform),
			Mode:         "random",
		},
		Output: OutputSection{Dir: DefaultOutputDir},
	}
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := LoadInto(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadInto overlays the keys present in the file at path onto cfg.
func LoadInto(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: %s: %w", path, err)
	}
	return nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Times returns the validated output time grid.
func (c *Config) Times() ([]float64, error) {
	times := c.TimeGrid.Points()
	if err := engine.ValidateTimes(times); err != nil {
		return nil, err
	}
	return times, nil
}

func (c *Config) SolverConfig() engine.SolverConfig {
	return engine.SolverConfig{
		AbsTol:          c.Solver.AbsTol,
		RelTol:          c.Solver.RelTol,
		MaxSteps:        c.Solver.MaxSteps,
		MaxRetries:      c.Solver.MaxRetries,
		ChunkSize:       c.Solver.ChunkSize,
		Workers:         int(c.Solver.Workers),
		ContinueOnRetry: c.Solver.ResetStateOnRetry != nil && !*c.Solver.ResetStateOnRetry,
	}
}

// NoiseConfig returns nil for deterministic runs.
func (c *Config) NoiseConfig() *engine.NoiseConfig {
	if c.Noise == nil || !c.Noise.Enabled {
		return nil
	}
	zeta := c.Noise.Zeta
	if zeta == 0 && c.Noise.MolarUnit > 0 && c.Noise.VolumeLiters > 0 {
		zeta = noise.Zeta(c.Noise.MolarUnit, c.Noise.VolumeLiters)
	}
	return &engine.NoiseConfig{Zeta: zeta, Seed: c.Noise.Seed}
}

func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("config: model is required")
	}
	if _, err := c.Times(); err != nil {
		return err
	}
	if c.Sampling.Samples < 0 {
		return fmt.Errorf("config: samples must not be negative, got %d", c.Sampling.Samples)
	}
	if _, err := sampling.ParseDistribution(c.Sampling.Distribution); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Sampling.Mode {
	case "", "random", "grid":
	default:
		return fmt.Errorf("config: unknown sampling mode %q", c.Sampling.Mode)
	}
	return nil
}

// Clone returns a deep copy so callers can override fields of shared
// presets.
func (c *Config) Clone() *Config {
	out := *c
	out.TimeGrid.Times = append([]float64(nil), c.TimeGrid.Times...)
	if c.Solver.ResetStateOnRetry != nil {
		v := *c.Solver.ResetStateOnRetry
		out.Solver.ResetStateOnRetry = &v
	}
	if c.Noise != nil {
		n := *c.Noise
		out.Noise = &n
	}
	out.Sampling.Initial = append([]float64(nil), c.Sampling.Initial...)
	out.Sampling.Rates = append([]float64(nil), c.Sampling.Rates...)
	out.Sampling.InitialRanges = cloneRanges(c.Sampling.InitialRanges)
	out.Sampling.RateRanges = cloneRanges(c.Sampling.RateRanges)
	return &out
}

func cloneRanges(in map[string]sampling.Range) map[string]sampling.Range {
	if in == nil {
		return nil
	}
	out := make(map[string]sampling.Range, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
