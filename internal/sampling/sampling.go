package sampling

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/san-kum/odesweep/internal/layout"
)

const (
	DefaultLower = 0.1
	DefaultUpper = 10.0
)

var ErrRange = errors.New("sampling: invalid range")

// Range is a closed interval [Lower, Upper].
type Range struct {
	Lower float64 `yaml:"lower" json:"lower"`
	Upper float64 `yaml:"upper" json:"upper"`
}

func DefaultRange() Range { return Range{Lower: DefaultLower, Upper: DefaultUpper} }

func (r Range) Validate(dist Distribution) error {
	if math.IsNaN(r.Lower) || math.IsNaN(r.Upper) || math.IsInf(r.Lower, 0) || math.IsInf(r.Upper, 0) {
		return fmt.Errorf("%w: [%g, %g] is not finite", ErrRange, r.Lower, r.Upper)
	}
	if r.Upper < r.Lower {
		return fmt.Errorf("%w: upper %g below lower %g", ErrRange, r.Upper, r.Lower)
	}
	if dist == LogUniform && r.Lower <= 0 {
		return fmt.Errorf("%w: log-uniform needs a positive lower bound, got %g", ErrRange, r.Lower)
	}
	return nil
}

type Distribution string

const (
	Uniform    Distribution = "uniform"
	LogUniform Distribution = "log-uniform"
)

func ParseDistribution(s string) (Distribution, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "uniform":
		return Uniform, nil
	case "log-uniform", "log_uniform", "loguniform", "log":
		return LogUniform, nil
	default:
		return "", fmt.Errorf("sampling: unknown distribution %q", s)
	}
}

// Sampler draws independent vectors, one coordinate per range.
type Sampler struct {
	ranges []Range
	dist   Distribution
	rng    *rand.Rand
}

func NewSampler(ranges []Range, dist Distribution, seed uint64) (*Sampler, error) {
	if dist == "" {
		dist = Uniform
	}
	for i, r := range ranges {
		if err := r.Validate(dist); err != nil {
			return nil, fmt.Errorf("range %d: %w", i, err)
		}
	}
	return &Sampler{
		ranges: append([]Range(nil), ranges...),
		dist:   dist,
		rng:    rand.New(rand.NewPCG(seed, seed^0xda942042e4dd58b5)),
	}, nil
}

func (s *Sampler) Width() int { return len(s.ranges) }

// Draw returns an n × Width() row-major matrix of fresh draws.
func (s *Sampler) Draw(n int) layout.Matrix {
	m := layout.NewMatrix(n, len(s.ranges), layout.RowMajor)
	for k := 0; k < n; k++ {
		for j, r := range s.ranges {
			m.Set(k, j, s.draw(r))
		}
	}
	return m
}

func (s *Sampler) draw(r Range) float64 {
	u := s.rng.Float64()
	if s.dist == LogUniform {
		lo, hi := math.Log(r.Lower), math.Log(r.Upper)
		return math.Exp(lo + u*(hi-lo))
	}
	return r.Lower + u*(r.Upper-r.Lower)
}

// Ranges returns one range per name: the override when present, the
// default range otherwise.
func Ranges(names []string, overrides map[string]Range) []Range {
	out := make([]Range, len(names))
	for i, n := range names {
		r, ok := overrides[n]
		if !ok {
			r = DefaultRange()
		}
		out[i] = r
	}
	return out
}

// Fixed replicates row n times.
func Fixed(row []float64, n int) layout.Matrix {
	m := layout.NewMatrix(n, len(row), layout.RowMajor)
	for k := 0; k < n; k++ {
		copy(m.Data[k*len(row):], row)
	}
	return m
}
