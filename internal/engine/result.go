package engine

import (
	"math"
	"time"

	"github.com/san-kum/odesweep/internal/layout"
	"github.com/san-kum/odesweep/internal/solver"
)

// Result holds the dense outputs of one Run. Sample k owns
// Trajectories[k*TimePoints*Species : (k+1)*TimePoints*Species], laid out
// time-major with species contiguous, and SteadyStates[k*Species :
// (k+1)*Species].
type Result struct {
	Samples    int
	Species    int
	TimePoints int
	Times      []float64

	Trajectories []float64
	SteadyStates []float64
	Status       []solver.Flag
	Attempts     []int
	// Errors[k] is the *solver.IntegrationError of failed sample k.
	Errors []error

	// Seed is the batch noise seed, zero for deterministic runs.
	Seed    uint64
	Elapsed time.Duration
}

func newResult(b Batch, species int, withTrajectories bool) (*Result, error) {
	samples := b.Initial.Rows
	tp := len(b.Times)

	if species > 0 && samples > math.MaxInt/species {
		return nil, ErrAllocation
	}
	if withTrajectories && species > 0 && samples > math.MaxInt/(tp*species) {
		return nil, ErrAllocation
	}

	res := &Result{
		Samples:      samples,
		Species:      species,
		TimePoints:   tp,
		Times:        append([]float64(nil), b.Times...),
		SteadyStates: make([]float64, samples*species),
		Status:       make([]solver.Flag, samples),
		Attempts:     make([]int, samples),
		Errors:       make([]error, samples),
	}
	if withTrajectories {
		res.Trajectories = make([]float64, samples*tp*species)
	}
	return res, nil
}

// Trajectory returns sample k as TimePoints rows of Species values. The
// rows alias the result buffer. It returns nil in steady-only mode.
func (r *Result) Trajectory(k int) [][]float64 {
	if r.Trajectories == nil {
		return nil
	}
	block := NewStrided(r.Trajectories, r.TimePoints*r.Species).Row(k)
	rows := NewStrided(block, r.Species)
	out := make([][]float64, r.TimePoints)
	for ti := range out {
		out[ti] = rows.Row(ti)
	}
	return out
}

// SteadyState returns the final state of sample k, aliasing the buffer.
func (r *Result) SteadyState(k int) []float64 {
	return NewStrided(r.SteadyStates, r.Species).Row(k)
}

// Err returns the integration error of sample k, or nil.
func (r *Result) Err(k int) error {
	if r.Errors == nil {
		return nil
	}
	return r.Errors[k]
}

// Failed lists the samples whose status is not success.
func (r *Result) Failed() []int {
	var out []int
	for k, f := range r.Status {
		if f != solver.Success {
			out = append(out, k)
		}
	}
	return out
}

// SteadyMatrix returns the steady states as a samples × species matrix in
// the requested order.
func (r *Result) SteadyMatrix(order layout.Order) layout.Matrix {
	return layout.FromSampleMajor(r.SteadyStates, r.Samples, r.Species, order)
}

// TrajectoryMatrix returns all trajectories stacked as a
// (samples·timepoints) × species matrix: row k*TimePoints+ti is sample k at
// Times[ti].
func (r *Result) TrajectoryMatrix(order layout.Order) layout.Matrix {
	if r.Trajectories == nil {
		return layout.Matrix{Order: order, Cols: r.Species, Data: []float64{}}
	}
	return layout.FromSampleMajor(r.Trajectories, r.Samples*r.TimePoints, r.Species, order)
}
