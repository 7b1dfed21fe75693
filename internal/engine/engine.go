package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/odesweep/internal/layout"
	"github.com/san-kum/odesweep/internal/solver"
)

// Batch is everything one Run needs. Initial is samples × species and Rates
// is samples × params, in either storage order.
type Batch struct {
	Times      []float64
	Initial    layout.Matrix
	Rates      layout.Matrix
	Solver     SolverConfig
	Noise      *NoiseConfig
	SteadyOnly bool
}

type Engine struct {
	binding   solver.Binding
	model     solver.Model
	log       logrus.FieldLogger
	observers []Observer
}

type Option func(*Engine)

func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = l }
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

func New(binding solver.Binding, model solver.Model, opts ...Option) *Engine {
	e := &Engine{
		binding:   binding,
		model:     model,
		log:       logrus.StandardLogger(),
		observers: make([]Observer, 0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) AddObserver(o Observer) { e.observers = append(e.observers, o) }

func (e *Engine) Model() solver.Model { return e.model }

// Run integrates every sample of b and returns once all of them carry a
// status. Configuration errors are returned before any work starts. If ctx
// is canceled mid-run the partial result is returned together with
// ctx.Err(); samples that never ran are flagged solver.Canceled.
func (e *Engine) Run(ctx context.Context, b Batch) (*Result, error) {
	cfg := b.Solver.withDefaults()
	if err := e.validate(b, cfg); err != nil {
		return nil, err
	}

	var nc *NoiseConfig
	if b.Noise != nil {
		n := b.Noise.withDefaults()
		if err := n.validate(); err != nil {
			return nil, err
		}
		nc = &n
	}

	res, err := newResult(b, e.model.Species(), !b.SteadyOnly)
	if err != nil {
		return nil, err
	}
	if nc != nil {
		res.Seed = nc.Seed
	}

	species, params := e.model.Species(), e.model.Params()
	initial := NewStrided(layout.SampleMajor(b.Initial), species)
	var rates Strided
	if params > 0 {
		rates = NewStrided(layout.SampleMajor(b.Rates), params)
	}
	steady := NewStrided(res.SteadyStates, species)
	var traj Strided
	if res.Trajectories != nil {
		traj = NewStrided(res.Trajectories, res.TimePoints*species)
	}

	w := &sampleWorker{
		binding: e.binding,
		model:   e.model,
		times:   res.Times,
		cfg:     cfg,
		noise:   nc,
		log:     e.log.WithField("model", e.model.Name()),
	}
	sched := scheduler{workers: cfg.Workers, chunkSize: cfg.ChunkSize}

	e.log.Infof("running %d samples of %s on %d workers (chunk %d, %d timepoints)",
		res.Samples, e.model.Name(), cfg.Workers, cfg.ChunkSize, res.TimePoints)
	start := time.Now()

	job := func(k int) sampleJob {
		j := sampleJob{
			index:  k,
			y0:     initial.Row(k),
			steady: steady.Row(k),
		}
		if params > 0 {
			j.params = rates.Row(k)
		}
		if !traj.Nil() {
			j.traj = NewStrided(traj.Row(k), species)
		}
		return j
	}

	next := sched.run(ctx, res.Samples, func(lo, hi int) {
		for k := lo; k < hi; k++ {
			report := w.run(ctx, job(k))
			res.Status[k] = report.Status
			res.Attempts[k] = report.Attempts
			res.Errors[k] = report.Err
			e.notify(report)
		}
	})

	for k := next; k < res.Samples; k++ {
		j := job(k)
		copy(j.steady, j.y0)
		res.Status[k] = solver.Canceled
		e.notify(SampleReport{Index: k, Status: solver.Canceled})
	}

	res.Elapsed = time.Since(start)
	failed := len(res.Failed())
	e.log.Infof("batch finished in %v: %d ok, %d failed", res.Elapsed, res.Samples-failed, failed)

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("engine: batch interrupted: %w", err)
	}
	return res, nil
}

func (e *Engine) notify(r SampleReport) {
	for _, o := range e.observers {
		o.OnSampleDone(r)
	}
}

func (e *Engine) validate(b Batch, cfg SolverConfig) error {
	if e.model.Species() < 1 {
		return configErrorf("model", "%s has no species", e.model.Name())
	}
	if err := ValidateTimes(b.Times); err != nil {
		return err
	}
	if err := b.Initial.Validate(); err != nil {
		return configErrorf("initial", "%v", err)
	}
	if err := b.Rates.Validate(); err != nil {
		return configErrorf("rates", "%v", err)
	}
	if b.Initial.Rows != b.Rates.Rows {
		return configErrorf("rates", "%d rate vectors for %d initial conditions", b.Rates.Rows, b.Initial.Rows)
	}
	if b.Initial.Cols != e.model.Species() {
		return configErrorf("initial", "model %s has %d species, got %d columns",
			e.model.Name(), e.model.Species(), b.Initial.Cols)
	}
	if b.Rates.Cols != e.model.Params() {
		return configErrorf("rates", "model %s has %d parameters, got %d columns",
			e.model.Name(), e.model.Params(), b.Rates.Cols)
	}
	return cfg.validate()
}

// ValidateTimes checks the time grid contract: at least three finite,
// non-negative, non-decreasing points with something after t = 0.
func ValidateTimes(times []float64) error {
	if len(times) < 3 {
		return configErrorf("time_grid", "needs at least 3 points, got %d", len(times))
	}
	positive := false
	for i, t := range times {
		if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
			return configErrorf("time_grid", "point %d is %g", i, t)
		}
		if i > 0 && t < times[i-1] {
			return configErrorf("time_grid", "point %d (%g) is before point %d (%g)", i, t, i-1, times[i-1])
		}
		if i > 0 && t > 0 {
			positive = true
		}
	}
	if !positive {
		return configErrorf("time_grid", "no point after t=0")
	}
	return nil
}
