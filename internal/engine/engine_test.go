package engine

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/odesweep/internal/layout"
	"github.com/san-kum/odesweep/internal/solver"
)

func TestRunConversion(t *testing.T) {
	b := conversionBatch(7)
	res, err := newTestEngine(solver.NewRosenbrock()).Run(context.Background(), b)
	require.NoError(t, err)

	require.Len(t, res.Status, 7)
	require.Len(t, res.Attempts, 7)
	assert.Len(t, res.Trajectories, 7*5*2)
	assert.Len(t, res.SteadyStates, 7*2)
	assert.Empty(t, res.Failed())

	for k := 0; k < res.Samples; k++ {
		assert.Equal(t, solver.Success, res.Status[k])
		assert.Equal(t, 1, res.Attempts[k])
		assert.NoError(t, res.Err(k))

		a0, b0 := b.Initial.At(k, 0), b.Initial.At(k, 1)
		rate := b.Rates.At(k, 0)
		traj := res.Trajectory(k)
		require.Len(t, traj, 5)
		for ti, tt := range res.Times {
			want := a0 * math.Exp(-rate*tt)
			assert.InDelta(t, want, traj[ti][0], 1e-5, "sample %d t=%g", k, tt)
			assert.InDelta(t, a0+b0, traj[ti][0]+traj[ti][1], 1e-6)
		}
		assert.Equal(t, traj[4], res.SteadyState(k))
	}
}

func TestRunZeroRate(t *testing.T) {
	initial, _ := layout.FromRows([][]float64{{1, 0}})
	rates, _ := layout.FromRows([][]float64{{0}})
	b := Batch{Times: []float64{0, 1, 2}, Initial: initial, Rates: rates}

	res, err := newTestEngine(solver.NewRosenbrock()).Run(context.Background(), b)
	require.NoError(t, err)
	require.Equal(t, solver.Success, res.Status[0])
	for _, row := range res.Trajectory(0) {
		assert.InDeltaSlice(t, []float64{1, 0}, row, 1e-12)
	}
	assert.InDeltaSlice(t, []float64{1, 0}, res.SteadyState(0), 1e-12)
}

func TestRunTimeGridLength(t *testing.T) {
	eng := newTestEngine(solver.NewRosenbrock())

	b := conversionBatch(2)
	b.Times = []float64{0, 1, 2}
	res, err := eng.Run(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, 3, res.TimePoints)

	b.Times = []float64{0, 1}
	res, err = eng.Run(context.Background(), b)
	assert.Nil(t, res)
	require.ErrorIs(t, err, ErrConfiguration)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "time_grid", cerr.Field)
}

func TestValidateTimes(t *testing.T) {
	tests := []struct {
		name  string
		times []float64
		ok    bool
	}{
		{"canonical", []float64{0, 1, 2}, true},
		{"repeated points", []float64{0, 1, 1, 3}, true},
		{"no zero", []float64{0.5, 1, 2}, true},
		{"too short", []float64{0, 1}, false},
		{"decreasing", []float64{0, 2, 1}, false},
		{"negative", []float64{-1, 0, 1}, false},
		{"nan", []float64{0, math.NaN(), 1}, false},
		{"inf", []float64{0, 1, math.Inf(1)}, false},
		{"all zero", []float64{0, 0, 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTimes(tt.times)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrConfiguration)
			}
		})
	}
}

func TestRunShapeErrors(t *testing.T) {
	eng := newTestEngine(solver.NewRosenbrock())

	tests := []struct {
		name  string
		field string
		edit  func(b *Batch)
	}{
		{"sample counts differ", "rates", func(b *Batch) {
			b.Rates = layout.NewMatrix(3, 1, layout.RowMajor)
		}},
		{"species mismatch", "initial", func(b *Batch) {
			b.Initial = layout.NewMatrix(4, 3, layout.RowMajor)
		}},
		{"param mismatch", "rates", func(b *Batch) {
			b.Rates = layout.NewMatrix(4, 2, layout.RowMajor)
		}},
		{"ragged data", "initial", func(b *Batch) {
			b.Initial.Data = b.Initial.Data[:5]
		}},
		{"bad tolerance", "abs_tol", func(b *Batch) {
			b.Solver.AbsTol = -1
		}},
		{"bad retries", "max_retries", func(b *Batch) {
			b.Solver.MaxRetries = -2
		}},
		{"bad zeta", "noise.zeta", func(b *Batch) {
			b.Noise = &NoiseConfig{Zeta: -3, Seed: 1}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := conversionBatch(4)
			tt.edit(&b)
			_, err := eng.Run(context.Background(), b)
			var cerr *ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestRunChunkedBatch(t *testing.T) {
	b := conversionBatch(25)
	b.Solver.ChunkSize = 10
	b.Solver.Workers = 3

	var seen [25]atomic.Int32
	eng := newTestEngine(solver.NewRosenbrock(), WithObserver(ObserverFunc(func(r SampleReport) {
		seen[r.Index].Add(1)
	})))
	res, err := eng.Run(context.Background(), b)
	require.NoError(t, err)

	for k := 0; k < 25; k++ {
		assert.Equal(t, solver.Success, res.Status[k], "sample %d", k)
		assert.Equal(t, int32(1), seen[k].Load(), "sample %d reported once", k)
		assert.NotZero(t, res.SteadyState(k)[1], "sample %d written", k)
	}
}

func TestRunDeterministicAcrossPools(t *testing.T) {
	configs := []struct{ workers, chunk int }{
		{1, 10},
		{4, 3},
		{64, 10},
		{AutoWorkers, 1},
	}

	var ref *Result
	for _, c := range configs {
		b := conversionBatch(17)
		b.Solver.Workers = c.workers
		b.Solver.ChunkSize = c.chunk
		res, err := newTestEngine(solver.NewRosenbrock()).Run(context.Background(), b)
		require.NoError(t, err)
		if ref == nil {
			ref = res
			continue
		}
		assert.Equal(t, ref.Trajectories, res.Trajectories, "workers=%d chunk=%d", c.workers, c.chunk)
		assert.Equal(t, ref.SteadyStates, res.SteadyStates)
		assert.Equal(t, ref.Status, res.Status)
	}
}

func TestRunOutputsDoNotAlias(t *testing.T) {
	b := conversionBatch(3)
	res, err := newTestEngine(solver.NewRosenbrock()).Run(context.Background(), b)
	require.NoError(t, err)

	s0 := res.SteadyState(0)
	assert.Equal(t, len(s0), cap(s0))
	s0[0] = -42
	assert.NotEqual(t, -42.0, res.SteadyState(1)[0])

	before := b.Initial.At(0, 0)
	res.Trajectory(0)[0][0] = 99
	assert.Equal(t, before, b.Initial.At(0, 0), "results must not alias inputs")
}

func TestRunColumnMajorInput(t *testing.T) {
	b := conversionBatch(6)
	rowRes, err := newTestEngine(solver.NewRosenbrock()).Run(context.Background(), b)
	require.NoError(t, err)

	colInitial := layout.NewMatrix(6, 2, layout.ColMajor)
	colRates := layout.NewMatrix(6, 1, layout.ColMajor)
	for k := 0; k < 6; k++ {
		colInitial.Set(k, 0, b.Initial.At(k, 0))
		colInitial.Set(k, 1, b.Initial.At(k, 1))
		colRates.Set(k, 0, b.Rates.At(k, 0))
	}
	b.Initial, b.Rates = colInitial, colRates
	colRes, err := newTestEngine(solver.NewRosenbrock()).Run(context.Background(), b)
	require.NoError(t, err)

	assert.Equal(t, rowRes.SteadyStates, colRes.SteadyStates)
	assert.Equal(t, rowRes.Trajectories, colRes.Trajectories)
}

func TestRunSteadyOnly(t *testing.T) {
	full, err := newTestEngine(solver.NewRosenbrock()).Run(context.Background(), conversionBatch(5))
	require.NoError(t, err)

	b := conversionBatch(5)
	b.SteadyOnly = true
	steady, err := newTestEngine(solver.NewRosenbrock()).Run(context.Background(), b)
	require.NoError(t, err)

	assert.Nil(t, steady.Trajectories)
	assert.Nil(t, steady.Trajectory(0))
	assert.Equal(t, full.SteadyStates, steady.SteadyStates)
	assert.Equal(t, 0, steady.TrajectoryMatrix(layout.RowMajor).Rows)
}

func TestRunNoiseSeeded(t *testing.T) {
	run := func(seed uint64, workers int) *Result {
		b := conversionBatch(8)
		b.Solver.Workers = workers
		b.Noise = &NoiseConfig{Zeta: 50, Seed: seed}
		res, err := newTestEngine(solver.NewRosenbrock()).Run(context.Background(), b)
		require.NoError(t, err)
		return res
	}

	a := run(7, 1)
	b := run(7, 8)
	c := run(8, 4)

	assert.Equal(t, uint64(7), a.Seed)
	assert.Equal(t, a.Trajectories, b.Trajectories, "same seed must reproduce regardless of pool")
	assert.NotEqual(t, a.Trajectories, c.Trajectories)
	assert.True(t, nonNegative(a.Trajectories))
	assert.True(t, nonNegative(c.SteadyStates))

	det, err := newTestEngine(solver.NewRosenbrock()).Run(context.Background(), conversionBatch(8))
	require.NoError(t, err)
	assert.NotEqual(t, det.Trajectories, a.Trajectories, "noise must perturb the trajectory")
	assert.Zero(t, det.Seed)
}

func TestRunNoiseClampsAtZero(t *testing.T) {
	initial, _ := layout.FromRows([][]float64{{0.02, 0}, {0.01, 0.01}, {0.5, 0}})
	rates, _ := layout.FromRows([][]float64{{3}, {1}, {10}})
	b := Batch{
		Times:   []float64{0, 0.1, 0.2, 0.5, 1, 2, 4, 8},
		Initial: initial,
		Rates:   rates,
		Noise:   &NoiseConfig{Zeta: 1, Seed: 99},
	}
	res, err := newTestEngine(solver.NewRosenbrock()).Run(context.Background(), b)
	require.NoError(t, err)
	assert.True(t, nonNegative(res.Trajectories))
	assert.True(t, nonNegative(res.SteadyStates))
}

func TestRunNoiseOncePerDistinctTime(t *testing.T) {
	run := func(times []float64) *Result {
		b := conversionBatch(4)
		b.Times = times
		b.Noise = &NoiseConfig{Zeta: 50, Seed: 3}
		res, err := newTestEngine(solver.NewRosenbrock()).Run(context.Background(), b)
		require.NoError(t, err)
		return res
	}

	plain := run([]float64{0, 1, 2})
	repeated := run([]float64{0, 1, 1, 2})
	for k := 0; k < plain.Samples; k++ {
		traj := repeated.Trajectory(k)
		assert.Equal(t, traj[1], traj[2], "sample %d: repeated point must not be kicked again", k)
		assert.InDeltaSlice(t, plain.SteadyState(k), repeated.SteadyState(k), 1e-12, "sample %d", k)
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	const marker = 99
	binding := &scriptedBinding{
		inner: solver.NewRosenbrock(),
		failAt: func(p []float64, _ int, target float64) solver.Flag {
			if p[0] == marker && target >= 1 {
				return solver.ConvFailure
			}
			return solver.Success
		},
	}

	b := conversionBatch(5)
	b.Rates.Set(2, 0, marker)
	res, err := newTestEngine(binding).Run(context.Background(), b)
	require.NoError(t, err)

	assert.Equal(t, []int{2}, res.Failed())
	assert.Equal(t, solver.ConvFailure, res.Status[2])
	assert.Equal(t, DefaultMaxRetries, res.Attempts[2])

	var ierr *solver.IntegrationError
	require.ErrorAs(t, res.Err(2), &ierr)
	assert.Equal(t, solver.ConvFailure, ierr.Flag)
	assert.InDelta(t, 0.5, ierr.Time, 1e-12, "last grid point reached before failing")
	assert.ErrorIs(t, res.Err(2), solver.ErrIntegration)
	for _, k := range []int{0, 1, 3, 4} {
		assert.Equal(t, solver.Success, res.Status[k])
		assert.Equal(t, 1, res.Attempts[k])
		want := b.Initial.At(k, 0) * math.Exp(-b.Rates.At(k, 0)*4)
		assert.InDelta(t, want, res.SteadyState(k)[0], 1e-5)
	}
}

func TestRunRetryPolicy(t *testing.T) {
	// The first attempt fails on the advance to t=2, after t=1 has been
	// reached; the second attempt succeeds.
	script := func(_ []float64, attempt int, target float64) solver.Flag {
		if attempt == 1 && target >= 2 {
			return solver.TooMuchWork
		}
		return solver.Success
	}
	initial, _ := layout.FromRows([][]float64{{1, 0}})
	rates, _ := layout.FromRows([][]float64{{1}})
	batch := func(cont bool) Batch {
		cfg := DefaultSolverConfig()
		cfg.ContinueOnRetry = cont
		return Batch{Times: []float64{0, 1, 2}, Initial: initial, Rates: rates, Solver: cfg}
	}

	t.Run("restart from initial condition", func(t *testing.T) {
		binding := &scriptedBinding{inner: solver.NewRosenbrock(), failAt: script}
		res, err := newTestEngine(binding).Run(context.Background(), batch(false))
		require.NoError(t, err)

		assert.Equal(t, solver.Success, res.Status[0])
		assert.Equal(t, 2, res.Attempts[0])
		resets := binding.resetStates()
		require.Len(t, resets, 1)
		assert.Equal(t, []float64{1, 0}, resets[0])
		assert.InDelta(t, math.Exp(-2), res.SteadyState(0)[0], 1e-5)
	})

	t.Run("zero solver config restarts from initial condition", func(t *testing.T) {
		binding := &scriptedBinding{inner: solver.NewRosenbrock(), failAt: script}
		b := Batch{Times: []float64{0, 1, 2}, Initial: initial, Rates: rates}
		res, err := newTestEngine(binding).Run(context.Background(), b)
		require.NoError(t, err)

		assert.Equal(t, solver.Success, res.Status[0])
		assert.Equal(t, 2, res.Attempts[0])
		resets := binding.resetStates()
		require.Len(t, resets, 1)
		assert.Equal(t, []float64{1, 0}, resets[0])
		assert.Equal(t, []float64{1, 0}, res.Trajectory(0)[0])
		assert.InDelta(t, math.Exp(-2), res.SteadyState(0)[0], 1e-5)
	})

	t.Run("continue from last state", func(t *testing.T) {
		binding := &scriptedBinding{inner: solver.NewRosenbrock(), failAt: script}
		res, err := newTestEngine(binding).Run(context.Background(), batch(true))
		require.NoError(t, err)

		assert.Equal(t, solver.Success, res.Status[0])
		assert.Equal(t, 2, res.Attempts[0])
		resets := binding.resetStates()
		require.Len(t, resets, 1)
		assert.InDelta(t, math.Exp(-1), resets[0][0], 1e-5)
		// Clock restarts at zero from e^-1, so t=2 lands on e^-3.
		assert.InDelta(t, math.Exp(-3), res.SteadyState(0)[0], 1e-5)
	})
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var reports atomic.Int32
	eng := newTestEngine(solver.NewRosenbrock(), WithObserver(ObserverFunc(func(SampleReport) {
		reports.Add(1)
	})))
	b := conversionBatch(12)
	res, err := eng.Run(ctx, b)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)

	assert.Equal(t, int32(12), reports.Load())
	for k := 0; k < 12; k++ {
		assert.Equal(t, solver.Canceled, res.Status[k])
		assert.Equal(t, b.Initial.Row(k), res.SteadyState(k))
	}
}

func TestResultMatrices(t *testing.T) {
	res, err := newTestEngine(solver.NewRosenbrock()).Run(context.Background(), conversionBatch(4))
	require.NoError(t, err)

	steady := res.SteadyMatrix(layout.ColMajor)
	require.NoError(t, steady.Validate())
	assert.Equal(t, 4, steady.Rows)
	assert.Equal(t, 2, steady.Cols)

	traj := res.TrajectoryMatrix(layout.ColMajor)
	require.NoError(t, traj.Validate())
	assert.Equal(t, 4*5, traj.Rows)
	for k := 0; k < 4; k++ {
		assert.Equal(t, res.SteadyState(k), steady.Row(k))
		for ti, row := range res.Trajectory(k) {
			assert.Equal(t, row, traj.Row(k*5+ti))
		}
	}
}

func TestNewResultOverflow(t *testing.T) {
	b := Batch{
		Times:   []float64{0, 1, 2},
		Initial: layout.Matrix{Rows: math.MaxInt / 2, Cols: 4},
	}
	_, err := newResult(b, 4, true)
	assert.True(t, errors.Is(err, ErrAllocation))
}
