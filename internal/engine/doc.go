// Package engine runs one ODE model over a batch of independent samples.
//
// A sample is one row of initial conditions plus one row of rate
// parameters. The engine integrates every sample over a shared time grid
// and fills three dense buffers:
//
//   - trajectories: samples × timepoints × species (optional)
//   - steady states: samples × species, the state at the last grid point
//   - status flags: one [solver.Flag] per sample
//
// # Example
//
//	eng := engine.New(solver.NewRosenbrock(), models.NewRobertson())
//	res, err := eng.Run(ctx, engine.Batch{
//	    Times:   []float64{0, 1, 10, 100},
//	    Initial: initial, // samples × species
//	    Rates:   rates,   // samples × params
//	    Solver:  engine.DefaultSolverConfig(),
//	})
//
// # Concurrency
//
// Samples are cut into contiguous chunks and the chunks are spread over a
// bounded goroutine pool. Each sample owns a fixed region of every output
// buffer, computed from its index before dispatch, so workers never share
// writable memory and no locking is needed. Every sample gets its own
// solver session, its own noise generator and its own log entry.
//
// # Failures
//
// Configuration problems fail the whole batch before anything is
// dispatched ([ErrConfiguration]). Integration failures are retried per
// sample and, once retries are exhausted, only show up as that sample's
// non-zero flag; the batch always completes.
package engine
