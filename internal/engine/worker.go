package engine

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/odesweep/internal/noise"
	"github.com/san-kum/odesweep/internal/solver"
)

// sampleJob is one sample's inputs and the output rows it owns.
type sampleJob struct {
	index  int
	y0     []float64
	params []float64
	traj   Strided // timepoints × species, Nil in steady-only mode
	steady []float64
}

// sampleWorker integrates single samples. It is immutable and shared by all
// pool goroutines.
type sampleWorker struct {
	binding solver.Binding
	model   solver.Model
	times   []float64
	cfg     SolverConfig
	noise   *NoiseConfig
	log     logrus.FieldLogger
}

// run integrates job from t = 0 to the last grid point and reports the
// final status and the number of attempts used.
func (w *sampleWorker) run(ctx context.Context, job sampleJob) SampleReport {
	start := time.Now()
	log := w.log.WithField("sample", job.index)
	report := SampleReport{Index: job.index}

	sess, err := w.binding.NewSession(w.model.Species(), log)
	if err != nil {
		log.Warnf("cannot create solver session: %v", err)
		copy(job.steady, job.y0)
		report.Status = solver.IllInput
		report.Err = solver.AsError(solver.IllInput, 0)
		return report
	}
	defer sess.Close()

	if err := sess.Configure(w.model, job.params, job.y0, w.cfg.tolerances()); err != nil {
		log.Warnf("cannot configure solver session: %v", err)
		copy(job.steady, job.y0)
		report.Status = solver.IllInput
		report.Err = solver.AsError(solver.IllInput, 0)
		return report
	}
	sess.SetStopTime(w.times[len(w.times)-1])
	sess.SetMaxSteps(w.cfg.MaxSteps)

	var src noise.Source
	if w.noise != nil {
		src = noise.NewBoxMuller(noise.SampleSeed(w.noise.Seed, job.index))
	}
	scratch := make([]float64, len(job.y0))

	flag := solver.Success
	for report.Attempts < w.cfg.MaxRetries {
		report.Attempts++
		if report.Attempts > 1 {
			restart := job.y0
			if w.cfg.ContinueOnRetry {
				restart = sess.State()
			}
			if err := sess.Reset(0, restart); err != nil {
				log.Warnf("cannot reset solver session: %v", err)
				break
			}
		}

		flag = w.walk(ctx, sess, job, src, scratch)
		if flag.OK() || flag == solver.Canceled {
			break
		}
		log.Debugf("attempt %d/%d failed: %s at t=%g", report.Attempts, w.cfg.MaxRetries, flag, sess.Time())
	}

	if !flag.OK() && flag != solver.Canceled {
		report.Err = solver.AsError(flag, sess.Time())
		log.WithError(report.Err).Warnf("giving up after %d attempts", report.Attempts)
	}
	if flag.OK() {
		flag = solver.Success
	}

	copy(job.steady, sess.State())
	report.Status = flag
	report.Stats = sess.Stats()
	report.Elapsed = time.Since(start)
	return report
}

// walk makes one pass over the time grid. A grid point equal to zero
// records the current state without advancing. Noise is applied once per
// distinct time reached; a repeated grid point gets no second kick.
func (w *sampleWorker) walk(ctx context.Context, sess solver.Session, job sampleJob, src noise.Source, scratch []float64) solver.Flag {
	last := sess.Time()
	for ti, tout := range w.times {
		select {
		case <-ctx.Done():
			return solver.Canceled
		default:
		}

		if tout != 0 {
			flag, _ := sess.Advance(tout)
			if !flag.OK() {
				return flag
			}
			if now := sess.Time(); src != nil && now > last {
				last = now
				copy(scratch, sess.State())
				noise.Perturb(scratch, w.noise.Zeta, src)
				if err := sess.SetState(scratch); err != nil {
					return solver.IllInput
				}
			}
		}

		if !job.traj.Nil() {
			copy(job.traj.Row(ti), sess.State())
		}
	}
	return solver.Success
}
