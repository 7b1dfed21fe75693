package solver

import "github.com/sirupsen/logrus"

// Tolerances bounds the local error of every accepted step:
// |err_i| <= RelTol*|y_i| + AbsTol in the weighted RMS norm.
type Tolerances struct {
	AbsTol float64
	RelTol float64
}

// Stats counts the work done by a session since Configure.
type Stats struct {
	Steps     int
	Rejected  int
	RHSEvals  int
	JacEvals  int
	LUDecomps int
}

// Binding creates integrator sessions. A Binding is shared by all workers
// and must be safe for concurrent use; sessions are not.
type Binding interface {
	NewSession(species int, log logrus.FieldLogger) (Session, error)
}

// Session is one integrator instance owned by a single worker.
type Session interface {
	// Configure attaches the model, its parameters and tolerances and loads
	// y0 at t = 0.
	Configure(m Model, params, y0 []float64, tol Tolerances) error

	// SetStopTime forbids the integrator from stepping past t1.
	SetStopTime(t1 float64)

	// SetMaxSteps bounds the internal steps of one Advance call.
	SetMaxSteps(n int)

	// Reset restarts the clock at t0 with state y, dropping step history.
	Reset(t0 float64, y []float64) error

	// SetState replaces the current state without touching the clock.
	SetState(y []float64) error

	// Advance integrates forward to target and reports the status and the
	// time actually reached. Targets before the current time fail with
	// BadTout.
	Advance(target float64) (Flag, float64)

	// State returns the current state. The slice is owned by the session and
	// is only valid until the next call on it.
	State() []float64

	Time() float64
	Stats() Stats
	Close()
}
