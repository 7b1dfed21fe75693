package engine

import (
	"time"

	"github.com/san-kum/odesweep/internal/solver"
)

// SampleReport describes one finished sample.
type SampleReport struct {
	Index    int
	Status   solver.Flag
	Attempts int
	Elapsed  time.Duration
	Stats    solver.Stats
	// Err is a *solver.IntegrationError when the sample failed, nil on
	// success or cancellation.
	Err error
}

// Observer is notified as samples finish. Workers call it concurrently,
// so implementations must be safe for concurrent use.
type Observer interface {
	OnSampleDone(r SampleReport)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(SampleReport)

func (f ObserverFunc) OnSampleDone(r SampleReport) { f(r) }
