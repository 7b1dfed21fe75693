package solver

import (
	"errors"
	"fmt"
)

var (
	// ErrIntegration is the sentinel wrapped by every IntegrationError.
	ErrIntegration = errors.New("solver: integration failed")

	// ErrNotConfigured indicates Advance or Reset on a session without Configure.
	ErrNotConfigured = errors.New("solver: session not configured")

	// ErrDimensionMismatch indicates a vector whose length does not match the model.
	ErrDimensionMismatch = errors.New("solver: dimension mismatch between vector and model")

	// ErrBadTolerance indicates a non-positive or non-finite tolerance.
	ErrBadTolerance = errors.New("solver: tolerances must be positive and finite")
)

// IntegrationError carries the failing flag and the time the solver reached.
type IntegrationError struct {
	Flag Flag
	Time float64
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("%v: %s at t=%g", ErrIntegration, e.Flag, e.Time)
}

func (e *IntegrationError) Unwrap() error {
	return ErrIntegration
}

// AsError converts a failing flag into an *IntegrationError, or nil when ok.
func AsError(f Flag, t float64) error {
	if f.OK() {
		return nil
	}
	return &IntegrationError{Flag: f, Time: t}
}
