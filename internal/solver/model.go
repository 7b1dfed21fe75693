package solver

import "math"

// Model is the right-hand side dy/dt = f(t, y, p) of one ODE model.
// RHS must write exactly Species() values into dy and must not retain any
// of its arguments. Implementations are shared read-only across workers, so
// RHS has to be safe for concurrent use.
type Model interface {
	Name() string
	Species() int
	Params() int
	RHS(t float64, y, p, dy []float64)
}

// Jacobian is implemented by models that provide an analytic Jacobian.
// jac is row-major Species()×Species(): jac[i*n+j] = ∂f_i/∂y_j.
type Jacobian interface {
	Jacobian(t float64, y, p, jac []float64)
}

// Labeled is implemented by models that name their species and parameters.
type Labeled interface {
	SpeciesNames() []string
	ParamNames() []string
}

// finiteDiffJacobian fills jac by forward differences around (t, y).
// f0 must hold f(t, y). scratch and fy need Species() values each.
func finiteDiffJacobian(m Model, t float64, y, p, f0, jac, scratch, fy []float64) {
	n := len(y)
	sqrtEps := math.Sqrt(epsilon)
	copy(scratch, y)
	for j := 0; j < n; j++ {
		delta := sqrtEps * math.Max(math.Abs(y[j]), 1.0)
		scratch[j] = y[j] + delta
		m.RHS(t, scratch, p, fy)
		for i := 0; i < n; i++ {
			jac[i*n+j] = (fy[i] - f0[i]) / delta
		}
		scratch[j] = y[j]
	}
}
