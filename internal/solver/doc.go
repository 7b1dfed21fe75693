// Package solver is the narrow binding between the batch engine and a
// stiff ODE integrator.
//
// The engine only ever sees three things through this package:
//
//   - [Model]: the right-hand side (and optionally the [Jacobian]) of
//     dy/dt = f(t, y, p), injected per model
//   - [Binding]: a factory for integrator sessions
//   - [Session]: one integrator instance that is configured, advanced
//     monotonically to target times and closed
//
// Advance reports a [Flag] instead of an error so the caller can apply its
// own retry policy. Flags follow the usual stiff-solver convention: zero
// and positive values are successful returns, negative values are
// failures.
//
// # Built-in integrator
//
// [Rosenbrock] is a linearly implicit Rosenbrock 2(3) method (the scheme
// behind MATLAB's ode23s). It needs one LU factorisation of
// W = I - h·d·J per step and no Newton iteration, which makes it robust on
// stiff chemical kinetics at loose-to-moderate tolerances.
//
// # Diagnostics
//
// Every session writes diagnostics to the logger it was created with.
// There is no process-wide switch; pass a logger with a discarded output
// to silence one session without affecting the others.
package solver
