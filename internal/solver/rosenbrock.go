package solver

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

const epsilon = 2.220446049250313e-16

// Rosenbrock 2(3) coefficients (Shampine & Reichelt, 1997).
var (
	rosD   = 1.0 / (2.0 + math.Sqrt2)
	rosE32 = 6.0 + math.Sqrt2
)

const (
	maxErrFails  = 7
	maxConvFails = 10
	// condLimit rejects W matrices too ill-conditioned to solve reliably.
	condLimit = 1e14
)

// Rosenbrock is a Binding backed by a linearly implicit Rosenbrock 2(3)
// integrator. It is safe for concurrent use.
type Rosenbrock struct {
	safety   float64
	minScale float64
	maxScale float64
	pool     *workspacePool
}

func NewRosenbrock() *Rosenbrock {
	return &Rosenbrock{
		safety:   0.8,
		minScale: 0.2,
		maxScale: 5.0,
		pool:     newWorkspacePool(),
	}
}

func (r *Rosenbrock) NewSession(species int, log logrus.FieldLogger) (Session, error) {
	if species < 1 {
		return nil, fmt.Errorf("%w: species count %d", ErrDimensionMismatch, species)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &rosenbrockSession{
		owner: r,
		n:     species,
		ws:    r.pool.Get(species),
		log:   log,
		y:     make([]float64, species),
	}, nil
}

type rosenbrockSession struct {
	owner *Rosenbrock
	n     int
	ws    *workspace
	log   logrus.FieldLogger

	model    Model
	jacobian Jacobian
	params   []float64
	tol      Tolerances

	t        float64
	h        float64
	y        []float64
	tstop    float64
	hasStop  bool
	maxSteps int

	configured bool
	f0Valid    bool
	jacValid   bool
	stats      Stats
}

func (s *rosenbrockSession) Configure(m Model, params, y0 []float64, tol Tolerances) error {
	if s.ws == nil {
		return fmt.Errorf("solver: session closed")
	}
	if m.Species() != s.n || len(y0) != s.n {
		return fmt.Errorf("%w: session has %d species, model %q has %d, y0 has %d",
			ErrDimensionMismatch, s.n, m.Name(), m.Species(), len(y0))
	}
	if len(params) != m.Params() {
		return fmt.Errorf("%w: model %q wants %d parameters, got %d",
			ErrDimensionMismatch, m.Name(), m.Params(), len(params))
	}
	if !(tol.AbsTol > 0) || !(tol.RelTol > 0) || math.IsInf(tol.AbsTol, 0) || math.IsInf(tol.RelTol, 0) {
		return fmt.Errorf("%w: abs=%g rel=%g", ErrBadTolerance, tol.AbsTol, tol.RelTol)
	}

	s.model = m
	s.jacobian, _ = m.(Jacobian)
	s.params = append(s.params[:0], params...)
	s.tol = tol
	s.stats = Stats{}
	s.configured = true
	return s.Reset(0, y0)
}

func (s *rosenbrockSession) SetStopTime(t1 float64) {
	s.tstop = t1
	s.hasStop = true
}

func (s *rosenbrockSession) SetMaxSteps(n int) { s.maxSteps = n }

func (s *rosenbrockSession) Reset(t0 float64, y []float64) error {
	if !s.configured {
		return ErrNotConfigured
	}
	if err := s.SetState(y); err != nil {
		return err
	}
	s.t = t0
	s.h = 0
	return nil
}

func (s *rosenbrockSession) SetState(y []float64) error {
	if !s.configured {
		return ErrNotConfigured
	}
	if len(y) != s.n {
		return fmt.Errorf("%w: state has %d values, want %d", ErrDimensionMismatch, len(y), s.n)
	}
	copy(s.y, y)
	s.f0Valid = false
	s.jacValid = false
	return nil
}

func (s *rosenbrockSession) State() []float64 { return s.y }
func (s *rosenbrockSession) Time() float64    { return s.t }
func (s *rosenbrockSession) Stats() Stats     { return s.stats }

func (s *rosenbrockSession) Close() {
	if s.ws != nil {
		s.owner.pool.Put(s.ws)
		s.ws = nil
	}
	s.configured = false
}

func (s *rosenbrockSession) Advance(target float64) (Flag, float64) {
	if !s.configured {
		s.log.Debug("advance on unconfigured session")
		return IllInput, s.t
	}
	if math.IsNaN(target) || target < s.t {
		s.log.Debugf("bad tout %g (t=%g)", target, s.t)
		return BadTout, s.t
	}

	stopping := false
	if s.hasStop && target >= s.tstop {
		target = s.tstop
		stopping = true
	}

	done := Success
	if stopping {
		done = TstopReturn
	}
	if target <= s.t {
		return done, s.t
	}

	if !s.f0Valid {
		s.rhs(s.t, s.y, s.ws.f0)
		if !finite(s.ws.f0) {
			s.log.Debugf("rhs not finite at t=%g", s.t)
			return RHSFailure, s.t
		}
		s.f0Valid = true
	}

	steps, errFails, convFails := 0, 0, 0
	for s.t < target {
		if s.maxSteps > 0 && steps >= s.maxSteps {
			s.log.Debugf("mxstep %d reached before t=%g (t=%g)", s.maxSteps, target, s.t)
			return TooMuchWork, s.t
		}
		steps++

		hmin := 16 * epsilon * math.Max(math.Abs(s.t), math.Abs(target))
		remaining := target - s.t
		if s.h == 0 {
			s.h = s.initialStep(remaining)
		}

		h := s.h
		last := false
		if h >= remaining-hmin {
			h = remaining
			last = true
		}

		errNorm, ok := s.step(h)
		if !ok {
			s.stats.Rejected++
			convFails++
			if convFails >= maxConvFails {
				s.log.Debugf("singular iteration matrix at t=%g, h=%g", s.t, h)
				return ConvFailure, s.t
			}
			s.h = h * 0.25
			continue
		}

		if !(errNorm <= 1) {
			s.stats.Rejected++
			errFails++
			fac := s.owner.minScale
			if !math.IsNaN(errNorm) && !math.IsInf(errNorm, 0) {
				fac = clamp(s.owner.safety*math.Pow(errNorm, -1.0/3.0), s.owner.minScale, 0.9)
			}
			s.h = h * fac
			if errFails >= maxErrFails || s.h < hmin {
				s.log.Debugf("error test failed %d times at t=%g, h=%g", errFails, s.t, s.h)
				return ErrTestFailure, s.t
			}
			continue
		}

		errFails, convFails = 0, 0
		if last {
			s.t = target
		} else {
			s.t += h
		}
		copy(s.y, s.ws.ynew)
		copy(s.ws.f0, s.ws.f2)
		s.jacValid = false
		s.stats.Steps++

		fac := s.owner.maxScale
		if errNorm > 0 {
			fac = clamp(s.owner.safety*math.Pow(errNorm, -1.0/3.0), s.owner.minScale, s.owner.maxScale)
		}
		s.h = h * fac
	}

	return done, s.t
}

// step attempts one Rosenbrock step of size h from (s.t, s.y). The candidate
// is left in ws.ynew and f(t+h, ynew) in ws.f2. ok is false when W could
// not be factorised.
func (s *rosenbrockSession) step(h float64) (errNorm float64, ok bool) {
	ws := s.ws
	n := s.n
	t := s.t

	if !s.jacValid {
		s.evalJacobian()
		s.jacValid = true
	}

	hd := h * rosD
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := -hd * ws.jac[i*n+j]
			if i == j {
				v += 1
			}
			ws.w.Set(i, j, v)
		}
	}
	ws.lu.Factorize(ws.w)
	s.stats.LUDecomps++
	if c := ws.lu.Cond(); math.IsNaN(c) || c > condLimit {
		return 0, false
	}

	for i := 0; i < n; i++ {
		ws.rhs[i] = ws.f0[i] + hd*ws.dfdt[i]
	}
	if err := ws.lu.SolveVecTo(ws.k1V, false, ws.rhsV); err != nil {
		return 0, false
	}

	for i := 0; i < n; i++ {
		ws.scratch[i] = s.y[i] + 0.5*h*ws.k1[i]
	}
	s.rhs(t+0.5*h, ws.scratch, ws.f1)

	for i := 0; i < n; i++ {
		ws.rhs[i] = ws.f1[i] - ws.k1[i]
	}
	if err := ws.lu.SolveVecTo(ws.k2V, false, ws.rhsV); err != nil {
		return 0, false
	}
	for i := 0; i < n; i++ {
		ws.k2[i] += ws.k1[i]
		ws.ynew[i] = s.y[i] + h*ws.k2[i]
	}
	s.rhs(t+h, ws.ynew, ws.f2)
	if !finite(ws.ynew) || !finite(ws.f2) {
		return math.Inf(1), true
	}

	for i := 0; i < n; i++ {
		ws.rhs[i] = ws.f2[i] - rosE32*(ws.k2[i]-ws.f1[i]) - 2*(ws.k1[i]-ws.f0[i]) + hd*ws.dfdt[i]
	}
	if err := ws.lu.SolveVecTo(ws.k3V, false, ws.rhsV); err != nil {
		return 0, false
	}

	sum := 0.0
	for i := 0; i < n; i++ {
		e := h / 6.0 * (ws.k1[i] - 2*ws.k2[i] + ws.k3[i])
		w := s.tol.RelTol*math.Max(math.Abs(s.y[i]), math.Abs(ws.ynew[i])) + s.tol.AbsTol
		ws.errv[i] = e
		sum += (e / w) * (e / w)
	}
	return math.Sqrt(sum / float64(n)), true
}

// evalJacobian fills ws.jac and ws.dfdt at (s.t, s.y). ws.f0 must be current.
func (s *rosenbrockSession) evalJacobian() {
	ws := s.ws
	if s.jacobian != nil {
		s.jacobian.Jacobian(s.t, s.y, s.params, ws.jac)
	} else {
		finiteDiffJacobian(s.model, s.t, s.y, s.params, ws.f0, ws.jac, ws.scratch, ws.fy)
		s.stats.RHSEvals += s.n
	}
	s.stats.JacEvals++

	delta := math.Sqrt(epsilon) * math.Max(math.Abs(s.t), 1.0)
	s.rhs(s.t+delta, s.y, ws.fy)
	for i := range ws.dfdt {
		ws.dfdt[i] = (ws.fy[i] - ws.f0[i]) / delta
	}
}

// initialStep picks a first step from the scaled size of y and f(t, y).
func (s *rosenbrockSession) initialStep(span float64) float64 {
	d0, d1 := 0.0, 0.0
	for i := 0; i < s.n; i++ {
		w := s.tol.RelTol*math.Abs(s.y[i]) + s.tol.AbsTol
		d0 += (s.y[i] / w) * (s.y[i] / w)
		d1 += (s.ws.f0[i] / w) * (s.ws.f0[i] / w)
	}
	d0 = math.Sqrt(d0 / float64(s.n))
	d1 = math.Sqrt(d1 / float64(s.n))

	h := 1e-6
	if d0 >= 1e-5 && d1 >= 1e-5 {
		h = 0.01 * d0 / d1
	}
	if d1 < 1e-5 {
		// Nothing is moving yet; let the error test find the scale.
		h = 0.1 * span
	}
	return math.Min(h, span)
}

func (s *rosenbrockSession) rhs(t float64, y, dy []float64) {
	s.model.RHS(t, y, s.params, dy)
	s.stats.RHSEvals++
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
