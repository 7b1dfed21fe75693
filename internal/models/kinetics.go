package models

// Conversion is the irreversible first-order reaction A -> B.
type Conversion struct{}

func NewConversion() *Conversion { return &Conversion{} }

func (c *Conversion) Name() string { return "conversion" }
func (c *Conversion) Species() int { return 2 }
func (c *Conversion) Params() int  { return 1 }

func (c *Conversion) SpeciesNames() []string { return []string{"A", "B"} }
func (c *Conversion) ParamNames() []string   { return []string{"k"} }

func (c *Conversion) RHS(_ float64, y, p, dy []float64) {
	v := p[0] * y[0]
	dy[0] = -v
	dy[1] = v
}

func (c *Conversion) Jacobian(_ float64, _, p, jac []float64) {
	jac[0], jac[1] = -p[0], 0
	jac[2], jac[3] = p[0], 0
}

// Reversible is A <-> B with forward rate kf and reverse rate kr.
type Reversible struct{}

func NewReversible() *Reversible { return &Reversible{} }

func (r *Reversible) Name() string { return "reversible" }
func (r *Reversible) Species() int { return 2 }
func (r *Reversible) Params() int  { return 2 }

func (r *Reversible) SpeciesNames() []string { return []string{"A", "B"} }
func (r *Reversible) ParamNames() []string   { return []string{"kf", "kr"} }

func (r *Reversible) RHS(_ float64, y, p, dy []float64) {
	v := p[0]*y[0] - p[1]*y[1]
	dy[0] = -v
	dy[1] = v
}

func (r *Reversible) Jacobian(_ float64, _, p, jac []float64) {
	jac[0], jac[1] = -p[0], p[1]
	jac[2], jac[3] = p[0], -p[1]
}

// Equilibrium returns the steady state reached from a total amount of
// A plus B.
func (r *Reversible) Equilibrium(total float64, p []float64) []float64 {
	b := total * p[0] / (p[0] + p[1])
	return []float64{total - b, b}
}

// Robertson is the classic stiff chemical kinetics problem:
//
//	A -> B          (k1)
//	B + B -> C + B  (k2)
//	B + C -> A + C  (k3)
type Robertson struct{}

const (
	RobertsonK1 = 0.04
	RobertsonK2 = 3e7
	RobertsonK3 = 1e4
)

func NewRobertson() *Robertson { return &Robertson{} }

func (r *Robertson) Name() string { return "robertson" }
func (r *Robertson) Species() int { return 3 }
func (r *Robertson) Params() int  { return 3 }

func (r *Robertson) SpeciesNames() []string { return []string{"A", "B", "C"} }
func (r *Robertson) ParamNames() []string   { return []string{"k1", "k2", "k3"} }

func (r *Robertson) RHS(_ float64, y, p, dy []float64) {
	k1, k2, k3 := p[0], p[1], p[2]
	dy[0] = -k1*y[0] + k3*y[1]*y[2]
	dy[2] = k2 * y[1] * y[1]
	dy[1] = -dy[0] - dy[2]
}

func (r *Robertson) Jacobian(_ float64, y, p, jac []float64) {
	k1, k2, k3 := p[0], p[1], p[2]
	jac[0], jac[1], jac[2] = -k1, k3*y[2], k3*y[1]
	jac[3], jac[4], jac[5] = k1, -k3*y[2]-2*k2*y[1], -k3*y[1]
	jac[6], jac[7], jac[8] = 0, 2*k2*y[1], 0
}

// MichaelisMenten is the enzyme mechanism E + S <-> C -> E + P with binding
// rate kon, unbinding rate koff and catalytic rate kcat.
type MichaelisMenten struct{}

func NewMichaelisMenten() *MichaelisMenten { return &MichaelisMenten{} }

func (m *MichaelisMenten) Name() string { return "michaelis_menten" }
func (m *MichaelisMenten) Species() int { return 4 }
func (m *MichaelisMenten) Params() int  { return 3 }

func (m *MichaelisMenten) SpeciesNames() []string { return []string{"E", "S", "C", "P"} }
func (m *MichaelisMenten) ParamNames() []string   { return []string{"kon", "koff", "kcat"} }

func (m *MichaelisMenten) RHS(_ float64, y, p, dy []float64) {
	e, s, c := y[0], y[1], y[2]
	bind := p[0] * e * s
	unbind := p[1] * c
	cat := p[2] * c

	dy[0] = -bind + unbind + cat
	dy[1] = -bind + unbind
	dy[2] = bind - unbind - cat
	dy[3] = cat
}

func (m *MichaelisMenten) Jacobian(_ float64, y, p, jac []float64) {
	kon, koff, kcat := p[0], p[1], p[2]
	e, s := y[0], y[1]
	row := func(i int, a, b, c, d float64) {
		jac[i*4], jac[i*4+1], jac[i*4+2], jac[i*4+3] = a, b, c, d
	}
	row(0, -kon*s, -kon*e, koff+kcat, 0)
	row(1, -kon*s, -kon*e, koff, 0)
	row(2, kon*s, kon*e, -koff-kcat, 0)
	row(3, 0, 0, kcat, 0)
}
