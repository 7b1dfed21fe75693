package models

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/odesweep/internal/solver"
)

type jacobianModel interface {
	solver.Model
	solver.Jacobian
}

func numericJacobian(m solver.Model, y, p []float64) []float64 {
	n := m.Species()
	jac := make([]float64, n*n)
	plus := make([]float64, n)
	minus := make([]float64, n)
	fp := make([]float64, n)
	fm := make([]float64, n)
	for j := 0; j < n; j++ {
		h := 1e-6 * math.Max(1, math.Abs(y[j]))
		copy(plus, y)
		copy(minus, y)
		plus[j] += h
		minus[j] -= h
		m.RHS(0, plus, p, fp)
		m.RHS(0, minus, p, fm)
		for i := 0; i < n; i++ {
			jac[i*n+j] = (fp[i] - fm[i]) / (2 * h)
		}
	}
	return jac
}

func TestAnalyticJacobians(t *testing.T) {
	mm, err := LoadMassAction(filepath.Join("testdata", "michaelis_menten.yaml"))
	require.NoError(t, err)
	dimer, err := LoadMassAction(filepath.Join("testdata", "dimer.yaml"))
	require.NoError(t, err)

	tests := []struct {
		model jacobianModel
		y, p  []float64
	}{
		{NewConversion(), []float64{0.7, 0.3}, []float64{2.5}},
		{NewReversible(), []float64{0.7, 0.3}, []float64{1.5, 0.4}},
		{NewRobertson(), []float64{0.9, 3e-5, 0.1}, []float64{RobertsonK1, RobertsonK2, RobertsonK3}},
		{NewMichaelisMenten(), []float64{0.5, 2, 0.3, 0.1}, []float64{3, 0.5, 1.2}},
		{mm, []float64{0.5, 2, 0.3, 0.1}, []float64{3, 0.5, 1.2}},
		{dimer, []float64{1.3, 0.2}, []float64{0.8, 0.1}},
	}
	for _, tt := range tests {
		t.Run(tt.model.Name(), func(t *testing.T) {
			n := tt.model.Species()
			jac := make([]float64, n*n)
			tt.model.Jacobian(0, tt.y, tt.p, jac)
			want := numericJacobian(tt.model, tt.y, tt.p)
			for i := range jac {
				assert.InDelta(t, want[i], jac[i], 1e-4*math.Max(1, math.Abs(want[i])), "entry %d", i)
			}
		})
	}
}

func TestConservedTotals(t *testing.T) {
	dy := make([]float64, 4)

	NewConversion().RHS(0, []float64{1, 2}, []float64{3}, dy[:2])
	assert.InDelta(t, 0, dy[0]+dy[1], 1e-12)

	NewReversible().RHS(0, []float64{1, 2}, []float64{3, 0.5}, dy[:2])
	assert.InDelta(t, 0, dy[0]+dy[1], 1e-12)

	NewRobertson().RHS(0, []float64{0.9, 1e-4, 0.1}, []float64{RobertsonK1, RobertsonK2, RobertsonK3}, dy[:3])
	assert.InDelta(t, 0, dy[0]+dy[1]+dy[2], 1e-9)

	// Enzyme and substrate totals.
	NewMichaelisMenten().RHS(0, []float64{0.5, 2, 0.3, 0.1}, []float64{3, 0.5, 1.2}, dy)
	assert.InDelta(t, 0, dy[0]+dy[2], 1e-12)
	assert.InDelta(t, 0, dy[1]+dy[2]+dy[3], 1e-12)
}

func TestMassActionMatchesBuiltin(t *testing.T) {
	net, err := LoadMassAction(filepath.Join("testdata", "michaelis_menten.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "mm_network", net.Name())
	assert.Equal(t, []string{"E", "S", "C", "P"}, net.SpeciesNames())
	assert.Equal(t, []string{"kon", "koff", "kcat"}, net.ParamNames())

	y := []float64{0.4, 1.7, 0.25, 0.6}
	p := []float64{2, 0.3, 0.9}
	got := make([]float64, 4)
	want := make([]float64, 4)
	net.RHS(0, y, p, got)
	NewMichaelisMenten().RHS(0, y, p, want)
	assert.InDeltaSlice(t, want, got, 1e-12)
}

func TestMassActionHigherOrder(t *testing.T) {
	net, err := LoadMassAction(filepath.Join("testdata", "dimer.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "mass_action", net.Name())
	assert.Equal(t, []string{"kd", "ku"}, net.ParamNames(), "rates collected in order of use")

	dy := make([]float64, 2)
	net.RHS(0, []float64{2, 0.5}, []float64{0.8, 0.1}, dy)
	fwd := 0.8 * 2 * 2
	rev := 0.1 * 0.5
	assert.InDelta(t, -2*fwd+2*rev, dy[0], 1e-12)
	assert.InDelta(t, fwd-rev, dy[1], 1e-12)
}

func TestParseMassActionErrors(t *testing.T) {
	tests := map[string]string{
		"no species":      "reactions: [{reactants: {A: 1}, rate: k}]",
		"no reactions":    "species: [A]",
		"unknown species": "species: [A]\nreactions: [{reactants: {X: 1}, rate: k}]",
		"unknown rate":    "species: [A]\nrates: [k]\nreactions: [{reactants: {A: 1}, rate: q}]",
		"duplicate":       "species: [A, A]\nreactions: [{reactants: {A: 1}, rate: k}]",
		"negative":        "species: [A]\nreactions: [{reactants: {A: -1}, rate: k}]",
		"missing rate":    "species: [A]\nreactions: [{reactants: {A: 1}}]",
		"bad yaml":        "species: [A\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMassAction([]byte(doc))
			assert.ErrorIs(t, err, ErrNetwork)
		})
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"conversion", "michaelis_menten", "reversible", "robertson"}, r.List())

	for _, name := range r.List() {
		m, err := r.Get(name)
		require.NoError(t, err)
		assert.Equal(t, name, m.Name())
		_, ok := m.(solver.Jacobian)
		assert.True(t, ok, "%s has an analytic Jacobian", name)
		species, params := Names(m)
		assert.Len(t, species, m.Species())
		assert.Len(t, params, m.Params())
	}

	_, err := r.Get("pendulum")
	assert.Error(t, err)

	m, err := r.Resolve(filepath.Join("testdata", "dimer.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 2, m.Species())

	r.Register("custom", func() solver.Model { return NewConversion() })
	assert.Contains(t, r.List(), "custom")
}

func TestNamesFallback(t *testing.T) {
	species, params := Names(struct{ solver.Model }{NewRobertson()})
	assert.Equal(t, []string{"y0", "y1", "y2"}, species)
	assert.Equal(t, []string{"p0", "p1", "p2"}, params)
}

func TestReversibleReachesEquilibrium(t *testing.T) {
	m := NewReversible()
	p := []float64{2, 0.5}
	sess, err := solver.NewRosenbrock().NewSession(m.Species(), nil)
	require.NoError(t, err)
	defer sess.Close()

	require.NoError(t, sess.Configure(m, p, []float64{1, 0}, solver.Tolerances{AbsTol: 1e-10, RelTol: 1e-8}))
	sess.SetStopTime(20)
	sess.SetMaxSteps(10000)
	flag, _ := sess.Advance(20)
	require.True(t, flag.OK())
	assert.InDeltaSlice(t, m.Equilibrium(1, p), sess.State(), 1e-6)
}
