package models

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

var ErrNetwork = errors.New("models: invalid reaction network")

// NetworkSpec is the YAML form of a mass-action reaction network.
//
//	name: decay
//	species: [A, B]
//	rates: [k]
//	reactions:
//	  - reactants: {A: 1}
//	    products: {B: 1}
//	    rate: k
//
// rates may be omitted, in which case they are collected from the reactions
// in order of first use.
type NetworkSpec struct {
	Name      string         `yaml:"name"`
	Species   []string       `yaml:"species"`
	Rates     []string       `yaml:"rates,omitempty"`
	Reactions []ReactionSpec `yaml:"reactions"`
}

type ReactionSpec struct {
	Reactants map[string]int `yaml:"reactants,omitempty"`
	Products  map[string]int `yaml:"products,omitempty"`
	Rate      string         `yaml:"rate"`
}

type term struct {
	species int
	order   int
}

type reaction struct {
	reactants []term
	// change is the net stoichiometry, sparse over the species it touches.
	change []term
	rate   int
}

// MassAction is a reaction network whose right-hand side follows the law
// of mass action: every reaction fires at rate k * prod(y_i^order_i).
type MassAction struct {
	name      string
	species   []string
	rates     []string
	reactions []reaction
}

// LoadMassAction reads a network from a YAML file.
func LoadMassAction(path string) (*MassAction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseMassAction(data)
}

func ParseMassAction(data []byte) (*MassAction, error) {
	var spec NetworkSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return NewMassAction(spec)
}

func NewMassAction(spec NetworkSpec) (*MassAction, error) {
	if len(spec.Species) == 0 {
		return nil, fmt.Errorf("%w: no species", ErrNetwork)
	}
	if len(spec.Reactions) == 0 {
		return nil, fmt.Errorf("%w: no reactions", ErrNetwork)
	}
	name := spec.Name
	if name == "" {
		name = "mass_action"
	}

	speciesIdx, err := indexNames("species", spec.Species)
	if err != nil {
		return nil, err
	}

	rates := append([]string(nil), spec.Rates...)
	if len(rates) == 0 {
		seen := make(map[string]bool)
		for _, r := range spec.Reactions {
			if r.Rate != "" && !seen[r.Rate] {
				seen[r.Rate] = true
				rates = append(rates, r.Rate)
			}
		}
	}
	rateIdx, err := indexNames("rate", rates)
	if err != nil {
		return nil, err
	}

	m := &MassAction{
		name:      name,
		species:   append([]string(nil), spec.Species...),
		rates:     rates,
		reactions: make([]reaction, 0, len(spec.Reactions)),
	}
	for i, rs := range spec.Reactions {
		r, err := buildReaction(rs, speciesIdx, rateIdx)
		if err != nil {
			return nil, fmt.Errorf("reaction %d: %w", i, err)
		}
		m.reactions = append(m.reactions, r)
	}
	return m, nil
}

func indexNames(kind string, names []string) (map[string]int, error) {
	idx := make(map[string]int, len(names))
	for i, n := range names {
		if n == "" {
			return nil, fmt.Errorf("%w: empty %s name", ErrNetwork, kind)
		}
		if _, dup := idx[n]; dup {
			return nil, fmt.Errorf("%w: duplicate %s %q", ErrNetwork, kind, n)
		}
		idx[n] = i
	}
	return idx, nil
}

func buildReaction(rs ReactionSpec, speciesIdx, rateIdx map[string]int) (reaction, error) {
	k, ok := rateIdx[rs.Rate]
	if !ok {
		return reaction{}, fmt.Errorf("%w: unknown rate %q", ErrNetwork, rs.Rate)
	}

	reactants, err := terms(rs.Reactants, speciesIdx)
	if err != nil {
		return reaction{}, err
	}
	products, err := terms(rs.Products, speciesIdx)
	if err != nil {
		return reaction{}, err
	}

	net := make(map[int]int)
	for _, t := range reactants {
		net[t.species] -= t.order
	}
	for _, t := range products {
		net[t.species] += t.order
	}
	change := make([]term, 0, len(net))
	for s, d := range net {
		if d != 0 {
			change = append(change, term{species: s, order: d})
		}
	}
	sort.Slice(change, func(i, j int) bool { return change[i].species < change[j].species })

	return reaction{reactants: reactants, change: change, rate: k}, nil
}

func terms(stoich map[string]int, speciesIdx map[string]int) ([]term, error) {
	out := make([]term, 0, len(stoich))
	for name, n := range stoich {
		i, ok := speciesIdx[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown species %q", ErrNetwork, name)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: negative stoichiometry %d for %q", ErrNetwork, n, name)
		}
		if n > 0 {
			out = append(out, term{species: i, order: n})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].species < out[j].species })
	return out, nil
}

func (m *MassAction) Name() string           { return m.name }
func (m *MassAction) Species() int           { return len(m.species) }
func (m *MassAction) Params() int            { return len(m.rates) }
func (m *MassAction) SpeciesNames() []string { return append([]string(nil), m.species...) }
func (m *MassAction) ParamNames() []string   { return append([]string(nil), m.rates...) }

func (m *MassAction) RHS(_ float64, y, p, dy []float64) {
	for i := range dy {
		dy[i] = 0
	}
	for _, r := range m.reactions {
		v := p[r.rate]
		for _, t := range r.reactants {
			v *= ipow(y[t.species], t.order)
		}
		for _, c := range r.change {
			dy[c.species] += float64(c.order) * v
		}
	}
}

func (m *MassAction) Jacobian(_ float64, y, p, jac []float64) {
	n := len(m.species)
	for i := range jac {
		jac[i] = 0
	}
	for _, r := range m.reactions {
		for j, wrt := range r.reactants {
			// ∂v/∂y_wrt
			dv := p[r.rate] * float64(wrt.order) * ipow(y[wrt.species], wrt.order-1)
			for l, t := range r.reactants {
				if l != j {
					dv *= ipow(y[t.species], t.order)
				}
			}
			for _, c := range r.change {
				jac[c.species*n+wrt.species] += float64(c.order) * dv
			}
		}
	}
}

func ipow(x float64, n int) float64 {
	switch n {
	case 0:
		return 1
	case 1:
		return x
	case 2:
		return x * x
	default:
		return math.Pow(x, float64(n))
	}
}
