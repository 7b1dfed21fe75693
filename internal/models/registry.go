package models

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/san-kum/odesweep/internal/solver"
)

type Registry struct {
	models map[string]func() solver.Model
}

func NewRegistry() *Registry {
	r := &Registry{
		models: make(map[string]func() solver.Model),
	}

	r.models["conversion"] = func() solver.Model { return NewConversion() }
	r.models["reversible"] = func() solver.Model { return NewReversible() }
	r.models["robertson"] = func() solver.Model { return NewRobertson() }
	r.models["michaelis_menten"] = func() solver.Model { return NewMichaelisMenten() }

	return r
}

func (r *Registry) Register(name string, fn func() solver.Model) {
	r.models[name] = fn
}

func (r *Registry) Get(name string) (solver.Model, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	return fn(), nil
}

// Resolve returns a registered model by name, or loads a mass-action
// network when ref points at a YAML file.
func (r *Registry) Resolve(ref string) (solver.Model, error) {
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".yaml", ".yml":
		return LoadMassAction(ref)
	}
	return r.Get(ref)
}

func (r *Registry) List() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Names returns species and parameter labels, falling back to y0.. and
// p0.. for models that do not name them.
func Names(m solver.Model) (species, params []string) {
	if l, ok := m.(solver.Labeled); ok {
		return l.SpeciesNames(), l.ParamNames()
	}
	species = make([]string, m.Species())
	for i := range species {
		species[i] = fmt.Sprintf("y%d", i)
	}
	params = make([]string, m.Params())
	for i := range params {
		params[i] = fmt.Sprintf("p%d", i)
	}
	return species, params
}
