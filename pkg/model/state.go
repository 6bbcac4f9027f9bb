package model

import (
	"fmt"
	"log"
	"sort"

	"gorgonia.org/tensor"
)

// Parameters returns every learnable and tracked parameter in registration
// order: backbone weights first, then classifier-head parameters when a
// head is attached.
func (m *Model) Parameters() []*Param {
	params := make([]*Param, 0, len(m.backbone.params)+2)
	params = append(params, m.backbone.params...)
	if m.head != nil {
		params = append(params, m.head.Params()...)
	}
	return params
}

// StateDict returns the parameters keyed by name. The tensors are the live
// storage, not copies.
func (m *Model) StateDict() map[string]*tensor.Dense {
	state := make(map[string]*tensor.Dense)
	for _, p := range m.Parameters() {
		state[p.Name] = p.Value
	}
	return state
}

// LoadParameters copies matching entries of state into the model. In strict
// mode any unexpected name, missing name or shape mismatch is an error. In
// non-strict mode mismatches are skipped with a log line and everything
// that matches still loads.
func (m *Model) LoadParameters(state map[string]*tensor.Dense, strict bool) error {
	params := make(map[string]*Param)
	for _, p := range m.Parameters() {
		params[p.Name] = p
	}

	names := make([]string, 0, len(state))
	for name := range state {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		src := state[name]
		dst, ok := params[name]
		if !ok {
			if strict {
				return fmt.Errorf("unexpected parameter %s in state", name)
			}
			log.Printf("skipping unexpected parameter %s", name)
			continue
		}
		if src.Dtype() != tensor.Float64 || !dst.Value.Shape().Eq(src.Shape()) {
			if strict {
				return fmt.Errorf("shape mismatch for %s: have %v %v, want %v float64", name, src.Shape(), src.Dtype(), dst.Value.Shape())
			}
			log.Printf("skipping parameter %s: shape %v does not match %v", name, src.Shape(), dst.Value.Shape())
			continue
		}
		copy(dst.Value.Data().([]float64), src.Data().([]float64))
	}

	for _, p := range m.Parameters() {
		if _, ok := state[p.Name]; !ok {
			if strict {
				return fmt.Errorf("parameter %s missing from state", p.Name)
			}
			log.Printf("parameter %s missing from state, keeping initialization", p.Name)
		}
	}
	return nil
}
