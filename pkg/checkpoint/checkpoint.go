// Package checkpoint serializes named parameter tensors to JSON files.
// Values are float64 end to end, so a save/load round trip is exact.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"gorgonia.org/tensor"
)

const Version = 1

type ParamTensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

type Metadata struct {
	Framework   string    `json:"framework"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
}

type Checkpoint struct {
	Metadata Metadata      `json:"metadata"`
	Params   []ParamTensor `json:"params"`
}

// FromStateDict snapshots a state dict into a checkpoint, params sorted by
// name. Data is copied, not aliased.
func FromStateDict(state map[string]*tensor.Dense, description string) *Checkpoint {
	names := make([]string, 0, len(state))
	for name := range state {
		names = append(names, name)
	}
	sort.Strings(names)

	c := &Checkpoint{
		Metadata: Metadata{
			Framework:   "protonet",
			Version:     Version,
			CreatedAt:   time.Now().UTC(),
			Description: description,
		},
	}
	for _, name := range names {
		t := state[name]
		src := t.Data().([]float64)
		data := make([]float64, len(src))
		copy(data, src)
		shape := make([]int, len(t.Shape()))
		copy(shape, t.Shape())
		c.Params = append(c.Params, ParamTensor{Name: name, Shape: shape, Data: data})
	}
	return c
}

// StateDict rebuilds the parameter tensors, validating that each data
// length matches its shape.
func (c *Checkpoint) StateDict() (map[string]*tensor.Dense, error) {
	state := make(map[string]*tensor.Dense, len(c.Params))
	for _, p := range c.Params {
		if len(p.Shape) == 0 {
			return nil, fmt.Errorf("parameter %s has no shape", p.Name)
		}
		size := 1
		for _, d := range p.Shape {
			size *= d
		}
		if size != len(p.Data) {
			return nil, fmt.Errorf("parameter %s: shape %v holds %d values, got %d", p.Name, p.Shape, size, len(p.Data))
		}
		backing := make([]float64, len(p.Data))
		copy(backing, p.Data)
		state[p.Name] = tensor.New(
			tensor.WithShape(p.Shape...),
			tensor.Of(tensor.Float64),
			tensor.WithBacking(backing),
		)
	}
	return state, nil
}

func Save(c *Checkpoint, path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing checkpoint: %v", err)
	}
	return nil
}

func Load(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint: %v", err)
	}
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding checkpoint: %v", err)
	}
	return &c, nil
}
