package model

import (
	"fmt"

	"gorgonia.org/tensor"
)

// Episode is one few-shot task: a labeled support batch to build prototypes
// from and a labeled query batch to evaluate against. Image batches are
// float64 tensors of shape (N, channels, H, W) with row-aligned labels.
type Episode struct {
	SupportImages *tensor.Dense
	SupportLabels []int
	QueryImages   *tensor.Dense
	QueryLabels   []int
}

func (e Episode) Validate() error {
	if e.SupportImages == nil || e.QueryImages == nil {
		return fmt.Errorf("episode is missing image batches")
	}
	if e.SupportImages.Dims() != 4 || e.QueryImages.Dims() != 4 {
		return fmt.Errorf("episode batches must be 4-dimensional")
	}
	if n := e.SupportImages.Shape()[0]; n != len(e.SupportLabels) {
		return fmt.Errorf("support batch has %d images but %d labels", n, len(e.SupportLabels))
	}
	if n := e.QueryImages.Shape()[0]; n != len(e.QueryLabels) {
		return fmt.Errorf("query batch has %d images but %d labels", n, len(e.QueryLabels))
	}
	return nil
}
