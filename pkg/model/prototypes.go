package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ComputePrototypes returns one row per class: the mean of all embedding
// rows carrying that class label. Every class in [0, numClasses) must have
// at least one sample, otherwise the mean is undefined and an error is
// returned.
func ComputePrototypes(embeddings *mat.Dense, labels []int, numClasses int) (*mat.Dense, error) {
	if numClasses <= 0 {
		return nil, fmt.Errorf("number of classes must be positive, got %d", numClasses)
	}
	n, d := embeddings.Dims()
	if n != len(labels) {
		return nil, fmt.Errorf("embeddings have %d rows but %d labels", n, len(labels))
	}

	prototypes := mat.NewDense(numClasses, d, nil)
	counts := make([]int, numClasses)
	for i, label := range labels {
		if label < 0 || label >= numClasses {
			return nil, fmt.Errorf("label %d out of range [0, %d)", label, numClasses)
		}
		counts[label]++
		row := embeddings.RawRowView(i)
		for j, v := range row {
			prototypes.Set(label, j, prototypes.At(label, j)+v)
		}
	}

	for c, count := range counts {
		if count == 0 {
			return nil, fmt.Errorf("class %d has no support samples", c)
		}
		for j := range d {
			prototypes.Set(c, j, prototypes.At(c, j)/float64(count))
		}
	}
	return prototypes, nil
}
