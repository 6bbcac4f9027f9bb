package model

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

const normEpsilon = 1e-12

// Head maps a batch of embeddings to class scores. A nil Head means the
// model runs in embedding-only mode.
type Head interface {
	Scores(embeddings *mat.Dense) *mat.Dense
	// WeightRows returns the learned reference vectors, one row per class.
	WeightRows() *mat.Dense
	Params() []*Param
}

func newHead(kind string, dim, classes int) Head {
	switch kind {
	case "linear":
		return NewLinearHead(dim, classes)
	case "cosine":
		return NewCosineHead(dim, classes)
	default:
		return nil
	}
}

// LinearHead scores embeddings with an affine transform E*W + b.
// The weight is stored (dim, classes) so WeightRows is a column read.
type LinearHead struct {
	dim     int
	classes int
	weight  *tensor.Dense
	bias    *tensor.Dense
}

func NewLinearHead(dim, classes int) *LinearHead {
	bound := 1.0 / math.Sqrt(float64(dim))
	weight := make([]float64, dim*classes)
	for i := range weight {
		weight[i] = (rand.Float64()*2 - 1) * bound
	}
	bias := make([]float64, classes)
	for i := range bias {
		bias[i] = (rand.Float64()*2 - 1) * bound
	}
	return &LinearHead{
		dim:     dim,
		classes: classes,
		weight:  tensor.New(tensor.WithShape(dim, classes), tensor.Of(tensor.Float64), tensor.WithBacking(weight)),
		bias:    tensor.New(tensor.WithShape(classes), tensor.Of(tensor.Float64), tensor.WithBacking(bias)),
	}
}

func (h *LinearHead) Scores(embeddings *mat.Dense) *mat.Dense {
	n, _ := embeddings.Dims()
	weight := mat.NewDense(h.dim, h.classes, h.weight.Data().([]float64))
	var scores mat.Dense
	scores.Mul(embeddings, weight)
	bias := h.bias.Data().([]float64)
	for i := range n {
		for j := range h.classes {
			scores.Set(i, j, scores.At(i, j)+bias[j])
		}
	}
	return &scores
}

func (h *LinearHead) WeightRows() *mat.Dense {
	return weightRows(h.weight.Data().([]float64), h.dim, h.classes)
}

func (h *LinearHead) Params() []*Param {
	return []*Param{
		{Name: "cls_fn.weight", Value: h.weight},
		{Name: "cls_fn.bias", Value: h.bias},
	}
}

// CosineHead scores embeddings by scaled cosine similarity against learned
// per-class reference vectors: scale * normalize(E) * normalize_cols(W).
type CosineHead struct {
	dim     int
	classes int
	weight  *tensor.Dense
	scale   *tensor.Dense
}

func NewCosineHead(dim, classes int) *CosineHead {
	std := math.Sqrt(2.0 / float64(classes))
	weight := make([]float64, dim*classes)
	for i := range weight {
		weight[i] = rand.NormFloat64() * std
	}
	return &CosineHead{
		dim:     dim,
		classes: classes,
		weight:  tensor.New(tensor.WithShape(dim, classes), tensor.Of(tensor.Float64), tensor.WithBacking(weight)),
		scale:   tensor.New(tensor.WithShape(1), tensor.Of(tensor.Float64), tensor.WithBacking([]float64{10.0})),
	}
}

func (h *CosineHead) Scale() float64 {
	return h.scale.Data().([]float64)[0]
}

func (h *CosineHead) Scores(embeddings *mat.Dense) *mat.Dense {
	n, d := embeddings.Dims()

	normalized := mat.NewDense(n, d, nil)
	for i := range n {
		row := embeddings.RawRowView(i)
		norm := floats.Norm(row, 2)
		if norm < normEpsilon {
			norm = normEpsilon
		}
		for j, v := range row {
			normalized.Set(i, j, v/norm)
		}
	}

	weight := h.weight.Data().([]float64)
	refs := mat.NewDense(h.dim, h.classes, nil)
	for c := range h.classes {
		var sum float64
		for j := range h.dim {
			v := weight[j*h.classes+c]
			sum += v * v
		}
		norm := math.Sqrt(sum)
		if norm < normEpsilon {
			norm = normEpsilon
		}
		for j := range h.dim {
			refs.Set(j, c, weight[j*h.classes+c]/norm)
		}
	}

	var scores mat.Dense
	scores.Mul(normalized, refs)
	scores.Scale(h.Scale(), &scores)
	return &scores
}

func (h *CosineHead) WeightRows() *mat.Dense {
	return weightRows(h.weight.Data().([]float64), h.dim, h.classes)
}

func (h *CosineHead) Params() []*Param {
	return []*Param{
		{Name: "cls_fn.weight", Value: h.weight},
		{Name: "cls_fn.scale", Value: h.scale},
	}
}

// weightRows transposes a row-major (dim, classes) weight into one row per
// class.
func weightRows(weight []float64, dim, classes int) *mat.Dense {
	rows := mat.NewDense(classes, dim, nil)
	for c := range classes {
		for j := range dim {
			rows.Set(c, j, weight[j*classes+c])
		}
	}
	return rows
}
