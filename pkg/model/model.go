package model

import (
	"fmt"
	"log"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"

	"github.com/meridian-ml/protonet/pkg/checkpoint"
)

type Config struct {
	Depths         []int
	Classifier     string
	NumClasses     int
	Dropout        float64
	InitialPool    bool
	Pretrained     bool
	PretrainedPath string
}

// Model wraps the embedding backbone with an optional classifier head. With
// no recognized classifier kind the model degrades to embedding-only mode:
// Forward returns embeddings and the feature bank carries no weight rows.
type Model struct {
	backbone   *Backbone
	head       Head
	numClasses int
	dropout    float64
	training   bool
}

func New(cfg Config) (*Model, error) {
	if cfg.Dropout < 0 || cfg.Dropout > 1 {
		return nil, fmt.Errorf("dropout probability %v out of range [0, 1]", cfg.Dropout)
	}
	if (cfg.Classifier == "linear" || cfg.Classifier == "cosine") && cfg.NumClasses <= 0 {
		return nil, fmt.Errorf("classifier %q requires a positive number of classes, got %d", cfg.Classifier, cfg.NumClasses)
	}

	backbone, err := newBackbone(BackboneConfig{
		Depths:      cfg.Depths,
		InitialPool: cfg.InitialPool,
	})
	if err != nil {
		return nil, err
	}

	m := &Model{
		backbone:   backbone,
		head:       newHead(cfg.Classifier, backbone.OutDim(), cfg.NumClasses),
		numClasses: cfg.NumClasses,
		dropout:    cfg.Dropout,
	}

	if cfg.Pretrained {
		ckpt, err := checkpoint.Load(cfg.PretrainedPath)
		if err != nil {
			return nil, fmt.Errorf("loading pretrained weights: %v", err)
		}
		state, err := ckpt.StateDict()
		if err != nil {
			return nil, fmt.Errorf("loading pretrained weights: %v", err)
		}
		if err := m.LoadParameters(state, false); err != nil {
			return nil, err
		}
		log.Printf("loaded pretrained weights from %s", cfg.PretrainedPath)
	}

	return m, nil
}

// ResNet18 builds the 18-layer variant: four stages of two basic blocks.
func ResNet18(cfg Config) (*Model, error) {
	cfg.Depths = []int{2, 2, 2, 2}
	return New(cfg)
}

func (m *Model) Dim() int {
	return m.backbone.OutDim()
}

func (m *Model) NumClasses() int {
	return m.numClasses
}

func (m *Model) HasClassifier() bool {
	return m.head != nil
}

// SetTraining toggles training mode. Only dropout depends on it; batch norm
// always runs with stored running statistics.
func (m *Model) SetTraining(training bool) {
	m.training = training
}

// Embed maps a batch of images to embeddings. Dropout is never applied
// here.
func (m *Model) Embed(images *tensor.Dense) (*mat.Dense, error) {
	return m.backbone.Embed(images)
}

// Forward maps a batch of images to class scores, or to embeddings when no
// classifier is attached. Dropout applies to the embeddings before the
// head, and only in training mode.
func (m *Model) Forward(images *tensor.Dense) (*mat.Dense, error) {
	embeddings, err := m.backbone.Embed(images)
	if err != nil {
		return nil, err
	}
	if m.training && m.dropout > 0 {
		applyDropout(embeddings, m.dropout)
	}
	if m.head == nil {
		return embeddings, nil
	}
	return m.head.Scores(embeddings), nil
}

// SaveCheckpoint writes the current parameter state to path.
func (m *Model) SaveCheckpoint(path, description string) error {
	return checkpoint.Save(checkpoint.FromStateDict(m.StateDict(), description), path)
}

func applyDropout(embeddings *mat.Dense, p float64) {
	keep := 1 - p
	n, d := embeddings.Dims()
	for i := range n {
		for j := range d {
			if rand.Float64() < p {
				embeddings.Set(i, j, 0)
			} else {
				embeddings.Set(i, j, embeddings.At(i, j)/keep)
			}
		}
	}
}
