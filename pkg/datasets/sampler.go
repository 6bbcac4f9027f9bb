package datasets

import (
	"fmt"
	"math/rand/v2"

	"github.com/meridian-ml/protonet/pkg/model"
)

// Sampler draws N-way K-shot episodes from a dataset. Episode labels are
// remapped to [0, way) in class-pick order, so every episode covers its
// class range with exactly shot support and query query samples per class.
type Sampler struct {
	ds    Dataset
	way   int
	shot  int
	query int
	rng   *rand.Rand
}

func NewSampler(ds Dataset, way, shot, query int, seed uint64) (*Sampler, error) {
	if way < 2 {
		return nil, fmt.Errorf("need at least 2 ways, got %d", way)
	}
	if shot < 1 || query < 1 {
		return nil, fmt.Errorf("shot and query counts must be positive, got %d and %d", shot, query)
	}
	if way > ds.NumClasses() {
		return nil, fmt.Errorf("cannot sample %d ways from %d classes", way, ds.NumClasses())
	}
	for c, indices := range ds.ClassIndices() {
		if len(indices) < shot+query {
			return nil, fmt.Errorf("class %d has %d samples, need at least %d", c, len(indices), shot+query)
		}
	}
	return &Sampler{
		ds:    ds,
		way:   way,
		shot:  shot,
		query: query,
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

func (s *Sampler) Way() int {
	return s.way
}

func (s *Sampler) Shot() int {
	return s.shot
}

func (s *Sampler) Query() int {
	return s.query
}

func (s *Sampler) Sample() (model.Episode, error) {
	byClass := s.ds.ClassIndices()
	classes := s.rng.Perm(s.ds.NumClasses())[:s.way]

	supportIdx := make([]int, 0, s.way*s.shot)
	supportLabels := make([]int, 0, s.way*s.shot)
	queryIdx := make([]int, 0, s.way*s.query)
	queryLabels := make([]int, 0, s.way*s.query)

	for label, class := range classes {
		indices := byClass[class]
		perm := s.rng.Perm(len(indices))
		for _, p := range perm[:s.shot] {
			supportIdx = append(supportIdx, indices[p])
			supportLabels = append(supportLabels, label)
		}
		for _, p := range perm[s.shot : s.shot+s.query] {
			queryIdx = append(queryIdx, indices[p])
			queryLabels = append(queryLabels, label)
		}
	}

	supportImages, err := s.ds.Batch(supportIdx)
	if err != nil {
		return model.Episode{}, fmt.Errorf("assembling support batch: %v", err)
	}
	queryImages, err := s.ds.Batch(queryIdx)
	if err != nil {
		return model.Episode{}, fmt.Errorf("assembling query batch: %v", err)
	}

	return model.Episode{
		SupportImages: supportImages,
		SupportLabels: supportLabels,
		QueryImages:   queryImages,
		QueryLabels:   queryLabels,
	}, nil
}
