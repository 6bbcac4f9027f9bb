package eval

import (
	"fmt"
	"math"

	"github.com/jedib0t/go-pretty/v6/progress"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/meridian-ml/protonet/pkg/datasets"
	"github.com/meridian-ml/protonet/pkg/model"
)

// Run evaluates the model over freshly sampled episodes. Each episode
// builds class prototypes from the embedded support set and classifies
// every query embedding to its nearest prototype.
func Run(m *model.Model, sampler *datasets.Sampler, episodes int, pw progress.Writer) (*Metrics, error) {
	if episodes < 1 {
		return nil, fmt.Errorf("need at least one episode, got %d", episodes)
	}

	var tracker *progress.Tracker
	if pw != nil {
		tracker = &progress.Tracker{
			Message: "Evaluating episodes",
			Total:   int64(episodes),
			Units:   progress.UnitsDefault,
		}
		pw.AppendTracker(tracker)
		tracker.Start()
	}

	accuracies := make([]float64, 0, episodes)
	for range episodes {
		ep, err := sampler.Sample()
		if err != nil {
			return nil, err
		}
		acc, err := evaluateEpisode(m, ep, sampler.Way())
		if err != nil {
			return nil, err
		}
		accuracies = append(accuracies, acc)
		if tracker != nil {
			tracker.Increment(1)
		}
	}
	if tracker != nil {
		tracker.MarkAsDone()
	}

	return Summarize(accuracies, sampler.Way(), sampler.Shot(), sampler.Query()), nil
}

func evaluateEpisode(m *model.Model, ep model.Episode, way int) (float64, error) {
	support, err := m.Embed(ep.SupportImages)
	if err != nil {
		return 0, fmt.Errorf("embedding support set: %v", err)
	}
	prototypes, err := model.ComputePrototypes(support, ep.SupportLabels, way)
	if err != nil {
		return 0, err
	}
	query, err := m.Embed(ep.QueryImages)
	if err != nil {
		return 0, fmt.Errorf("embedding query set: %v", err)
	}

	correct := 0
	n, _ := query.Dims()
	for i := range n {
		if nearestPrototype(query.RawRowView(i), prototypes) == ep.QueryLabels[i] {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

func nearestPrototype(row []float64, prototypes *mat.Dense) int {
	c, _ := prototypes.Dims()
	best := 0
	bestDist := math.Inf(1)
	for j := range c {
		if d := floats.Distance(row, prototypes.RawRowView(j), 2); d < bestDist {
			bestDist = d
			best = j
		}
	}
	return best
}
