package eval

import (
	"fmt"
	"io"
	"math"

	"github.com/jedib0t/go-pretty/v6/table"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metrics aggregates per-episode query accuracies from an evaluation run.
type Metrics struct {
	Episodes int
	Way      int
	Shot     int
	Query    int

	Accuracies []float64

	Mean   float64
	StdDev float64
	CI95   float64
	Min    float64
	Max    float64
}

// Summarize computes the accuracy statistics for a run. CI95 is the
// standard few-shot confidence interval 1.96*sigma/sqrt(n).
func Summarize(accuracies []float64, way, shot, query int) *Metrics {
	m := &Metrics{
		Episodes:   len(accuracies),
		Way:        way,
		Shot:       shot,
		Query:      query,
		Accuracies: accuracies,
	}
	if len(accuracies) == 0 {
		return m
	}
	m.Mean = stat.Mean(accuracies, nil)
	if len(accuracies) > 1 {
		m.StdDev = stat.StdDev(accuracies, nil)
	}
	m.CI95 = 1.96 * m.StdDev / math.Sqrt(float64(len(accuracies)))
	m.Min = floats.Min(accuracies)
	m.Max = floats.Max(accuracies)
	return m
}

func (m Metrics) Write(w io.Writer) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Few-Shot Evaluation")
	t.AppendRows([]table.Row{
		{"Episodes", fmt.Sprintf("%d", m.Episodes)},
		{"Way", fmt.Sprintf("%d", m.Way)},
		{"Shot", fmt.Sprintf("%d", m.Shot)},
		{"Query", fmt.Sprintf("%d", m.Query)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Accuracy", fmt.Sprintf("%6.2f%% +/- %0.2f%%", 100*m.Mean, 100*m.CI95)},
		{"Std Dev", fmt.Sprintf("%6.2f%%", 100*m.StdDev)},
		{"Min", fmt.Sprintf("%6.2f%%", 100*m.Min)},
		{"Max", fmt.Sprintf("%6.2f%%", 100*m.Max)},
	})
	t.Render()
	return nil
}
