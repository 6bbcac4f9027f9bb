package datasets_test

import (
	"testing"

	"github.com/meridian-ml/protonet/pkg/datasets"
)

func TestSyntheticLayout(t *testing.T) {
	ds, err := datasets.NewSynthetic(3, 4, 8, 7)
	if err != nil {
		t.Fatalf("error building synthetic dataset: %v", err)
	}
	if ds.Len() != 12 {
		t.Fatalf("expected 12 samples, got %d", ds.Len())
	}
	if ds.NumClasses() != 3 {
		t.Fatalf("expected 3 classes, got %d", ds.NumClasses())
	}
	if ds.Label(5) != 1 {
		t.Fatalf("expected sample 5 in class 1, got %d", ds.Label(5))
	}
	for c, indices := range ds.ClassIndices() {
		if len(indices) != 4 {
			t.Fatalf("expected 4 samples in class %d, got %d", c, len(indices))
		}
		for i, index := range indices {
			if index != c*4+i {
				t.Errorf("expected index %d at class %d position %d, got %d", c*4+i, c, i, index)
			}
		}
	}
}

func TestSyntheticDeterminism(t *testing.T) {
	ds, err := datasets.NewSynthetic(3, 4, 8, 7)
	if err != nil {
		t.Fatalf("error building synthetic dataset: %v", err)
	}
	again, err := datasets.NewSynthetic(3, 4, 8, 7)
	if err != nil {
		t.Fatalf("error building synthetic dataset: %v", err)
	}
	other, err := datasets.NewSynthetic(3, 4, 8, 8)
	if err != nil {
		t.Fatalf("error building synthetic dataset: %v", err)
	}

	first, err := ds.Batch([]int{2, 9})
	if err != nil {
		t.Fatalf("error assembling batch: %v", err)
	}
	second, err := again.Batch([]int{2, 9})
	if err != nil {
		t.Fatalf("error assembling batch: %v", err)
	}
	reseeded, err := other.Batch([]int{2, 9})
	if err != nil {
		t.Fatalf("error assembling batch: %v", err)
	}

	firstData := first.Data().([]float64)
	secondData := second.Data().([]float64)
	for i := range firstData {
		if firstData[i] != secondData[i] {
			t.Fatalf("same seed produced different pixels at %d", i)
		}
		if firstData[i] < 0 || firstData[i] > 1 {
			t.Fatalf("pixel %d out of range [0, 1]: %v", i, firstData[i])
		}
	}

	reseededData := reseeded.Data().([]float64)
	same := true
	for i := range firstData {
		if firstData[i] != reseededData[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("different seeds produced identical pixels")
	}
}

func TestSyntheticValidation(t *testing.T) {
	if _, err := datasets.NewSynthetic(0, 4, 8, 1); err == nil {
		t.Fatal("expected error for zero classes")
	}
	if _, err := datasets.NewSynthetic(3, 4, 2, 1); err == nil {
		t.Fatal("expected error for tiny image size")
	}

	ds, err := datasets.NewSynthetic(3, 4, 8, 1)
	if err != nil {
		t.Fatalf("error building synthetic dataset: %v", err)
	}
	if _, err := ds.Batch([]int{12}); err == nil {
		t.Fatal("expected error for out of range index")
	}
}

func TestSamplerEpisodeShape(t *testing.T) {
	ds, err := datasets.NewSynthetic(5, 6, 8, 3)
	if err != nil {
		t.Fatalf("error building synthetic dataset: %v", err)
	}
	s, err := datasets.NewSampler(ds, 3, 2, 2, 9)
	if err != nil {
		t.Fatalf("error building sampler: %v", err)
	}

	ep, err := s.Sample()
	if err != nil {
		t.Fatalf("error sampling episode: %v", err)
	}
	if err := ep.Validate(); err != nil {
		t.Fatalf("sampled episode is invalid: %v", err)
	}

	shape := ep.SupportImages.Shape()
	if shape[0] != 6 || shape[1] != 3 || shape[2] != 8 || shape[3] != 8 {
		t.Fatalf("expected support shape (6, 3, 8, 8), got %v", shape)
	}
	shape = ep.QueryImages.Shape()
	if shape[0] != 6 || shape[1] != 3 || shape[2] != 8 || shape[3] != 8 {
		t.Fatalf("expected query shape (6, 3, 8, 8), got %v", shape)
	}

	supportCounts := make([]int, 3)
	for _, label := range ep.SupportLabels {
		if label < 0 || label >= 3 {
			t.Fatalf("support label %d outside [0, 3)", label)
		}
		supportCounts[label]++
	}
	queryCounts := make([]int, 3)
	for _, label := range ep.QueryLabels {
		if label < 0 || label >= 3 {
			t.Fatalf("query label %d outside [0, 3)", label)
		}
		queryCounts[label]++
	}
	for label := range 3 {
		if supportCounts[label] != 2 {
			t.Errorf("expected 2 support samples for label %d, got %d", label, supportCounts[label])
		}
		if queryCounts[label] != 2 {
			t.Errorf("expected 2 query samples for label %d, got %d", label, queryCounts[label])
		}
	}
}

func TestSamplerDeterministicWithSeed(t *testing.T) {
	ds, err := datasets.NewSynthetic(5, 6, 8, 3)
	if err != nil {
		t.Fatalf("error building synthetic dataset: %v", err)
	}

	first, err := datasets.NewSampler(ds, 3, 2, 2, 11)
	if err != nil {
		t.Fatalf("error building sampler: %v", err)
	}
	second, err := datasets.NewSampler(ds, 3, 2, 2, 11)
	if err != nil {
		t.Fatalf("error building sampler: %v", err)
	}

	a, err := first.Sample()
	if err != nil {
		t.Fatalf("error sampling episode: %v", err)
	}
	b, err := second.Sample()
	if err != nil {
		t.Fatalf("error sampling episode: %v", err)
	}

	for i := range a.SupportLabels {
		if a.SupportLabels[i] != b.SupportLabels[i] {
			t.Fatalf("support labels diverged at %d", i)
		}
	}
	aData := a.SupportImages.Data().([]float64)
	bData := b.SupportImages.Data().([]float64)
	for i := range aData {
		if aData[i] != bData[i] {
			t.Fatalf("support pixels diverged at %d", i)
		}
	}
}

func TestSamplerValidation(t *testing.T) {
	ds, err := datasets.NewSynthetic(5, 3, 8, 3)
	if err != nil {
		t.Fatalf("error building synthetic dataset: %v", err)
	}

	if _, err := datasets.NewSampler(ds, 1, 1, 1, 0); err == nil {
		t.Fatal("expected error for a single way")
	}
	if _, err := datasets.NewSampler(ds, 6, 1, 1, 0); err == nil {
		t.Fatal("expected error for more ways than classes")
	}
	if _, err := datasets.NewSampler(ds, 2, 0, 1, 0); err == nil {
		t.Fatal("expected error for zero shot")
	}
	if _, err := datasets.NewSampler(ds, 2, 2, 2, 0); err == nil {
		t.Fatal("expected error when classes cannot cover shot plus query")
	}
}
