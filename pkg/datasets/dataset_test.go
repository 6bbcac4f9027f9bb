package datasets_test

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/meridian-ml/protonet/pkg/datasets"
)

var db *leveldb.DB

func TestMain(m *testing.M) {
	path := fmt.Sprintf("%s/protonet-cache.db-test", os.TempDir())
	if err := os.RemoveAll(path); err != nil {
		log.Fatalf("failed to remove %s", path)
	} else if d, err := leveldb.OpenFile(path, nil); err != nil {
		log.Fatalf("failed to open %s: %v", path, err)
	} else {
		db = d
	}
	m.Run()
}

// writeImageTree lays out three class directories with four uniform 8x8
// PNGs each. The gray level of class c item i is 40*c + 20*i + 10.
func writeImageTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for c, name := range []string{"alpha", "beta", "gamma"} {
		dir := filepath.Join(root, name)
		if err := os.Mkdir(dir, 0755); err != nil {
			t.Fatalf("error creating class dir: %v", err)
		}
		for i := range 4 {
			img := image.NewRGBA(image.Rect(0, 0, 8, 8))
			gray := uint8(40*c + 20*i + 10)
			for y := range 8 {
				for x := range 8 {
					img.Set(x, y, color.RGBA{R: gray, G: gray, B: gray, A: 255})
				}
			}
			f, err := os.Create(filepath.Join(dir, fmt.Sprintf("img%d.png", i)))
			if err != nil {
				t.Fatalf("error creating image file: %v", err)
			}
			if err := png.Encode(f, img); err != nil {
				t.Fatalf("error encoding image: %v", err)
			}
			f.Close()
		}
	}
	if err := os.WriteFile(filepath.Join(root, "alpha", "notes.txt"), []byte("skip me"), 0644); err != nil {
		t.Fatalf("error writing stray file: %v", err)
	}
	return root
}

func TestImageFolderLayout(t *testing.T) {
	ds, err := datasets.NewImageFolder(writeImageTree(t), 8)
	if err != nil {
		t.Fatalf("error opening image folder: %v", err)
	}
	if ds.Len() != 12 {
		t.Fatalf("expected 12 samples, got %d", ds.Len())
	}
	if ds.NumClasses() != 3 {
		t.Fatalf("expected 3 classes, got %d", ds.NumClasses())
	}

	names := ds.ClassNames()
	for i, want := range []string{"alpha", "beta", "gamma"} {
		if names[i] != want {
			t.Errorf("expected class %d to be %s, got %s", i, want, names[i])
		}
	}

	for c, indices := range ds.ClassIndices() {
		if len(indices) != 4 {
			t.Fatalf("expected 4 samples in class %d, got %d", c, len(indices))
		}
		for _, index := range indices {
			if ds.Label(index) != c {
				t.Errorf("expected label %d for sample %d, got %d", c, index, ds.Label(index))
			}
		}
	}
}

func TestImageFolderBatch(t *testing.T) {
	ds, err := datasets.NewImageFolder(writeImageTree(t), 8)
	if err != nil {
		t.Fatalf("error opening image folder: %v", err)
	}

	batch, err := ds.Batch([]int{0, 5, 11})
	if err != nil {
		t.Fatalf("error assembling batch: %v", err)
	}
	shape := batch.Shape()
	if len(shape) != 4 || shape[0] != 3 || shape[1] != 3 || shape[2] != 8 || shape[3] != 8 {
		t.Fatalf("expected batch shape (3, 3, 8, 8), got %v", shape)
	}

	// sample 0 is class 0 item 0, sample 5 is class 1 item 1, sample 11 is
	// class 2 item 3
	expected := []float64{10.0 / 255, 70.0 / 255, 150.0 / 255}
	data := batch.Data().([]float64)
	plane := 3 * 8 * 8
	for i, want := range expected {
		for j := range plane {
			got := data[i*plane+j]
			if math.Abs(got-want) > 1e-9 {
				t.Fatalf("expected pixel %v in image %d, got %v", want, i, got)
			}
		}
	}

	if _, err := ds.Batch([]int{99}); err == nil {
		t.Fatal("expected error for out of range index")
	}
}

func TestImageFolderErrors(t *testing.T) {
	if _, err := datasets.NewImageFolder(t.TempDir(), 8); err == nil {
		t.Fatal("expected error for root without class directories")
	}

	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "empty"), 0755); err != nil {
		t.Fatalf("error creating class dir: %v", err)
	}
	if _, err := datasets.NewImageFolder(root, 8); err == nil {
		t.Fatal("expected error for classes without images")
	}

	if _, err := datasets.NewImageFolder(filepath.Join(root, "missing"), 8); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestImageCache(t *testing.T) {
	root := writeImageTree(t)

	plain, err := datasets.NewImageFolder(root, 8)
	if err != nil {
		t.Fatalf("error opening image folder: %v", err)
	}
	cached, err := datasets.NewImageFolder(root, 8)
	if err != nil {
		t.Fatalf("error opening image folder: %v", err)
	}
	cache := datasets.NewImageCache(db)
	cached.SetCache(cache)

	indices := []int{0, 3, 7}
	want, err := plain.Batch(indices)
	if err != nil {
		t.Fatalf("error assembling batch: %v", err)
	}
	first, err := cached.Batch(indices)
	if err != nil {
		t.Fatalf("error assembling batch through cold cache: %v", err)
	}
	second, err := cached.Batch(indices)
	if err != nil {
		t.Fatalf("error assembling batch through warm cache: %v", err)
	}

	wantData := want.Data().([]float64)
	firstData := first.Data().([]float64)
	secondData := second.Data().([]float64)
	for i := range wantData {
		if firstData[i] != wantData[i] {
			t.Fatalf("cold cache batch diverged at %d", i)
		}
		if secondData[i] != wantData[i] {
			t.Fatalf("warm cache batch diverged at %d", i)
		}
	}

	pixels, ok := cache.Get(cached.Key(0))
	if !ok {
		t.Fatal("expected sample 0 to be cached after a batch")
	}
	if len(pixels) != 3*8*8 {
		t.Fatalf("expected %d cached values, got %d", 3*8*8, len(pixels))
	}
	if _, ok := cache.Get("never-stored"); ok {
		t.Fatal("expected a miss for an unknown key")
	}
}
