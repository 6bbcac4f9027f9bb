package datasets

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gorgonia.org/tensor"
)

// Dataset is a labeled image collection addressable by sample index.
type Dataset interface {
	Len() int
	NumClasses() int
	// ClassIndices returns the sample indices belonging to each class.
	ClassIndices() [][]int
	// Batch assembles the samples at indices into an (N, 3, S, S) float64
	// tensor.
	Batch(indices []int) (*tensor.Dense, error)
	// Key returns a stable identity for a sample, usable as a cache key.
	Key(index int) string
}

var imageExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// ImageFolderDataset reads a directory with one subdirectory per class.
// Class names are sorted and mapped to contiguous labels.
type ImageFolderDataset struct {
	root       string
	imageSize  int
	paths      []string
	labels     []int
	classNames []string
	byClass    [][]int
	cache      *ImageCache
}

func NewImageFolder(root string, imageSize int) (*ImageFolderDataset, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading dataset root: %v", err)
	}

	classNames := []string{}
	for _, e := range entries {
		if e.IsDir() {
			classNames = append(classNames, e.Name())
		}
	}
	if len(classNames) == 0 {
		return nil, fmt.Errorf("no class directories under %s", root)
	}
	sort.Strings(classNames)

	d := &ImageFolderDataset{
		root:       root,
		imageSize:  imageSize,
		classNames: classNames,
		byClass:    make([][]int, len(classNames)),
	}
	for label, name := range classNames {
		files, err := os.ReadDir(filepath.Join(root, name))
		if err != nil {
			return nil, fmt.Errorf("reading class %s: %v", name, err)
		}
		for _, f := range files {
			if f.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(f.Name()))] {
				continue
			}
			d.byClass[label] = append(d.byClass[label], len(d.paths))
			d.paths = append(d.paths, filepath.Join(root, name, f.Name()))
			d.labels = append(d.labels, label)
		}
	}
	if len(d.paths) == 0 {
		return nil, fmt.Errorf("no images under %s", root)
	}
	return d, nil
}

// SetCache attaches a decoded-image cache consulted before any file is
// decoded.
func (d *ImageFolderDataset) SetCache(cache *ImageCache) {
	d.cache = cache
}

func (d *ImageFolderDataset) Len() int {
	return len(d.paths)
}

func (d *ImageFolderDataset) NumClasses() int {
	return len(d.classNames)
}

func (d *ImageFolderDataset) ClassNames() []string {
	return d.classNames
}

func (d *ImageFolderDataset) Label(index int) int {
	return d.labels[index]
}

func (d *ImageFolderDataset) ClassIndices() [][]int {
	return d.byClass
}

func (d *ImageFolderDataset) Key(index int) string {
	return fmt.Sprintf("%s-%d", d.paths[index], d.imageSize)
}

func (d *ImageFolderDataset) Batch(indices []int) (*tensor.Dense, error) {
	plane := 3 * d.imageSize * d.imageSize
	backing := make([]float64, len(indices)*plane)
	for i, index := range indices {
		if index < 0 || index >= len(d.paths) {
			return nil, fmt.Errorf("sample index %d out of range [0, %d)", index, len(d.paths))
		}
		pixels, err := d.load(index)
		if err != nil {
			return nil, err
		}
		copy(backing[i*plane:(i+1)*plane], pixels)
	}
	return tensor.New(
		tensor.WithShape(len(indices), 3, d.imageSize, d.imageSize),
		tensor.Of(tensor.Float64),
		tensor.WithBacking(backing),
	), nil
}

func (d *ImageFolderDataset) load(index int) ([]float64, error) {
	if d.cache != nil {
		if pixels, ok := d.cache.Get(d.Key(index)); ok {
			return pixels, nil
		}
	}
	pixels, err := decodeImage(d.paths[index], d.imageSize)
	if err != nil {
		return nil, err
	}
	if d.cache != nil {
		if err := d.cache.Put(d.Key(index), pixels); err != nil {
			log.Printf("failed to cache %s: %v", d.paths[index], err)
		}
	}
	return pixels, nil
}
