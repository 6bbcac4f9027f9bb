package datasets

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
)

// ImageCache stores decoded image planes in leveldb so repeated runs over
// the same dataset skip the decode and resize work.
type ImageCache struct {
	db *leveldb.DB
}

func OpenImageCache(path string) (*ImageCache, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("opening image cache: %v", err)
	}
	return &ImageCache{db: db}, nil
}

// NewImageCache wraps an already-open leveldb handle.
func NewImageCache(db *leveldb.DB) *ImageCache {
	return &ImageCache{db: db}
}

func (c *ImageCache) Close() error {
	return c.db.Close()
}

func (c *ImageCache) Get(key string) ([]float64, bool) {
	data, err := c.db.Get([]byte(key), nil)
	if err != nil {
		return nil, false
	}
	var pixels []float64
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&pixels); err != nil {
		return nil, false
	}
	return pixels, true
}

func (c *ImageCache) Put(key string, pixels []float64) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(pixels); err != nil {
		return fmt.Errorf("encoding cached image: %v", err)
	}
	return c.db.Put([]byte(key), buf.Bytes(), nil)
}
