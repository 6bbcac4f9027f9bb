package datasets

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// decodeImage loads an image file and converts it to CHW float64 planes in
// [0, 1], nearest-neighbor resized to size x size.
func decodeImage(path string, size int) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %v", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %v", path, err)
	}
	return imageToCHW(img, size), nil
}

func imageToCHW(img image.Image, size int) []float64 {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	plane := size * size
	out := make([]float64, 3*plane)
	for y := range size {
		srcY := bounds.Min.Y + y*h/size
		for x := range size {
			srcX := bounds.Min.X + x*w/size
			r, g, b, _ := img.At(srcX, srcY).RGBA()
			out[0*plane+y*size+x] = float64(r) / 65535.0
			out[1*plane+y*size+x] = float64(g) / 65535.0
			out[2*plane+y*size+x] = float64(b) / 65535.0
		}
	}
	return out
}
