package eval

import "math"

// Episode shape
func BoundWay(v int) int {
	return int(math.Max(2, math.Min(50, float64(v)))) // Default: 5
}

func BoundShot(v int) int {
	return int(math.Max(1, math.Min(100, float64(v)))) // Default: 5
}

func BoundQuery(v int) int {
	return int(math.Max(1, math.Min(100, float64(v)))) // Default: 15
}

func BoundEpisodes(v int) int {
	return int(math.Max(1, math.Min(10000, float64(v)))) // Default: 200
}

// Input images
func BoundImageSize(v int) int {
	return int(math.Max(8, math.Min(256, float64(v)))) // Default: 84
}

// Model
func BoundDropout(v float64) float64 {
	return math.Max(0, math.Min(0.9, v)) // Default: 0
}
