// Package presence implements the client side of cursor presence:
// quantizing pointer samples onto the shared grid, throttling transmission,
// and smoothing positions received from other players.
package presence

import (
	"math"

	"github.com/dkeye/HouseParty/internal/domain"
)

// Point is a quantized grid position.
type Point struct {
	X int
	Y int
}

// Quantize maps a pixel position inside a width x height viewport onto the
// GridSize x GridSize grid. ok is false for an empty viewport.
func Quantize(px, py, width, height float64) (Point, bool) {
	if width <= 0 || height <= 0 {
		return Point{}, false
	}
	return Point{
		X: toGrid(px / width),
		Y: toGrid(py / height),
	}, true
}

func toGrid(normalized float64) int {
	if math.IsNaN(normalized) {
		return 0
	}
	n := min(1, max(0, normalized))
	return min(domain.GridSize-1, max(0, int(math.Floor(n*domain.GridSize))))
}

// Normalize maps a grid coordinate back to [0,1].
func Normalize(v int) float64 {
	return min(1, max(0, float64(v)/domain.GridSize))
}
