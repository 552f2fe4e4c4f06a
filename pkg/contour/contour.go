// Package contour extracts edge points from raster images with a 3x3 Sobel
// operator and paints them as a glowing contour trace.
package contour

import "math"

// DefaultThreshold is the gradient magnitude an interior pixel must exceed
// to count as an edge.
const DefaultThreshold = 30

// Point is one detected edge pixel.
type Point struct {
	X         int     `json:"x"`
	Y         int     `json:"y"`
	Intensity float64 `json:"intensity"`
}

// Detector turns a grayscale raster into edge points.
type Detector interface {
	Detect(gray []uint8, width, height int, threshold float64) ([]Point, error)
}

// Sobel is the pure Go Detector.
type Sobel struct{}

// Detect implements Detector.
func (Sobel) Detect(gray []uint8, width, height int, threshold float64) ([]Point, error) {
	return Detect(gray, width, height, threshold), nil
}

// Detect runs the Sobel operator over every interior pixel of a row-major
// grayscale raster. Border pixels are never evaluated. A pixel is emitted
// when its gradient magnitude exceeds threshold, with intensity
// min(magnitude/100, 1). Output is in row-major order. Rasters smaller than
// 3x3, or buffers shorter than width*height, yield no points.
func Detect(gray []uint8, width, height int, threshold float64) []Point {
	if width < 3 || height < 3 || len(gray) < width*height {
		return nil
	}

	var edges []Point
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			mag := Magnitude(gray, width, x, y)
			if mag > threshold {
				edges = append(edges, Point{X: x, Y: y, Intensity: Intensity(mag)})
			}
		}
	}
	return edges
}

// Magnitude returns the Sobel gradient magnitude at interior pixel (x, y).
func Magnitude(gray []uint8, width, x, y int) float64 {
	at := func(dx, dy int) float64 {
		return float64(gray[(y+dy)*width+x+dx])
	}

	gx := -at(-1, -1) + at(1, -1) +
		-2*at(-1, 0) + 2*at(1, 0) +
		-at(-1, 1) + at(1, 1)
	gy := -at(-1, -1) - 2*at(0, -1) - at(1, -1) +
		at(-1, 1) + 2*at(0, 1) + at(1, 1)

	return math.Sqrt(gx*gx + gy*gy)
}

// Intensity maps a gradient magnitude to [0,1].
func Intensity(mag float64) float64 {
	return math.Min(mag/100, 1)
}
