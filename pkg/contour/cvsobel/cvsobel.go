//go:build gocv

// Package cvsobel is an OpenCV-backed contour.Detector. It computes the same
// 3x3 Sobel gradients as contour.Sobel and applies the same threshold and
// border rule, but does the convolution in OpenCV.
package cvsobel

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-avatar/pkg/contour"
)

// Detector implements contour.Detector with gocv.
type Detector struct{}

// New returns an OpenCV detector.
func New() *Detector { return &Detector{} }

// Detect implements contour.Detector.
func (d *Detector) Detect(gray []uint8, width, height int, threshold float64) ([]contour.Point, error) {
	if width < 3 || height < 3 || len(gray) < width*height {
		return nil, nil
	}

	src, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC1, gray[:width*height])
	if err != nil {
		return nil, fmt.Errorf("cvsobel: wrap raster: %w", err)
	}
	defer src.Close()

	gx := gocv.NewMat()
	defer gx.Close()
	gy := gocv.NewMat()
	defer gy.Close()
	mag := gocv.NewMat()
	defer mag.Close()

	gocv.Sobel(src, &gx, gocv.MatTypeCV32F, 1, 0, 3, 1, 0, gocv.BorderReplicate)
	gocv.Sobel(src, &gy, gocv.MatTypeCV32F, 0, 1, 3, 1, 0, gocv.BorderReplicate)
	gocv.Magnitude(gx, gy, &mag)

	var edges []contour.Point
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			m := float64(mag.GetFloatAt(y, x))
			if m > threshold {
				edges = append(edges, contour.Point{X: x, Y: y, Intensity: contour.Intensity(m)})
			}
		}
	}
	return edges, nil
}

var _ contour.Detector = (*Detector)(nil)
