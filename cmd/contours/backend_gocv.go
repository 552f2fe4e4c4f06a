//go:build gocv

package main

import (
	"fmt"

	"github.com/teslashibe/go-avatar/pkg/contour"
	"github.com/teslashibe/go-avatar/pkg/contour/cvsobel"
)

func detector(name string) (contour.Detector, error) {
	switch name {
	case "", "go":
		return contour.Sobel{}, nil
	case "opencv":
		return cvsobel.New(), nil
	}
	return nil, fmt.Errorf("unknown backend %q", name)
}
