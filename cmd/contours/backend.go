//go:build !gocv

package main

import (
	"fmt"

	"github.com/teslashibe/go-avatar/pkg/contour"
)

func detector(name string) (contour.Detector, error) {
	switch name {
	case "", "go":
		return contour.Sobel{}, nil
	case "opencv":
		return nil, fmt.Errorf("opencv backend not built in (rebuild with -tags gocv)")
	}
	return nil, fmt.Errorf("unknown backend %q", name)
}
