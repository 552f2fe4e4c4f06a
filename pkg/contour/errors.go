package contour

import "errors"

var (
	// ErrEmptyImage is returned when an image has no pixels.
	ErrEmptyImage = errors.New("contour: empty image")

	// ErrUnsupportedFormat is returned when image bytes cannot be decoded.
	ErrUnsupportedFormat = errors.New("contour: unsupported image format")
)
