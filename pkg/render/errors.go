package render

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRenderContext is returned when neither the mesh device nor the
	// 2D canvas could be created.
	ErrNoRenderContext = errors.New("render: no render context available")

	// ErrInvalidSize is returned for non-positive canvas dimensions.
	ErrInvalidSize = errors.New("render: invalid canvas size")

	// ErrNoDevice is returned when mesh rendering is requested without a
	// device factory.
	ErrNoDevice = errors.New("render: no mesh device")

	// ErrClosed is returned when rendering after Close.
	ErrClosed = errors.New("render: renderer closed")

	// ErrNoFrame is returned before the first frame has been rendered.
	ErrNoFrame = errors.New("render: no frame yet")
)

// InitError carries both causes when every render context failed.
type InitError struct {
	Mesh   error
	Canvas error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("render: no render context available (mesh: %v; canvas: %v)", e.Mesh, e.Canvas)
}

// Is matches ErrNoRenderContext.
func (e *InitError) Is(target error) bool {
	return target == ErrNoRenderContext
}

// Unwrap returns both causes.
func (e *InitError) Unwrap() []error {
	return []error{e.Mesh, e.Canvas}
}
