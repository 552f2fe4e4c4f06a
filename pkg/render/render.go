// Package render paints the avatar face once per frame.
//
// Two variants share the same per-expression semantics: Canvas rasterises a
// 2D face with an animated pattern around it, and Mesh drives a 3D face pose
// through a Device. New prefers the mesh device and falls back to the
// canvas.
package render

import (
	"image"
	"log/slog"
	"math"

	"github.com/teslashibe/go-avatar/pkg/face"
)

// Frame is everything a renderer needs for one frame. The snapshot is taken
// once at the top of the frame.
type Frame struct {
	Snapshot face.Snapshot

	// Phase is seconds since the loop started.
	Phase float64

	// Index counts frames from zero.
	Index int
}

// Renderer paints frames.
type Renderer interface {
	// Render paints one frame and returns the image. The image is reused
	// by the next call; copy it to keep it.
	Render(f Frame) (image.Image, error)

	// Kind names the variant: "mesh" or "canvas".
	Kind() string

	// Size returns the output dimensions.
	Size() (width, height int)

	Close() error
}

// Mode selects the renderer variant.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeMesh   Mode = "mesh"
	ModeCanvas Mode = "canvas"
)

// Config configures New.
type Config struct {
	Width  int
	Height int
	Mode   Mode

	// DeviceFactory acquires the mesh device. Nil means no mesh support.
	DeviceFactory DeviceFactory

	// Seed makes particle and node placement reproducible.
	Seed int64

	// Particles is the ambient particle count.
	Particles int

	Logger *slog.Logger
}

// DefaultConfig returns a 400x400 auto-mode renderer config using the
// software projection device.
func DefaultConfig() Config {
	return Config{
		Width:         400,
		Height:        400,
		Mode:          ModeAuto,
		DeviceFactory: NewProjectDevice,
		Seed:          1,
		Particles:     DefaultParticles,
		Logger:        slog.Default(),
	}
}

// New creates a renderer. In auto mode it tries the mesh device first and
// falls back to the canvas; if both fail it returns an error matching
// ErrNoRenderContext that carries both causes.
func New(cfg Config) (Renderer, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With("component", "render")

	if cfg.Mode == ModeCanvas {
		return NewCanvas(cfg)
	}

	mesh, meshErr := NewMesh(cfg)
	if meshErr == nil {
		logger.Info("mesh renderer ready", "width", cfg.Width, "height", cfg.Height)
		return mesh, nil
	}
	if cfg.Mode == ModeMesh {
		return nil, meshErr
	}

	logger.Warn("mesh renderer unavailable, falling back to canvas", "error", meshErr)
	canvas, canvasErr := NewCanvas(cfg)
	if canvasErr != nil {
		return nil, &InitError{Mesh: meshErr, Canvas: canvasErr}
	}
	return canvas, nil
}

// pulse is the idle node brightness for node i at phase t.
func pulse(t float64, i int) float64 {
	return math.Sin(t+float64(i))*0.3 + 0.7
}
