package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/draw"
	"image/png"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-avatar/pkg/face"
)

// DefaultFPS is the frame loop rate.
const DefaultFPS = 30

// Snapshotter provides the per-frame face snapshot.
type Snapshotter interface {
	Snapshot() face.Snapshot
}

// FrameSink receives every rendered frame. img is only valid during the
// call.
type FrameSink interface {
	Frame(img image.Image, snap face.Snapshot, index int)
}

// SinkFunc adapts a function to FrameSink.
type SinkFunc func(img image.Image, snap face.Snapshot, index int)

// Frame implements FrameSink.
func (f SinkFunc) Frame(img image.Image, snap face.Snapshot, index int) { f(img, snap, index) }

// Loop renders frames on a ticker until its context ends.
type Loop struct {
	renderer Renderer
	state    Snapshotter
	fps      int
	sink     FrameSink
	logger   *slog.Logger

	mu     sync.RWMutex
	latest *image.RGBA
	index  int
	start  time.Time
}

// NewLoop creates a frame loop. fps <= 0 uses DefaultFPS; sink may be nil.
func NewLoop(r Renderer, state Snapshotter, fps int, sink FrameSink, logger *slog.Logger) *Loop {
	if fps <= 0 {
		fps = DefaultFPS
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		renderer: r,
		state:    state,
		fps:      fps,
		sink:     sink,
		logger:   logger.With("component", "render.loop", "renderer", r.Kind()),
	}
}

// Run drives frames until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	l.start = time.Now()
	l.mu.Unlock()

	ticker := time.NewTicker(time.Second / time.Duration(l.fps))
	defer ticker.Stop()

	l.logger.Info("frame loop started", "fps", l.fps)
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("frame loop stopped", "frames", l.Frames())
			return nil
		case now := <-ticker.C:
			l.mu.RLock()
			phase := now.Sub(l.start).Seconds()
			l.mu.RUnlock()
			if err := l.Step(phase); err != nil {
				if errors.Is(err, ErrClosed) {
					return err
				}
				l.logger.Warn("frame failed", "error", err)
			}
		}
	}
}

// Step renders a single frame at phase seconds.
func (l *Loop) Step(phase float64) error {
	snap := l.state.Snapshot()

	l.mu.Lock()
	idx := l.index
	l.index++
	l.mu.Unlock()

	img, err := l.renderer.Render(Frame{Snapshot: snap, Phase: phase, Index: idx})
	if err != nil {
		return err
	}

	cp := image.NewRGBA(img.Bounds())
	draw.Draw(cp, cp.Bounds(), img, img.Bounds().Min, draw.Src)

	l.mu.Lock()
	l.latest = cp
	l.mu.Unlock()

	if l.sink != nil {
		l.sink.Frame(cp, snap, idx)
	}
	return nil
}

// Frames returns how many frames have been attempted.
func (l *Loop) Frames() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.index
}

// Latest returns the most recent frame, or nil before the first.
func (l *Loop) Latest() image.Image {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.latest == nil {
		return nil
	}
	return l.latest
}

// PNG encodes the most recent frame.
func (l *Loop) PNG() ([]byte, error) {
	img := l.Latest()
	if img == nil {
		return nil, ErrNoFrame
	}
	return EncodePNG(img)
}

// EncodePNG encodes img as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
