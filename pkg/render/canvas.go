package render

import (
	"image"
	"image/color"
	"math"
	"math/rand"
	"sync"

	"github.com/teslashibe/go-avatar/pkg/face"
)

var (
	black  = color.RGBA{0, 0, 0, 255}
	cyan   = color.RGBA{0x00, 0xff, 0xff, 0xff}
	green  = color.RGBA{0x00, 0xff, 0x00, 0xff}
	amber  = color.RGBA{0xff, 0xaa, 0x00, 0xff}
	pink   = color.RGBA{0xff, 0x33, 0x66, 0xff}
	yellow = color.RGBA{0xff, 0xff, 0x00, 0xff}
)

// neuralNodes is the idle network size.
const neuralNodes = 15

// Canvas is the 2D software renderer.
type Canvas struct {
	mu        sync.Mutex
	img       *image.RGBA
	particles *Particles
	nodes     []vec2
	closed    bool
}

// NewCanvas creates a canvas renderer.
func NewCanvas(cfg Config) (*Canvas, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, ErrInvalidSize
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	n := cfg.Particles
	if n < 0 {
		n = 0
	}

	w, h := float64(cfg.Width), float64(cfg.Height)
	nodes := make([]vec2, neuralNodes)
	for i := range nodes {
		nodes[i] = vec2{rng.Float64() * w, rng.Float64() * h}
	}

	return &Canvas{
		img:       image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height)),
		particles: NewParticles(n, w, h, rng),
		nodes:     nodes,
	}, nil
}

// Kind implements Renderer.
func (c *Canvas) Kind() string { return string(ModeCanvas) }

// Size implements Renderer.
func (c *Canvas) Size() (int, int) {
	b := c.img.Bounds()
	return b.Dx(), b.Dy()
}

// Particles exposes the particle field.
func (c *Canvas) Particles() *Particles { return c.particles }

// Close implements Renderer.
func (c *Canvas) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// Render implements Renderer.
func (c *Canvas) Render(f Frame) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	r := newRaster(c.img)
	r.clear(black)

	w, h := c.Size()
	g := ComputeGeometry(f.Snapshot.Params, w, h)
	drawExpression(r, f.Snapshot.Expression, f.Phase, g, c.nodes)
	drawFace(r, g, EmotionColor(f.Snapshot.Emotion))

	c.particles.Step()
	c.particles.draw(r)
	return c.img, nil
}

// drawExpression paints the animated pattern around the face. Every
// primitive is a function of expression, phase and geometry only.
func drawExpression(r raster, expr face.Expression, t float64, g FaceGeometry, nodes []vec2) {
	s := g.Scale
	cx, cy := g.Outline.CX, g.Outline.CY
	ring := g.Outline.RY + 10*s

	switch expr {
	case face.ExpressionListening:
		tt := t * 10
		for i := 0; i < 5; i++ {
			rad := ring + float64(i)*30*s + math.Sin(tt+float64(i))*10*s
			r.circle(cx, cy, rad, math.Max(1, 2*s), green, 0.8-float64(i)*0.15)
		}

	case face.ExpressionThinking:
		tt := t * 2
		for i := 0; i < 100; i++ {
			angle := float64(i)*0.2 + tt
			rad := ring + float64(i)*s
			r.dot(cx+math.Cos(angle)*rad, cy+math.Sin(angle)*rad, 2*s, amber, 1-float64(i)/100)
		}

	case face.ExpressionSpeaking:
		tt := t * 5
		span := float64(r.width())
		for i := 0; i < 8; i++ {
			amp := math.Sin(tt+float64(i)*0.5) * 20 * s
			x := span*0.125/2 + float64(i)*span/8
			y := cy + g.Outline.RY + 20*s
			r.line(x, y-amp, x, y+amp, math.Max(1, 3*s), pink, 1)
		}

	case face.ExpressionHappy:
		tt := t * 3
		for i := 0; i < 20; i++ {
			angle := float64(i)/20*2*math.Pi + tt
			rad := ring + 20*s + math.Sin(tt*2+float64(i))*20*s
			r.dot(cx+math.Cos(angle)*rad, cy+math.Sin(angle)*rad, 5*s, hsl(60+float64(i)*10, 1, 0.7), 1)
		}

	case face.ExpressionSurprised:
		tt := t * 8
		for i := 0; i < 12; i++ {
			angle := float64(i) / 12 * 2 * math.Pi
			length := 100*s + math.Sin(tt+float64(i))*30*s
			x0, y0 := cx+math.Cos(angle)*ring, cy+math.Sin(angle)*ring
			x1, y1 := cx+math.Cos(angle)*(ring+length), cy+math.Sin(angle)*(ring+length)
			r.line(x0, y0, x1, y1, math.Max(1, 2*s), yellow, 1)
		}

	default:
		drawNeuralNetwork(r, nodes, t, s)
		r.circle(cx, cy, ring+5*s, math.Max(1, 3*s), cyan, 1)
	}
}

func drawNeuralNetwork(r raster, nodes []vec2, t, s float64) {
	maxDist := 150 * s
	for i := range nodes {
		for j := i + 1; j < len(nodes); j++ {
			if math.Hypot(nodes[i].X-nodes[j].X, nodes[i].Y-nodes[j].Y) < maxDist {
				r.line(nodes[i].X, nodes[i].Y, nodes[j].X, nodes[j].Y, 1, cyan, 0.1)
			}
		}
	}
	for i, n := range nodes {
		r.dot(n.X, n.Y, 3*s, cyan, pulse(t, i))
	}
}
