package render

import (
	"image/color"
	"math/rand"
)

// DefaultParticles is the ambient particle count.
const DefaultParticles = 50

// Particle drifts across the canvas.
type Particle struct {
	X, Y    float64
	VX, VY  float64
	Size    float64
	Opacity float64
	Color   color.RGBA
}

// Particles integrate their velocity every frame and wrap at the bounds.
type Particles struct {
	W, H  float64
	Items []Particle
}

// NewParticles scatters n particles over a w x h canvas using rng.
func NewParticles(n int, w, h float64, rng *rand.Rand) *Particles {
	ps := &Particles{W: w, H: h, Items: make([]Particle, n)}
	for i := range ps.Items {
		opacity := rng.Float64()*0.5 + 0.2
		ps.Items[i] = Particle{
			X:       rng.Float64() * w,
			Y:       rng.Float64() * h,
			VX:      (rng.Float64() - 0.5) * 0.5,
			VY:      (rng.Float64() - 0.5) * 0.5,
			Size:    rng.Float64()*2 + 1,
			Opacity: opacity,
			Color:   hsl(180+rng.Float64()*60, 1, opacity*0.7),
		}
	}
	return ps
}

// Step advances every particle by one frame.
func (ps *Particles) Step() {
	for i := range ps.Items {
		p := &ps.Items[i]
		p.X += p.VX
		p.Y += p.VY

		if p.X < 0 {
			p.X = ps.W
		}
		if p.X > ps.W {
			p.X = 0
		}
		if p.Y < 0 {
			p.Y = ps.H
		}
		if p.Y > ps.H {
			p.Y = 0
		}
	}
}

func (ps *Particles) draw(r raster) {
	for _, p := range ps.Items {
		r.dot(p.X, p.Y, p.Size, p.Color, 1)
	}
}
