package render

import (
	"image/color"
	"math"

	"github.com/teslashibe/go-avatar/pkg/face"
)

// Reference layout size; geometry scales with the shorter canvas side.
const referenceSize = 300.0

// Ellipse is an axis-aligned ellipse.
type Ellipse struct {
	CX, CY, RX, RY float64
}

// Segment is a straight line.
type Segment struct {
	X0, Y0, X1, Y1 float64
}

// Curve is a quadratic Bezier curve.
type Curve struct {
	P0, Ctrl, P2 vec2
}

// Mid returns the curve point at t=0.5.
func (c Curve) Mid() (x, y float64) {
	return 0.25*c.P0.X + 0.5*c.Ctrl.X + 0.25*c.P2.X,
		0.25*c.P0.Y + 0.5*c.Ctrl.Y + 0.25*c.P2.Y
}

// FaceGeometry is the 2D face for one set of parameters, in pixels with y
// pointing down.
type FaceGeometry struct {
	Scale     float64
	Outline   Ellipse
	LeftEye   Ellipse
	RightEye  Ellipse
	LeftBrow  Segment
	RightBrow Segment

	// UpperLip carries the curvature. Its middle sits above its corners for
	// a frown and below them for a smile.
	UpperLip Curve

	// LowerLip shares the corners and drops by the mouth aperture.
	LowerLip Curve
}

// ComputeGeometry lays out the face for params on a width x height canvas.
func ComputeGeometry(p face.Params, width, height int) FaceGeometry {
	p = p.Clamped()
	s := math.Min(float64(width), float64(height)) / referenceSize
	cx, cy := float64(width)/2, float64(height)/2

	eyeY := cy - 20*s
	eyeRY := 8 * s * p.EyeOpenness

	mouthY := cy + 30*s
	curve := (p.MouthCurvature - face.Neutral) * 20 * s
	open := p.MouthOpenness * 15 * s

	browY := cy - 35*s + (face.Neutral-p.EyebrowPosition)*10*s

	left := vec2{cx - 20*s, mouthY - curve}
	right := vec2{cx + 20*s, mouthY - curve}

	return FaceGeometry{
		Scale:     s,
		Outline:   Ellipse{CX: cx, CY: cy, RX: 80 * s, RY: 100 * s},
		LeftEye:   Ellipse{CX: cx - 25*s, CY: eyeY, RX: 15 * s, RY: eyeRY},
		RightEye:  Ellipse{CX: cx + 25*s, CY: eyeY, RX: 15 * s, RY: eyeRY},
		LeftBrow:  Segment{X0: cx - 35*s, Y0: browY, X1: cx - 15*s, Y1: browY},
		RightBrow: Segment{X0: cx + 15*s, Y0: browY, X1: cx + 35*s, Y1: browY},
		UpperLip:  Curve{P0: left, Ctrl: vec2{cx, mouthY + curve}, P2: right},
		LowerLip:  Curve{P0: left, Ctrl: vec2{cx, mouthY + curve + 2*open}, P2: right},
	}
}

// Emotion stroke colours.
var emotionColors = map[face.Emotion]color.RGBA{
	face.EmotionHappy:     {0x00, 0xff, 0x00, 0xff},
	face.EmotionSad:       {0x00, 0x66, 0xff, 0xff},
	face.EmotionAngry:     {0xff, 0x33, 0x00, 0xff},
	face.EmotionSurprised: {0xff, 0xff, 0x00, 0xff},
	face.EmotionThinking:  {0xff, 0x66, 0x00, 0xff},
	face.EmotionNeutral:   {0x00, 0xff, 0xff, 0xff},
}

// EmotionColor returns the stroke colour for e, cyan when unknown.
func EmotionColor(e face.Emotion) color.RGBA {
	if c, ok := emotionColors[e]; ok {
		return c
	}
	return emotionColors[face.EmotionNeutral]
}

// drawFace strokes g in c.
func drawFace(r raster, g FaceGeometry, c color.RGBA) {
	w := math.Max(1, 2*g.Scale)

	r.ellipse(g.Outline.CX, g.Outline.CY, g.Outline.RX, g.Outline.RY, 0, w, c, 1)
	for _, eye := range []Ellipse{g.LeftEye, g.RightEye} {
		if eye.RY < 0.5 {
			r.line(eye.CX-eye.RX, eye.CY, eye.CX+eye.RX, eye.CY, w, c, 1)
			continue
		}
		r.ellipse(eye.CX, eye.CY, eye.RX, eye.RY, 0, w, c, 1)
	}
	for _, b := range []Segment{g.LeftBrow, g.RightBrow} {
		r.line(b.X0, b.Y0, b.X1, b.Y1, w, c, 1)
	}

	r.fillLens(g.UpperLip, g.LowerLip, c, 0.35)
	r.quad(g.UpperLip, w, c, 1)
	r.quad(g.LowerLip, w, c, 1)
}
