package render

import (
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"
)

// raster strokes and fills antialiased primitives onto an RGBA frame with
// a gg context. Colours carry their own alpha per call.
type raster struct {
	dc *gg.Context
}

func newRaster(img *image.RGBA) raster {
	dc := gg.NewContextForRGBA(img)
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)
	return raster{dc: dc}
}

func (r raster) width() int { return r.dc.Width() }

func (r raster) clear(c color.RGBA) {
	r.dc.SetColor(c)
	r.dc.Clear()
}

func (r raster) pen(c color.RGBA, alpha float64) {
	a := math.Max(0, math.Min(1, alpha))
	r.dc.SetColor(color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(math.Round(a * 255))})
}

// dot fills a disc of radius rad.
func (r raster) dot(cx, cy, rad float64, c color.RGBA, alpha float64) {
	if alpha <= 0 {
		return
	}
	r.pen(c, alpha)
	r.dc.DrawCircle(cx, cy, math.Max(rad, 0.5))
	r.dc.Fill()
}

func (r raster) line(x0, y0, x1, y1 float64, width float64, c color.RGBA, alpha float64) {
	if alpha <= 0 {
		return
	}
	r.pen(c, alpha)
	r.dc.SetLineWidth(width)
	r.dc.DrawLine(x0, y0, x1, y1)
	r.dc.Stroke()
}

// ellipse strokes an ellipse rotated by rot radians about its centre.
func (r raster) ellipse(cx, cy, rx, ry, rot, width float64, c color.RGBA, alpha float64) {
	if alpha <= 0 {
		return
	}
	r.pen(c, alpha)
	r.dc.SetLineWidth(width)
	r.dc.Push()
	if rot != 0 {
		r.dc.RotateAbout(rot, cx, cy)
	}
	r.dc.DrawEllipse(cx, cy, rx, ry)
	r.dc.Stroke()
	r.dc.Pop()
}

func (r raster) circle(cx, cy, rad, width float64, c color.RGBA, alpha float64) {
	r.ellipse(cx, cy, rad, rad, 0, width, c, alpha)
}

// quad strokes a quadratic Bezier curve.
func (r raster) quad(q Curve, width float64, c color.RGBA, alpha float64) {
	r.pen(c, alpha)
	r.dc.SetLineWidth(width)
	r.dc.MoveTo(q.P0.X, q.P0.Y)
	r.dc.QuadraticTo(q.Ctrl.X, q.Ctrl.Y, q.P2.X, q.P2.Y)
	r.dc.Stroke()
}

// fillLens fills the region between two curves that share their end
// points.
func (r raster) fillLens(top, bottom Curve, c color.RGBA, alpha float64) {
	r.pen(c, alpha)
	r.dc.MoveTo(top.P0.X, top.P0.Y)
	r.dc.QuadraticTo(top.Ctrl.X, top.Ctrl.Y, top.P2.X, top.P2.Y)
	r.dc.QuadraticTo(bottom.Ctrl.X, bottom.Ctrl.Y, bottom.P0.X, bottom.P0.Y)
	r.dc.ClosePath()
	r.dc.Fill()
}

type vec2 struct{ X, Y float64 }

// hsl converts hue in degrees, saturation and lightness in [0,1] to RGB.
func hsl(h, s, l float64) color.RGBA {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	cr, cg, cb := colorful.Hsl(h, s, l).Clamped().RGB255()
	return color.RGBA{cr, cg, cb, 255}
}
