package contour

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"strings"

	"github.com/teslashibe/go-avatar/internal/httpc"
)

// Trace colours.
var (
	Background = color.RGBA{0, 0, 0, 255}
	Cyan       = color.RGBA{0, 255, 255, 255}
	Glow       = color.RGBA{255, 255, 255, 255}
)

// GlowThreshold is the intensity above which a point gets a white overlay.
const GlowThreshold = 0.7

// Grayscale converts img to a row-major 8-bit raster using the plain
// average of the red, green and blue channels.
func Grayscale(img image.Image) (gray []uint8, width, height int) {
	b := img.Bounds()
	width, height = b.Dx(), b.Dy()
	gray = make([]uint8, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			avg := (float64(r>>8) + float64(g>>8) + float64(bl>>8)) / 3
			gray[y*width+x] = uint8(math.Round(avg))
		}
	}
	return gray, width, height
}

// Render paints points onto a black canvas: each point cyan with alpha equal
// to its intensity, then a white overlay at half intensity for points above
// GlowThreshold.
func Render(points []Point, width, height int) *image.RGBA {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{Background}, image.Point{}, draw.Src)

	for _, p := range points {
		blend(img, p.X, p.Y, Cyan, p.Intensity)
	}
	for _, p := range points {
		if p.Intensity > GlowThreshold {
			blend(img, p.X, p.Y, Glow, p.Intensity*0.5)
		}
	}
	return img
}

func blend(img *image.RGBA, x, y int, c color.RGBA, alpha float64) {
	if !(image.Point{x, y}.In(img.Rect)) {
		return
	}
	alpha = math.Max(0, math.Min(1, alpha))
	dst := img.RGBAAt(x, y)
	mix := func(d, s uint8) uint8 {
		return uint8(math.Round(float64(d)*(1-alpha) + float64(s)*alpha))
	}
	img.SetRGBA(x, y, color.RGBA{mix(dst.R, c.R), mix(dst.G, c.G), mix(dst.B, c.B), 255})
}

// Decode decodes PNG or JPEG bytes.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupportedFormat
		}
		return nil, err
	}
	if img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	return img, nil
}

// Load reads an image from a local path or an http(s) URL.
func Load(ctx context.Context, src string) (image.Image, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		data, err = httpc.Fetch(ctx, src)
	} else {
		data, err = os.ReadFile(src)
	}
	if err != nil {
		return nil, fmt.Errorf("contour: load %s: %w", src, err)
	}
	return Decode(data)
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// Trace runs d over the grayscale of img. A nil d uses Sobel.
func Trace(d Detector, img image.Image, threshold float64) ([]Point, error) {
	if d == nil {
		d = Sobel{}
	}
	gray, w, h := Grayscale(img)
	return d.Detect(gray, w, h, threshold)
}
