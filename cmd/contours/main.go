// Command contours traces the edges of an image and writes the glowing
// contour rendering as PNG, or the edge points as JSON.
//
// Usage:
//
//	contours -in face.jpg -out contours.png
//	contours -in https://example.com/face.png -json points.json -threshold 40
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-avatar/internal/log"
	"github.com/teslashibe/go-avatar/pkg/contour"
)

func main() {
	in := flag.String("in", "", "Input image path or URL (required)")
	out := flag.String("out", "contours.png", "Output PNG path")
	jsonOut := flag.String("json", "", "Write edge points as JSON to this path instead of a PNG")
	threshold := flag.Float64("threshold", contour.DefaultThreshold, "Gradient magnitude threshold")
	backend := flag.String("backend", "go", "Edge detector: go or opencv")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debug {
		log.Init("debug")
	}
	if *in == "" {
		fmt.Fprintln(os.Stderr, "contours: -in is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *in, *out, *jsonOut, *threshold, *backend); err != nil {
		fmt.Fprintf(os.Stderr, "contours: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, in, out, jsonOut string, threshold float64, backend string) error {
	det, err := detector(backend)
	if err != nil {
		return err
	}

	img, err := contour.Load(ctx, in)
	if err != nil {
		return err
	}
	points, err := contour.Trace(det, img, threshold)
	if err != nil {
		return err
	}
	b := img.Bounds()
	log.Info("traced", "backend", backend, "width", b.Dx(), "height", b.Dy(), "points", len(points))

	if jsonOut != "" {
		data, err := json.Marshal(points)
		if err != nil {
			return err
		}
		return os.WriteFile(jsonOut, data, 0o644)
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := contour.EncodePNG(f, contour.Render(points, b.Dx(), b.Dy())); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
