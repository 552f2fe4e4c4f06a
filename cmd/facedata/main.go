// Command facedata writes a simulated face analysis document: 468 seeded
// landmarks, oval contours and eye and mouth openness. cmd/avatar reads it
// with -analysis.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/teslashibe/go-avatar/pkg/analysis"
)

func main() {
	out := flag.String("out", "face_analysis.json", "Output path, or - for stdout")
	seed := flag.Int64("seed", 0, "Random seed (0 uses the current time)")
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	data, err := analysis.Simulate(*seed).Marshal()
	if err != nil {
		fmt.Fprintf(os.Stderr, "facedata: %v\n", err)
		os.Exit(1)
	}

	if *out == "-" {
		os.Stdout.Write(append(data, '\n'))
		return
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "facedata: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s (seed %d)\n", *out, *seed)
}
