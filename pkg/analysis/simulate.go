package analysis

import (
	"math"
	"math/rand"
	"time"
)

// Values written by Simulate.
const (
	SimulatedLandmarks     = 468
	SimulatedEyeOpenness   = 0.6
	SimulatedMouthOpenness = 0.3
)

// contour outlines as centre, radii and point count, in normalised
// coordinates with the face centred at (0.5, 0.5).
var simulatedContours = []struct {
	name   string
	cx, cy float64
	rx, ry float64
	n      int
}{
	{"face_oval", 0.5, 0.5, 0.35, 0.45, 36},
	{"left_eye", 0.36, 0.4, 0.07, 0.03, 16},
	{"right_eye", 0.64, 0.4, 0.07, 0.03, 16},
	{"left_eyebrow", 0.36, 0.32, 0.09, 0.015, 10},
	{"right_eyebrow", 0.64, 0.32, 0.09, 0.015, 10},
	{"nose", 0.5, 0.52, 0.04, 0.08, 9},
	{"mouth", 0.5, 0.7, 0.12, 0.04, 20},
}

// Simulate produces a mocked analysis document. The same seed always
// yields the same landmarks.
func Simulate(seed int64) *Document {
	rng := rand.New(rand.NewSource(seed))

	landmarks := make([]Point, SimulatedLandmarks)
	for i := range landmarks {
		// Points scattered inside the face oval.
		a := rng.Float64() * 2 * math.Pi
		r := math.Sqrt(rng.Float64())
		landmarks[i] = Point{0.5 + 0.35*r*math.Cos(a), 0.5 + 0.45*r*math.Sin(a)}
	}

	contours := make(map[string][]Point, len(simulatedContours))
	for _, c := range simulatedContours {
		pts := make([]Point, c.n)
		for i := range pts {
			a := float64(i) / float64(c.n) * 2 * math.Pi
			j := 1 + (rng.Float64()-0.5)*0.04
			pts[i] = Point{c.cx + c.rx*j*math.Cos(a), c.cy + c.ry*j*math.Sin(a)}
		}
		contours[c.name] = pts
	}

	eye := SimulatedEyeOpenness
	mouth := SimulatedMouthOpenness
	width, height := 0.24, 0.08
	return &Document{
		LandmarksCount: SimulatedLandmarks,
		Landmarks:      landmarks,
		Features: &Features{
			Eyes: &Eyes{
				LeftOpenness:    &eye,
				RightOpenness:   &eye,
				AverageOpenness: &eye,
				IsBlinking:      eye < 0.2,
			},
			Mouth: &Mouth{
				Width:       &width,
				Height:      &height,
				AspectRatio: &mouth,
				IsOpen:      mouth > 0.15,
			},
		},
		Emotion: &EmotionEstimate{
			Dominant:   "neutral",
			Confidence: 1,
			Scores: map[string]float64{
				"neutral":   0.7,
				"happy":     0.1,
				"sad":       0.1,
				"angry":     0.05,
				"surprised": 0.05,
			},
		},
		Contours:  contours,
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
	}
}
