// Package analysis reads face-analysis documents: the JSON produced by an
// offline face analyser whose eye and mouth measurements seed the avatar's
// baseline expression.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/teslashibe/go-avatar/internal/httpc"
	"github.com/teslashibe/go-avatar/pkg/face"
)

// ErrEmptyDocument is returned when the input holds no JSON.
var ErrEmptyDocument = errors.New("analysis: empty document")

// Eyes holds eye measurements. Openness values are in [0,1].
type Eyes struct {
	LeftOpenness    *float64 `json:"left_openness,omitempty"`
	RightOpenness   *float64 `json:"right_openness,omitempty"`
	AverageOpenness *float64 `json:"average_openness,omitempty"`
	IsBlinking      bool     `json:"is_blinking"`
}

// Mouth holds mouth measurements.
type Mouth struct {
	Width       *float64 `json:"width,omitempty"`
	Height      *float64 `json:"height,omitempty"`
	AspectRatio *float64 `json:"aspect_ratio,omitempty"`
	IsOpen      bool     `json:"is_open"`
}

// Features groups the measured facial features.
type Features struct {
	Eyes  *Eyes  `json:"eyes,omitempty"`
	Mouth *Mouth `json:"mouth,omitempty"`
}

// EmotionEstimate is the analyser's emotion guess.
type EmotionEstimate struct {
	Dominant   string             `json:"dominant_emotion"`
	Confidence float64            `json:"confidence"`
	Scores     map[string]float64 `json:"scores,omitempty"`
}

// Point is an (x, y) pair in normalised image coordinates.
type Point [2]float64

// Document is a face-analysis document. Every field is optional.
//
// Older analysers wrote eyes and mouth at the top level instead of under
// features; both layouts are accepted and features wins.
type Document struct {
	LandmarksCount int                `json:"landmarks_count"`
	Landmarks      []Point            `json:"landmarks,omitempty"`
	Features       *Features          `json:"features,omitempty"`
	Eyes           *Eyes              `json:"eyes,omitempty"`
	Mouth          *Mouth             `json:"mouth,omitempty"`
	Emotion        *EmotionEstimate   `json:"emotion,omitempty"`
	Contours       map[string][]Point `json:"contours,omitempty"`
	Timestamp      float64            `json:"timestamp,omitempty"`
}

// Parse decodes a document.
func Parse(data []byte) (*Document, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, ErrEmptyDocument
	}
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("analysis: decode: %w", err)
	}
	return &d, nil
}

// Load reads a document from a file path or an http(s) URL.
func Load(ctx context.Context, src string) (*Document, error) {
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
		return nil, fmt.Errorf("analysis: load %s: %w", src, err)
	}
	return Parse(data)
}

// Marshal encodes d as indented JSON.
func (d *Document) Marshal() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

func (d *Document) eyes() *Eyes {
	if d.Features != nil && d.Features.Eyes != nil {
		return d.Features.Eyes
	}
	return d.Eyes
}

func (d *Document) mouth() *Mouth {
	if d.Features != nil && d.Features.Mouth != nil {
		return d.Features.Mouth
	}
	return d.Mouth
}

// EyeOpenness returns the average eye openness and whether it was present
// and finite.
func (d *Document) EyeOpenness() (float64, bool) {
	if d == nil {
		return 0, false
	}
	e := d.eyes()
	if e == nil {
		return 0, false
	}
	return finite(e.AverageOpenness)
}

// MouthOpenness returns the mouth aspect ratio and whether it was present
// and finite.
func (d *Document) MouthOpenness() (float64, bool) {
	if d == nil {
		return 0, false
	}
	m := d.mouth()
	if m == nil {
		return 0, false
	}
	return finite(m.AspectRatio)
}

// Baseline implements face.BaselineSource. Missing values fall back to the
// default baseline; present values are clamped to [0,1].
func (d *Document) Baseline() face.Params {
	p := face.DefaultBaseline()
	if v, ok := d.EyeOpenness(); ok {
		p.EyeOpenness = face.Clamp01(v)
	}
	if v, ok := d.MouthOpenness(); ok {
		p.MouthOpenness = face.Clamp01(v)
	}
	return p
}

func finite(v *float64) (float64, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}
