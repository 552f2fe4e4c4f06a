// Package face holds the avatar's facial state: the continuous animation
// parameters, the mapping from discrete emotion labels to those parameters,
// the concurrent parameter store and the expression state machine.
package face

import (
	"strings"
	"time"
)

// Params are the continuous animation parameters painted every frame.
// Every field is in [0,1].
type Params struct {
	// EyeOpenness is 0 for closed, 1 for fully open.
	EyeOpenness float64 `json:"eye_openness"`

	// MouthOpenness approximates jaw/lip separation.
	MouthOpenness float64 `json:"mouth_openness"`

	// MouthCurvature is 0.5 for neutral, above for a smile, below for a frown.
	MouthCurvature float64 `json:"mouth_curvature"`

	// EyebrowPosition is 0.5 for neutral, above for raised.
	EyebrowPosition float64 `json:"eyebrow_position"`
}

// Baseline defaults used when no analysis data is available.
const (
	DefaultEyeOpenness   = 0.5
	DefaultMouthOpenness = 0.3
	Neutral              = 0.5
)

// DefaultBaseline returns the neutral face.
func DefaultBaseline() Params {
	return Params{
		EyeOpenness:     DefaultEyeOpenness,
		MouthOpenness:   DefaultMouthOpenness,
		MouthCurvature:  Neutral,
		EyebrowPosition: Neutral,
	}
}

// Clamped returns p with NaN fields replaced by their defaults and every
// field clamped to [0,1].
func (p Params) Clamped() Params {
	d := DefaultBaseline()
	return Params{
		EyeOpenness:     unit(p.EyeOpenness, d.EyeOpenness),
		MouthOpenness:   unit(p.MouthOpenness, d.MouthOpenness),
		MouthCurvature:  unit(p.MouthCurvature, d.MouthCurvature),
		EyebrowPosition: unit(p.EyebrowPosition, d.EyebrowPosition),
	}
}

// Field identifies one animation parameter.
type Field int

const (
	FieldEyeOpenness Field = iota
	FieldMouthOpenness
	FieldMouthCurvature
	FieldEyebrowPosition

	numFields
)

var fieldNames = [numFields]string{"eye_openness", "mouth_openness", "mouth_curvature", "eyebrow_position"}

func (f Field) String() string {
	if f < 0 || f >= numFields {
		return "unknown"
	}
	return fieldNames[f]
}

func (p Params) get(f Field) float64 {
	switch f {
	case FieldEyeOpenness:
		return p.EyeOpenness
	case FieldMouthOpenness:
		return p.MouthOpenness
	case FieldMouthCurvature:
		return p.MouthCurvature
	default:
		return p.EyebrowPosition
	}
}

func (p *Params) set(f Field, v float64) {
	switch f {
	case FieldEyeOpenness:
		p.EyeOpenness = v
	case FieldMouthOpenness:
		p.MouthOpenness = v
	case FieldMouthCurvature:
		p.MouthCurvature = v
	default:
		p.EyebrowPosition = v
	}
}

// Emotion is a discrete emotion label.
type Emotion string

const (
	EmotionNeutral   Emotion = "neutral"
	EmotionHappy     Emotion = "happy"
	EmotionSad       Emotion = "sad"
	EmotionAngry     Emotion = "angry"
	EmotionSurprised Emotion = "surprised"
	EmotionThinking  Emotion = "thinking"
)

// Emotions lists every known label.
var Emotions = []Emotion{EmotionNeutral, EmotionHappy, EmotionSad, EmotionAngry, EmotionSurprised, EmotionThinking}

// ParseEmotion normalises a label. Unknown labels become neutral.
func ParseEmotion(s string) Emotion {
	e := Emotion(strings.ToLower(strings.TrimSpace(s)))
	if e.Known() {
		return e
	}
	return EmotionNeutral
}

// Known reports whether e is one of the defined labels.
func (e Emotion) Known() bool {
	switch e {
	case EmotionNeutral, EmotionHappy, EmotionSad, EmotionAngry, EmotionSurprised, EmotionThinking:
		return true
	}
	return false
}

// Expression is what the renderer draws around the face.
type Expression string

const (
	ExpressionIdle      Expression = "idle"
	ExpressionListening Expression = "listening"
	ExpressionThinking  Expression = "thinking"
	ExpressionSpeaking  Expression = "speaking"
	ExpressionHappy     Expression = "happy"
	ExpressionSurprised Expression = "surprised"
	ExpressionSad       Expression = "sad"
	ExpressionAngry     Expression = "angry"
)

// ExpressionFor returns the expression shown while an emotion dwells.
func ExpressionFor(e Emotion) Expression {
	switch e {
	case EmotionHappy:
		return ExpressionHappy
	case EmotionSurprised:
		return ExpressionSurprised
	case EmotionSad:
		return ExpressionSad
	case EmotionAngry:
		return ExpressionAngry
	case EmotionThinking:
		return ExpressionThinking
	default:
		return ExpressionIdle
	}
}

// Source tags who wrote a parameter.
type Source string

const (
	SourceDirect    Source = "direct"
	SourceBaseline  Source = "baseline"
	SourceEmotion   Source = "emotion"
	SourceSpeech    Source = "speech"
	SourceVibration Source = "vibration"
)

// Snapshot is a consistent view of the face for one frame.
type Snapshot struct {
	Params     Params     `json:"params"`
	Emotion    Emotion    `json:"emotion"`
	Intensity  float64    `json:"intensity"`
	Expression Expression `json:"expression"`
	Listening  bool       `json:"listening"`
	Thinking   bool       `json:"thinking"`
	Speaking   bool       `json:"speaking"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
