package face

import "math"

// MapEmotion converts an emotion label and intensity into animation
// parameters around the given baseline. Intensity is clamped to [0,1] and
// NaN is treated as 0.5. Every output field is clamped to [0,1].
//
// MapEmotion is pure and safe for concurrent use.
func MapEmotion(emotion Emotion, intensity float64, baseline Params) Params {
	if math.IsNaN(intensity) {
		intensity = 0.5
	}
	i := clamp(intensity, 0, 1)
	b := baseline.Clamped()
	out := b

	switch emotion {
	case EmotionHappy:
		out.EyeOpenness = math.Max(0.3, b.EyeOpenness-0.2*i)
		out.MouthCurvature = Neutral + 0.4*i
		out.EyebrowPosition = Neutral + 0.2*i
	case EmotionSad:
		out.EyeOpenness = math.Max(0.2, b.EyeOpenness-0.3*i)
		out.MouthCurvature = Neutral - 0.3*i
		out.EyebrowPosition = Neutral - 0.3*i
	case EmotionAngry:
		out.EyeOpenness = math.Min(0.8, b.EyeOpenness+0.2*i)
		out.MouthCurvature = Neutral - 0.2*i
		out.EyebrowPosition = Neutral - 0.4*i
	case EmotionSurprised:
		out.EyeOpenness = math.Min(1, b.EyeOpenness+0.4*i)
		out.EyebrowPosition = Neutral + 0.4*i
		out.MouthOpenness = math.Min(0.8, b.MouthOpenness+0.3*i)
	case EmotionThinking:
		out.EyeOpenness = b.EyeOpenness - 0.1
		out.EyebrowPosition = Neutral + 0.1*i
	}

	return out.Clamped()
}

// BaselineSource supplies the resting face, typically from facial analysis.
type BaselineSource interface {
	Baseline() Params
}

// BaselineFunc adapts a function to BaselineSource.
type BaselineFunc func() Params

// Baseline implements BaselineSource.
func (f BaselineFunc) Baseline() Params { return f() }

// StaticBaseline always returns the same params.
type StaticBaseline Params

// Baseline implements BaselineSource.
func (s StaticBaseline) Baseline() Params { return Params(s) }

// Mapper maps emotions against a baseline source.
type Mapper struct {
	Source BaselineSource
}

// Map maps emotion at intensity against the current baseline. A nil source
// uses DefaultBaseline.
func (m Mapper) Map(emotion Emotion, intensity float64) Params {
	base := DefaultBaseline()
	if m.Source != nil {
		base = m.Source.Baseline()
	}
	return MapEmotion(emotion, intensity, base)
}
