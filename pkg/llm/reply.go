// Package llm classifies user utterances into a reply text plus the
// emotion the avatar should show while answering.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/teslashibe/go-avatar/pkg/face"
)

// Speaking duration bounds in milliseconds.
const (
	MinSpeakingMillis     = 2000
	MaxSpeakingMillis     = 5000
	DefaultSpeakingMillis = 3000
)

// DefaultIntensity is used when a reply omits or garbles the intensity.
const DefaultIntensity = 0.5

// FallbackText is spoken when classification fails.
const FallbackText = "Sorry, I had a problem processing your message."

// Classifier turns an utterance into a Reply.
type Classifier interface {
	Classify(ctx context.Context, text string) (Reply, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, text string) (Reply, error)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, text string) (Reply, error) {
	return f(ctx, text)
}

// Reply is the structured answer for one utterance.
type Reply struct {
	Response         string       `json:"response"`
	Emotion          face.Emotion `json:"emotion"`
	EmotionIntensity float64      `json:"emotion_intensity"`
	SpeakingDuration int          `json:"speaking_duration"`
}

// SafeReply is the neutral reply substituted on any failure.
func SafeReply() Reply {
	return Reply{
		Response:         FallbackText,
		Emotion:          face.EmotionNeutral,
		EmotionIntensity: DefaultIntensity,
		SpeakingDuration: DefaultSpeakingMillis,
	}
}

// Duration returns the speaking duration clamped to the supported range.
// Zero means unspecified and yields the default.
func (r Reply) Duration() time.Duration {
	ms := r.SpeakingDuration
	switch {
	case ms <= 0:
		ms = DefaultSpeakingMillis
	case ms < MinSpeakingMillis:
		ms = MinSpeakingMillis
	case ms > MaxSpeakingMillis:
		ms = MaxSpeakingMillis
	}
	return time.Duration(ms) * time.Millisecond
}

// Normalize returns r with a known emotion and an intensity in [0,1].
func (r Reply) Normalize() Reply {
	r.Emotion = face.ParseEmotion(string(r.Emotion))
	switch {
	case math.IsNaN(r.EmotionIntensity):
		r.EmotionIntensity = DefaultIntensity
	case r.EmotionIntensity < 0:
		r.EmotionIntensity = 0
	case r.EmotionIntensity > 1:
		r.EmotionIntensity = 1
	}
	r.Response = strings.TrimSpace(r.Response)
	return r
}

type wireReply struct {
	Response         string   `json:"response"`
	Emotion          string   `json:"emotion"`
	EmotionIntensity *float64 `json:"emotion_intensity"`
	SpeakingDuration *float64 `json:"speaking_duration"`
}

// ParseReply decodes a model reply. Markdown code fences and text around
// the JSON object are ignored.
func ParseReply(raw string) (Reply, error) {
	body := extractJSON(raw)
	if body == "" {
		return Reply{}, ErrEmptyReply
	}
	var w wireReply
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return Reply{}, fmt.Errorf("llm: decode reply: %w", err)
	}
	r := Reply{
		Response:         w.Response,
		Emotion:          face.Emotion(w.Emotion),
		EmotionIntensity: DefaultIntensity,
	}
	if w.EmotionIntensity != nil {
		r.EmotionIntensity = *w.EmotionIntensity
	}
	if w.SpeakingDuration != nil {
		r.SpeakingDuration = int(*w.SpeakingDuration)
	}
	return r.Normalize(), nil
}

func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return strings.TrimSpace(s)
	}
	return s[start : end+1]
}

// Prompt builds the instruction sent to a remote model for text.
func Prompt(text string) string {
	labels := make([]string, len(face.Emotions))
	for i, e := range face.Emotions {
		labels[i] = string(e)
	}
	var b strings.Builder
	b.WriteString("Read the user's message and answer naturally, in the user's language.\n")
	b.WriteString("Also choose the emotion the avatar's face should show while answering.\n\n")
	fmt.Fprintf(&b, "Message: %q\n\n", text)
	b.WriteString("Reply with a single JSON object:\n")
	b.WriteString("{\n")
	b.WriteString("  \"response\": \"your answer\",\n")
	fmt.Fprintf(&b, "  \"emotion\": \"%s\",\n", strings.Join(labels, "|"))
	b.WriteString("  \"emotion_intensity\": 0.1-1.0,\n")
	fmt.Fprintf(&b, "  \"speaking_duration\": %d-%d\n", MinSpeakingMillis, MaxSpeakingMillis)
	b.WriteString("}\n")
	return b.String()
}
