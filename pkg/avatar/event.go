package avatar

import (
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-avatar/pkg/face"
	"github.com/teslashibe/go-avatar/pkg/llm"
)

// Kind names a session transition.
type Kind string

const (
	KindListening  Kind = "listening"
	KindThinking   Kind = "thinking"
	KindSpeaking   Kind = "speaking"
	KindEmotion    Kind = "emotion"
	KindTranscript Kind = "transcript"
	KindUtterance  Kind = "utterance"
	KindReply      Kind = "reply"
	KindSpoken     Kind = "spoken"
	KindExpire     Kind = "expire"
	KindBaseline   Kind = "baseline"
	KindFlush      Kind = "flush"
)

// Event is one queued transition. Only the fields relevant to Kind are set.
type Event struct {
	ID   uuid.UUID
	Kind Kind
	At   time.Time

	Flag      bool
	Emotion   face.Emotion
	Intensity float64
	Text      string
	Final     bool
	Reply     llm.Reply
	Baseline  face.Params
	Err       error

	// Utterance links reply and spoken events to the utterance that
	// started them.
	Utterance uuid.UUID

	fire func()
	done chan struct{}
}

// Exchange is the outcome of one utterance: what the user said and how
// the avatar answered. Err is set when classification failed and the safe
// reply was substituted.
type Exchange struct {
	ID    uuid.UUID
	Text  string
	Reply llm.Reply
	Err   error
}
