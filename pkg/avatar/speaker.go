package avatar

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/go-avatar/pkg/face"
)

// Speaker voices a reply. Speak blocks until the utterance has finished
// or ctx is done.
type Speaker interface {
	Speak(ctx context.Context, text string, d time.Duration) error
}

// SpeakerFunc adapts a function to Speaker.
type SpeakerFunc func(ctx context.Context, text string, d time.Duration) error

// Speak calls f.
func (f SpeakerFunc) Speak(ctx context.Context, text string, d time.Duration) error {
	return f(ctx, text, d)
}

// TimedSpeaker produces no audio; it holds the speaking state for the
// requested duration.
type TimedSpeaker struct {
	Clock face.Clock
}

// Speak waits d on the speaker's clock.
func (s TimedSpeaker) Speak(ctx context.Context, _ string, d time.Duration) error {
	clock := s.Clock
	if clock == nil {
		clock = face.RealClock{}
	}
	done := make(chan struct{})
	t := clock.AfterFunc(d, func() { close(done) })
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		t.Stop()
		return ctx.Err()
	}
}

// MockSpeaker records utterances for tests. With SpeakFunc nil it returns
// immediately.
type MockSpeaker struct {
	SpeakFunc func(ctx context.Context, text string, d time.Duration) error

	mu    sync.Mutex
	calls []SpeakCall
}

// SpeakCall records one Speak invocation.
type SpeakCall struct {
	Text     string
	Duration time.Duration
}

// Speak records the call and runs SpeakFunc.
func (m *MockSpeaker) Speak(ctx context.Context, text string, d time.Duration) error {
	m.mu.Lock()
	m.calls = append(m.calls, SpeakCall{Text: text, Duration: d})
	fn := m.SpeakFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, text, d)
	}
	return nil
}

// Calls returns the recorded calls.
func (m *MockSpeaker) Calls() []SpeakCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SpeakCall, len(m.calls))
	copy(out, m.calls)
	return out
}
