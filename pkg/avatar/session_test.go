package avatar

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-avatar/internal/log"
	"github.com/teslashibe/go-avatar/pkg/face"
	"github.com/teslashibe/go-avatar/pkg/llm"
)

func startSession(t *testing.T, opts ...Option) (*Session, context.CancelFunc) {
	t.Helper()
	opts = append([]Option{WithLogger(log.Discard())}, opts...)
	s := New(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s, cancel
}

func flush(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Flush(ctx))
}

func TestEmotionDwellThroughQueue(t *testing.T) {
	clock := face.NewManualClock(time.Unix(0, 0))
	s, _ := startSession(t, WithClock(clock))

	require.NoError(t, s.SetEmotion(face.EmotionHappy, 1))
	flush(t, s)

	snap := s.Snapshot()
	require.Equal(t, face.ExpressionHappy, snap.Expression)
	require.InDelta(t, 0.9, snap.Params.MouthCurvature, 1e-9)

	clock.Advance(face.DwellTime - time.Millisecond)
	flush(t, s)
	require.Equal(t, face.ExpressionHappy, s.Snapshot().Expression)

	clock.Advance(time.Millisecond)
	flush(t, s)
	require.Equal(t, face.ExpressionIdle, s.Snapshot().Expression)
}

func TestNewerEmotionSurvivesOlderDwell(t *testing.T) {
	clock := face.NewManualClock(time.Unix(0, 0))
	s, _ := startSession(t, WithClock(clock))

	require.NoError(t, s.SetEmotion(face.EmotionHappy, 1))
	flush(t, s)
	clock.Advance(2 * time.Second)
	require.NoError(t, s.SetEmotion(face.EmotionSad, 1))
	flush(t, s)

	clock.Advance(time.Second)
	flush(t, s)
	require.Equal(t, face.ExpressionSad, s.Snapshot().Expression)

	clock.Advance(2 * time.Second)
	flush(t, s)
	require.Equal(t, face.ExpressionIdle, s.Snapshot().Expression)
}

func TestFlagPrecedence(t *testing.T) {
	s, _ := startSession(t)

	require.NoError(t, s.SetSpeaking(true))
	require.NoError(t, s.SetThinking(true))
	require.NoError(t, s.SetListening(true))
	flush(t, s)
	require.Equal(t, face.ExpressionListening, s.Snapshot().Expression)

	require.NoError(t, s.SetListening(false))
	flush(t, s)
	require.Equal(t, face.ExpressionThinking, s.Snapshot().Expression)

	require.NoError(t, s.SetThinking(false))
	flush(t, s)
	require.Equal(t, face.ExpressionSpeaking, s.Snapshot().Expression)
}

func exchanges(s *Session) <-chan Exchange {
	ch := make(chan Exchange, 8)
	s.OnExchange(func(x Exchange) { ch <- x })
	return ch
}

func TestSayClassifiesAndSpeaks(t *testing.T) {
	release := make(chan struct{})
	speaker := &MockSpeaker{SpeakFunc: func(ctx context.Context, _ string, _ time.Duration) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}}
	classifier := llm.NewMock(llm.Reply{
		Response:         "Que bom!",
		Emotion:          face.EmotionHappy,
		EmotionIntensity: 0.8,
		SpeakingDuration: 2500,
	})
	s, _ := startSession(t, WithClassifier(classifier), WithSpeaker(speaker))
	xs := exchanges(s)

	id, err := s.Say("estou feliz")
	require.NoError(t, err)

	var x Exchange
	select {
	case x = <-xs:
	case <-time.After(2 * time.Second):
		t.Fatal("no exchange")
	}
	require.Equal(t, id, x.ID)
	require.NoError(t, x.Err)
	require.Equal(t, "Que bom!", x.Reply.Response)

	flush(t, s)
	snap := s.Snapshot()
	require.True(t, snap.Speaking)
	require.False(t, snap.Thinking)
	require.Equal(t, face.EmotionHappy, snap.Emotion)
	require.Equal(t, face.ExpressionSpeaking, snap.Expression)
	require.True(t, s.vibrator.Running())

	close(release)
	require.Eventually(t, func() bool {
		return !s.Snapshot().Speaking
	}, 2*time.Second, 10*time.Millisecond)
	require.False(t, s.vibrator.Running())

	calls := speaker.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "Que bom!", calls[0].Text)
	require.Equal(t, 2500*time.Millisecond, calls[0].Duration)
	require.Equal(t, []string{"estou feliz"}, classifier.Calls())
}

func TestClassificationFailureUsesSafeReply(t *testing.T) {
	classifier := &llm.Mock{Err: errors.New("network down")}
	s, _ := startSession(t, WithClassifier(classifier), WithSpeaker(&MockSpeaker{}))
	xs := exchanges(s)

	_, err := s.Say("hello")
	require.NoError(t, err)

	x := <-xs
	require.Error(t, x.Err)
	require.Equal(t, llm.SafeReply(), x.Reply)

	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return !snap.Speaking && !snap.Thinking
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, face.EmotionNeutral, s.Snapshot().Emotion)
}

func TestUtteranceDroppedWhileBusy(t *testing.T) {
	var once sync.Once
	entered := make(chan struct{})
	release := make(chan struct{})
	classifier := &llm.Mock{ClassifyFunc: func(ctx context.Context, text string) (llm.Reply, error) {
		once.Do(func() { close(entered) })
		<-release
		return llm.Reply{Emotion: face.EmotionNeutral, EmotionIntensity: 0.5}, nil
	}}
	s, _ := startSession(t, WithClassifier(classifier), WithSpeaker(&MockSpeaker{}))

	_, err := s.Say("first")
	require.NoError(t, err)
	<-entered
	_, err = s.Say("second")
	require.NoError(t, err)
	flush(t, s)
	close(release)

	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return !snap.Thinking && !snap.Speaking
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"first"}, classifier.Calls())
}

func TestInterimTranscriptFiresOnSilence(t *testing.T) {
	classifier := llm.NewMock(llm.Reply{Emotion: face.EmotionSurprised, EmotionIntensity: 1})
	s, _ := startSession(t,
		WithClassifier(classifier),
		WithSpeaker(&MockSpeaker{}),
		WithSilence(5*time.Millisecond, 30*time.Millisecond),
	)

	require.NoError(t, s.Transcript("que", false))
	require.NoError(t, s.Transcript("que incrível", false))
	flush(t, s)
	require.True(t, s.Snapshot().Listening)

	require.Eventually(t, func() bool {
		return len(classifier.Calls()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, "que incrível", classifier.Calls()[0])

	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return !snap.Listening && !snap.Speaking && snap.Emotion == face.EmotionSurprised
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFinalTranscriptSkipsSilence(t *testing.T) {
	classifier := llm.NewMock(llm.Reply{Emotion: face.EmotionSad, EmotionIntensity: 0.5})
	s, _ := startSession(t, WithClassifier(classifier), WithSpeaker(&MockSpeaker{}))

	require.NoError(t, s.Transcript("  ", true))
	require.NoError(t, s.Transcript("fiquei triste", true))

	require.Eventually(t, func() bool {
		return len(classifier.Calls()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.False(t, s.silence.Pending())
}

func TestSetBaseline(t *testing.T) {
	s, _ := startSession(t)

	require.NoError(t, s.SetBaseline(face.Params{EyeOpenness: 0.9, MouthOpenness: 0.1, MouthCurvature: 0.5, EyebrowPosition: 0.5}))
	flush(t, s)
	p := s.Store().Current()
	require.InDelta(t, 0.9, p.EyeOpenness, 1e-9)
	require.InDelta(t, 0.1, p.MouthOpenness, 1e-9)

	require.NoError(t, s.SetEmotion(face.EmotionSurprised, 1))
	flush(t, s)
	require.InDelta(t, 0.4, s.Store().Current().MouthOpenness, 1e-9)
}

func TestSnapshotHandlers(t *testing.T) {
	s, _ := startSession(t)
	var mu sync.Mutex
	var got []face.Expression
	s.OnSnapshot(func(snap face.Snapshot) {
		mu.Lock()
		got = append(got, snap.Expression)
		mu.Unlock()
	})

	require.NoError(t, s.SetThinking(true))
	require.NoError(t, s.SetThinking(false))
	flush(t, s)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []face.Expression{face.ExpressionThinking, face.ExpressionIdle}, got)
}

func TestClosedSession(t *testing.T) {
	s := New(WithLogger(log.Discard()))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	flush(t, s)

	require.ErrorIs(t, s.Run(context.Background()), ErrRunning)

	cancel()
	require.NoError(t, <-done)
	require.ErrorIs(t, s.SetListening(true), ErrClosed)
	require.ErrorIs(t, s.Flush(context.Background()), ErrClosed)
}

func TestTimedSpeaker(t *testing.T) {
	clock := face.NewManualClock(time.Unix(0, 0))
	sp := TimedSpeaker{Clock: clock}

	done := make(chan error, 1)
	go func() { done <- sp.Speak(context.Background(), "oi", time.Second) }()

	require.Eventually(t, func() bool { return clock.Pending() == 1 }, time.Second, time.Millisecond)
	select {
	case <-done:
		t.Fatal("returned before the clock advanced")
	default:
	}
	clock.Advance(time.Second)
	require.NoError(t, <-done)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sp.Speak(ctx, "oi", time.Hour), context.Canceled)
}
