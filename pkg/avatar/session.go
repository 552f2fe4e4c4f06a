// Package avatar runs an avatar session: it owns the face state and
// drives it from user utterances, emotion classifications and speech.
//
// All state changes go through one event queue consumed by Session.Run, so
// timers and background work (dwell expiry, silence detection, language
// model calls, speech playback) never touch the face directly.
package avatar

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-avatar/pkg/face"
	"github.com/teslashibe/go-avatar/pkg/llm"
	"github.com/teslashibe/go-avatar/pkg/speech"
)

// DefaultQueueSize is the event buffer length.
const DefaultQueueSize = 64

// Option configures a Session.
type Option func(*Session)

// WithStore uses an existing parameter store, for example one built with
// a non-default resolver.
func WithStore(st *face.Store) Option {
	return func(s *Session) { s.store = st }
}

// WithBaseline sets the initial resting face.
func WithBaseline(src face.BaselineSource) Option {
	return func(s *Session) {
		if src != nil {
			p := src.Baseline().Clamped()
			s.baseline.Store(&p)
		}
	}
}

// WithClassifier sets the utterance classifier. The default is the offline
// keyword heuristic.
func WithClassifier(c llm.Classifier) Option {
	return func(s *Session) { s.classifier = c }
}

// WithSpeaker sets the speaker. The default is a TimedSpeaker.
func WithSpeaker(sp Speaker) Option {
	return func(s *Session) { s.speaker = sp }
}

// WithClock sets the clock for timestamps and dwell timers.
func WithClock(c face.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithDwell overrides face.DwellTime.
func WithDwell(d time.Duration) Option {
	return func(s *Session) { s.dwell = d }
}

// WithSilence overrides the silence detector timing.
func WithSilence(poll, threshold time.Duration) Option {
	return func(s *Session) { s.poll, s.threshold = poll, threshold }
}

// WithQueueSize sets the event buffer length.
func WithQueueSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// Session is one avatar's lifetime.
type Session struct {
	id         uuid.UUID
	store      *face.Store
	state      *face.State
	classifier llm.Classifier
	speaker    Speaker
	vibrator   *speech.Vibrator
	silence    *speech.SilenceDetector
	clock      face.Clock
	logger     *slog.Logger
	dwell      time.Duration
	poll       time.Duration
	threshold  time.Duration
	queueSize  int

	baseline atomic.Pointer[face.Params]

	events    chan Event
	done      chan struct{}
	running   atomic.Bool
	closeOnce sync.Once

	mu         sync.Mutex
	onSnapshot []func(face.Snapshot)
	onExchange []func(Exchange)

	// Owned by Run.
	busy    bool
	current uuid.UUID
}

// New creates a session. Call Run to start processing events.
func New(opts ...Option) *Session {
	s := &Session{
		id:        uuid.New(),
		clock:     face.RealClock{},
		dwell:     face.DwellTime,
		poll:      speech.SilencePoll,
		threshold: speech.SilenceThreshold,
		queueSize: DefaultQueueSize,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "avatar", "session", s.id.String())
	if s.baseline.Load() == nil {
		p := face.DefaultBaseline()
		s.baseline.Store(&p)
	}
	if s.store == nil {
		s.store = face.NewStore(*s.baseline.Load(), face.WithClock(s.clock))
	}
	if s.classifier == nil {
		s.classifier = llm.Keyword{}
	}
	if s.speaker == nil {
		s.speaker = TimedSpeaker{Clock: s.clock}
	}

	s.events = make(chan Event, s.queueSize)
	s.vibrator = speech.NewVibrator(s.store, nil)
	s.silence = &speech.SilenceDetector{
		Poll:      s.poll,
		Threshold: s.threshold,
		OnSilence: func(text string) {
			s.post(Event{Kind: KindUtterance, Text: text})
		},
	}
	s.state = face.NewState(s.store,
		face.WithStateClock(s.clock),
		face.WithBaseline(face.BaselineFunc(s.currentBaseline)),
		face.WithScheduler(s.scheduleExpire),
		face.WithDwell(s.dwell),
		face.WithOnChange(s.notifySnapshot),
	)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// State returns the face state. Read it freely; mutate it only through
// the session's transitions.
func (s *Session) State() *face.State { return s.state }

// Store returns the parameter store.
func (s *Session) Store() *face.Store { return s.store }

// Snapshot returns the current face snapshot.
func (s *Session) Snapshot() face.Snapshot { return s.state.Snapshot() }

// OnSnapshot registers fn to receive every state change. Handlers run on
// the session goroutine and must not block.
func (s *Session) OnSnapshot(fn func(face.Snapshot)) {
	s.mu.Lock()
	s.onSnapshot = append(s.onSnapshot, fn)
	s.mu.Unlock()
}

// OnExchange registers fn to receive every answered utterance.
func (s *Session) OnExchange(fn func(Exchange)) {
	s.mu.Lock()
	s.onExchange = append(s.onExchange, fn)
	s.mu.Unlock()
}

// SetListening queues a listening transition.
func (s *Session) SetListening(v bool) error {
	return s.post(Event{Kind: KindListening, Flag: v})
}

// SetThinking queues a thinking transition.
func (s *Session) SetThinking(v bool) error {
	return s.post(Event{Kind: KindThinking, Flag: v})
}

// SetSpeaking queues a speaking transition.
func (s *Session) SetSpeaking(v bool) error {
	return s.post(Event{Kind: KindSpeaking, Flag: v})
}

// SetEmotion queues an emotion at intensity.
func (s *Session) SetEmotion(e face.Emotion, intensity float64) error {
	return s.post(Event{Kind: KindEmotion, Emotion: e, Intensity: intensity})
}

// Transcript queues recognised speech. Interim text restarts the silence
// detector; final text is processed at once.
func (s *Session) Transcript(text string, final bool) error {
	return s.post(Event{Kind: KindTranscript, Text: text, Final: final})
}

// Say queues a complete user utterance and returns its ID.
func (s *Session) Say(text string) (uuid.UUID, error) {
	ev := Event{Kind: KindUtterance, Text: text}
	ev.ID = uuid.New()
	return ev.ID, s.post(ev)
}

// SetBaseline replaces the resting face, for example after the analysis
// document changed.
func (s *Session) SetBaseline(p face.Params) error {
	return s.post(Event{Kind: KindBaseline, Baseline: p})
}

// Flush waits until every event queued before the call has been handled.
func (s *Session) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if err := s.post(Event{Kind: KindFlush, done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run consumes events until ctx is done. A session runs at most once.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer s.shutdown()

	s.logger.Info("session started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session stopped")
			return nil
		case ev := <-s.events:
			s.handle(ctx, ev)
		}
	}
}

func (s *Session) shutdown() {
	s.silence.Cancel()
	s.vibrator.Stop()
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Session) post(ev Event) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	ev.At = s.clock.Now()

	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

func (s *Session) handle(ctx context.Context, ev Event) {
	s.logger.Debug("event", "kind", ev.Kind, "id", ev.ID)

	switch ev.Kind {
	case KindListening:
		s.state.SetListening(ev.Flag)
	case KindThinking:
		s.state.SetThinking(ev.Flag)
	case KindSpeaking:
		s.state.SetSpeaking(ev.Flag)
	case KindEmotion:
		s.state.SetEmotion(ev.Emotion, ev.Intensity)
	case KindTranscript:
		s.transcript(ctx, ev)
	case KindUtterance:
		s.startUtterance(ctx, ev.ID, ev.Text)
	case KindReply:
		s.reply(ctx, ev)
	case KindSpoken:
		s.spoken(ev)
	case KindExpire:
		if ev.fire != nil {
			ev.fire()
		}
	case KindBaseline:
		p := ev.Baseline.Clamped()
		s.baseline.Store(&p)
		s.store.UpdateFrom(face.SourceBaseline, face.Partial{
			EyeOpenness:   face.Set(p.EyeOpenness),
			MouthOpenness: face.Set(p.MouthOpenness),
		})
		s.notifySnapshot(s.state.Snapshot())
	case KindFlush:
		close(ev.done)
	default:
		s.logger.Warn("unknown event", "kind", ev.Kind)
	}
}

func (s *Session) transcript(ctx context.Context, ev Event) {
	if ev.Final {
		s.silence.Cancel()
		s.startUtterance(ctx, ev.ID, ev.Text)
		return
	}
	if strings.TrimSpace(ev.Text) == "" {
		return
	}
	if !s.busy {
		s.state.SetListening(true)
	}
	s.silence.Touch(ev.Text)
}

func (s *Session) startUtterance(ctx context.Context, id uuid.UUID, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if s.busy {
		s.logger.Info("utterance dropped while processing", "id", id)
		return
	}
	s.busy = true
	s.current = id
	s.state.SetListening(false)
	s.state.SetThinking(true)

	classifier := s.classifier
	go func() {
		reply, err := llm.ClassifyOrSafe(ctx, classifier, text)
		s.post(Event{Kind: KindReply, Utterance: id, Text: text, Reply: reply, Err: err})
	}()
}

func (s *Session) reply(ctx context.Context, ev Event) {
	if ev.Utterance != s.current {
		return
	}
	if ev.Err != nil {
		s.logger.Warn("classification failed, using safe reply", "error", ev.Err)
	}
	r := ev.Reply

	s.state.SetThinking(false)
	s.state.SetEmotion(r.Emotion, r.EmotionIntensity)
	s.state.SetSpeaking(true)
	s.vibrator.Start()
	s.notifyExchange(Exchange{ID: ev.Utterance, Text: ev.Text, Reply: r, Err: ev.Err})

	speaker := s.speaker
	id := ev.Utterance
	go func() {
		err := speaker.Speak(ctx, r.Response, r.Duration())
		s.post(Event{Kind: KindSpoken, Utterance: id, Err: err})
	}()
}

func (s *Session) spoken(ev Event) {
	if ev.Utterance != s.current {
		return
	}
	if ev.Err != nil {
		s.logger.Warn("speech failed", "error", ev.Err)
	}
	s.vibrator.Stop()
	s.state.SetSpeaking(false)
	s.busy = false
	s.current = uuid.Nil
}

func (s *Session) scheduleExpire(d time.Duration, f func()) {
	s.clock.AfterFunc(d, func() {
		s.post(Event{Kind: KindExpire, fire: f})
	})
}

func (s *Session) currentBaseline() face.Params {
	if p := s.baseline.Load(); p != nil {
		return *p
	}
	return face.DefaultBaseline()
}

func (s *Session) notifySnapshot(snap face.Snapshot) {
	s.mu.Lock()
	handlers := append([]func(face.Snapshot){}, s.onSnapshot...)
	s.mu.Unlock()
	for _, fn := range handlers {
		fn(snap)
	}
}

func (s *Session) notifyExchange(x Exchange) {
	s.mu.Lock()
	handlers := append([]func(Exchange){}, s.onExchange...)
	s.mu.Unlock()
	for _, fn := range handlers {
		fn(x)
	}
}
