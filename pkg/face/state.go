package face

import (
	"sync"
	"time"
)

// DwellTime is how long an emotion expression shows before reverting to idle.
const DwellTime = 3000 * time.Millisecond

// Scheduler runs f after d. Session owners replace the default timer-based
// scheduler to funnel expiries through their event queue.
type Scheduler func(d time.Duration, f func())

// StateOption configures a State.
type StateOption func(*State)

// WithStateClock sets the clock for timestamps and the default scheduler.
func WithStateClock(c Clock) StateOption {
	return func(s *State) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithBaseline sets the resting face used by SetEmotion.
func WithBaseline(b BaselineSource) StateOption {
	return func(s *State) { s.mapper.Source = b }
}

// WithScheduler overrides how dwell expiries are scheduled.
func WithScheduler(fn Scheduler) StateOption {
	return func(s *State) { s.schedule = fn }
}

// WithDwell overrides DwellTime.
func WithDwell(d time.Duration) StateOption {
	return func(s *State) {
		if d > 0 {
			s.dwell = d
		}
	}
}

// WithOnChange registers a callback invoked after every transition.
func WithOnChange(fn func(Snapshot)) StateOption {
	return func(s *State) { s.onChange = fn }
}

// State is the per-session face: the parameter store plus the expression
// state machine. Expression precedence is listening, thinking, speaking,
// then idle. SetEmotion overrides the expression until its dwell expires.
type State struct {
	store    *Store
	mapper   Mapper
	clock    Clock
	schedule Scheduler
	dwell    time.Duration
	onChange func(Snapshot)

	mu         sync.Mutex
	emotion    Emotion
	intensity  float64
	expression Expression
	listening  bool
	thinking   bool
	speaking   bool
	updated    time.Time
}

// NewState creates a face state over store.
func NewState(store *Store, opts ...StateOption) *State {
	s := &State{
		store:      store,
		clock:      RealClock{},
		dwell:      DwellTime,
		emotion:    EmotionNeutral,
		intensity:  0.5,
		expression: ExpressionIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.schedule == nil {
		clock := s.clock
		s.schedule = func(d time.Duration, f func()) { clock.AfterFunc(d, f) }
	}
	s.updated = s.clock.Now()
	return s
}

// Store returns the underlying parameter store.
func (s *State) Store() *Store { return s.store }

// SetListening toggles the listening flag.
func (s *State) SetListening(v bool) {
	s.transition(func() { s.listening = v; s.recompute() })
}

// SetThinking toggles the thinking flag.
func (s *State) SetThinking(v bool) {
	s.transition(func() { s.thinking = v; s.recompute() })
}

// SetSpeaking toggles the speaking flag.
func (s *State) SetSpeaking(v bool) {
	s.transition(func() { s.speaking = v; s.recompute() })
}

// SetEmotion shows emotion at intensity: the mapped parameters are written
// to the store and the expression switches to the emotion. After the dwell
// time the expression reverts to idle, but only if it still shows this
// emotion and no activity flag is set. Earlier timers are not cancelled;
// when they fire against a newer expression they do nothing.
func (s *State) SetEmotion(e Emotion, intensity float64) {
	if !e.Known() {
		e = EmotionNeutral
	}
	params := s.mapper.Map(e, intensity)
	s.store.UpdateFrom(SourceEmotion, Full(params))

	expr := ExpressionFor(e)
	s.transition(func() {
		s.emotion = e
		s.intensity = Clamp01(intensity)
		s.expression = expr
	})
	s.schedule(s.dwell, func() { s.Expire(expr) })
}

// Expire reverts expr to idle if it is still showing and the face is not
// listening, thinking or speaking. It reports whether a revert happened.
func (s *State) Expire(expr Expression) bool {
	reverted := false
	s.transition(func() {
		if s.expression == expr && !s.listening && !s.thinking && !s.speaking {
			s.expression = ExpressionIdle
			reverted = true
		}
	})
	return reverted
}

// recompute must be called with mu held.
func (s *State) recompute() {
	switch {
	case s.listening:
		s.expression = ExpressionListening
	case s.thinking:
		s.expression = ExpressionThinking
	case s.speaking:
		s.expression = ExpressionSpeaking
	default:
		s.expression = ExpressionIdle
	}
}

func (s *State) transition(fn func()) {
	s.mu.Lock()
	fn()
	s.updated = s.clock.Now()
	snap := s.snapshotLocked()
	cb := s.onChange
	s.mu.Unlock()

	if cb != nil {
		cb(snap)
	}
}

// Expression returns the current expression.
func (s *State) Expression() Expression {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expression
}

// Emotion returns the last emotion set.
func (s *State) Emotion() Emotion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emotion
}

// Snapshot returns a consistent view for one frame.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() Snapshot {
	return Snapshot{
		Params:     s.store.Current(),
		Emotion:    s.emotion,
		Intensity:  s.intensity,
		Expression: s.expression,
		Listening:  s.listening,
		Thinking:   s.thinking,
		Speaking:   s.speaking,
		UpdatedAt:  s.updated,
	}
}
