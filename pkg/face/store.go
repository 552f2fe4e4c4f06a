package face

import (
	"sync"
	"time"
)

// Partial is a merge update; nil fields are left unchanged.
type Partial struct {
	EyeOpenness     *float64 `json:"eye_openness,omitempty"`
	MouthOpenness   *float64 `json:"mouth_openness,omitempty"`
	MouthCurvature  *float64 `json:"mouth_curvature,omitempty"`
	EyebrowPosition *float64 `json:"eyebrow_position,omitempty"`
}

// Set returns a pointer to v for building a Partial.
func Set(v float64) *float64 { return &v }

// Full returns a Partial that sets every field from p.
func Full(p Params) Partial {
	return Partial{
		EyeOpenness:     Set(p.EyeOpenness),
		MouthOpenness:   Set(p.MouthOpenness),
		MouthCurvature:  Set(p.MouthCurvature),
		EyebrowPosition: Set(p.EyebrowPosition),
	}
}

// Empty reports whether the partial sets nothing.
func (p Partial) Empty() bool {
	return p.EyeOpenness == nil && p.MouthOpenness == nil && p.MouthCurvature == nil && p.EyebrowPosition == nil
}

// Apply merges p onto base, clamping the written values.
func (p Partial) Apply(base Params) Params {
	for f, v := range p.fields() {
		base.set(f, unit(v, base.get(f)))
	}
	return base
}

func (p Partial) fields() map[Field]float64 {
	m := make(map[Field]float64, numFields)
	if p.EyeOpenness != nil {
		m[FieldEyeOpenness] = *p.EyeOpenness
	}
	if p.MouthOpenness != nil {
		m[FieldMouthOpenness] = *p.MouthOpenness
	}
	if p.MouthCurvature != nil {
		m[FieldMouthCurvature] = *p.MouthCurvature
	}
	if p.EyebrowPosition != nil {
		m[FieldEyebrowPosition] = *p.EyebrowPosition
	}
	return m
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithResolver sets the conflict policy. The default is LastWriteWins.
func WithResolver(r Resolver) StoreOption {
	return func(s *Store) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithClock sets the clock used to timestamp writes.
func WithClock(c Clock) StoreOption {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// Store holds the current animation parameters. It is safe for concurrent
// use; readers get copies.
type Store struct {
	mu       sync.RWMutex
	writes   [numFields][]Write
	seq      uint64
	resolver Resolver
	clock    Clock

	subMu  sync.Mutex
	subs   map[int]chan Params
	nextID int
	closed bool
}

// NewStore creates a store seeded with initial, recorded as baseline writes.
func NewStore(initial Params, opts ...StoreOption) *Store {
	s := &Store{
		resolver: LastWriteWins{},
		clock:    RealClock{},
		subs:     make(map[int]chan Params),
	}
	for _, opt := range opts {
		opt(s)
	}
	initial = initial.Clamped()
	now := s.clock.Now()
	for f := Field(0); f < numFields; f++ {
		s.writes[f] = []Write{{Source: SourceBaseline, Value: initial.get(f), At: now}}
	}
	return s
}

// Update merges p into the store as a direct write.
func (s *Store) Update(p Partial) {
	s.UpdateFrom(SourceDirect, p)
}

// UpdateFrom merges p into the store, recording src as the writer of every
// field p sets. Written values are clamped to [0,1].
func (s *Store) UpdateFrom(src Source, p Partial) {
	fields := p.fields()
	if len(fields) == 0 {
		return
	}

	s.mu.Lock()
	now := s.clock.Now()
	for f, v := range fields {
		s.seq++
		prev := s.resolveLocked(f, now)
		w := Write{Source: src, Value: unit(v, prev), At: now, Seq: s.seq}
		s.writes[f] = replaceWrite(s.writes[f], w)
	}
	snap := s.currentLocked(now)
	s.mu.Unlock()

	s.publish(snap)
}

func replaceWrite(ws []Write, w Write) []Write {
	for i := range ws {
		if ws[i].Source == w.Source {
			ws[i] = w
			return ws
		}
	}
	return append(ws, w)
}

// Current returns a copy of the resolved parameters.
func (s *Store) Current() Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentLocked(s.clock.Now())
}

// Writes returns the latest write per source for f, for diagnostics.
func (s *Store) Writes(f Field) []Write {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f < 0 || f >= numFields {
		return nil
	}
	return append([]Write(nil), s.writes[f]...)
}

func (s *Store) currentLocked(now time.Time) Params {
	var p Params
	for f := Field(0); f < numFields; f++ {
		p.set(f, s.resolveLocked(f, now))
	}
	return p.Clamped()
}

func (s *Store) resolveLocked(f Field, now time.Time) float64 {
	return s.resolver.Resolve(f, s.writes[f], now)
}

// Subscribe returns a channel receiving the resolved parameters after every
// update. Slow subscribers miss snapshots rather than block writers. Call
// cancel to release the subscription.
func (s *Store) Subscribe() (<-chan Params, func(), error) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.closed {
		return nil, nil, ErrStoreClosed
	}
	id := s.nextID
	s.nextID++
	ch := make(chan Params, 8)
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel, nil
}

func (s *Store) publish(p Params) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- p:
		default:
		}
	}
}

// Close closes every subscription channel.
func (s *Store) Close() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
