package face

import (
	"sync"
	"testing"
	"time"
)

func TestStorePartialUpdatePreservesOtherFields(t *testing.T) {
	s := NewStore(Params{EyeOpenness: 0.5, MouthOpenness: 0.3, MouthCurvature: 0.5, EyebrowPosition: 0.5})
	s.Update(Partial{MouthOpenness: Set(0.8)})

	got := s.Current()
	want := Params{EyeOpenness: 0.5, MouthOpenness: 0.8, MouthCurvature: 0.5, EyebrowPosition: 0.5}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestStoreClampsWrites(t *testing.T) {
	s := NewStore(DefaultBaseline())
	s.Update(Partial{EyeOpenness: Set(1.7), MouthCurvature: Set(-0.2)})

	got := s.Current()
	if got.EyeOpenness != 1 {
		t.Errorf("EyeOpenness: got %v, want 1", got.EyeOpenness)
	}
	if got.MouthCurvature != 0 {
		t.Errorf("MouthCurvature: got %v, want 0", got.MouthCurvature)
	}
}

func TestStoreCurrentIsCopy(t *testing.T) {
	s := NewStore(DefaultBaseline())
	p := s.Current()
	p.EyeOpenness = 0.99
	if s.Current().EyeOpenness == 0.99 {
		t.Error("mutating returned params changed the store")
	}
}

func TestStoreLastWriteWins(t *testing.T) {
	s := NewStore(DefaultBaseline())
	s.UpdateFrom(SourceEmotion, Partial{EyeOpenness: Set(0.3)})
	s.UpdateFrom(SourceSpeech, Partial{EyeOpenness: Set(0.9)})
	if got := s.Current().EyeOpenness; got != 0.9 {
		t.Errorf("after speech: got %v, want 0.9", got)
	}
	s.UpdateFrom(SourceEmotion, Partial{EyeOpenness: Set(0.4)})
	if got := s.Current().EyeOpenness; got != 0.4 {
		t.Errorf("after emotion: got %v, want 0.4", got)
	}
}

func TestStoreBlendResolver(t *testing.T) {
	r, err := ParseResolver("blend")
	if err != nil {
		t.Fatal(err)
	}
	s := NewStore(DefaultBaseline(), WithResolver(r))
	s.UpdateFrom(SourceEmotion, Partial{EyeOpenness: Set(0.3), MouthCurvature: Set(0.9)})
	s.UpdateFrom(SourceSpeech, Partial{EyeOpenness: Set(0.9), MouthOpenness: Set(0.1)})

	got := s.Current()
	if !near(got.EyeOpenness, 0.6) {
		t.Errorf("blended eye: got %v, want 0.6", got.EyeOpenness)
	}
	if got.MouthOpenness != 0.1 {
		t.Errorf("unblended mouth: got %v, want 0.1", got.MouthOpenness)
	}
	if got.MouthCurvature != 0.9 {
		t.Errorf("unblended curvature: got %v, want 0.9", got.MouthCurvature)
	}
}

func TestStorePriorityResolver(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	r, err := ParseResolver("priority")
	if err != nil {
		t.Fatal(err)
	}
	s := NewStore(DefaultBaseline(), WithResolver(r), WithClock(clock))

	s.UpdateFrom(SourceSpeech, Partial{EyeOpenness: Set(0.8)})
	clock.Advance(10 * time.Millisecond)
	s.UpdateFrom(SourceEmotion, Partial{EyeOpenness: Set(0.3)})

	if got := s.Current().EyeOpenness; got != 0.8 {
		t.Errorf("while speech fresh: got %v, want 0.8", got)
	}

	clock.Advance(DefaultHold + time.Millisecond)
	if got := s.Current().EyeOpenness; got != 0.3 {
		t.Errorf("after speech stale: got %v, want 0.3", got)
	}
}

func TestParseResolverUnknown(t *testing.T) {
	if _, err := ParseResolver("loudest"); err == nil {
		t.Error("expected error for unknown policy")
	}
	for _, name := range []string{"", "last-write", "blend", "priority"} {
		if _, err := ParseResolver(name); err != nil {
			t.Errorf("ParseResolver(%q): %v", name, err)
		}
	}
}

func TestStoreSubscribe(t *testing.T) {
	s := NewStore(DefaultBaseline())
	ch, cancel, err := s.Subscribe()
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	s.Update(Partial{EyebrowPosition: Set(0.75)})
	select {
	case p := <-ch:
		if p.EyebrowPosition != 0.75 {
			t.Errorf("published: got %v, want 0.75", p.EyebrowPosition)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot published")
	}

	s.Close()
	if _, _, err := s.Subscribe(); err != ErrStoreClosed {
		t.Errorf("subscribe after close: got %v, want ErrStoreClosed", err)
	}
}

func TestStoreConcurrentWriters(t *testing.T) {
	s := NewStore(DefaultBaseline())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				v := float64(j%10) / 10
				if i%2 == 0 {
					s.UpdateFrom(SourceSpeech, Partial{MouthOpenness: Set(v), EyeOpenness: Set(1 - v)})
				} else {
					s.UpdateFrom(SourceEmotion, Full(MapEmotion(EmotionHappy, v, DefaultBaseline())))
				}
				_ = s.Current()
			}
		}(i)
	}
	wg.Wait()

	p := s.Current()
	for f := Field(0); f < numFields; f++ {
		if v := p.get(f); v < 0 || v > 1 {
			t.Errorf("%s out of range: %v", f, v)
		}
	}
}
