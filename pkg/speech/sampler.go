// Package speech derives mouth and eye movement from live speech: per-frame
// amplitude sampling, voice activity with hysteresis, silence detection and
// the mouth vibration played while the avatar talks.
package speech

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/teslashibe/go-avatar/pkg/audio"
	"github.com/teslashibe/go-avatar/pkg/face"
)

// MouthGain scales normalised volume into mouth openness.
const MouthGain = 1.5

// AverageVolume returns the mean deviation of a time-domain buffer from its
// 128 centre, scaled to 0..255. An empty buffer is silent.
func AverageVolume(buf []byte) float64 {
	if len(buf) == 0 {
		return 0
	}
	var sum float64
	for _, b := range buf {
		sum += math.Abs(float64(b) - audio.Silence)
	}
	return sum / float64(len(buf)) * 255 / 128
}

// MouthFromVolume maps an average volume to mouth openness, and eye
// openness as its complement.
func MouthFromVolume(volume float64) (mouth, eye float64) {
	mouth = clamp(volume/255*MouthGain, 0, 1)
	return mouth, 1 - mouth
}

// Sample is one amplitude reading.
type Sample struct {
	Volume        float64
	MouthOpenness float64
	EyeOpenness   float64
}

// Sampler reads the audio source once per frame and pushes mouth and eye
// openness into the store, tagged as speech.
type Sampler struct {
	src    audio.Source
	store  *face.Store
	buf    []byte
	logger *slog.Logger

	// OnSample, if set, is called after every successful sample.
	OnSample func(Sample)
}

// NewSampler creates a sampler with a window of size bytes. A non-positive
// size uses audio.DefaultWindow.
func NewSampler(src audio.Source, store *face.Store, size int, logger *slog.Logger) *Sampler {
	if size <= 0 {
		size = audio.DefaultWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{
		src:    src,
		store:  store,
		buf:    make([]byte, size),
		logger: logger.With("component", "speech.sampler"),
	}
}

// Sample takes one reading and writes it to the store. Eye openness is
// overwritten on every sample; the store's resolver decides whether it
// wins over the emotion mapping.
func (s *Sampler) Sample() (Sample, error) {
	if err := s.src.ReadTimeDomain(s.buf); err != nil {
		return Sample{}, err
	}
	vol := AverageVolume(s.buf)
	mouth, eye := MouthFromVolume(vol)
	s.store.UpdateFrom(face.SourceSpeech, face.Partial{
		MouthOpenness: face.Set(mouth),
		EyeOpenness:   face.Set(eye),
	})

	smp := Sample{Volume: vol, MouthOpenness: mouth, EyeOpenness: eye}
	if s.OnSample != nil {
		s.OnSample(smp)
	}
	return smp, nil
}

// Run samples on every tick until the source disconnects or ctx ends.
// A disconnected source ends Run with a nil error.
func (s *Sampler) Run(ctx context.Context, ticks <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ticks:
			if !ok {
				return nil
			}
			if _, err := s.Sample(); err != nil {
				if errors.Is(err, audio.ErrDisconnected) {
					s.logger.Info("audio source disconnected, sampler stopped")
					return nil
				}
				return err
			}
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
