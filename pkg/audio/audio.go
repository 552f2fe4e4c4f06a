// Package audio feeds live speech audio into a time-domain analyser that
// the speech sampler reads once per frame.
//
// Every feed decodes to 16-bit mono PCM and writes it into an Analyser.
// The analyser exposes the most recent window as unsigned bytes centred at
// 128, the same representation browsers hand out for time-domain data.
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
)

// DefaultWindow is the analysis window in samples.
const DefaultWindow = 2048

// Silence is the time-domain byte value for zero amplitude.
const Silence = 128

var (
	// ErrDisconnected is returned by a Source once its feed has ended.
	ErrDisconnected = errors.New("audio: source disconnected")

	// ErrNotAudio is returned when a track or file carries no usable audio.
	ErrNotAudio = errors.New("audio: not an audio stream")

	// ErrUnsupportedCodec is returned for tracks not encoded with Opus.
	ErrUnsupportedCodec = errors.New("audio: unsupported codec")
)

// Source provides time-domain audio data.
type Source interface {
	// ReadTimeDomain fills buf with the latest len(buf) samples, oldest
	// first. It returns ErrDisconnected when the feed has ended.
	ReadTimeDomain(buf []byte) error
}

// ToTimeDomain converts a signed 16-bit sample to a byte centred at 128.
func ToTimeDomain(s int16) byte {
	return byte(int(s)>>8 + Silence)
}

// PCM16LE decodes little-endian signed 16-bit samples. A trailing odd byte
// is ignored.
func PCM16LE(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return out
}

// Analyser keeps the most recent window of samples. It is safe for one
// writer and any number of readers.
type Analyser struct {
	mu     sync.Mutex
	ring   []int16
	pos    int
	filled int
	total  uint64
	closed bool
}

// NewAnalyser creates an analyser holding window samples. A non-positive
// window uses DefaultWindow.
func NewAnalyser(window int) *Analyser {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Analyser{ring: make([]int16, window)}
}

// Window returns the analyser size in samples.
func (a *Analyser) Window() int { return len(a.ring) }

// WritePCM appends mono samples.
func (a *Analyser) WritePCM(samples []int16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	for _, s := range samples {
		a.ring[a.pos] = s
		a.pos = (a.pos + 1) % len(a.ring)
	}
	a.filled = min(a.filled+len(samples), len(a.ring))
	a.total += uint64(len(samples))
}

// WriteBytes appends little-endian PCM16 mono samples.
func (a *Analyser) WriteBytes(b []byte) {
	a.WritePCM(PCM16LE(b))
}

// Samples returns how many samples have been written in total.
func (a *Analyser) Samples() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

// ReadTimeDomain implements Source. Positions with no data yet read as
// silence.
func (a *Analyser) ReadTimeDomain(buf []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrDisconnected
	}

	n := len(a.ring)
	have := a.filled
	for i := range buf {
		// i counts from the oldest requested sample.
		back := len(buf) - i
		if back > have || back > n {
			buf[i] = Silence
			continue
		}
		idx := (a.pos - back + n) % n
		buf[i] = ToTimeDomain(a.ring[idx])
	}
	return nil
}

// Close marks the feed as ended.
func (a *Analyser) Close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
}

// Closed reports whether Close was called.
func (a *Analyser) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// Downmix averages interleaved channels into mono. Trailing samples that
// do not fill a whole frame are dropped.
func Downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	out := make([]int16, len(samples)/channels)
	for i := range out {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += int(samples[i*channels+c])
		}
		out[i] = int16(sum / channels)
	}
	return out
}

// closeOnCancel closes c when ctx is cancelled, unblocking a pending read.
// The returned stop ends the watch; call it when the reader returns.
func closeOnCancel(ctx context.Context, c io.Closer) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}
