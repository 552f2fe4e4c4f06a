package audio

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Clip is decoded mono PCM.
type Clip struct {
	Samples    []int16
	SampleRate int
}

// Duration returns the clip length.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// ReadWAV decodes a PCM WAV stream to mono 16-bit samples.
func ReadWAV(r io.ReadSeeker) (Clip, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return Clip{}, fmt.Errorf("%w: invalid wav", ErrNotAudio)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("audio: decode wav: %w", err)
	}
	return clipFromBuffer(buf, int(d.BitDepth))
}

func clipFromBuffer(buf *audio.IntBuffer, bitDepth int) (Clip, error) {
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return Clip{}, fmt.Errorf("%w: empty wav", ErrNotAudio)
	}

	var conv func(int) int16
	switch bitDepth {
	case 8:
		conv = func(v int) int16 { return int16((v - 128) << 8) }
	case 16:
		conv = func(v int) int16 { return int16(v) }
	case 24:
		conv = func(v int) int16 { return int16(v >> 8) }
	case 32:
		conv = func(v int) int16 { return int16(v >> 16) }
	default:
		return Clip{}, fmt.Errorf("%w: %d-bit wav", ErrNotAudio, bitDepth)
	}

	pcm := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		pcm[i] = conv(v)
	}
	return Clip{
		Samples:    Downmix(pcm, buf.Format.NumChannels),
		SampleRate: buf.Format.SampleRate,
	}, nil
}

// OpenWAV reads a WAV file from disk.
func OpenWAV(path string) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, err
	}
	defer f.Close()
	return ReadWAV(f)
}

// Play writes clip into a in real time, one chunk per tick, then closes
// the analyser. It returns early with ctx.Err() if ctx is cancelled.
func Play(ctx context.Context, clip Clip, a *Analyser, chunk time.Duration) error {
	if chunk <= 0 {
		chunk = 20 * time.Millisecond
	}
	per := int(time.Duration(clip.SampleRate) * chunk / time.Second)
	if per < 1 {
		per = 1
	}

	ticker := time.NewTicker(chunk)
	defer ticker.Stop()
	defer a.Close()

	for off := 0; off < len(clip.Samples); off += per {
		end := min(off+per, len(clip.Samples))
		a.WritePCM(clip.Samples[off:end])

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
