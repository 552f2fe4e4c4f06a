package speech

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/teslashibe/go-avatar/pkg/face"
)

// Vibration tuning.
const (
	VibrationInterval = 50 * time.Millisecond

	// VibrationMin and VibrationMax bound the mouth openness while talking.
	VibrationMin = 0.3
	VibrationMax = 1.0

	vibFreqFast = 7.0 // Hz
	vibFreqSlow = 3.3 // Hz
)

// Vibrator animates the mouth while synthesised speech plays. Each tick
// writes a mouth openness in [VibrationMin, VibrationMax] built from two
// fixed-phase oscillators and random jitter. Stop restores the mouth
// openness seen at Start.
type Vibrator struct {
	store    *face.Store
	interval time.Duration

	mu        sync.Mutex
	rng       *rand.Rand
	running   bool
	stop      chan struct{}
	done      chan struct{}
	prevMouth float64
	t         float64
	ticks     int
}

// NewVibrator creates a vibrator. rng may be nil for a time-seeded source.
func NewVibrator(store *face.Store, rng *rand.Rand) *Vibrator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Vibrator{store: store, interval: VibrationInterval, rng: rng}
}

// SetInterval overrides the tick interval. It takes effect on the next Start.
func (v *Vibrator) SetInterval(d time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if d > 0 {
		v.interval = d
	}
}

// Start begins vibrating. Calling Start while running is a no-op.
func (v *Vibrator) Start() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.running {
		return
	}
	v.running = true
	v.prevMouth = v.store.Current().MouthOpenness
	v.t = 0
	v.stop = make(chan struct{})
	v.done = make(chan struct{})
	go v.loop(v.stop, v.done, v.interval)
}

// Stop ends vibration and restores the mouth. Safe to call when stopped.
func (v *Vibrator) Stop() {
	v.mu.Lock()
	if !v.running {
		v.mu.Unlock()
		return
	}
	v.running = false
	close(v.stop)
	done := v.done
	prev := v.prevMouth
	v.mu.Unlock()

	<-done
	v.store.UpdateFrom(face.SourceVibration, face.Partial{MouthOpenness: face.Set(prev)})
}

// Running reports whether the vibrator is active.
func (v *Vibrator) Running() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.running
}

// Ticks returns how many vibration frames have been written.
func (v *Vibrator) Ticks() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ticks
}

func (v *Vibrator) loop(stop, done chan struct{}, interval time.Duration) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			v.mu.Lock()
			v.t += interval.Seconds()
			level := VibrationLevel(v.t, v.rng.Float64())
			v.ticks++
			v.mu.Unlock()

			v.store.UpdateFrom(face.SourceVibration, face.Partial{MouthOpenness: face.Set(level)})
		}
	}
}

// VibrationLevel returns the mouth openness at time t seconds with jitter
// in [0,1].
func VibrationLevel(t, jitter float64) float64 {
	osc := 0.5 +
		0.25*math.Sin(2*math.Pi*vibFreqFast*t+0.7) +
		0.25*math.Sin(2*math.Pi*vibFreqSlow*t+2.1)
	mix := clamp(0.5*osc+0.5*clamp(jitter, 0, 1), 0, 1)
	return VibrationMin + (VibrationMax-VibrationMin)*mix
}
