package speech

import "math"

// Voice activity thresholds in dBFS with hysteresis.
const (
	VADOnThreshold  = -35.0
	VADOffThreshold = -45.0

	// VADAttackFrames is how many loud frames switch activity on.
	VADAttackFrames = 2

	// VADReleaseFrames is how many quiet frames switch it off.
	VADReleaseFrames = 8
)

// VAD is a level-based voice activity detector over time-domain buffers.
// Not safe for concurrent use.
type VAD struct {
	on    bool
	above int
	below int
}

// Active reports the current activity state.
func (v *VAD) Active() bool { return v.on }

// Update feeds one buffer and reports the activity state and whether it
// changed on this frame.
func (v *VAD) Update(buf []byte) (active, changed bool) {
	db := LevelDBFS(buf)
	was := v.on

	switch {
	case db >= VADOnThreshold:
		v.above++
		v.below = 0
		if !v.on && v.above >= VADAttackFrames {
			v.on = true
		}
	case db <= VADOffThreshold:
		v.below++
		v.above = 0
		if v.on && v.below >= VADReleaseFrames {
			v.on = false
		}
	}
	return v.on, v.on != was
}

// Reset clears the detector.
func (v *VAD) Reset() {
	*v = VAD{}
}

// LevelDBFS returns the RMS level of a 128-centred buffer in dBFS.
func LevelDBFS(buf []byte) float64 {
	if len(buf) == 0 {
		return -100
	}
	var sum float64
	for _, b := range buf {
		s := (float64(b) - 128) / 128
		sum += s * s
	}
	rms := math.Sqrt(sum/float64(len(buf)) + 1e-12)
	return 20 * math.Log10(rms+1e-12)
}
