package speech

import (
	"strings"
	"sync"
	"time"
)

// Silence detection timing.
const (
	SilencePoll      = 100 * time.Millisecond
	SilenceThreshold = 2000 * time.Millisecond
)

// SilenceDetector fires once the speaker has been quiet long enough. Every
// Touch cancels the pending poll and starts a new one; the poll fires
// OnSilence with the latest interim text when more than Threshold has
// passed since the last Touch. Empty text never fires.
type SilenceDetector struct {
	Poll      time.Duration
	Threshold time.Duration
	OnSilence func(text string)

	mu   sync.Mutex
	last time.Time
	text string
	stop chan struct{}
}

// NewSilenceDetector returns a detector with the default timing.
func NewSilenceDetector(onSilence func(text string)) *SilenceDetector {
	return &SilenceDetector{Poll: SilencePoll, Threshold: SilenceThreshold, OnSilence: onSilence}
}

// Touch records a speech event carrying the current interim text.
func (d *SilenceDetector) Touch(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.last = time.Now()
	d.text = text
	if d.stop != nil {
		close(d.stop)
	}
	d.stop = make(chan struct{})
	go d.poll(d.stop)
}

// Cancel stops the pending poll without firing.
func (d *SilenceDetector) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		close(d.stop)
		d.stop = nil
	}
}

// Pending reports whether a poll is running.
func (d *SilenceDetector) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stop != nil
}

func (d *SilenceDetector) poll(stop chan struct{}) {
	poll := d.Poll
	if poll <= 0 {
		poll = SilencePoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			d.mu.Lock()
			if d.stop != stop {
				d.mu.Unlock()
				return
			}
			if now.Sub(d.last) <= d.Threshold {
				d.mu.Unlock()
				continue
			}
			text := strings.TrimSpace(d.text)
			d.stop = nil
			d.mu.Unlock()

			if text != "" && d.OnSilence != nil {
				d.OnSilence(text)
			}
			return
		}
	}
}
