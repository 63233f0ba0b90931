package voice

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// SpeakingThreshold is the audio level (0-255) at or above which a
	// participant counts as speaking.
	SpeakingThreshold = 30
	// SpeakingHold keeps the indicator on after the level drops.
	SpeakingHold = 500 * time.Millisecond
)

// SpeakingDetector turns raw audio levels into a debounced speaking flag
// per participant.
type SpeakingDetector struct {
	clock    clockwork.Clock
	onChange func(identity string, speaking bool)

	mu       sync.Mutex
	speaking map[string]bool
	release  map[string]clockwork.Timer
}

// NewSpeakingDetector calls onChange whenever a participant starts or stops
// speaking. onChange runs without the detector lock held.
func NewSpeakingDetector(clock clockwork.Clock, onChange func(identity string, speaking bool)) *SpeakingDetector {
	return &SpeakingDetector{
		clock:    clock,
		onChange: onChange,
		speaking: make(map[string]bool),
		release:  make(map[string]clockwork.Timer),
	}
}

// Observe feeds one level sample for identity.
func (d *SpeakingDetector) Observe(identity string, level uint8) {
	d.mu.Lock()
	if level >= SpeakingThreshold {
		if t, ok := d.release[identity]; ok {
			t.Stop()
			delete(d.release, identity)
		}
		if d.speaking[identity] {
			d.mu.Unlock()
			return
		}
		d.speaking[identity] = true
		d.mu.Unlock()
		d.onChange(identity, true)
		return
	}

	if !d.speaking[identity] || d.release[identity] != nil {
		d.mu.Unlock()
		return
	}

	var timer clockwork.Timer
	timer = d.clock.AfterFunc(SpeakingHold, func() {
		d.mu.Lock()
		if d.release[identity] != timer {
			d.mu.Unlock()
			return
		}
		delete(d.release, identity)
		delete(d.speaking, identity)
		d.mu.Unlock()
		d.onChange(identity, false)
	})
	d.release[identity] = timer
	d.mu.Unlock()
}

// Speaking reports the current flag for identity.
func (d *SpeakingDetector) Speaking(identity string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.speaking[identity]
}

// Forget drops identity without emitting a change.
func (d *SpeakingDetector) Forget(identity string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.release[identity]; ok {
		t.Stop()
		delete(d.release, identity)
	}
	delete(d.speaking, identity)
}

// Reset forgets everyone.
func (d *SpeakingDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.release {
		t.Stop()
	}
	d.speaking = make(map[string]bool)
	d.release = make(map[string]clockwork.Timer)
}
