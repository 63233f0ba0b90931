package round

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// CountdownInterval is how often countdowns are recomputed (10 Hz).
const CountdownInterval = 100 * time.Millisecond

// Ticker calls fn on every tick until stopped. Countdown values are derived
// from absolute timestamps, so a ticker only drives redraws.
type Ticker struct {
	ticker clockwork.Ticker
	done   chan struct{}
	once   sync.Once
}

// NewTicker starts a ticker on clock.
func NewTicker(clock clockwork.Clock, interval time.Duration, fn func(now time.Time)) *Ticker {
	t := &Ticker{
		ticker: clock.NewTicker(interval),
		done:   make(chan struct{}),
	}

	go func() {
		for {
			select {
			case <-t.done:
				return
			case now := <-t.ticker.Chan():
				fn(now)
			}
		}
	}()
	return t
}

// Stop halts the ticker. Safe to call more than once and on a nil Ticker.
func (t *Ticker) Stop() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.done)
	})
}
