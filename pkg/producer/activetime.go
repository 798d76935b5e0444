package producer

import (
	"math"
	"sync"
	"time"

	"github.com/jdziat/pagetrack-go/pkg/event"
)

// DefaultTickInterval is the period of active_time_tick.
const DefaultTickInterval = 30 * time.Minute

// ActiveTime measures how long the page stays visible. It records
// session_start when the page becomes visible, session_end with the
// elapsed seconds when it is hidden or torn down, and active_time_tick
// every tick interval in between.
type ActiveTime struct {
	tracker  Tracker
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	active bool
	start  time.Time
	stop   chan struct{}
	done   chan struct{}
}

// ActiveTimeOption configures ActiveTime.
type ActiveTimeOption func(*ActiveTime)

// WithTickInterval sets the tick period.
func WithTickInterval(d time.Duration) ActiveTimeOption {
	return func(a *ActiveTime) {
		if d > 0 {
			a.interval = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ActiveTimeOption {
	return func(a *ActiveTime) {
		a.now = now
	}
}

// NewActiveTime creates the producer. Call Start to begin the first session.
func NewActiveTime(t Tracker, opts ...ActiveTimeOption) *ActiveTime {
	a := &ActiveTime{tracker: t, interval: DefaultTickInterval, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start begins an active period. It does nothing if one is running.
func (a *ActiveTime) Start() bool {
	a.mu.Lock()
	if a.active {
		a.mu.Unlock()
		return false
	}
	a.active = true
	a.start = a.now()
	a.stop = make(chan struct{})
	a.done = make(chan struct{})
	go a.tick(a.stop, a.done)
	a.mu.Unlock()

	a.tracker.Track(event.TypeSessionStart, nil)
	return true
}

// End closes the active period and records its duration. It does
// nothing if no period is running.
func (a *ActiveTime) End() bool {
	a.mu.Lock()
	if !a.active {
		a.mu.Unlock()
		return false
	}
	a.active = false
	close(a.stop)
	done := a.done
	elapsed := a.now().Sub(a.start)
	a.mu.Unlock()
	<-done

	secs := int64(math.Round(elapsed.Seconds()))
	a.tracker.Track(event.TypeSessionEnd, SessionEnd{DurationSec: secs})
	return true
}

// VisibilityChanged ends the period when the page is hidden and starts a
// new one when it is visible again.
func (a *ActiveTime) VisibilityChanged(hidden bool) {
	if hidden {
		a.End()
	} else {
		a.Start()
	}
}

// PageHide ends the period.
func (a *ActiveTime) PageHide() {
	a.End()
}

// Active reports whether a period is running.
func (a *ActiveTime) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// Stop halts the tick goroutine without recording session_end.
func (a *ActiveTime) Stop() {
	a.mu.Lock()
	done := a.done
	if a.active {
		a.active = false
		close(a.stop)
	}
	a.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (a *ActiveTime) tick(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			a.tracker.Track(event.TypeActiveTimeTick, nil)
		}
	}
}
