// Package clock provides the monotonic time source used for reaction, elapsed and lap
// timing, plus a controllable clock for tests and replays.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time. All timestamps of one race episode must come from
// the same Clock.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock with its monotonic reading.
type System struct{}

// Now returns time.Now().
func (System) Now() time.Time {
	return time.Now()
}

// Manual is a Clock that only moves when told to.
type Manual struct {
	mu  sync.RWMutex
	now time.Time
}

// NewManual creates a manual clock starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

// Set jumps to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// AdvanceSeconds moves the clock forward by a fractional number of seconds, which is
// how frame deltas arrive from the render loop.
func (m *Manual) AdvanceSeconds(s float64) {
	m.Advance(time.Duration(s * float64(time.Second)))
}
