package race

import (
	"slices"
	"time"

	"github.com/race/dragrace/internal/clock"
)

// Timer is a deferred callback owned by a Scheduler.
type Timer struct {
	seq      uint64
	episode  uint64
	deadline time.Time
	fn       func()
	canceled bool
}

// Cancel prevents the timer from firing. Safe to call more than once and after the
// timer has fired.
func (t *Timer) Cancel() {
	if t != nil {
		t.canceled = true
	}
}

// Scheduler runs deferred callbacks on the frame loop. Nothing fires on its own: Run is
// called once per tick and executes every timer whose deadline has passed.
//
// Each timer belongs to a race episode. A timer whose episode is no longer current when it
// comes due is discarded without running, so a countdown step scheduled before a reset can
// never touch the next race.
type Scheduler struct {
	clock   clock.Clock
	timers  []*Timer
	nextSeq uint64
}

// NewScheduler creates a scheduler reading deadlines from c.
func NewScheduler(c clock.Clock) *Scheduler {
	return &Scheduler{clock: c}
}

// After schedules fn to run once delay has passed, provided episode is still current.
func (s *Scheduler) After(episode uint64, delay time.Duration, fn func()) *Timer {
	t := &Timer{
		seq:      s.nextSeq,
		episode:  episode,
		deadline: s.clock.Now().Add(delay),
		fn:       fn,
	}
	s.nextSeq++
	s.timers = append(s.timers, t)
	return t
}

// CancelAll cancels every pending timer.
func (s *Scheduler) CancelAll() {
	for _, t := range s.timers {
		t.canceled = true
	}
	s.timers = nil
}

// Pending returns the number of timers that have neither fired nor been canceled.
func (s *Scheduler) Pending() int {
	n := 0
	for _, t := range s.timers {
		if !t.canceled {
			n++
		}
	}
	return n
}

// Run fires due timers in deadline order. Timers scheduled by a callback are picked up in
// the same call if they are already due.
func (s *Scheduler) Run(currentEpisode func() uint64) {
	for {
		now := s.clock.Now()
		s.timers = slices.DeleteFunc(s.timers, func(t *Timer) bool {
			return t.canceled || t.episode != currentEpisode()
		})

		var due *Timer
		for _, t := range s.timers {
			if t.deadline.After(now) {
				continue
			}
			if due == nil || t.deadline.Before(due.deadline) ||
				(t.deadline.Equal(due.deadline) && t.seq < due.seq) {
				due = t
			}
		}
		if due == nil {
			return
		}

		due.canceled = true
		due.fn()
	}
}
