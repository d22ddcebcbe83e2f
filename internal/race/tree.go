package race

import (
	"time"

	"github.com/race/dragrace/config"
)

// TreeSequencer drives the start-light sequence of a drag store: staging, stage bulbs,
// three yellows and green, one step per timer.
type TreeSequencer struct {
	store   *Store
	sched   *Scheduler
	pending *Timer
	cancel  func()
}

// NewTreeSequencer attaches a sequencer to store. Timers are placed on sched, which the
// caller runs every tick.
func NewTreeSequencer(store *Store, sched *Scheduler) *TreeSequencer {
	t := &TreeSequencer{store: store, sched: sched}
	t.cancel = store.Subscribe(t.onChange)
	return t
}

// Close detaches the sequencer and cancels its pending step.
func (t *TreeSequencer) Close() {
	t.pending.Cancel()
	t.pending = nil
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

func (t *TreeSequencer) onChange(prev, next Snapshot) {
	if prev.Episode == next.Episode && prev.Phase == next.Phase && prev.TreeState == next.TreeState {
		return
	}
	t.pending.Cancel()
	t.pending = nil

	episode := next.Episode
	switch {
	case next.Phase == PhaseStaging:
		t.schedule(episode, PhaseStaging, config.StagingDelay, t.store.StartCountdown)
	case next.Phase == PhaseCountdown && next.TreeState < config.TreeLastYellow:
		t.schedule(episode, PhaseCountdown, config.TreeStepInterval, t.store.AdvanceTree)
	case next.Phase == PhaseCountdown && next.TreeState == config.TreeLastYellow:
		t.schedule(episode, PhaseCountdown, config.TreeStepInterval, t.store.GoGreen)
	}
}

func (t *TreeSequencer) schedule(episode uint64, phase Phase, delay time.Duration, step func()) {
	t.pending = t.sched.After(episode, delay, func() {
		if t.store.Episode() != episode || t.store.Phase() != phase {
			return
		}
		step()
	})
}
