package race

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/race/dragrace/config"
	"github.com/race/dragrace/internal/clock"
)

func TestScheduler(t *testing.T) {
	t.Run("fires due timers in deadline order", func(t *testing.T) {
		clk := clock.NewManual(epoch)
		s := NewScheduler(clk)
		var fired []string
		s.After(1, 300*time.Millisecond, func() { fired = append(fired, "c") })
		s.After(1, 100*time.Millisecond, func() { fired = append(fired, "a") })
		s.After(1, 200*time.Millisecond, func() { fired = append(fired, "b") })

		current := func() uint64 { return 1 }
		s.Run(current)
		assert.Empty(t, fired)

		clk.Advance(250 * time.Millisecond)
		s.Run(current)
		assert.Equal(t, []string{"a", "b"}, fired)
		assert.Equal(t, 1, s.Pending())

		clk.Advance(time.Second)
		s.Run(current)
		assert.Equal(t, []string{"a", "b", "c"}, fired)
		assert.Zero(t, s.Pending())
	})

	t.Run("stale episode never fires", func(t *testing.T) {
		clk := clock.NewManual(epoch)
		s := NewScheduler(clk)
		fired := false
		s.After(1, time.Millisecond, func() { fired = true })

		clk.Advance(time.Second)
		s.Run(func() uint64 { return 2 })
		assert.False(t, fired)
		assert.Zero(t, s.Pending())
	})

	t.Run("cancel", func(t *testing.T) {
		clk := clock.NewManual(epoch)
		s := NewScheduler(clk)
		fired := 0
		timer := s.After(1, time.Millisecond, func() { fired++ })
		s.After(1, time.Millisecond, func() { fired++ })
		timer.Cancel()
		timer.Cancel()

		clk.Advance(time.Second)
		s.Run(func() uint64 { return 1 })
		assert.Equal(t, 1, fired)

		s.After(1, time.Millisecond, func() { fired++ })
		s.CancelAll()
		clk.Advance(time.Second)
		s.Run(func() uint64 { return 1 })
		assert.Equal(t, 1, fired)
	})
}

// runFor advances the clock in 16ms frames, running the scheduler each frame.
func runFor(clk *clock.Manual, sched *Scheduler, store *Store, d time.Duration) {
	const frame = 16 * time.Millisecond
	for elapsed := time.Duration(0); elapsed < d; elapsed += frame {
		clk.Advance(frame)
		sched.Run(store.Episode)
	}
}

func TestTreeSequencer(t *testing.T) {
	t.Run("full sequence", func(t *testing.T) {
		store, clk := newDragStore(t)
		sched := NewScheduler(clk)
		tree := NewTreeSequencer(store, sched)
		defer tree.Close()

		store.StartStaging()
		runFor(clk, sched, store, config.StagingDelay-100*time.Millisecond)
		assert.Equal(t, PhaseStaging, store.Phase())

		runFor(clk, sched, store, 200*time.Millisecond)
		assert.Equal(t, PhaseCountdown, store.Phase())
		assert.Equal(t, config.TreeStage, store.Snapshot().TreeState)

		var maxTree int
		cancel := store.Subscribe(func(_, next Snapshot) {
			if next.Phase == PhaseCountdown {
				maxTree = max(maxTree, next.TreeState)
			}
		})
		defer cancel()

		runFor(clk, sched, store, 4*config.TreeStepInterval+100*time.Millisecond)
		st := store.Snapshot()
		assert.Equal(t, PhaseRacing, st.Phase)
		assert.Equal(t, config.TreeGreen, st.TreeState)
		assert.True(t, st.GreenLightTime.IsValue())
		assert.Equal(t, config.TreeLastYellow, maxTree)
	})

	t.Run("reset cancels pending steps", func(t *testing.T) {
		store, clk := newDragStore(t)
		sched := NewScheduler(clk)
		tree := NewTreeSequencer(store, sched)
		defer tree.Close()

		store.StartStaging()
		runFor(clk, sched, store, config.StagingDelay+config.TreeStepInterval+50*time.Millisecond)
		assert.Equal(t, PhaseCountdown, store.Phase())

		store.ResetRace()
		runFor(clk, sched, store, 5*time.Second)
		st := store.Snapshot()
		assert.Equal(t, PhaseMenu, st.Phase)
		assert.Equal(t, config.TreeOff, st.TreeState)
	})

	t.Run("restaging restarts the delay", func(t *testing.T) {
		store, clk := newDragStore(t)
		sched := NewScheduler(clk)
		tree := NewTreeSequencer(store, sched)
		defer tree.Close()

		store.StartStaging()
		runFor(clk, sched, store, time.Second)
		store.ResetRace()
		store.StartStaging()
		runFor(clk, sched, store, 1500*time.Millisecond)
		assert.Equal(t, PhaseStaging, store.Phase())
	})

	t.Run("close stops the sequence", func(t *testing.T) {
		store, clk := newDragStore(t)
		sched := NewScheduler(clk)
		tree := NewTreeSequencer(store, sched)

		store.StartStaging()
		tree.Close()
		runFor(clk, sched, store, 5*time.Second)
		assert.Equal(t, PhaseStaging, store.Phase())
	})
}
