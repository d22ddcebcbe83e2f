package lap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/race/dragrace/internal/clock"
	"github.com/race/dragrace/internal/geom"
	"github.com/race/dragrace/internal/race"
)

type harness struct {
	store *race.Store
	clock *clock.Manual
	det   *Detector
}

func newHarness(t *testing.T, laps int) *harness {
	t.Helper()
	clk := clock.NewManual(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	store := race.NewStore(race.ModeCircuit, race.WithClock(clk), race.WithTotalLaps(laps))
	det := NewDetector(store, clk, DefaultFinishLine(), DefaultCheckpoint(), zap.NewNop())
	return &harness{store: store, clock: clk, det: det}
}

// at moves the car to (x, z) after d and samples.
func (h *harness) at(x, z float64, d time.Duration) {
	h.clock.Advance(d)
	h.store.UpdateVehicle(geom.V3(x, 0.5, z), 0, geom.Vec3{})
	h.det.Sample()
}

// lap drives through the checkpoint and back over the line.
func (h *harness) lap(d time.Duration) {
	step := d / 4
	h.at(40, 3, step)
	h.at(80, -55, step)
	h.at(0, -1, step)
	h.at(0, 1, step)
}

func TestFinishLineCrossed(t *testing.T) {
	line := DefaultFinishLine()
	assert.True(t, line.Crossed(geom.V3(0, 0, 1), geom.V3(0, 0, 0)))
	assert.True(t, line.Crossed(geom.V3(0, 0, -1), geom.V3(0, 0, 1)))
	assert.False(t, line.Crossed(geom.V3(0, 0, 1), geom.V3(0, 0, 2)))
	assert.False(t, line.Crossed(geom.V3(20, 0, 1), geom.V3(20, 0, -1)))
}

func TestCheckpointContains(t *testing.T) {
	cp := DefaultCheckpoint()
	assert.True(t, cp.Contains(geom.V3(80, 0, -55)))
	assert.True(t, cp.Contains(geom.V3(70, 0, -64)))
	assert.False(t, cp.Contains(geom.V3(80, 0, -65)))
	assert.False(t, cp.Contains(geom.V3(60, 0, -55)))
}

func TestDetector(t *testing.T) {
	t.Run("crossing without checkpoint does not count", func(t *testing.T) {
		h := newHarness(t, 3)
		h.store.StartRace()
		for range 5 {
			h.at(0, -1, time.Second)
			h.at(0, 1, time.Second)
		}
		st := h.store.Snapshot()
		assert.Empty(t, st.LapTimes)
		assert.Equal(t, 1, st.CurrentLap)
		assert.False(t, h.det.Armed())
	})

	t.Run("checkpoint then line completes a lap", func(t *testing.T) {
		h := newHarness(t, 3)
		h.store.StartRace()
		h.lap(40 * time.Second)

		st := h.store.Snapshot()
		require.Len(t, st.LapTimes, 1)
		assert.Equal(t, 40*time.Second, st.LapTimes[0].Time)
		assert.Equal(t, 2, st.CurrentLap)
		assert.False(t, h.det.Armed())

		// oscillating over the line right after a lap does nothing
		h.at(0, 1, time.Second)
		h.at(0, -1, time.Second)
		assert.Len(t, h.store.Snapshot().LapTimes, 1)
	})

	t.Run("line outside lateral bounds", func(t *testing.T) {
		h := newHarness(t, 3)
		h.store.StartRace()
		h.at(80, -55, time.Second)
		h.at(20, 1, time.Second)
		h.at(20, -1, time.Second)
		assert.Empty(t, h.store.Snapshot().LapTimes)
		assert.True(t, h.det.Armed())
	})

	t.Run("last lap finishes the race", func(t *testing.T) {
		h := newHarness(t, 2)
		h.store.StartRace()
		h.lap(40 * time.Second)
		h.lap(36 * time.Second)

		st := h.store.Snapshot()
		assert.Equal(t, race.PhaseFinished, st.Phase)
		assert.Len(t, st.LapTimes, 2)
		assert.Equal(t, 36*time.Second, st.BestLapTime.GetOrZero())
	})

	t.Run("paused time is not counted", func(t *testing.T) {
		h := newHarness(t, 3)
		h.store.StartRace()
		h.at(40, 3, 10*time.Second)
		h.store.PauseRace()
		h.at(40, 3, time.Minute)
		h.store.ResumeRace()
		h.at(40, 3, 0)
		h.at(41, 3, 5*time.Second)

		assert.Equal(t, 15*time.Second, h.store.Snapshot().CurrentLapTime)
	})

	t.Run("new race resets the detector", func(t *testing.T) {
		h := newHarness(t, 3)
		h.store.StartRace()
		h.at(80, -55, time.Second)
		require.True(t, h.det.Armed())

		h.store.ResetRace()
		h.store.StartRace()
		h.at(0, 1, time.Second)
		h.at(0, -1, time.Second)
		assert.False(t, h.det.Armed())
		assert.Empty(t, h.store.Snapshot().LapTimes)
	})
}
