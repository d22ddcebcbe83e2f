package race

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/race/dragrace/config"
	"github.com/race/dragrace/internal/clock"
	"github.com/race/dragrace/internal/geom"
)

type fixedRand float64

func (r fixedRand) Float64() float64 { return float64(r) }

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newDragStore(t *testing.T) (*Store, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(epoch)
	return NewStore(ModeDrag, WithClock(clk), WithRand(fixedRand(0.5))), clk
}

// toGreen walks a drag store from the menu to the green light without timers.
func toGreen(s *Store) {
	s.StartStaging()
	s.StartCountdown()
	for range 3 {
		s.AdvanceTree()
	}
	s.GoGreen()
}

func TestNewStore(t *testing.T) {
	s, _ := newDragStore(t)
	st := s.Snapshot()

	assert.Equal(t, PhaseMenu, st.Phase)
	assert.Equal(t, config.TreeOff, st.TreeState)
	assert.Equal(t, 1, st.CurrentLap)
	assert.Equal(t, config.CircuitTotalLaps, st.TotalLaps)
	assert.Equal(t, geom.V3(config.PlayerStartX, config.PlayerGroundY, 0), st.Position)
	assert.Equal(t, geom.V3(config.OpponentStartX, config.OpponentGroundY, 0), st.OpponentPosition)
	assert.True(t, st.ReactionTime.IsNull())
	assert.Equal(t, WinnerNone, st.Winner)
}

func TestTreeSequence(t *testing.T) {
	t.Run("advance never passes last yellow", func(t *testing.T) {
		s, _ := newDragStore(t)
		s.StartStaging()
		s.StartCountdown()
		for range 10 {
			s.AdvanceTree()
			assert.LessOrEqual(t, s.Snapshot().TreeState, config.TreeLastYellow)
		}
		assert.Equal(t, config.TreeLastYellow, s.Snapshot().TreeState)
		assert.Equal(t, PhaseCountdown, s.Phase())
	})

	t.Run("go green only from last yellow", func(t *testing.T) {
		s, _ := newDragStore(t)
		s.StartStaging()
		s.StartCountdown()
		s.AdvanceTree()

		s.GoGreen()
		st := s.Snapshot()
		assert.Equal(t, PhaseCountdown, st.Phase)
		assert.Equal(t, 2, st.TreeState)
		assert.True(t, st.GreenLightTime.IsNull())

		s.AdvanceTree()
		s.AdvanceTree()
		s.GoGreen()
		st = s.Snapshot()
		assert.Equal(t, PhaseRacing, st.Phase)
		assert.Equal(t, config.TreeGreen, st.TreeState)
		assert.True(t, st.GreenLightTime.IsValue())
	})

	t.Run("advance outside countdown is ignored", func(t *testing.T) {
		s, _ := newDragStore(t)
		s.AdvanceTree()
		assert.Equal(t, config.TreeOff, s.Snapshot().TreeState)

		s.StartStaging()
		s.AdvanceTree()
		assert.Equal(t, config.TreeOff, s.Snapshot().TreeState)
	})

	t.Run("countdown only from staging", func(t *testing.T) {
		s, _ := newDragStore(t)
		s.StartCountdown()
		assert.Equal(t, PhaseMenu, s.Phase())
	})
}

func TestPlayerLaunch(t *testing.T) {
	t.Run("second launch is ignored", func(t *testing.T) {
		s, clk := newDragStore(t)
		toGreen(s)
		clk.Advance(180 * time.Millisecond)
		s.PlayerLaunch()
		first := s.Snapshot()

		clk.Advance(time.Second)
		s.PlayerLaunch()
		second := s.Snapshot()

		assert.Equal(t, first.ReactionTime, second.ReactionTime)
		assert.Equal(t, first.PlayerLaunchTime, second.PlayerLaunchTime)
	})

	t.Run("launch during countdown is a false start", func(t *testing.T) {
		s, _ := newDragStore(t)
		s.StartStaging()
		s.StartCountdown()
		s.PlayerLaunch()

		st := s.Snapshot()
		rt, ok := st.ReactionTime.Get()
		require.True(t, ok)
		assert.Less(t, rt, 0.0)
		assert.True(t, st.FalseStart())
		assert.True(t, st.Launched())
		assert.Equal(t, PhaseCountdown, st.Phase)
	})

	t.Run("reaction time after green", func(t *testing.T) {
		s, clk := newDragStore(t)
		toGreen(s)
		clk.Advance(237 * time.Millisecond)
		s.PlayerLaunch()

		rt, ok := s.Snapshot().ReactionTime.Get()
		require.True(t, ok)
		assert.InDelta(t, 0.237, rt, 1e-9)
	})

	t.Run("false start survives green", func(t *testing.T) {
		s, clk := newDragStore(t)
		s.StartStaging()
		s.StartCountdown()
		s.PlayerLaunch()
		for range 3 {
			s.AdvanceTree()
		}
		s.GoGreen()
		clk.Advance(300 * time.Millisecond)
		s.PlayerLaunch()

		assert.True(t, s.Snapshot().FalseStart())
	})

	t.Run("ignored in menu and staging", func(t *testing.T) {
		s, _ := newDragStore(t)
		s.PlayerLaunch()
		s.StartStaging()
		s.PlayerLaunch()
		assert.False(t, s.Snapshot().Launched())
	})
}

func TestWinner(t *testing.T) {
	t.Run("false start loses even when crossing first", func(t *testing.T) {
		s, _ := newDragStore(t)
		s.StartStaging()
		s.StartCountdown()
		s.PlayerLaunch()
		for range 3 {
			s.AdvanceTree()
		}
		s.GoGreen()

		s.SetPlayerFinished(10.1, 170)
		st := s.Snapshot()
		assert.Equal(t, WinnerOpponent, st.Winner)
		assert.Equal(t, PhaseFinished, st.Phase)
	})

	t.Run("opponent first with slower time loses", func(t *testing.T) {
		s, _ := newDragStore(t)
		toGreen(s)
		s.PlayerLaunch()

		s.SetOpponentFinished(12.5, 160)
		st := s.Snapshot()
		assert.Equal(t, PhaseRacing, st.Phase)
		assert.True(t, st.OpponentFinished)
		assert.Equal(t, WinnerNone, st.Winner)

		s.SetPlayerFinished(12.3, 165)
		st = s.Snapshot()
		assert.Equal(t, WinnerPlayer, st.Winner)
		assert.Equal(t, PhaseFinished, st.Phase)
	})

	t.Run("opponent first with faster time wins", func(t *testing.T) {
		s, _ := newDragStore(t)
		toGreen(s)
		s.PlayerLaunch()
		s.SetOpponentFinished(11.9, 170)
		s.SetPlayerFinished(12.3, 165)
		assert.Equal(t, WinnerOpponent, s.Snapshot().Winner)
	})

	t.Run("exact tie goes to opponent", func(t *testing.T) {
		s, _ := newDragStore(t)
		toGreen(s)
		s.PlayerLaunch()
		s.SetOpponentFinished(12.0, 160)
		require.Equal(t, PhaseRacing, s.Phase())
		s.SetPlayerFinished(12.0, 160)
		assert.Equal(t, WinnerOpponent, s.Snapshot().Winner)
	})

	t.Run("player first wins immediately", func(t *testing.T) {
		s, _ := newDragStore(t)
		toGreen(s)
		s.PlayerLaunch()
		s.SetPlayerFinished(11.0, 180)
		assert.Equal(t, WinnerPlayer, s.Snapshot().Winner)

		s.SetOpponentFinished(10.0, 190)
		st := s.Snapshot()
		assert.Equal(t, WinnerPlayer, st.Winner)
		assert.True(t, st.OpponentElapsedTime.IsNull())
	})

	t.Run("opponent finish resolves a false start", func(t *testing.T) {
		s, _ := newDragStore(t)
		s.StartStaging()
		s.StartCountdown()
		s.PlayerLaunch()
		for range 3 {
			s.AdvanceTree()
		}
		s.GoGreen()

		s.SetOpponentFinished(12.0, 160)
		st := s.Snapshot()
		assert.Equal(t, WinnerOpponent, st.Winner)
		assert.Equal(t, PhaseFinished, st.Phase)
	})

	t.Run("opponent finish beats a player still on the line", func(t *testing.T) {
		s, _ := newDragStore(t)
		toGreen(s)

		s.SetOpponentFinished(11.0, 170)
		st := s.Snapshot()
		assert.Equal(t, WinnerOpponent, st.Winner)
		assert.Equal(t, PhaseFinished, st.Phase)
		assert.True(t, st.ElapsedTime.IsNull())
	})

	t.Run("opponent lead settles once the player runs out of time", func(t *testing.T) {
		s, clk := newDragStore(t)
		toGreen(s)
		clk.Advance(time.Second)
		s.PlayerLaunch()
		clk.Advance(8 * time.Second)

		s.SetOpponentFinished(10.0, 180)
		require.Equal(t, PhaseRacing, s.Phase())

		clk.Advance(1900 * time.Millisecond)
		s.SettleOpponentLead()
		require.Equal(t, PhaseRacing, s.Phase())

		clk.Advance(100 * time.Millisecond)
		s.SettleOpponentLead()
		st := s.Snapshot()
		assert.Equal(t, WinnerOpponent, st.Winner)
		assert.Equal(t, PhaseFinished, st.Phase)

		s.SetPlayerFinished(9.9, 190)
		assert.True(t, s.Snapshot().ElapsedTime.IsNull())
	})

	t.Run("settling without a finished opponent is a no-op", func(t *testing.T) {
		s, clk := newDragStore(t)
		toGreen(s)
		clk.Advance(time.Minute)
		s.SettleOpponentLead()
		assert.Equal(t, PhaseRacing, s.Phase())
		assert.Equal(t, WinnerNone, s.Snapshot().Winner)
	})

	t.Run("opponent reaction is synthesized", func(t *testing.T) {
		s, _ := newDragStore(t)
		toGreen(s)
		s.SetOpponentFinished(12.0, 160)
		rt, ok := s.Snapshot().OpponentReactionTime.Get()
		require.True(t, ok)
		assert.InDelta(t, 0.20, rt, 1e-9)
	})

	t.Run("negative results clamp to zero", func(t *testing.T) {
		s, _ := newDragStore(t)
		toGreen(s)
		s.SetPlayerFinished(-1, -5)
		st := s.Snapshot()
		assert.Equal(t, 0.0, st.ElapsedTime.GetOrZero())
		assert.Equal(t, 0.0, st.TrapSpeed.GetOrZero())
	})

	t.Run("finish before racing is ignored", func(t *testing.T) {
		s, _ := newDragStore(t)
		s.StartStaging()
		s.SetPlayerFinished(12, 160)
		s.SetOpponentFinished(12, 160)
		st := s.Snapshot()
		assert.Equal(t, PhaseStaging, st.Phase)
		assert.True(t, st.ElapsedTime.IsNull())
		assert.False(t, st.OpponentFinished)
	})
}

func TestResetThenStaging(t *testing.T) {
	s, clk := newDragStore(t)
	s.StartStaging()
	first := s.Snapshot()

	s.StartCountdown()
	s.PlayerLaunch()
	for range 3 {
		s.AdvanceTree()
	}
	s.GoGreen()
	clk.Advance(12 * time.Second)
	s.UpdateVehicle(geom.V3(-4, 0.5, 402), 0, geom.V3(0, 0, 60))
	s.SetOpponent(geom.V3(3, 0.15, 390), 240)
	s.SetOpponentFinished(11.5, 230)
	s.SetPlayerFinished(12.0, 216)

	s.ResetRace()
	assert.Equal(t, PhaseMenu, s.Phase())
	s.StartStaging()
	again := s.Snapshot()

	assert.Greater(t, again.Episode, first.Episode)
	first.Episode, again.Episode = 0, 0
	assert.Equal(t, first, again)
}

func TestStagingFromFinished(t *testing.T) {
	s, _ := newDragStore(t)
	toGreen(s)
	s.SetPlayerFinished(12, 160)
	require.Equal(t, PhaseFinished, s.Phase())

	s.StartStaging()
	st := s.Snapshot()
	assert.Equal(t, PhaseStaging, st.Phase)
	assert.Equal(t, WinnerNone, st.Winner)
	assert.True(t, st.ElapsedTime.IsNull())
	assert.False(t, st.Launched())
}

func newCircuitStore(t *testing.T, laps int) (*Store, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(epoch)
	return NewStore(ModeCircuit, WithClock(clk), WithTotalLaps(laps)), clk
}

func TestCompleteLap(t *testing.T) {
	t.Run("intermediate lap advances", func(t *testing.T) {
		s, _ := newCircuitStore(t, 3)
		s.StartRace()
		s.UpdateLapTime(41 * time.Second)
		s.CompleteLap()

		st := s.Snapshot()
		assert.Equal(t, PhaseRacing, st.Phase)
		assert.Equal(t, 2, st.CurrentLap)
		assert.Equal(t, time.Duration(0), st.CurrentLapTime)
		assert.Equal(t, []LapRecord{{Lap: 1, Time: 41 * time.Second}}, st.LapTimes)
	})

	t.Run("last lap finishes", func(t *testing.T) {
		s, _ := newCircuitStore(t, 2)
		s.StartRace()
		s.UpdateLapTime(40 * time.Second)
		s.CompleteLap()
		s.UpdateLapTime(38 * time.Second)
		s.CompleteLap()

		st := s.Snapshot()
		assert.Equal(t, PhaseFinished, st.Phase)
		assert.Len(t, st.LapTimes, 2)
		assert.Equal(t, 2, st.CurrentLap)

		s.CompleteLap()
		assert.Len(t, s.Snapshot().LapTimes, 2)
	})

	t.Run("best lap only improves", func(t *testing.T) {
		s, _ := newCircuitStore(t, 3)
		s.StartRace()
		for _, d := range []time.Duration{40 * time.Second, 42 * time.Second, 37 * time.Second} {
			s.UpdateLapTime(d)
			s.CompleteLap()
		}
		best, ok := s.Snapshot().BestLapTime.Get()
		require.True(t, ok)
		assert.Equal(t, 37*time.Second, best)
	})

	t.Run("best lap survives a new race", func(t *testing.T) {
		s, _ := newCircuitStore(t, 1)
		s.StartRace()
		s.UpdateLapTime(30 * time.Second)
		s.CompleteLap()
		require.Equal(t, PhaseFinished, s.Phase())

		s.StartRace()
		st := s.Snapshot()
		require.Equal(t, PhaseRacing, st.Phase)
		assert.Empty(t, st.LapTimes)
		assert.Equal(t, 1, st.CurrentLap)
		best, ok := st.BestLapTime.Get()
		require.True(t, ok)
		assert.Equal(t, 30*time.Second, best)

		s.UpdateLapTime(33 * time.Second)
		s.CompleteLap()
		best, _ = s.Snapshot().BestLapTime.Get()
		assert.Equal(t, 30*time.Second, best, "slower lap keeps the best")

		s.ResetRace()
		assert.True(t, s.Snapshot().BestLapTime.IsNull())
	})

	t.Run("ignored while paused", func(t *testing.T) {
		s, _ := newCircuitStore(t, 3)
		s.StartRace()
		s.PauseRace()
		s.CompleteLap()
		s.UpdateLapTime(time.Second)

		st := s.Snapshot()
		assert.Empty(t, st.LapTimes)
		assert.Equal(t, time.Duration(0), st.CurrentLapTime)
	})
}

func TestCircuitPhases(t *testing.T) {
	s, clk := newCircuitStore(t, 3)
	s.StartStaging()
	assert.Equal(t, PhaseMenu, s.Phase())

	s.StartRace()
	st := s.Snapshot()
	assert.Equal(t, PhaseRacing, st.Phase)
	assert.Equal(t, clk.Now(), st.RaceStartTime.GetOrZero())
	assert.Equal(t, config.CircuitStartHeading, st.Rotation)

	s.ResumeRace()
	assert.Equal(t, PhaseRacing, s.Phase())
	s.PauseRace()
	assert.Equal(t, PhasePaused, s.Phase())
	s.StartRace()
	assert.Equal(t, PhasePaused, s.Phase())
	s.ResumeRace()
	assert.Equal(t, PhaseRacing, s.Phase())
	s.FinishRace()
	assert.Equal(t, PhaseFinished, s.Phase())

	episode := s.Episode()
	s.StartRace()
	assert.Equal(t, PhaseRacing, s.Phase())
	assert.Equal(t, episode+1, s.Episode())
}

func TestSpeedDerivedFromVelocity(t *testing.T) {
	s, _ := newCircuitStore(t, 3)
	vel := geom.V3(3, 7, 4)
	s.UpdateVehicle(geom.V3(1, 0.5, 2), 1.2, vel)
	assert.InDelta(t, 5*3.6, s.Snapshot().Speed, 1e-9)
}

func TestCamera(t *testing.T) {
	s, _ := newDragStore(t)
	s.ToggleCamera()
	assert.Equal(t, CameraCockpit, s.Snapshot().CameraMode)
	s.ResetRace()
	assert.Equal(t, CameraCockpit, s.Snapshot().CameraMode)
	s.SetCameraMode(CameraChase)
	assert.Equal(t, CameraChase, s.Snapshot().CameraMode)
}

func TestSubscribe(t *testing.T) {
	s, _ := newDragStore(t)
	var calls []Phase
	cancel := s.Subscribe(func(prev, next Snapshot) {
		calls = append(calls, next.Phase)
	})

	s.StartStaging()
	s.AdvanceTree()
	s.StartCountdown()
	cancel()
	s.ResetRace()

	assert.Equal(t, []Phase{PhaseStaging, PhaseCountdown}, calls)
}

func TestDispatch(t *testing.T) {
	s, _ := newDragStore(t)
	for _, a := range []Action{
		StartStagingAction{},
		StartCountdownAction{},
		AdvanceTreeAction{},
		AdvanceTreeAction{},
		AdvanceTreeAction{},
		GoGreenAction{},
		PlayerLaunchAction{},
		PlayerFinishedAction{ElapsedTime: 11.2, TrapSpeed: 190},
	} {
		s.Dispatch(a)
	}

	st := s.Snapshot()
	assert.Equal(t, WinnerPlayer, st.Winner)
	assert.Equal(t, 11.2, st.ElapsedTime.GetOrZero())

	s.Dispatch(SetCameraModeAction{Mode: CameraCockpit})
	s.Dispatch(ResetRaceAction{})
	st = s.Snapshot()
	assert.Equal(t, PhaseMenu, st.Phase)
	assert.Equal(t, CameraCockpit, st.CameraMode)
}

func TestFormatLapTime(t *testing.T) {
	assert.Equal(t, "00:00.00", FormatLapTime(0))
	assert.Equal(t, "01:05.43", FormatLapTime(65*time.Second+437*time.Millisecond))
	assert.Equal(t, "00:00.00", FormatLapTime(-time.Second))
}
