package main

import (
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"

	"github.com/race/dragrace/internal/race"
	"github.com/race/dragrace/internal/vehicle"
)

func TestKeyboard(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("keys are held for the hold window", func(t *testing.T) {
		k := newKeyboard(holdWindow)
		assert.Equal(t, cmdNone, k.press(tcell.KeyUp, 0, start))
		assert.Equal(t, cmdNone, k.press(tcell.KeyRune, 'A', start))

		assert.Equal(t, vehicle.KeyAccelerate|vehicle.KeyLeft, k.bits(start.Add(100*time.Millisecond)))
		assert.Zero(t, k.bits(start.Add(holdWindow)))
	})

	t.Run("auto repeat extends the hold", func(t *testing.T) {
		k := newKeyboard(holdWindow)
		k.press(tcell.KeyRune, 'w', start)
		k.press(tcell.KeyRune, 'w', start.Add(100*time.Millisecond))
		assert.Equal(t, vehicle.KeyAccelerate, k.bits(start.Add(200*time.Millisecond)))
	})

	t.Run("commands", func(t *testing.T) {
		k := newKeyboard(holdWindow)
		assert.Equal(t, cmdQuit, k.press(tcell.KeyEscape, 0, start))
		assert.Equal(t, cmdQuit, k.press(tcell.KeyRune, 'q', start))
		assert.Equal(t, cmdStart, k.press(tcell.KeyEnter, 0, start))
		assert.Equal(t, cmdStart, k.press(tcell.KeyRune, ' ', start))
		assert.Equal(t, cmdPause, k.press(tcell.KeyRune, 'p', start))
		assert.Equal(t, cmdReset, k.press(tcell.KeyRune, 'R', start))
		assert.Equal(t, cmdFinish, k.press(tcell.KeyRune, 'f', start))

		assert.Equal(t, cmdNone, k.press(tcell.KeyRune, 'c', start))
		assert.Equal(t, vehicle.KeyCamera, k.bits(start))
	})
}

func TestCommandAction(t *testing.T) {
	tests := []struct {
		name  string
		cmd   command
		mode  race.Mode
		phase race.Phase
		want  race.Action
	}{
		{"drag start stages", cmdStart, race.ModeDrag, race.PhaseMenu, race.StartStagingAction{}},
		{"circuit start races", cmdStart, race.ModeCircuit, race.PhaseMenu, race.StartRaceAction{}},
		{"pause while racing", cmdPause, race.ModeCircuit, race.PhaseRacing, race.PauseRaceAction{}},
		{"pause toggles back", cmdPause, race.ModeCircuit, race.PhasePaused, race.ResumeRaceAction{}},
		{"reset", cmdReset, race.ModeDrag, race.PhaseFinished, race.ResetRaceAction{}},
		{"finish", cmdFinish, race.ModeCircuit, race.PhaseRacing, race.FinishRaceAction{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := commandAction(tt.cmd, tt.mode, tt.phase)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := commandAction(cmdNone, race.ModeDrag, race.PhaseMenu)
	assert.False(t, ok)
}
