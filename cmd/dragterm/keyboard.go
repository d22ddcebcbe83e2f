package main

import (
	"time"
	"unicode"

	"github.com/gdamore/tcell/v2"

	"github.com/race/dragrace/internal/race"
	"github.com/race/dragrace/internal/vehicle"
)

// holdWindow is how long a key counts as held after its last press. Terminals report
// presses and auto-repeat but never releases.
const holdWindow = 150 * time.Millisecond

type command int

const (
	cmdNone command = iota
	cmdQuit
	cmdStart
	cmdPause
	cmdReset
	cmdFinish
)

// keyboard turns key presses into the key bits the session expects.
type keyboard struct {
	held map[uint8]time.Time
	hold time.Duration
}

func newKeyboard(hold time.Duration) *keyboard {
	return &keyboard{
		held: make(map[uint8]time.Time),
		hold: hold,
	}
}

// press records a key and returns the command bound to it, if any.
func (k *keyboard) press(key tcell.Key, r rune, now time.Time) command {
	switch key {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return cmdQuit
	case tcell.KeyEnter:
		return cmdStart
	case tcell.KeyUp:
		k.held[vehicle.KeyAccelerate] = now
	case tcell.KeyDown:
		k.held[vehicle.KeyBrake] = now
	case tcell.KeyLeft:
		k.held[vehicle.KeyLeft] = now
	case tcell.KeyRight:
		k.held[vehicle.KeyRight] = now
	case tcell.KeyRune:
		return k.pressRune(unicode.ToLower(r), now)
	}
	return cmdNone
}

func (k *keyboard) pressRune(r rune, now time.Time) command {
	switch r {
	case 'w':
		k.held[vehicle.KeyAccelerate] = now
	case 's':
		k.held[vehicle.KeyBrake] = now
	case 'a':
		k.held[vehicle.KeyLeft] = now
	case 'd':
		k.held[vehicle.KeyRight] = now
	case 'c':
		k.held[vehicle.KeyCamera] = now
	case ' ':
		return cmdStart
	case 'p':
		return cmdPause
	case 'r':
		return cmdReset
	case 'f':
		return cmdFinish
	case 'q':
		return cmdQuit
	}
	return cmdNone
}

// bits returns the keys still inside their hold window.
func (k *keyboard) bits(now time.Time) uint8 {
	var keys uint8
	for bit, at := range k.held {
		if now.Sub(at) < k.hold {
			keys |= bit
		}
	}
	return keys
}

// commandAction maps a command onto the race action for the current state.
func commandAction(c command, mode race.Mode, phase race.Phase) (race.Action, bool) {
	switch c {
	case cmdStart:
		if mode == race.ModeDrag {
			return race.StartStagingAction{}, true
		}
		return race.StartRaceAction{}, true
	case cmdPause:
		if phase == race.PhasePaused {
			return race.ResumeRaceAction{}, true
		}
		return race.PauseRaceAction{}, true
	case cmdReset:
		return race.ResetRaceAction{}, true
	case cmdFinish:
		return race.FinishRaceAction{}, true
	}
	return nil, false
}
