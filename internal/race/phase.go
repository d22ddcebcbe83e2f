package race

import (
	"fmt"

	"github.com/samber/lo"
)

// Mode selects the race variant a Store runs.
type Mode uint8

const (
	ModeDrag Mode = iota
	ModeCircuit
)

func (m Mode) String() string {
	switch m {
	case ModeDrag:
		return "drag"
	case ModeCircuit:
		return "circuit"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ParseMode accepts the names produced by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "drag":
		return ModeDrag, nil
	case "circuit":
		return ModeCircuit, nil
	}
	return 0, fmt.Errorf("unknown race mode %q", s)
}

// Phase is the coarse game state. Exactly one is active at a time.
type Phase uint8

const (
	PhaseMenu Phase = iota
	PhaseStaging
	PhaseCountdown
	PhaseRacing
	PhasePaused
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseMenu:
		return "menu"
	case PhaseStaging:
		return "staging"
	case PhaseCountdown:
		return "countdown"
	case PhaseRacing:
		return "racing"
	case PhasePaused:
		return "paused"
	case PhaseFinished:
		return "finished"
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

// Winner of a race episode. WinnerNone until the episode resolves.
type Winner uint8

const (
	WinnerNone Winner = iota
	WinnerPlayer
	WinnerOpponent
)

func (w Winner) String() string {
	switch w {
	case WinnerNone:
		return "none"
	case WinnerPlayer:
		return "player"
	case WinnerOpponent:
		return "opponent"
	}
	return fmt.Sprintf("winner(%d)", uint8(w))
}

// CameraMode is cosmetic and never read by the simulation.
type CameraMode uint8

const (
	CameraChase CameraMode = iota
	CameraCockpit
)

func (c CameraMode) String() string {
	if c == CameraCockpit {
		return "cockpit"
	}
	return "chase"
}

// transitions lists, per mode, the phases reachable from each phase. Returning to the
// menu (reset) is legal from everywhere.
var transitions = map[Mode]map[Phase][]Phase{
	ModeDrag: {
		PhaseMenu:      {PhaseMenu, PhaseStaging},
		PhaseStaging:   {PhaseMenu, PhaseCountdown},
		PhaseCountdown: {PhaseMenu, PhaseRacing},
		PhaseRacing:    {PhaseMenu, PhaseFinished},
		PhaseFinished:  {PhaseMenu, PhaseStaging},
	},
	ModeCircuit: {
		PhaseMenu:     {PhaseMenu, PhaseRacing},
		PhaseRacing:   {PhaseMenu, PhasePaused, PhaseFinished},
		PhasePaused:   {PhaseMenu, PhaseRacing, PhaseFinished},
		PhaseFinished: {PhaseMenu, PhaseRacing},
	},
}

// Allowed reports whether mode permits moving from one phase to another.
func Allowed(mode Mode, from, to Phase) bool {
	return lo.Contains(transitions[mode][from], to)
}
