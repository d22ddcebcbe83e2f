package race

import (
	"time"

	"go.uber.org/zap"
)

// Action is a named state mutation. The set is closed: only types in this package
// implement it.
type Action interface {
	action() string
}

type (
	StartStagingAction   struct{}
	StartCountdownAction struct{}
	AdvanceTreeAction    struct{}
	GoGreenAction        struct{}
	PlayerLaunchAction   struct{}
	StartRaceAction      struct{}
	PauseRaceAction      struct{}
	ResumeRaceAction     struct{}
	FinishRaceAction     struct{}
	CompleteLapAction    struct{}
	ResetRaceAction      struct{}
	ToggleCameraAction   struct{}
)

// PlayerFinishedAction carries the player's time slip.
type PlayerFinishedAction struct {
	ElapsedTime float64
	TrapSpeed   float64
}

// OpponentFinishedAction carries the opponent's time slip.
type OpponentFinishedAction struct {
	ElapsedTime float64
	TrapSpeed   float64
}

// UpdateLapTimeAction sets the running lap time.
type UpdateLapTimeAction struct {
	Time time.Duration
}

// SetCameraModeAction selects a camera view.
type SetCameraModeAction struct {
	Mode CameraMode
}

func (StartStagingAction) action() string     { return "start_staging" }
func (StartCountdownAction) action() string   { return "start_countdown" }
func (AdvanceTreeAction) action() string      { return "advance_tree" }
func (GoGreenAction) action() string          { return "go_green" }
func (PlayerLaunchAction) action() string     { return "player_launch" }
func (PlayerFinishedAction) action() string   { return "player_finished" }
func (OpponentFinishedAction) action() string { return "opponent_finished" }
func (StartRaceAction) action() string        { return "start_race" }
func (PauseRaceAction) action() string        { return "pause_race" }
func (ResumeRaceAction) action() string       { return "resume_race" }
func (FinishRaceAction) action() string       { return "finish_race" }
func (UpdateLapTimeAction) action() string    { return "update_lap_time" }
func (CompleteLapAction) action() string      { return "complete_lap" }
func (ResetRaceAction) action() string        { return "reset_race" }
func (ToggleCameraAction) action() string     { return "toggle_camera" }
func (SetCameraModeAction) action() string    { return "set_camera_mode" }

// ActionName returns the log name of a.
func ActionName(a Action) string {
	return a.action()
}

// Dispatch applies a to the store. It is the entry point used by the network and
// terminal front ends; in-process components call the methods directly.
func (s *Store) Dispatch(a Action) {
	switch a := a.(type) {
	case StartStagingAction:
		s.StartStaging()
	case StartCountdownAction:
		s.StartCountdown()
	case AdvanceTreeAction:
		s.AdvanceTree()
	case GoGreenAction:
		s.GoGreen()
	case PlayerLaunchAction:
		s.PlayerLaunch()
	case PlayerFinishedAction:
		s.SetPlayerFinished(a.ElapsedTime, a.TrapSpeed)
	case OpponentFinishedAction:
		s.SetOpponentFinished(a.ElapsedTime, a.TrapSpeed)
	case StartRaceAction:
		s.StartRace()
	case PauseRaceAction:
		s.PauseRace()
	case ResumeRaceAction:
		s.ResumeRace()
	case FinishRaceAction:
		s.FinishRace()
	case UpdateLapTimeAction:
		s.UpdateLapTime(a.Time)
	case CompleteLapAction:
		s.CompleteLap()
	case ResetRaceAction:
		s.ResetRace()
	case ToggleCameraAction:
		s.ToggleCamera()
	case SetCameraModeAction:
		s.SetCameraMode(a.Mode)
	default:
		s.log.Warn("unknown action", zap.Any("action", a))
	}
}
