package race

import (
	"fmt"
	"slices"
	"time"

	"github.com/aarondl/opt/null"

	"github.com/race/dragrace/internal/geom"
)

// LapRecord is one completed circuit lap.
type LapRecord struct {
	Lap  int
	Time time.Duration
}

// Snapshot is a copy of the race state handed to readers (renderers, HUD, network).
// Nullable fields are null until the race produces them.
type Snapshot struct {
	Mode    Mode
	Episode uint64
	Phase   Phase

	// Drag start sequence and timing
	TreeState        int
	GreenLightTime   null.Val[time.Time]
	PlayerLaunchTime null.Val[time.Time]
	ReactionTime     null.Val[float64] // seconds, FalseStartReaction on a jump start

	// Drag results
	ElapsedTime          null.Val[float64] // seconds
	TrapSpeed            null.Val[float64] // km/h
	OpponentElapsedTime  null.Val[float64]
	OpponentTrapSpeed    null.Val[float64]
	OpponentReactionTime null.Val[float64]
	OpponentFinished     bool
	Winner               Winner

	// Vehicles
	Position         geom.Vec3
	Velocity         geom.Vec3
	Rotation         float64
	Speed            float64 // km/h, always derived from Velocity
	OpponentPosition geom.Vec3
	OpponentSpeed    float64 // km/h

	// Circuit bookkeeping
	CurrentLap     int
	TotalLaps      int
	LapTimes       []LapRecord
	CurrentLapTime time.Duration
	BestLapTime    null.Val[time.Duration]
	RaceStartTime  null.Val[time.Time]

	CameraMode CameraMode
}

// FalseStart reports whether the player launched before green this episode.
func (s Snapshot) FalseStart() bool {
	rt, ok := s.ReactionTime.Get()
	return ok && rt < 0
}

// Launched reports whether the player's launch has been recorded this episode.
func (s Snapshot) Launched() bool {
	return s.PlayerLaunchTime.IsValue()
}

func (s Snapshot) clone() Snapshot {
	s.LapTimes = slices.Clone(s.LapTimes)
	return s
}

// FormatLapTime renders a lap time as mm:ss.cc, the way the HUD shows it.
func FormatLapTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d.%02d", ms/60000, (ms%60000)/1000, (ms%1000)/10)
}
