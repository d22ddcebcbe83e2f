package vehicle

import (
	"github.com/race/dragrace/config"
	"github.com/race/dragrace/internal/geom"
)

// State is the kinematic state of one car.
type State struct {
	Position geom.Vec3
	Velocity geom.Vec3
	Heading  float64 // radians about +Y, 0 faces +Z
}

// Model advances a car by one frame.
type Model interface {
	// Step integrates st over dt seconds. dt must already be clamped.
	Step(st *State, c Controls, dt float64)
	// Reset clears internal timers (boost) at the start of an episode.
	Reset()
}

// ClampDelta bounds a frame delta to [0, MaxFrameDelta] so a stalled frame cannot carry a
// car through the finish line in one step.
func ClampDelta(dt float64) float64 {
	return geom.Clamp(dt, 0, config.MaxFrameDelta)
}
