package vehicle

import (
	"math"

	"github.com/race/dragrace/config"
)

// DragProfile holds the constants of a straight-line car.
type DragProfile struct {
	MaxSpeed      float64 // m/s
	Acceleration  float64 // m/s^2
	CoastDecay    float64 // velocity factor per tick off throttle
	BrakeDecay    float64 // velocity factor per tick on the brake
	LaneSteerRate float64 // m/s of lateral drift
	LaneMinX      float64
	LaneMaxX      float64
	GroundHeight  float64
}

// PlayerDragProfile is the player's car on the left lane.
func PlayerDragProfile() DragProfile {
	return DragProfile{
		MaxSpeed:      config.PlayerMaxSpeed,
		Acceleration:  config.PlayerAcceleration,
		CoastDecay:    config.CoastDecay,
		BrakeDecay:    config.BrakeDecay,
		LaneSteerRate: config.LaneSteerRate,
		LaneMinX:      config.PlayerLaneMinX,
		LaneMaxX:      config.PlayerLaneMaxX,
		GroundHeight:  config.PlayerGroundY,
	}
}

// DragModel moves a car along +Z only. Heading stays at 0.
type DragModel struct {
	Profile DragProfile
}

// NewDragModel creates a drag model with profile p.
func NewDragModel(p DragProfile) *DragModel {
	return &DragModel{Profile: p}
}

// Step implements Model.
func (m *DragModel) Step(st *State, c Controls, dt float64) {
	p := m.Profile
	vz := st.Velocity.Z

	switch {
	case c.Accelerate:
		vz += p.Acceleration * dt
	case c.Brake:
		vz *= p.BrakeDecay
	default:
		// exponential per tick, not per second
		vz *= p.CoastDecay
	}
	vz = math.Max(0, math.Min(vz, p.MaxSpeed))

	st.Position.X += c.steer() * p.LaneSteerRate * dt
	st.Position.X = math.Max(p.LaneMinX, math.Min(p.LaneMaxX, st.Position.X))
	st.Position.Z += vz * dt
	st.Position.Y = p.GroundHeight

	st.Velocity.X = 0
	st.Velocity.Y = 0
	st.Velocity.Z = vz
	st.Heading = 0
}

// Reset implements Model. The drag model keeps no timers.
func (m *DragModel) Reset() {}
