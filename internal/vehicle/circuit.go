package vehicle

import (
	"math"

	"github.com/race/dragrace/config"
	"github.com/race/dragrace/internal/geom"
)

// CircuitProfile holds the constants of a car driving a closed course.
type CircuitProfile struct {
	EngineForce       float64 // m/s^2 along the heading
	MaxSpeed          float64 // m/s, applied to the velocity length
	SteerRate         float64 // rad/s at full authority
	MinSteerAuthority float64 // authority floor at top speed
	SteerFalloff      float64 // authority lost per unit of speed ratio
	MinSteerSpeed     float64 // m/s below which the car cannot turn
	BrakeFactor       float64 // velocity factor per tick on the brake
	Friction          float64 // velocity factor per tick, always applied
	GroundHeight      float64
}

// DefaultCircuitProfile returns the circuit car tuning.
func DefaultCircuitProfile() CircuitProfile {
	return CircuitProfile{
		EngineForce:       config.CircuitEngineForce,
		MaxSpeed:          config.CircuitMaxSpeed,
		SteerRate:         config.CircuitSteerRate,
		MinSteerAuthority: config.CircuitMinSteerAuthority,
		SteerFalloff:      config.CircuitSteerFalloff,
		MinSteerSpeed:     config.CircuitMinSteerSpeed,
		BrakeFactor:       config.CircuitBrakeFactor,
		Friction:          config.CircuitFriction,
		GroundHeight:      config.CircuitGroundY,
	}
}

// CircuitModel drives a car in two dimensions. The engine pushes along the heading, steering
// loses authority as speed rises, and the speed cap rescales the whole velocity vector.
type CircuitModel struct {
	Profile CircuitProfile
	Boost   *BoostTracker // optional
}

// NewCircuitModel creates a circuit model. boost may be nil.
func NewCircuitModel(p CircuitProfile, boost *BoostTracker) *CircuitModel {
	return &CircuitModel{Profile: p, Boost: boost}
}

// Forward returns the unit vector a car with the given heading faces.
func Forward(heading float64) geom.Vec3 {
	return geom.V3(math.Sin(heading), 0, math.Cos(heading))
}

// SteerAuthority is the fraction of the steering rate available at speed.
func (p CircuitProfile) SteerAuthority(speed float64) float64 {
	ratio := speed / p.MaxSpeed
	return math.Max(p.MinSteerAuthority, 1.0-ratio*p.SteerFalloff)
}

// Step implements Model.
func (m *CircuitModel) Step(st *State, c Controls, dt float64) {
	p := m.Profile

	mult := 1.0
	if m.Boost != nil {
		mult = m.Boost.Update(st.Position, dt)
	}

	speed := st.Velocity.HorizontalLength()
	if steer := c.steer(); steer != 0 && speed >= p.MinSteerSpeed {
		st.Heading += steer * p.SteerRate * p.SteerAuthority(speed) * dt
	}

	vel := st.Velocity
	vel.Y = 0
	if c.Accelerate {
		vel = vel.Add(Forward(st.Heading).Scale(p.EngineForce * mult * dt))
	}
	if c.Brake {
		vel = vel.Scale(p.BrakeFactor)
	}
	vel = vel.Scale(p.Friction)
	vel = vel.ClampHorizontal(p.MaxSpeed * mult)

	st.Velocity = vel
	st.Position = st.Position.Add(vel.Scale(dt))
	st.Position.Y = p.GroundHeight
}

// Reset implements Model.
func (m *CircuitModel) Reset() {
	if m.Boost != nil {
		m.Boost.Reset()
	}
}
