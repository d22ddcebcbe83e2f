package config

import (
	"math"
	"time"
)

// Simulation timing
const (
	PhysicsTickRate      = 60 // Hz
	NetworkBroadcastRate = 20 // Hz
	PhysicsTickInterval  = 1.0 / float64(PhysicsTickRate)
	BroadcastInterval    = 1.0 / float64(NetworkBroadcastRate)

	// MaxFrameDelta caps a single integration step so a stalled frame cannot tunnel a car
	// through the finish line.
	MaxFrameDelta = 0.05
)

// Start-light ("Christmas tree") sequence
const (
	TreeOff        = 0
	TreeStage      = 1
	TreeLastYellow = 4
	TreeGreen      = 5

	StagingDelay     = 2 * time.Second
	TreeStepInterval = 500 * time.Millisecond

	// FalseStartReaction is the reaction time recorded for a launch before green.
	FalseStartReaction = -1.0
)

// Drag strip geometry (metres)
const (
	FinishLineZ = 402.0 // quarter mile as painted on the strip

	PlayerStartX   = -3.0
	PlayerGroundY  = 0.5
	PlayerLaneMinX = -6.0
	PlayerLaneMaxX = -1.0

	OpponentStartX  = 3.0
	OpponentGroundY = 0.15
)

// Drag car physics
const (
	PlayerMaxSpeed     = 65.0 // m/s (~234 km/h)
	PlayerAcceleration = 14.0 // m/s^2
	CoastDecay         = 0.995
	BrakeDecay         = 0.97
	LaneSteerRate      = 0.5 // m/s of lateral drift while steering

	OpponentMaxSpeed     = 69.0 // m/s (~250 km/h)
	OpponentAcceleration = 6.7  // m/s^2

	// Opponent launch delay after green, uniform in [min, min+spread).
	OpponentLaunchDelayMin    = 0.15
	OpponentLaunchDelaySpread = 0.10
	// Opponent reaction time shown on the time slip, same distribution.
	OpponentReactionMin    = 0.15
	OpponentReactionSpread = 0.10
)

// Circuit car physics
const (
	CircuitMaxSpeedKmh         = 200.0
	CircuitMaxSpeed            = CircuitMaxSpeedKmh / 3.6 // m/s
	CircuitEngineForce         = 18.0                     // m/s^2
	CircuitSteerRate           = 2.2                      // rad/s at standstill authority
	CircuitMinSteerAuthority   = 0.35
	CircuitSteerFalloff        = 0.8
	CircuitMinSteerSpeed       = 0.5 // m/s below which the car cannot turn
	CircuitBrakeFactor         = 0.96
	CircuitFriction            = 0.992
	CircuitGroundY             = 0.5
	CircuitStartHeading        = math.Pi / 2 // facing +X along the start straight
	CircuitTotalLaps           = 3
	BoostMultiplier            = 1.5
	BoostDuration              = 2.0 // seconds
	BoostCooldown              = 3.0 // seconds
	BoostZoneRadius            = 8.0
	CircuitFinishLineZ         = 0.0
	CircuitFinishLineMinX      = -7.5
	CircuitFinishLineMaxX      = 7.5
	CircuitCheckpointZ         = -55.0
	CircuitCheckpointHalfDepth = 10.0
	CircuitCheckpointMinX      = 70.0
	CircuitCheckpointMaxX      = 90.0
)

// BoostZoneCenters are the X/Z centres of the circuit's boost pads.
var BoostZoneCenters = [][2]float64{
	{65, -15},
	{15, -110},
	{-30, -55},
}

// Server limits
const (
	MaxRoomsPerServer = 200
	MaxInputsPerTick  = 3
	IdleRoomTimeout   = 10 * time.Minute
)

// ServerConfig is the resolved server configuration.
type ServerConfig struct {
	Host        string
	Port        int
	EnableCORS  bool
	LogLevel    string
	LogFormat   string
	MaxRooms    int
	IdleTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:        "0.0.0.0",
		Port:        8080,
		EnableCORS:  true,
		LogLevel:    "info",
		LogFormat:   "json",
		MaxRooms:    MaxRoomsPerServer,
		IdleTimeout: IdleRoomTimeout,
	}
}
