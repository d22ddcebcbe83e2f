package network

import (
	"github.com/race/dragrace/internal/race"
)

// Message types
const (
	// Client -> Server
	MsgTypeInput   uint8 = 0x01
	MsgTypeJoin    uint8 = 0x02
	MsgTypeLeave   uint8 = 0x03
	MsgTypePing    uint8 = 0x04
	MsgTypeCommand uint8 = 0x05

	// Server -> Client
	MsgTypeState       uint8 = 0x10
	MsgTypeSessionInfo uint8 = 0x14
	MsgTypePong        uint8 = 0x15
	MsgTypeError       uint8 = 0xFF
)

// Commands carried by a command message
const (
	CmdStartStaging uint8 = 1
	CmdStartRace    uint8 = 2
	CmdPause        uint8 = 3
	CmdResume       uint8 = 4
	CmdFinish       uint8 = 5
	CmdReset        uint8 = 6
	CmdToggleCamera uint8 = 7
	CmdSetCamera    uint8 = 8
)

// Presence bits of the nullable state fields
const (
	HasReactionTime uint8 = 1 << iota
	HasElapsedTime
	HasTrapSpeed
	HasOpponentElapsedTime
	HasOpponentTrapSpeed
	HasOpponentReactionTime
	HasBestLapTime
	FlagOpponentFinished
)

// InputMessage from client (3 bytes)
type InputMessage struct {
	MsgType  uint8
	Sequence uint8
	Keys     uint8 // vehicle.Key* bits
}

// JoinMessage from client (2 bytes)
type JoinMessage struct {
	MsgType uint8
	Mode    race.Mode
}

// PingMessage from client (9 bytes)
type PingMessage struct {
	MsgType   uint8
	Timestamp uint64
}

// CommandMessage from client (3 bytes)
type CommandMessage struct {
	MsgType uint8
	Command uint8
	Arg     uint8
}

// StateMessage to client. Floats travel as float32 and lap times as milliseconds.
type StateMessage struct {
	MsgType   uint8
	Tick      uint16
	Mode      race.Mode
	Phase     race.Phase
	TreeState uint8
	Winner    race.Winner
	Camera    race.CameraMode
	Flags     uint8 // Has* presence bits
	Episode   uint32

	Position         [3]float32
	Velocity         [3]float32
	Rotation         float32
	Speed            float32
	OpponentPosition [3]float32
	OpponentSpeed    float32

	ReactionTime         float32
	ElapsedTime          float32
	TrapSpeed            float32
	OpponentElapsedTime  float32
	OpponentTrapSpeed    float32
	OpponentReactionTime float32

	CurrentLap       uint8
	TotalLaps        uint8
	CurrentLapTimeMs uint32
	BestLapTimeMs    uint32
	LapTimesMs       []uint32
}

// SessionInfoMessage to client after a join
type SessionInfoMessage struct {
	MsgType   uint8
	SessionID string
	Mode      race.Mode
}

// PongMessage to client
type PongMessage struct {
	MsgType   uint8
	Timestamp uint64
}

// ErrorMessage to client
type ErrorMessage struct {
	MsgType uint8
	Code    uint8
	Message string
}

// Error codes
const (
	ErrorCodeInvalidMessage uint8 = 1
	ErrorCodeLobbyFull      uint8 = 2
	ErrorCodeNotJoined      uint8 = 3
	ErrorCodeServerError    uint8 = 4
)
