package network

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aarondl/opt/null"
	"github.com/samber/lo"

	"github.com/race/dragrace/internal/geom"
	"github.com/race/dragrace/internal/race"
)

var (
	ErrInvalidMessage = errors.New("invalid message")
	ErrBufferTooSmall = errors.New("buffer too small")
	ErrUnknownCommand = errors.New("unknown command")
)

// maxLapRecords bounds the lap list carried in one state message.
const maxLapRecords = 255

// Protocol handles binary encoding/decoding. All integers are little-endian and the first
// byte of every message is its type.
type Protocol struct{}

// NewProtocol creates a new protocol handler
func NewProtocol() *Protocol {
	return &Protocol{}
}

// MessageType returns the type byte of data.
func MessageType(data []byte) (uint8, error) {
	if len(data) == 0 {
		return 0, ErrBufferTooSmall
	}
	return data[0], nil
}

// EncodeInput encodes a client input message (3 bytes)
func (p *Protocol) EncodeInput(seq, keys uint8) []byte {
	return []byte{MsgTypeInput, seq, keys}
}

// DecodeInput decodes a client input message (3 bytes)
func (p *Protocol) DecodeInput(data []byte) (*InputMessage, error) {
	if len(data) < 3 {
		return nil, ErrBufferTooSmall
	}
	if data[0] != MsgTypeInput {
		return nil, ErrInvalidMessage
	}

	return &InputMessage{
		MsgType:  data[0],
		Sequence: data[1],
		Keys:     data[2],
	}, nil
}

// EncodeJoin encodes a join message
func (p *Protocol) EncodeJoin(mode race.Mode) []byte {
	return []byte{MsgTypeJoin, uint8(mode)}
}

// DecodeJoin decodes a join message
func (p *Protocol) DecodeJoin(data []byte) (*JoinMessage, error) {
	if len(data) < 2 {
		return nil, ErrBufferTooSmall
	}
	if data[0] != MsgTypeJoin {
		return nil, ErrInvalidMessage
	}

	mode := race.Mode(data[1])
	if mode != race.ModeDrag && mode != race.ModeCircuit {
		return nil, fmt.Errorf("%w: mode %d", ErrInvalidMessage, data[1])
	}
	return &JoinMessage{MsgType: data[0], Mode: mode}, nil
}

// EncodeLeave encodes a leave message
func (p *Protocol) EncodeLeave() []byte {
	return []byte{MsgTypeLeave}
}

// EncodePing encodes a ping message
func (p *Protocol) EncodePing(timestamp uint64) []byte {
	buf := make([]byte, 9)
	buf[0] = MsgTypePing
	binary.LittleEndian.PutUint64(buf[1:9], timestamp)
	return buf
}

// DecodePing decodes a ping message
func (p *Protocol) DecodePing(data []byte) (*PingMessage, error) {
	if len(data) < 9 {
		return nil, ErrBufferTooSmall
	}
	if data[0] != MsgTypePing {
		return nil, ErrInvalidMessage
	}
	return &PingMessage{MsgType: data[0], Timestamp: binary.LittleEndian.Uint64(data[1:9])}, nil
}

// EncodeCommand encodes a command message. arg is only read by CmdSetCamera.
func (p *Protocol) EncodeCommand(cmd, arg uint8) []byte {
	return []byte{MsgTypeCommand, cmd, arg}
}

// DecodeCommand decodes a command message
func (p *Protocol) DecodeCommand(data []byte) (*CommandMessage, error) {
	if len(data) < 3 {
		return nil, ErrBufferTooSmall
	}
	if data[0] != MsgTypeCommand {
		return nil, ErrInvalidMessage
	}
	return &CommandMessage{MsgType: data[0], Command: data[1], Arg: data[2]}, nil
}

// Action maps the command onto a race action.
func (m *CommandMessage) Action() (race.Action, error) {
	switch m.Command {
	case CmdStartStaging:
		return race.StartStagingAction{}, nil
	case CmdStartRace:
		return race.StartRaceAction{}, nil
	case CmdPause:
		return race.PauseRaceAction{}, nil
	case CmdResume:
		return race.ResumeRaceAction{}, nil
	case CmdFinish:
		return race.FinishRaceAction{}, nil
	case CmdReset:
		return race.ResetRaceAction{}, nil
	case CmdToggleCamera:
		return race.ToggleCameraAction{}, nil
	case CmdSetCamera:
		if m.Arg > uint8(race.CameraCockpit) {
			return nil, fmt.Errorf("%w: camera %d", ErrUnknownCommand, m.Arg)
		}
		return race.SetCameraModeAction{Mode: race.CameraMode(m.Arg)}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownCommand, m.Command)
}

// CommandFor is the inverse of CommandMessage.Action for the actions a client may send.
func CommandFor(a race.Action) (cmd, arg uint8, err error) {
	switch a := a.(type) {
	case race.StartStagingAction:
		return CmdStartStaging, 0, nil
	case race.StartRaceAction:
		return CmdStartRace, 0, nil
	case race.PauseRaceAction:
		return CmdPause, 0, nil
	case race.ResumeRaceAction:
		return CmdResume, 0, nil
	case race.FinishRaceAction:
		return CmdFinish, 0, nil
	case race.ResetRaceAction:
		return CmdReset, 0, nil
	case race.ToggleCameraAction:
		return CmdToggleCamera, 0, nil
	case race.SetCameraModeAction:
		return CmdSetCamera, uint8(a.Mode), nil
	}
	return 0, 0, fmt.Errorf("%w: %s", ErrUnknownCommand, race.ActionName(a))
}

// EncodeState encodes a state message from a race snapshot.
//
// Layout: header (13 bytes: type, tick u16, mode, phase, tree, winner, camera, flags,
// episode u32), 19 float32 values (pose, opponent, six results), then lap data
// (current lap, total laps, current lap ms u32, best lap ms u32, count, count x u32 ms).
func (p *Protocol) EncodeState(tick uint16, s race.Snapshot) []byte {
	// records are numbered by position on decode, so only the tail may be dropped
	laps := s.LapTimes
	if len(laps) > maxLapRecords {
		laps = laps[:maxLapRecords]
	}

	var flags uint8
	setFlag := func(bit uint8, ok bool) {
		if ok {
			flags |= bit
		}
	}
	setFlag(HasReactionTime, s.ReactionTime.IsValue())
	setFlag(HasElapsedTime, s.ElapsedTime.IsValue())
	setFlag(HasTrapSpeed, s.TrapSpeed.IsValue())
	setFlag(HasOpponentElapsedTime, s.OpponentElapsedTime.IsValue())
	setFlag(HasOpponentTrapSpeed, s.OpponentTrapSpeed.IsValue())
	setFlag(HasOpponentReactionTime, s.OpponentReactionTime.IsValue())
	setFlag(HasBestLapTime, s.BestLapTime.IsValue())
	setFlag(FlagOpponentFinished, s.OpponentFinished)

	buf := make([]byte, 0, 13+19*4+11+4*len(laps))
	buf = append(buf, MsgTypeState)
	buf = binary.LittleEndian.AppendUint16(buf, tick)
	buf = append(buf, uint8(s.Mode), uint8(s.Phase), uint8(s.TreeState), uint8(s.Winner), uint8(s.CameraMode), flags)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(s.Episode))

	buf = appendVec(buf, s.Position)
	buf = appendVec(buf, s.Velocity)
	buf = appendFloat(buf, s.Rotation)
	buf = appendFloat(buf, s.Speed)
	buf = appendVec(buf, s.OpponentPosition)
	buf = appendFloat(buf, s.OpponentSpeed)
	buf = appendFloat(buf, s.ReactionTime.GetOrZero())
	buf = appendFloat(buf, s.ElapsedTime.GetOrZero())
	buf = appendFloat(buf, s.TrapSpeed.GetOrZero())
	buf = appendFloat(buf, s.OpponentElapsedTime.GetOrZero())
	buf = appendFloat(buf, s.OpponentTrapSpeed.GetOrZero())
	buf = appendFloat(buf, s.OpponentReactionTime.GetOrZero())

	buf = append(buf, clampU8(s.CurrentLap), clampU8(s.TotalLaps))
	buf = binary.LittleEndian.AppendUint32(buf, toMs(s.CurrentLapTime))
	buf = binary.LittleEndian.AppendUint32(buf, toMs(s.BestLapTime.GetOrZero()))
	buf = append(buf, uint8(len(laps)))
	for _, l := range laps {
		buf = binary.LittleEndian.AppendUint32(buf, toMs(l.Time))
	}

	return buf
}

// DecodeState decodes a state message
func (p *Protocol) DecodeState(data []byte) (*StateMessage, error) {
	r := &reader{buf: data}
	m := &StateMessage{MsgType: r.u8()}
	if r.err == nil && m.MsgType != MsgTypeState {
		return nil, ErrInvalidMessage
	}

	m.Tick = r.u16()
	m.Mode = race.Mode(r.u8())
	m.Phase = race.Phase(r.u8())
	m.TreeState = r.u8()
	m.Winner = race.Winner(r.u8())
	m.Camera = race.CameraMode(r.u8())
	m.Flags = r.u8()
	m.Episode = r.u32()

	m.Position = r.vec()
	m.Velocity = r.vec()
	m.Rotation = r.f32()
	m.Speed = r.f32()
	m.OpponentPosition = r.vec()
	m.OpponentSpeed = r.f32()
	m.ReactionTime = r.f32()
	m.ElapsedTime = r.f32()
	m.TrapSpeed = r.f32()
	m.OpponentElapsedTime = r.f32()
	m.OpponentTrapSpeed = r.f32()
	m.OpponentReactionTime = r.f32()

	m.CurrentLap = r.u8()
	m.TotalLaps = r.u8()
	m.CurrentLapTimeMs = r.u32()
	m.BestLapTimeMs = r.u32()
	n := int(r.u8())
	if r.err == nil && n > 0 {
		m.LapTimesMs = make([]uint32, n)
		for i := range m.LapTimesMs {
			m.LapTimesMs[i] = r.u32()
		}
	}

	if r.err != nil {
		return nil, r.err
	}
	return m, nil
}

// Snapshot rebuilds a race snapshot from the message. Timestamps that never leave the
// server (green light, launch, race start) are absent.
func (m *StateMessage) Snapshot() race.Snapshot {
	opt := func(bit uint8, v float32) null.Val[float64] {
		if m.Flags&bit == 0 {
			return null.Val[float64]{}
		}
		return null.From(float64(v))
	}

	s := race.Snapshot{
		Mode:      m.Mode,
		Episode:   uint64(m.Episode),
		Phase:     m.Phase,
		TreeState: int(m.TreeState),
		Winner:    m.Winner,

		ReactionTime:         opt(HasReactionTime, m.ReactionTime),
		ElapsedTime:          opt(HasElapsedTime, m.ElapsedTime),
		TrapSpeed:            opt(HasTrapSpeed, m.TrapSpeed),
		OpponentElapsedTime:  opt(HasOpponentElapsedTime, m.OpponentElapsedTime),
		OpponentTrapSpeed:    opt(HasOpponentTrapSpeed, m.OpponentTrapSpeed),
		OpponentReactionTime: opt(HasOpponentReactionTime, m.OpponentReactionTime),
		OpponentFinished:     m.Flags&FlagOpponentFinished != 0,

		Position:         toVec(m.Position),
		Velocity:         toVec(m.Velocity),
		Rotation:         float64(m.Rotation),
		Speed:            float64(m.Speed),
		OpponentPosition: toVec(m.OpponentPosition),
		OpponentSpeed:    float64(m.OpponentSpeed),

		CurrentLap:     int(m.CurrentLap),
		TotalLaps:      int(m.TotalLaps),
		CurrentLapTime: fromMs(m.CurrentLapTimeMs),
		LapTimes: lo.Map(m.LapTimesMs, func(ms uint32, i int) race.LapRecord {
			return race.LapRecord{Lap: i + 1, Time: fromMs(ms)}
		}),
		CameraMode: m.Camera,
	}
	if m.Flags&HasBestLapTime != 0 {
		s.BestLapTime = null.From(fromMs(m.BestLapTimeMs))
	}
	return s
}

// EncodeSessionInfo encodes the session info sent after a join
func (p *Protocol) EncodeSessionInfo(sessionID string, mode race.Mode) []byte {
	idBytes := []byte(sessionID)
	if len(idBytes) > 255 {
		idBytes = idBytes[:255]
	}

	buf := make([]byte, 3+len(idBytes))
	buf[0] = MsgTypeSessionInfo
	buf[1] = uint8(len(idBytes))
	copy(buf[2:], idBytes)
	buf[2+len(idBytes)] = uint8(mode)

	return buf
}

// DecodeSessionInfo decodes a session info message
func (p *Protocol) DecodeSessionInfo(data []byte) (*SessionInfoMessage, error) {
	if len(data) < 3 {
		return nil, ErrBufferTooSmall
	}
	if data[0] != MsgTypeSessionInfo {
		return nil, ErrInvalidMessage
	}

	idLen := int(data[1])
	if len(data) < 3+idLen {
		return nil, ErrBufferTooSmall
	}

	return &SessionInfoMessage{
		MsgType:   data[0],
		SessionID: string(data[2 : 2+idLen]),
		Mode:      race.Mode(data[2+idLen]),
	}, nil
}

// EncodePong encodes a pong message
func (p *Protocol) EncodePong(timestamp uint64) []byte {
	buf := make([]byte, 9)
	buf[0] = MsgTypePong
	binary.LittleEndian.PutUint64(buf[1:9], timestamp)
	return buf
}

// DecodePong decodes a pong message
func (p *Protocol) DecodePong(data []byte) (*PongMessage, error) {
	if len(data) < 9 {
		return nil, ErrBufferTooSmall
	}
	if data[0] != MsgTypePong {
		return nil, ErrInvalidMessage
	}
	return &PongMessage{MsgType: data[0], Timestamp: binary.LittleEndian.Uint64(data[1:9])}, nil
}

// EncodeError encodes an error message
func (p *Protocol) EncodeError(code uint8, message string) []byte {
	msgBytes := []byte(message)
	if len(msgBytes) > 255 {
		msgBytes = msgBytes[:255]
	}

	buf := make([]byte, 3+len(msgBytes))
	buf[0] = MsgTypeError
	buf[1] = code
	buf[2] = uint8(len(msgBytes))
	copy(buf[3:], msgBytes)

	return buf
}

// DecodeError decodes an error message
func (p *Protocol) DecodeError(data []byte) (*ErrorMessage, error) {
	if len(data) < 3 {
		return nil, ErrBufferTooSmall
	}
	if data[0] != MsgTypeError {
		return nil, ErrInvalidMessage
	}
	msgLen := int(data[2])
	if len(data) < 3+msgLen {
		return nil, ErrBufferTooSmall
	}
	return &ErrorMessage{MsgType: data[0], Code: data[1], Message: string(data[3 : 3+msgLen])}, nil
}

// reader walks a little-endian buffer and remembers the first short read.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.buf) {
		r.err = ErrBufferTooSmall
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *reader) u16() uint16 {
	if b := r.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (r *reader) u32() uint32 {
	if b := r.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *reader) f32() float32 {
	return math.Float32frombits(r.u32())
}

func (r *reader) vec() [3]float32 {
	return [3]float32{r.f32(), r.f32(), r.f32()}
}

func appendFloat(buf []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v)))
}

func appendVec(buf []byte, v geom.Vec3) []byte {
	buf = appendFloat(buf, v.X)
	buf = appendFloat(buf, v.Y)
	return appendFloat(buf, v.Z)
}

func toVec(v [3]float32) geom.Vec3 {
	return geom.V3(float64(v[0]), float64(v[1]), float64(v[2]))
}

func toMs(d time.Duration) uint32 {
	ms := d.Milliseconds()
	if ms < 0 {
		return 0
	}
	if ms > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(ms)
}

func fromMs(ms uint32) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func clampU8(v int) uint8 {
	return uint8(max(0, min(v, 255)))
}
