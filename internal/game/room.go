package game

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/race/dragrace/config"
	"github.com/race/dragrace/internal/network"
	"github.com/race/dragrace/internal/race"
)

// commandQueueSize bounds the actions waiting for the next physics tick.
const commandQueueSize = 16

// Room runs one player's session in real time.
//
// Each room has its own:
// - Physics loop running at 60Hz, which is the only goroutine touching the session
// - Network broadcast running at 20Hz
//
// Inputs and commands arrive from the connection goroutine. Inputs are latched on the
// Player and commands are queued on a channel; both are consumed at the start of the next
// physics tick, so the race core never sees concurrent calls.
type Room struct {
	mu sync.RWMutex // Protects snapshot

	ID       string
	Mode     race.Mode
	player   *Player
	session  *Session
	protocol *network.Protocol
	log      *zap.Logger

	commands chan race.Action
	snapshot race.Snapshot

	tickCount  atomic.Uint64
	lastActive atomic.Int64 // unix nanos of the last input or command
	running    atomic.Bool

	lifecycle sync.Mutex // serializes Start and Stop
	stopped   bool
	stopChan  chan struct{}
	done      chan struct{}
}

// NewRoom creates a room for player. The room is not started automatically - call Start()
// to begin the game loop.
func NewRoom(id string, mode race.Mode, player *Player, log *zap.Logger, opts ...SessionOption) *Room {
	log = log.Named("room").With(zap.String("room", id), zap.Stringer("mode", mode))
	opts = append([]SessionOption{WithLogger(log)}, opts...)

	session := NewSession(mode, opts...)
	r := &Room{
		ID:       id,
		Mode:     mode,
		player:   player,
		session:  session,
		protocol: network.NewProtocol(),
		log:      log,
		commands: make(chan race.Action, commandQueueSize),
		snapshot: session.Snapshot(),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	r.touch()
	return r
}

// Start begins the room's game loop in a separate goroutine.
// Safe to call multiple times - subsequent calls are no-ops. A stopped room never restarts.
func (r *Room) Start() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	if r.stopped || r.running.Load() {
		return
	}

	r.running.Store(true)
	go r.gameLoop()
	r.log.Info("room started")
}

// Stop stops the room's game loop and waits for it to exit. It is final: later calls to
// Start and Stop are no-ops.
func (r *Room) Stop() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	if r.stopped {
		return
	}
	r.stopped = true
	if !r.running.Swap(false) {
		return
	}

	close(r.stopChan)
	<-r.done
	r.log.Info("room stopped", zap.Uint64("ticks", r.tickCount.Load()))
}

// Running reports whether the game loop is active.
func (r *Room) Running() bool {
	return r.running.Load()
}

// Player returns the room's client.
func (r *Room) Player() *Player {
	return r.player
}

// HandleInput latches the client's key state for the next tick.
func (r *Room) HandleInput(input *network.InputMessage) {
	if !r.player.ApplyInput(PlayerInput{Sequence: input.Sequence, Keys: input.Keys}) {
		r.log.Debug("input dropped", zap.Uint8("seq", input.Sequence))
		return
	}
	r.touch()
}

// Dispatch queues a race action for the next tick.
func (r *Room) Dispatch(a race.Action) error {
	select {
	case r.commands <- a:
		r.touch()
		return nil
	default:
		return ErrCommandQueueFull
	}
}

// Snapshot returns the state as of the last physics tick.
func (r *Room) Snapshot() race.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// TickCount returns the number of physics ticks run.
func (r *Room) TickCount() uint64 {
	return r.tickCount.Load()
}

// LastActive returns when the client last sent an input or command.
func (r *Room) LastActive() time.Time {
	return time.Unix(0, r.lastActive.Load())
}

func (r *Room) touch() {
	r.lastActive.Store(time.Now().UnixNano())
}

// gameLoop is the main game loop running in its own goroutine.
// It handles physics updates at 60Hz and network broadcasts at 20Hz.
func (r *Room) gameLoop() {
	physicsTicker := time.NewTicker(time.Second / time.Duration(config.PhysicsTickRate))
	broadcastTicker := time.NewTicker(time.Second / time.Duration(config.NetworkBroadcastRate))
	defer physicsTicker.Stop()
	defer broadcastTicker.Stop()
	defer close(r.done)
	defer r.session.Close()

	lastPhysicsTime := time.Now()

	for {
		select {
		case <-r.stopChan:
			return

		case now := <-physicsTicker.C:
			dt := now.Sub(lastPhysicsTime).Seconds()
			lastPhysicsTime = now
			r.step(dt)

		case <-broadcastTicker.C:
			r.broadcastState()
		}
	}
}

// step runs one physics tick: queued commands, then the latched input, then the session.
func (r *Room) step(dt float64) {
drain:
	for {
		select {
		case a := <-r.commands:
			r.log.Debug("command", zap.String("action", race.ActionName(a)))
			r.session.Dispatch(a)
		default:
			break drain
		}
	}

	input := r.player.Input()
	controls := r.session.HandleKeys(input.Keys)
	r.session.Tick(dt, controls)
	r.tickCount.Add(1)

	snap := r.session.Snapshot()
	r.mu.Lock()
	r.snapshot = snap
	r.mu.Unlock()
}

// broadcastState sends the latest snapshot to the client.
func (r *Room) broadcastState() {
	tick := uint16(r.tickCount.Load() & 0xFFFF)
	msg := r.protocol.EncodeState(tick, r.Snapshot())

	if err := r.player.Connection.Send(msg); err != nil {
		// connection cleanup happens on the read side
		r.log.Debug("failed to send state", zap.Error(err))
	}
}

// Error definitions
var (
	ErrCommandQueueFull = &RoomError{message: "command queue is full"}
)

// RoomError represents an error related to room operations.
type RoomError struct {
	message string
}

func (e *RoomError) Error() string {
	return e.message
}
