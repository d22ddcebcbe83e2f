package game

import (
	"sync"
	"time"

	"github.com/race/dragrace/config"
)

// PlayerConnection interface for network abstraction
type PlayerConnection interface {
	Send(data []byte) error
	Close() error
	RemoteAddr() string
}

// PlayerInput is the latest key state received from the client.
type PlayerInput struct {
	Sequence uint8
	Keys     uint8 // vehicle.Key* bits
}

// Player is the client attached to a room. Inputs arrive on the connection goroutine and
// are read by the room loop, so all fields are guarded by mu.
type Player struct {
	mu sync.RWMutex

	SessionID  string
	Connection PlayerConnection

	currentInput   PlayerInput
	inputsThisTick int
	rejected       int

	connectedAt time.Time
}

// NewPlayer creates a player for conn.
func NewPlayer(sessionID string, conn PlayerConnection) *Player {
	return &Player{
		SessionID:   sessionID,
		Connection:  conn,
		connectedAt: time.Now(),
	}
}

// ApplyInput records an input from the client. Inputs beyond MaxInputsPerTick within one
// physics tick are dropped; it reports whether the input was accepted.
func (p *Player) ApplyInput(input PlayerInput) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.inputsThisTick++
	if p.inputsThisTick > config.MaxInputsPerTick {
		p.rejected++
		return false
	}

	p.currentInput = input
	return true
}

// Input returns the latest accepted input and resets the per-tick rate counter.
func (p *Player) Input() PlayerInput {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.inputsThisTick = 0
	return p.currentInput
}

// Rejected counts inputs dropped by the rate limit.
func (p *Player) Rejected() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rejected
}

// ConnectedAt returns when the player joined.
func (p *Player) ConnectedAt() time.Time {
	return p.connectedAt
}
