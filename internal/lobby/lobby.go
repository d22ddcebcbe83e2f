// Package lobby keeps the registry of live rooms, one per connected client.
package lobby

import (
	"errors"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/race/dragrace/internal/game"
	"github.com/race/dragrace/internal/race"
)

var (
	ErrLobbyFull   = errors.New("lobby is full")
	ErrLobbyClosed = errors.New("lobby is closed")
)

// Lobby handles room creation and lookup
type Lobby struct {
	mu       sync.RWMutex
	rooms    map[string]*game.Room
	maxRooms int
	closed   bool

	log         *zap.Logger
	sessionOpts []game.SessionOption
}

// NewLobby creates a lobby holding at most maxRooms rooms. opts are applied to every
// session it creates.
func NewLobby(maxRooms int, log *zap.Logger, opts ...game.SessionOption) *Lobby {
	return &Lobby{
		rooms:       make(map[string]*game.Room),
		maxRooms:    maxRooms,
		log:         log,
		sessionOpts: opts,
	}
}

// Open creates and starts a room for a new connection.
func (l *Lobby) Open(mode race.Mode, conn game.PlayerConnection) (*game.Room, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrLobbyClosed
	}
	if len(l.rooms) >= l.maxRooms {
		return nil, ErrLobbyFull
	}

	id := ksuid.New().String()
	room := game.NewRoom(id, mode, game.NewPlayer(id, conn), l.log, l.sessionOpts...)
	l.rooms[id] = room
	room.Start()

	l.log.Info("room opened",
		zap.String("room", id),
		zap.Stringer("mode", mode),
		zap.String("remote", conn.RemoteAddr()),
		zap.Int("rooms", len(l.rooms)))
	return room, nil
}

// Get gets a room by ID
func (l *Lobby) Get(id string) *game.Room {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.rooms[id]
}

// Remove stops and removes a room. Safe to call with unknown IDs.
func (l *Lobby) Remove(id string) {
	l.mu.Lock()
	room, ok := l.rooms[id]
	delete(l.rooms, id)
	l.mu.Unlock()

	if ok {
		room.Stop()
		l.log.Info("room closed", zap.String("room", id))
	}
}

// CleanupIdle removes rooms whose client has been silent for longer than timeout.
func (l *Lobby) CleanupIdle(timeout time.Duration) int {
	l.mu.Lock()
	idle := lo.PickBy(l.rooms, func(_ string, room *game.Room) bool {
		return time.Since(room.LastActive()) > timeout
	})
	for id := range idle {
		delete(l.rooms, id)
	}
	l.mu.Unlock()

	for id, room := range idle {
		room.Stop()
		room.Player().Connection.Close()
		l.log.Info("idle room removed", zap.String("room", id))
	}
	return len(idle)
}

// Close stops every room and refuses new ones.
func (l *Lobby) Close() {
	l.mu.Lock()
	rooms := lo.Values(l.rooms)
	l.rooms = make(map[string]*game.Room)
	l.closed = true
	l.mu.Unlock()

	for _, room := range rooms {
		room.Stop()
	}
}

// Len returns the number of live rooms.
func (l *Lobby) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.rooms)
}

// Stats returns lobby statistics
func (l *Lobby) Stats() Stats {
	l.mu.RLock()
	rooms := lo.Values(l.rooms)
	l.mu.RUnlock()

	roomStats := lo.Map(rooms, func(room *game.Room, _ int) RoomStats {
		snap := room.Snapshot()
		return RoomStats{
			ID:          room.ID,
			Mode:        room.Mode.String(),
			Phase:       snap.Phase.String(),
			Ticks:       room.TickCount(),
			ConnectedAt: room.Player().ConnectedAt(),
			LastActive:  room.LastActive(),
			Rejected:    room.Player().Rejected(),
		}
	})

	return Stats{
		TotalRooms: len(rooms),
		MaxRooms:   l.maxRooms,
		ByMode:     lo.CountValuesBy(roomStats, func(r RoomStats) string { return r.Mode }),
		ByPhase:    lo.CountValuesBy(roomStats, func(r RoomStats) string { return r.Phase }),
		Rooms:      roomStats,
	}
}

// Stats contains lobby statistics
type Stats struct {
	TotalRooms int            `json:"total_rooms"`
	MaxRooms   int            `json:"max_rooms"`
	ByMode     map[string]int `json:"by_mode"`
	ByPhase    map[string]int `json:"by_phase"`
	Rooms      []RoomStats    `json:"rooms"`
}

// RoomStats contains room statistics
type RoomStats struct {
	ID          string    `json:"id"`
	Mode        string    `json:"mode"`
	Phase       string    `json:"phase"`
	Ticks       uint64    `json:"ticks"`
	ConnectedAt time.Time `json:"connected_at"`
	LastActive  time.Time `json:"last_active"`
	Rejected    int       `json:"rejected_inputs"`
}
