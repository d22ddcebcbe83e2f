package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/race/dragrace/internal/game"
	"github.com/race/dragrace/internal/network"
	"github.com/race/dragrace/internal/race"
)

const (
	// inputKeepalive resends unchanged keys so the server never considers the room idle.
	inputKeepalive = 250 * time.Millisecond
	joinTimeout    = 5 * time.Second
	writeWait      = 2 * time.Second
)

var errServerClosed = errors.New("server closed the connection")

// backend is where the race actually runs.
type backend interface {
	Mode() race.Mode
	Snapshot() race.Snapshot
	// Step advances one frame with the held keys.
	Step(dt float64, keys uint8) error
	Dispatch(a race.Action) error
	Close() error
}

// localBackend runs a session in process.
type localBackend struct {
	session *game.Session
}

func newLocalBackend(mode race.Mode, laps int, log *zap.Logger) *localBackend {
	opts := []game.SessionOption{game.WithLogger(log)}
	if laps > 0 {
		opts = append(opts, game.WithTotalLaps(laps))
	}
	return &localBackend{session: game.NewSession(mode, opts...)}
}

func (b *localBackend) Mode() race.Mode { return b.session.Mode() }

func (b *localBackend) Snapshot() race.Snapshot { return b.session.Snapshot() }

func (b *localBackend) Step(dt float64, keys uint8) error {
	b.session.Tick(dt, b.session.HandleKeys(keys))
	return nil
}

func (b *localBackend) Dispatch(a race.Action) error {
	b.session.Dispatch(a)
	return nil
}

func (b *localBackend) Close() error {
	b.session.Close()
	return nil
}

// remoteBackend plays against a dragserver room. The server owns the simulation; Step
// only forwards keys and Snapshot returns the latest state broadcast.
type remoteBackend struct {
	ws        *websocket.Conn
	protocol  *network.Protocol
	mode      race.Mode
	sessionID string
	log       *zap.Logger

	writeMu sync.Mutex

	mu       sync.RWMutex
	snapshot race.Snapshot
	readErr  error

	seq      uint8
	lastKeys uint8
	lastSent time.Time
	done     chan struct{}
}

// dialRemote connects to url, joins a room for mode and starts reading state.
func dialRemote(ctx context.Context, url string, mode race.Mode, log *zap.Logger) (*remoteBackend, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	b := &remoteBackend{
		ws:       ws,
		protocol: network.NewProtocol(),
		mode:     mode,
		log:      log.Named("remote"),
		snapshot: race.Snapshot{Mode: mode},
		done:     make(chan struct{}),
	}
	if err := b.join(); err != nil {
		ws.Close()
		return nil, err
	}

	go b.readLoop()
	b.log.Info("joined", zap.String("session", b.sessionID), zap.Stringer("mode", mode))
	return b, nil
}

// join sends the join request and waits for the session info.
func (b *remoteBackend) join() error {
	if err := b.write(b.protocol.EncodeJoin(b.mode)); err != nil {
		return err
	}
	if err := b.ws.SetReadDeadline(time.Now().Add(joinTimeout)); err != nil {
		return err
	}
	defer b.ws.SetReadDeadline(time.Time{}) //nolint:errcheck // next read reports it

	for {
		_, data, err := b.ws.ReadMessage()
		if err != nil {
			return err
		}
		msgType, err := network.MessageType(data)
		if err != nil {
			continue
		}

		switch msgType {
		case network.MsgTypeSessionInfo:
			info, err := b.protocol.DecodeSessionInfo(data)
			if err != nil {
				return err
			}
			b.sessionID = info.SessionID
			return nil
		case network.MsgTypeError:
			msg, err := b.protocol.DecodeError(data)
			if err != nil {
				return err
			}
			return fmt.Errorf("join refused (code %d): %s", msg.Code, msg.Message)
		}
	}
}

func (b *remoteBackend) readLoop() {
	defer close(b.done)

	for {
		_, data, err := b.ws.ReadMessage()
		if err != nil {
			b.mu.Lock()
			b.readErr = errServerClosed
			b.mu.Unlock()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.log.Warn("read failed", zap.Error(err))
			}
			return
		}
		b.handle(data)
	}
}

func (b *remoteBackend) handle(data []byte) {
	msgType, err := network.MessageType(data)
	if err != nil {
		return
	}

	switch msgType {
	case network.MsgTypeState:
		msg, err := b.protocol.DecodeState(data)
		if err != nil {
			b.log.Debug("bad state message", zap.Error(err))
			return
		}
		b.mu.Lock()
		b.snapshot = msg.Snapshot()
		b.mu.Unlock()
	case network.MsgTypeError:
		if msg, err := b.protocol.DecodeError(data); err == nil {
			b.log.Warn("server error", zap.Uint8("code", msg.Code), zap.String("message", msg.Message))
		}
	}
}

func (b *remoteBackend) Mode() race.Mode { return b.mode }

func (b *remoteBackend) Snapshot() race.Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshot
}

// Step sends the keys when they change and at least every inputKeepalive.
func (b *remoteBackend) Step(_ float64, keys uint8) error {
	b.mu.RLock()
	err := b.readErr
	b.mu.RUnlock()
	if err != nil {
		return err
	}

	now := time.Now()
	if keys == b.lastKeys && now.Sub(b.lastSent) < inputKeepalive {
		return nil
	}
	b.seq++
	b.lastKeys = keys
	b.lastSent = now
	return b.write(b.protocol.EncodeInput(b.seq, keys))
}

func (b *remoteBackend) Dispatch(a race.Action) error {
	cmd, arg, err := network.CommandFor(a)
	if err != nil {
		return err
	}
	return b.write(b.protocol.EncodeCommand(cmd, arg))
}

// Close leaves the room and closes the socket.
func (b *remoteBackend) Close() error {
	b.write(b.protocol.EncodeLeave()) //nolint:errcheck // best effort
	b.writeMu.Lock()
	b.ws.WriteControl(websocket.CloseMessage, //nolint:errcheck // best effort
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	b.writeMu.Unlock()

	err := b.ws.Close()
	<-b.done
	return err
}

func (b *remoteBackend) write(data []byte) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	if err := b.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return b.ws.WriteMessage(websocket.BinaryMessage, data)
}
