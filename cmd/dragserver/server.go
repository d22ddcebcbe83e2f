package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/race/dragrace/config"
	"github.com/race/dragrace/internal/game"
	"github.com/race/dragrace/internal/lobby"
	"github.com/race/dragrace/internal/network"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 512
	sendBufferSize = 256

	cleanupInterval = 30 * time.Second
	statsInterval   = 5 * time.Minute
	shutdownTimeout = 5 * time.Second
)

var errConnectionClosed = errors.New("connection closed")

// GameServer accepts WebSocket clients and gives each one a room in the lobby.
type GameServer struct {
	cfg      *config.ServerConfig
	lobby    *lobby.Lobby
	protocol *network.Protocol
	upgrader websocket.Upgrader
	log      *zap.Logger

	mu          sync.Mutex
	connections map[*ClientConnection]struct{}
}

// ClientConnection is one connected client. It owns a read and a write goroutine; the room
// field is only touched by the read goroutine.
type ClientConnection struct {
	ws       *websocket.Conn
	server   *GameServer
	room     *game.Room
	log      *zap.Logger
	sendChan chan []byte
	done     chan struct{}
	once     sync.Once
}

// NewGameServer creates a server for cfg. opts are passed to every session.
func NewGameServer(cfg *config.ServerConfig, log *zap.Logger, opts ...game.SessionOption) *GameServer {
	return &GameServer{
		cfg:      cfg,
		lobby:    lobby.NewLobby(cfg.MaxRooms, log.Named("lobby"), opts...),
		protocol: network.NewProtocol(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return cfg.EnableCORS
			},
		},
		log:         log.Named("server"),
		connections: make(map[*ClientConnection]struct{}),
	}
}

// Handler returns the HTTP routes, wrapped in CORS handling when enabled.
func (s *GameServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)

	if !s.cfg.EnableCORS {
		return mux
	}
	return newCORS().Handler(mux)
}

// Run serves until ctx is done, then shuts down every connection and room.
func (s *GameServer) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: writeWait,
	}

	go s.housekeeping(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info("server listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		s.lobby.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)

	// hijacked websocket connections are not closed by Shutdown
	s.closeConnections()
	s.lobby.Close()
	return err
}

// housekeeping removes idle rooms and periodically logs lobby statistics.
func (s *GameServer) housekeeping(ctx context.Context) {
	cleanup := time.NewTicker(cleanupInterval)
	stats := time.NewTicker(statsInterval)
	defer cleanup.Stop()
	defer stats.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cleanup.C:
			if removed := s.lobby.CleanupIdle(s.cfg.IdleTimeout); removed > 0 {
				s.log.Info("cleaned up idle rooms", zap.Int("removed", removed))
			}
		case <-stats.C:
			if st := s.lobby.Stats(); st.TotalRooms > 0 {
				s.log.Info("stats",
					zap.Int("rooms", st.TotalRooms),
					zap.Any("byMode", st.ByMode),
					zap.Any("byPhase", st.ByPhase))
			}
		}
	}
}

func (s *GameServer) closeConnections() {
	s.mu.Lock()
	conns := make([]*ClientConnection, 0, len(s.connections))
	for c := range s.connections {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func (s *GameServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck // client went away
}

func (s *GameServer) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.lobby.Stats()); err != nil {
		s.log.Debug("stats write failed", zap.Error(err))
	}
}

// handleWebSocket upgrades the request and starts the connection's pumps.
func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := &ClientConnection{
		ws:       ws,
		server:   s,
		log:      s.log.With(zap.String("remote", ws.RemoteAddr().String())),
		sendChan: make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	s.connections[conn] = struct{}{}
	s.mu.Unlock()

	conn.log.Debug("connection opened")
	go conn.writePump()
	go conn.readPump()
}

// Send queues data for the client. It drops the message when the buffer is full; the
// client gets the next state update instead.
func (c *ClientConnection) Send(data []byte) error {
	select {
	case <-c.done:
		return errConnectionClosed
	default:
	}

	select {
	case c.sendChan <- data:
	default:
	}
	return nil
}

// Close shuts the connection down. Safe to call from any goroutine, more than once.
func (c *ClientConnection) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

// RemoteAddr returns the client's address for logging.
func (c *ClientConnection) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

// writePump sends queued messages and keepalive pings. Closing the socket on exit unblocks
// readPump, which does the cleanup.
func (c *ClientConnection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.Close()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.sendChan:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // write reports it
			if err := c.ws.WriteMessage(websocket.BinaryMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // write reports it
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump decodes client messages until the socket fails.
func (c *ClientConnection) readPump() {
	defer c.cleanup()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck // read reports it
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Info("read error", zap.Error(err))
			}
			return
		}
		c.handleMessage(message)
	}
}

// handleMessage routes on the type byte.
func (c *ClientConnection) handleMessage(data []byte) {
	msgType, err := network.MessageType(data)
	if err != nil {
		return
	}

	switch msgType {
	case network.MsgTypeJoin:
		c.handleJoin(data)
	case network.MsgTypeInput:
		c.handleInput(data)
	case network.MsgTypeCommand:
		c.handleCommand(data)
	case network.MsgTypePing:
		c.handlePing(data)
	case network.MsgTypeLeave:
		c.handleLeave()
	default:
		c.sendError(network.ErrorCodeInvalidMessage, "unknown message type")
	}
}

func (c *ClientConnection) handleJoin(data []byte) {
	msg, err := c.server.protocol.DecodeJoin(data)
	if err != nil {
		c.sendError(network.ErrorCodeInvalidMessage, err.Error())
		return
	}
	if c.room != nil {
		c.sendError(network.ErrorCodeInvalidMessage, "already joined")
		return
	}

	room, err := c.server.lobby.Open(msg.Mode, c)
	switch {
	case errors.Is(err, lobby.ErrLobbyFull):
		c.sendError(network.ErrorCodeLobbyFull, "server full")
		return
	case err != nil:
		c.sendError(network.ErrorCodeServerError, err.Error())
		return
	}

	c.room = room
	c.Send(c.server.protocol.EncodeSessionInfo(room.ID, room.Mode)) //nolint:errcheck // closed conn
	c.log.Info("joined", zap.String("room", room.ID), zap.Stringer("mode", room.Mode))
}

func (c *ClientConnection) handleInput(data []byte) {
	if c.room == nil {
		c.sendError(network.ErrorCodeNotJoined, "join first")
		return
	}
	msg, err := c.server.protocol.DecodeInput(data)
	if err != nil {
		return
	}
	c.room.HandleInput(msg)
}

func (c *ClientConnection) handleCommand(data []byte) {
	if c.room == nil {
		c.sendError(network.ErrorCodeNotJoined, "join first")
		return
	}
	msg, err := c.server.protocol.DecodeCommand(data)
	if err != nil {
		c.sendError(network.ErrorCodeInvalidMessage, err.Error())
		return
	}
	action, err := msg.Action()
	if err != nil {
		c.sendError(network.ErrorCodeInvalidMessage, err.Error())
		return
	}
	if err := c.room.Dispatch(action); err != nil {
		c.sendError(network.ErrorCodeServerError, err.Error())
	}
}

// handlePing answers with the client's timestamp so it can measure round trip time.
func (c *ClientConnection) handlePing(data []byte) {
	msg, err := c.server.protocol.DecodePing(data)
	if err != nil {
		return
	}
	c.Send(c.server.protocol.EncodePong(msg.Timestamp)) //nolint:errcheck // closed conn
}

func (c *ClientConnection) handleLeave() {
	if c.room == nil {
		return
	}
	c.server.lobby.Remove(c.room.ID)
	c.room = nil
}

func (c *ClientConnection) sendError(code uint8, message string) {
	c.Send(c.server.protocol.EncodeError(code, message)) //nolint:errcheck // closed conn
}

// cleanup releases the room and forgets the connection.
func (c *ClientConnection) cleanup() {
	c.server.mu.Lock()
	delete(c.server.connections, c)
	c.server.mu.Unlock()

	c.handleLeave()
	c.Close()
	c.log.Debug("connection closed")
}

func newCORS() *cors.Cors {
	return cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
		},
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowedHeaders: []string{"*"},
		MaxAge:         int(2 * time.Hour / time.Second),
	})
}
