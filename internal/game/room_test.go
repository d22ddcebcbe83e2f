package game

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/race/dragrace/config"
	"github.com/race/dragrace/internal/clock"
	"github.com/race/dragrace/internal/network"
	"github.com/race/dragrace/internal/race"
	"github.com/race/dragrace/internal/vehicle"
)

type fakeConn struct {
	mu     sync.Mutex
	sent   [][]byte
	fail   bool
	closed bool
}

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) RemoteAddr() string { return "127.0.0.1:5000" }

func (c *fakeConn) messages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

func newTestRoom(t *testing.T, mode race.Mode) (*Room, *fakeConn, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	conn := &fakeConn{}
	r := NewRoom("room-1", mode, NewPlayer("sess-1", conn), zap.NewNop(), WithClock(clk), WithRand(fixedRand(0.5)))
	return r, conn, clk
}

func TestRoomStep(t *testing.T) {
	t.Run("commands apply on the next tick", func(t *testing.T) {
		r, _, clk := newTestRoom(t, race.ModeDrag)
		require.NoError(t, r.Dispatch(race.StartStagingAction{}))
		assert.Equal(t, race.PhaseMenu, r.Snapshot().Phase)

		clk.AdvanceSeconds(frame)
		r.step(frame)
		assert.Equal(t, race.PhaseStaging, r.Snapshot().Phase)
		assert.Equal(t, uint64(1), r.TickCount())
	})

	t.Run("latched input drives the car", func(t *testing.T) {
		r, _, clk := newTestRoom(t, race.ModeCircuit)
		require.NoError(t, r.Dispatch(race.StartRaceAction{}))
		r.HandleInput(&network.InputMessage{MsgType: network.MsgTypeInput, Sequence: 1, Keys: vehicle.KeyAccelerate})

		for range 60 {
			clk.AdvanceSeconds(frame)
			r.step(frame)
		}
		st := r.Snapshot()
		assert.Greater(t, st.Speed, 0.0)
		assert.Greater(t, st.Position.X, 0.0)
	})

	t.Run("input rate limit", func(t *testing.T) {
		r, _, _ := newTestRoom(t, race.ModeDrag)
		for i := range config.MaxInputsPerTick + 2 {
			r.HandleInput(&network.InputMessage{Sequence: uint8(i), Keys: vehicle.KeyAccelerate})
		}
		assert.Equal(t, 2, r.Player().Rejected())
		assert.Equal(t, uint8(config.MaxInputsPerTick-1), r.Player().Input().Sequence)

		r.HandleInput(&network.InputMessage{Sequence: 50})
		assert.Equal(t, uint8(50), r.Player().Input().Sequence)
	})

	t.Run("command queue full", func(t *testing.T) {
		r, _, _ := newTestRoom(t, race.ModeDrag)
		for range commandQueueSize {
			require.NoError(t, r.Dispatch(race.ToggleCameraAction{}))
		}
		assert.ErrorIs(t, r.Dispatch(race.ToggleCameraAction{}), ErrCommandQueueFull)
	})
}

func TestRoomBroadcast(t *testing.T) {
	r, conn, clk := newTestRoom(t, race.ModeDrag)
	require.NoError(t, r.Dispatch(race.StartStagingAction{}))
	clk.AdvanceSeconds(frame)
	r.step(frame)
	r.broadcastState()

	msgs := conn.messages()
	require.Len(t, msgs, 1)
	msg, err := network.NewProtocol().DecodeState(msgs[0])
	require.NoError(t, err)
	assert.Equal(t, uint16(1), msg.Tick)
	assert.Equal(t, race.PhaseStaging, msg.Phase)
	assert.Equal(t, race.ModeDrag, msg.Mode)

	conn.fail = true
	r.broadcastState()
	assert.Len(t, conn.messages(), 1)
}

func TestRoomStartStop(t *testing.T) {
	r, conn, _ := newTestRoom(t, race.ModeDrag)
	r.Start()
	r.Start()
	assert.True(t, r.Running())

	assert.Eventually(t, func() bool {
		return r.TickCount() > 3 && len(conn.messages()) > 0
	}, 2*time.Second, 10*time.Millisecond)

	r.Stop()
	r.Stop()
	assert.False(t, r.Running())

	ticks := r.TickCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, ticks, r.TickCount())

	// a stopped room stays stopped
	assert.NotPanics(t, r.Start)
	assert.False(t, r.Running())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, ticks, r.TickCount())
	r.Stop()
}

func TestRoomStopBeforeStart(t *testing.T) {
	r, _, _ := newTestRoom(t, race.ModeDrag)
	r.Stop()
	r.Start()
	assert.False(t, r.Running())
	assert.Zero(t, r.TickCount())
}
