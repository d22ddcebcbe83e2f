// Package opponent drives the AI car on the right lane of the drag strip.
package opponent

import (
	"time"

	"go.uber.org/zap"

	"github.com/race/dragrace/config"
	"github.com/race/dragrace/internal/clock"
	"github.com/race/dragrace/internal/geom"
	"github.com/race/dragrace/internal/race"
	"github.com/race/dragrace/internal/vehicle"
)

// Profile returns the opponent's car: a straight-line model with its own top speed and
// acceleration, locked to its lane.
func Profile() vehicle.DragProfile {
	return vehicle.DragProfile{
		MaxSpeed:      config.OpponentMaxSpeed,
		Acceleration:  config.OpponentAcceleration,
		CoastDecay:    config.CoastDecay,
		BrakeDecay:    config.BrakeDecay,
		LaneSteerRate: 0,
		LaneMinX:      config.OpponentStartX,
		LaneMaxX:      config.OpponentStartX,
		GroundHeight:  config.OpponentGroundY,
	}
}

// Controller is a tick-driven AI. It holds a launch delay sampled once per episode, goes
// when that much time has passed since green, runs flat out and reports its finish once.
type Controller struct {
	store *race.Store
	clock clock.Clock
	rnd   race.Rand
	log   *zap.Logger
	model *vehicle.DragModel

	state       vehicle.State
	episode     uint64
	launchDelay time.Duration
	launched    bool
	startTime   time.Time
	finished    bool
}

// NewController creates an opponent for a drag store.
func NewController(store *race.Store, clk clock.Clock, rnd race.Rand, log *zap.Logger) *Controller {
	c := &Controller{
		store: store,
		clock: clk,
		rnd:   rnd,
		log:   log.Named("opponent"),
		model: vehicle.NewDragModel(Profile()),
	}
	c.reset(store.Snapshot().Episode)
	return c
}

// LaunchDelay is the delay after green sampled for the current episode.
func (c *Controller) LaunchDelay() time.Duration {
	return c.launchDelay
}

// Launched reports whether the opponent has left the line this episode.
func (c *Controller) Launched() bool {
	return c.launched
}

// Tick advances the opponent by one frame.
func (c *Controller) Tick(dt float64) {
	snap := c.store.Snapshot()
	if snap.Episode != c.episode {
		c.reset(snap.Episode)
	}
	green, ok := snap.GreenLightTime.Get()
	if snap.Phase != race.PhaseRacing || !ok || c.finished {
		return
	}

	now := c.clock.Now()
	if !c.launched {
		if now.Sub(green) < c.launchDelay {
			return
		}
		c.launched = true
		c.startTime = now
		c.log.Debug("launched", zap.Duration("delay", c.launchDelay))
	}

	c.model.Step(&c.state, vehicle.Controls{Accelerate: true}, vehicle.ClampDelta(dt))
	c.store.SetOpponent(c.state.Position, c.state.Velocity.Z*geom.KmhPerMps)

	if c.state.Position.Z >= config.FinishLineZ && !snap.OpponentFinished {
		c.finished = true
		et := now.Sub(c.startTime).Seconds()
		c.store.SetOpponentFinished(et, c.state.Velocity.Z*geom.KmhPerMps)
	}
}

func (c *Controller) reset(episode uint64) {
	c.episode = episode
	c.launched = false
	c.finished = false
	c.startTime = time.Time{}
	c.state = vehicle.State{Position: geom.V3(config.OpponentStartX, config.OpponentGroundY, 0)}
	delay := config.OpponentLaunchDelayMin + c.rnd.Float64()*config.OpponentLaunchDelaySpread
	c.launchDelay = time.Duration(delay * float64(time.Second))
}
