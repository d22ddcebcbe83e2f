package vehicle

import (
	"go.uber.org/zap"

	"github.com/race/dragrace/config"
	"github.com/race/dragrace/internal/clock"
	"github.com/race/dragrace/internal/geom"
	"github.com/race/dragrace/internal/race"
)

// Driver owns the player's car for one store. Each tick it handles the launch, integrates
// the model when the race allows movement, reports the finish once and publishes the pose.
type Driver struct {
	store *race.Store
	model Model
	clock clock.Clock
	log   *zap.Logger

	state    State
	episode  uint64
	launched bool
	finished bool
}

// NewDriver creates a driver for store using model.
func NewDriver(store *race.Store, model Model, clk clock.Clock, log *zap.Logger) *Driver {
	d := &Driver{
		store: store,
		model: model,
		clock: clk,
		log:   log.Named("driver"),
	}
	d.reset(store.Snapshot())
	return d
}

// State returns the car's current kinematic state.
func (d *Driver) State() State {
	return d.state
}

// Tick advances the player's car by one frame.
func (d *Driver) Tick(c Controls, dt float64) {
	snap := d.store.Snapshot()
	if snap.Episode != d.episode {
		d.reset(snap)
	}
	dt = ClampDelta(dt)

	switch snap.Mode {
	case race.ModeDrag:
		d.tickDrag(snap, c, dt)
	case race.ModeCircuit:
		if snap.Phase == race.PhaseRacing {
			d.model.Step(&d.state, c, dt)
		}
	}

	d.store.UpdateVehicle(d.state.Position, d.state.Heading, d.state.Velocity)
}

func (d *Driver) tickDrag(snap race.Snapshot, c Controls, dt float64) {
	if c.Accelerate && !d.launched &&
		(snap.Phase == race.PhaseCountdown || snap.Phase == race.PhaseRacing) {
		d.store.PlayerLaunch()
		d.launched = true
		snap = d.store.Snapshot()
	}

	if snap.OpponentFinished {
		d.store.SettleOpponentLead()
		snap = d.store.Snapshot()
	}

	if snap.Phase != race.PhaseRacing || snap.GreenLightTime.IsNull() || !snap.Launched() || d.finished {
		return
	}

	d.model.Step(&d.state, c, dt)

	if d.state.Position.Z >= config.FinishLineZ && snap.ElapsedTime.IsNull() {
		d.finished = true
		launch := snap.PlayerLaunchTime.GetOrZero()
		et := d.clock.Now().Sub(launch).Seconds()
		trap := d.state.Velocity.Z * geom.KmhPerMps
		d.log.Debug("crossed finish line", zap.Float64("et", et), zap.Float64("trap", trap))
		d.store.SetPlayerFinished(et, trap)
	}
}

func (d *Driver) reset(snap race.Snapshot) {
	d.episode = snap.Episode
	d.launched = snap.Launched()
	d.finished = false
	d.state = State{
		Position: snap.Position,
		Heading:  snap.Rotation,
	}
	d.model.Reset()
}
