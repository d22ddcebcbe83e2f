// Package game runs race sessions: the per-frame wiring of the race store with the cars,
// the start-light sequencer and the lap detector, and the rooms that drive a session in
// real time for a connected client.
package game

import (
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/race/dragrace/internal/clock"
	"github.com/race/dragrace/internal/lap"
	"github.com/race/dragrace/internal/opponent"
	"github.com/race/dragrace/internal/race"
	"github.com/race/dragrace/internal/vehicle"
)

// Session is one player's race. It is single-threaded: Tick, HandleKeys and Dispatch must be
// called from the same goroutine.
type Session struct {
	mode  race.Mode
	store *race.Store
	sched *race.Scheduler
	log   *zap.Logger

	driver   *vehicle.Driver
	tree     *race.TreeSequencer  // drag only
	opponent *opponent.Controller // drag only
	laps     *lap.Detector        // circuit only

	prevKeys uint8
}

type sessionOptions struct {
	clock     clock.Clock
	rnd       race.Rand
	log       *zap.Logger
	totalLaps int
}

// SessionOption configures a Session.
type SessionOption func(o *sessionOptions)

// WithClock sets the session's time source.
func WithClock(c clock.Clock) SessionOption {
	return func(o *sessionOptions) {
		o.clock = c
	}
}

// WithRand sets the random source for the opponent and the synthesized reaction time.
func WithRand(r race.Rand) SessionOption {
	return func(o *sessionOptions) {
		o.rnd = r
	}
}

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) SessionOption {
	return func(o *sessionOptions) {
		o.log = l
	}
}

// WithTotalLaps sets the circuit race length.
func WithTotalLaps(n int) SessionOption {
	return func(o *sessionOptions) {
		o.totalLaps = n
	}
}

// NewSession builds a session for mode with all of its components attached.
func NewSession(mode race.Mode, opts ...SessionOption) *Session {
	o := sessionOptions{
		clock: clock.System{},
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rnd == nil {
		o.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	storeOpts := []race.Option{race.WithClock(o.clock), race.WithRand(o.rnd), race.WithLogger(o.log)}
	if o.totalLaps > 0 {
		storeOpts = append(storeOpts, race.WithTotalLaps(o.totalLaps))
	}
	store := race.NewStore(mode, storeOpts...)

	s := &Session{
		mode:  mode,
		store: store,
		sched: race.NewScheduler(o.clock),
		log:   o.log.Named("session"),
	}

	switch mode {
	case race.ModeDrag:
		s.driver = vehicle.NewDriver(store, vehicle.NewDragModel(vehicle.PlayerDragProfile()), o.clock, o.log)
		s.tree = race.NewTreeSequencer(store, s.sched)
		s.opponent = opponent.NewController(store, o.clock, o.rnd, o.log)
	case race.ModeCircuit:
		boost := vehicle.NewBoostTracker(vehicle.CircuitBoostZones(), vehicle.DefaultBoostConfig())
		model := vehicle.NewCircuitModel(vehicle.DefaultCircuitProfile(), boost)
		s.driver = vehicle.NewDriver(store, model, o.clock, o.log)
		s.laps = lap.NewDetector(store, o.clock, lap.DefaultFinishLine(), lap.DefaultCheckpoint(), o.log)
	}
	return s
}

// Mode returns the session's race variant.
func (s *Session) Mode() race.Mode {
	return s.mode
}

// Store returns the session's race store.
func (s *Session) Store() *race.Store {
	return s.store
}

// Snapshot returns the current race state.
func (s *Session) Snapshot() race.Snapshot {
	return s.store.Snapshot()
}

// Dispatch applies a race action.
func (s *Session) Dispatch(a race.Action) {
	s.store.Dispatch(a)
}

// HandleKeys turns raw key bits into driving controls. A camera bit toggles the view on its
// rising edge, but only while staging, counting down or racing.
func (s *Session) HandleKeys(keys uint8) vehicle.Controls {
	pressed := keys &^ s.prevKeys
	s.prevKeys = keys

	if pressed&vehicle.KeyCamera != 0 {
		switch s.store.Phase() {
		case race.PhaseStaging, race.PhaseCountdown, race.PhaseRacing:
			s.store.ToggleCamera()
		}
	}
	return vehicle.ControlsFromKeys(keys)
}

// Tick advances the session by one frame: deferred steps first, then the player's car,
// the opponent and finally lap detection.
func (s *Session) Tick(dt float64, c vehicle.Controls) {
	s.sched.Run(s.store.Episode)
	s.driver.Tick(c, dt)
	if s.opponent != nil {
		s.opponent.Tick(dt)
	}
	if s.laps != nil {
		s.laps.Sample()
	}
}

// Close detaches the session's listeners and cancels pending steps.
func (s *Session) Close() {
	if s.tree != nil {
		s.tree.Close()
	}
	s.sched.CancelAll()
	s.log.Debug("session closed", zap.Stringer("mode", s.mode), zap.Uint64("episode", s.store.Episode()))
}
