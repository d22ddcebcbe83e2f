// Package race owns the authoritative race state: game phase, the start-light sequence,
// launch and reaction timing, finish results, lap bookkeeping and win determination.
//
// The Store is a plain context object passed to every component that reads or mutates
// the race. It is not safe for concurrent use: the simulation runs on a single frame loop
// and every mutation goes through a named action. Actions invoked from a phase that does
// not permit them are ignored, as are duplicate terminal events (a second finish or
// launch). Deferred callbacks that fire after a reset therefore cannot corrupt a newer
// episode.
package race

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/aarondl/opt/null"
	"go.uber.org/zap"

	"github.com/race/dragrace/config"
	"github.com/race/dragrace/internal/clock"
	"github.com/race/dragrace/internal/geom"
)

// Rand is the random source used for cosmetic values (opponent reaction time).
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
}

// Listener is called synchronously after every action that changed the state.
type Listener func(prev, next Snapshot)

type listenerEntry struct {
	id int
	fn Listener
}

// Store holds the race state for one session.
type Store struct {
	mode      Mode
	totalLaps int
	state     Snapshot

	clock clock.Clock
	rnd   Rand
	log   *zap.Logger

	listeners      []listenerEntry
	nextListenerID int
}

// Option configures a Store.
type Option func(s *Store)

// WithClock sets the timestamp source. Defaults to the system clock.
func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// WithRand sets the random source. Defaults to an unseeded PCG.
func WithRand(r Rand) Option {
	return func(s *Store) {
		s.rnd = r
	}
}

// WithLogger sets the logger; the store logs under the "race" name.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// WithTotalLaps sets the circuit race length.
func WithTotalLaps(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.totalLaps = n
		}
	}
}

// NewStore creates a store in the menu phase.
func NewStore(mode Mode, opts ...Option) *Store {
	s := &Store{
		mode:      mode,
		totalLaps: config.CircuitTotalLaps,
		clock:     clock.System{},
		rnd:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("race")
	s.state = s.initialState(0, CameraChase)
	return s
}

// Mode returns the race variant.
func (s *Store) Mode() Mode {
	return s.mode
}

// Episode returns the current episode id. It changes whenever a new race starts or the
// race is reset; deferred work compares it before acting.
func (s *Store) Episode() uint64 {
	return s.state.Episode
}

// Phase returns the current phase.
func (s *Store) Phase() Phase {
	return s.state.Phase
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	return s.state.clone()
}

// Subscribe registers fn for state changes and returns a function that removes it.
func (s *Store) Subscribe(fn Listener) (cancel func()) {
	id := s.nextListenerID
	s.nextListenerID++
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: fn})
	return func() {
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// StartStaging begins a new drag episode: results are cleared, both cars return to the
// line with zero velocity and the tree goes dark.
func (s *Store) StartStaging() {
	if !s.enter("start_staging", ModeDrag, PhaseStaging) {
		return
	}
	s.update(func(st *Snapshot) {
		*st = s.initialState(st.Episode+1, st.CameraMode)
		st.Phase = PhaseStaging
	})
	s.log.Debug("staging", zap.Uint64("episode", s.state.Episode))
}

// StartCountdown lights the stage bulbs.
func (s *Store) StartCountdown() {
	if !s.enter("start_countdown", ModeDrag, PhaseCountdown) {
		return
	}
	s.update(func(st *Snapshot) {
		st.Phase = PhaseCountdown
		st.TreeState = config.TreeStage
	})
}

// AdvanceTree lights the next yellow. Only valid while the tree is between stage and the
// last yellow.
func (s *Store) AdvanceTree() {
	if s.state.Phase != PhaseCountdown ||
		s.state.TreeState < config.TreeStage || s.state.TreeState >= config.TreeLastYellow {
		s.ignore("advance_tree")
		return
	}
	s.update(func(st *Snapshot) {
		st.TreeState++
	})
}

// GoGreen switches the tree to green and starts the race clock.
func (s *Store) GoGreen() {
	if s.state.TreeState != config.TreeLastYellow {
		s.ignore("go_green")
		return
	}
	if !s.enter("go_green", ModeDrag, PhaseRacing) {
		return
	}
	now := s.clock.Now()
	s.update(func(st *Snapshot) {
		st.Phase = PhaseRacing
		st.TreeState = config.TreeGreen
		st.GreenLightTime = null.From(now)
	})
}

// PlayerLaunch records the player's first throttle input of the episode. Before green it
// is a false start; after green the reaction time is the delay since the light.
func (s *Store) PlayerLaunch() {
	st := s.state
	if s.mode != ModeDrag || st.Launched() {
		s.ignore("player_launch")
		return
	}
	now := s.clock.Now()
	switch st.Phase {
	case PhaseCountdown:
		s.update(func(st *Snapshot) {
			st.ReactionTime = null.From(config.FalseStartReaction)
			st.PlayerLaunchTime = null.From(now)
		})
		s.log.Debug("false start", zap.Uint64("episode", st.Episode))
	case PhaseRacing:
		green, ok := st.GreenLightTime.Get()
		if !ok {
			s.ignore("player_launch")
			return
		}
		s.update(func(st *Snapshot) {
			st.ReactionTime = null.From(now.Sub(green).Seconds())
			st.PlayerLaunchTime = null.From(now)
		})
	default:
		s.ignore("player_launch")
	}
}

// SetPlayerFinished publishes the player's time slip and decides the race.
func (s *Store) SetPlayerFinished(elapsed, trapSpeed float64) {
	st := s.state
	if s.mode != ModeDrag || st.Phase != PhaseRacing || st.Winner != WinnerNone || st.ElapsedTime.IsValue() {
		s.ignore("player_finished")
		return
	}
	elapsed = math.Max(0, elapsed)
	trapSpeed = math.Max(0, trapSpeed)

	winner := WinnerPlayer
	switch {
	case st.FalseStart():
		winner = WinnerOpponent
	case st.OpponentFinished:
		// exact ties go to the opponent
		if !(elapsed < st.OpponentElapsedTime.GetOrZero()) {
			winner = WinnerOpponent
		}
	}

	s.update(func(st *Snapshot) {
		st.ElapsedTime = null.From(elapsed)
		st.TrapSpeed = null.From(trapSpeed)
		st.Winner = winner
		st.Phase = PhaseFinished
	})
	s.log.Debug("player finished",
		zap.Float64("et", elapsed),
		zap.Float64("trap", trapSpeed),
		zap.Stringer("winner", winner))
}

// SetOpponentFinished publishes the opponent's time slip. The race stays open while the
// player can still post a strictly smaller E.T.; otherwise the opponent wins right away.
func (s *Store) SetOpponentFinished(elapsed, trapSpeed float64) {
	st := s.state
	if s.mode != ModeDrag || st.Phase != PhaseRacing || st.Winner != WinnerNone || st.OpponentFinished {
		s.ignore("opponent_finished")
		return
	}
	elapsed = math.Max(0, elapsed)
	trapSpeed = math.Max(0, trapSpeed)
	reaction := config.OpponentReactionMin + s.rnd.Float64()*config.OpponentReactionSpread

	s.update(func(st *Snapshot) {
		st.OpponentElapsedTime = null.From(elapsed)
		st.OpponentTrapSpeed = null.From(trapSpeed)
		st.OpponentReactionTime = null.From(reaction)
		st.OpponentFinished = true
	})
	s.log.Debug("opponent finished",
		zap.Float64("et", elapsed),
		zap.Float64("trap", trapSpeed),
		zap.Bool("player_false_start", st.FalseStart()))
	s.SettleOpponentLead()
}

// SettleOpponentLead hands the race to a finished opponent once the player can no longer
// post a strictly smaller E.T. The driver calls it every tick.
func (s *Store) SettleOpponentLead() {
	st := s.state
	if s.mode != ModeDrag || st.Phase != PhaseRacing || st.Winner != WinnerNone || !st.OpponentFinished {
		return
	}
	if launch, ok := st.PlayerLaunchTime.Get(); ok && !st.FalseStart() {
		if s.clock.Now().Sub(launch).Seconds() < st.OpponentElapsedTime.GetOrZero() {
			return
		}
	}

	s.update(func(st *Snapshot) {
		st.Winner = WinnerOpponent
		st.Phase = PhaseFinished
	})
	s.log.Debug("opponent lead settled",
		zap.Bool("player_launched", st.Launched()),
		zap.Bool("player_false_start", st.FalseStart()))
}

// StartRace begins a new circuit episode. The best lap carries over from earlier races.
func (s *Store) StartRace() {
	if s.state.Phase == PhasePaused {
		s.ignore("start_race")
		return
	}
	if !s.enter("start_race", ModeCircuit, PhaseRacing) {
		return
	}
	now := s.clock.Now()
	s.update(func(st *Snapshot) {
		best := st.BestLapTime
		*st = s.initialState(st.Episode+1, st.CameraMode)
		st.Phase = PhaseRacing
		st.RaceStartTime = null.From(now)
		st.BestLapTime = best
	})
}

// PauseRace freezes a circuit race.
func (s *Store) PauseRace() {
	if !s.enter("pause_race", ModeCircuit, PhasePaused) {
		return
	}
	s.update(func(st *Snapshot) {
		st.Phase = PhasePaused
	})
}

// ResumeRace continues a paused circuit race.
func (s *Store) ResumeRace() {
	if s.state.Phase != PhasePaused {
		s.ignore("resume_race")
		return
	}
	if !s.enter("resume_race", ModeCircuit, PhaseRacing) {
		return
	}
	s.update(func(st *Snapshot) {
		st.Phase = PhaseRacing
	})
}

// FinishRace ends a circuit race early.
func (s *Store) FinishRace() {
	if !s.enter("finish_race", ModeCircuit, PhaseFinished) {
		return
	}
	s.update(func(st *Snapshot) {
		st.Phase = PhaseFinished
	})
}

// UpdateLapTime sets the running time of the current lap.
func (s *Store) UpdateLapTime(d time.Duration) {
	if s.mode != ModeCircuit || s.state.Phase != PhaseRacing {
		s.ignore("update_lap_time")
		return
	}
	s.update(func(st *Snapshot) {
		st.CurrentLapTime = max(d, 0)
	})
}

// CompleteLap banks the current lap and either starts the next one or, on the last lap,
// finishes the race.
func (s *Store) CompleteLap() {
	if s.mode != ModeCircuit || s.state.Phase != PhaseRacing {
		s.ignore("complete_lap")
		return
	}
	s.update(func(st *Snapshot) {
		lap := LapRecord{Lap: st.CurrentLap, Time: st.CurrentLapTime}
		st.LapTimes = append(st.LapTimes, lap)
		if best, ok := st.BestLapTime.Get(); !ok || lap.Time < best {
			st.BestLapTime = null.From(lap.Time)
		}
		if st.CurrentLap >= st.TotalLaps {
			st.Phase = PhaseFinished
			return
		}
		st.CurrentLap++
		st.CurrentLapTime = 0
	})
	s.log.Debug("lap complete",
		zap.Int("lap", len(s.state.LapTimes)),
		zap.Stringer("phase", s.state.Phase))
}

// ResetRace returns to the menu with default values, clearing the best lap.
func (s *Store) ResetRace() {
	s.update(func(st *Snapshot) {
		*st = s.initialState(st.Episode+1, st.CameraMode)
	})
}

// ToggleCamera flips between chase and cockpit views.
func (s *Store) ToggleCamera() {
	s.update(func(st *Snapshot) {
		if st.CameraMode == CameraChase {
			st.CameraMode = CameraCockpit
		} else {
			st.CameraMode = CameraChase
		}
	})
}

// SetCameraMode selects a camera view.
func (s *Store) SetCameraMode(m CameraMode) {
	s.update(func(st *Snapshot) {
		st.CameraMode = m
	})
}

// UpdateVehicle publishes the player car's pose. Speed is derived from the horizontal
// velocity and cannot be set on its own.
func (s *Store) UpdateVehicle(pos geom.Vec3, rotation float64, vel geom.Vec3) {
	s.update(func(st *Snapshot) {
		st.Position = pos
		st.Rotation = rotation
		st.Velocity = vel
		st.Speed = vel.HorizontalLength() * geom.KmhPerMps
	})
}

// SetOpponent publishes the opponent's position and speed in km/h.
func (s *Store) SetOpponent(pos geom.Vec3, speedKmh float64) {
	s.update(func(st *Snapshot) {
		st.OpponentPosition = pos
		st.OpponentSpeed = geom.Clamp(speedKmh, 0, config.OpponentMaxSpeed*geom.KmhPerMps)
	})
}

func (s *Store) initialState(episode uint64, camera CameraMode) Snapshot {
	st := Snapshot{
		Mode:       s.mode,
		Episode:    episode,
		Phase:      PhaseMenu,
		CurrentLap: 1,
		TotalLaps:  s.totalLaps,
		CameraMode: camera,
	}
	switch s.mode {
	case ModeDrag:
		st.Position = geom.V3(config.PlayerStartX, config.PlayerGroundY, 0)
		st.OpponentPosition = geom.V3(config.OpponentStartX, config.OpponentGroundY, 0)
	case ModeCircuit:
		st.Position = geom.V3(0, config.CircuitGroundY, 0)
		st.Rotation = config.CircuitStartHeading
	}
	return st
}

// enter checks that the store runs in mode and that the current phase may move to `to`.
func (s *Store) enter(action string, mode Mode, to Phase) bool {
	if s.mode != mode || !Allowed(s.mode, s.state.Phase, to) {
		s.ignore(action)
		return false
	}
	return true
}

func (s *Store) ignore(action string) {
	s.log.Debug("ignored action",
		zap.String("action", action),
		zap.Stringer("phase", s.state.Phase),
		zap.Uint64("episode", s.state.Episode))
}

func (s *Store) update(fn func(st *Snapshot)) {
	prev := s.state.clone()
	fn(&s.state)
	for _, l := range append([]listenerEntry(nil), s.listeners...) {
		l.fn(prev, s.state.clone())
	}
}
