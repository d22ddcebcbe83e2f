// Package lap counts circuit laps. A lap only counts when the car has passed the far-side
// checkpoint since the previous lap and then crosses the start/finish line within its
// lateral bounds.
package lap

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/race/dragrace/config"
	"github.com/race/dragrace/internal/clock"
	"github.com/race/dragrace/internal/geom"
	"github.com/race/dragrace/internal/race"
)

// FinishLine is a line of constant Z between MinX and MaxX.
type FinishLine struct {
	Z    float64
	MinX float64
	MaxX float64
}

// Crossed reports whether moving from prev to cur crosses the line, in either direction,
// and ends within the lateral bounds.
func (f FinishLine) Crossed(prev, cur geom.Vec3) bool {
	if cur.X < f.MinX || cur.X > f.MaxX {
		return false
	}
	return (prev.Z > f.Z && cur.Z <= f.Z) || (prev.Z < f.Z && cur.Z >= f.Z)
}

// Checkpoint is a rectangular gate region on the far side of the course.
type Checkpoint struct {
	Z         float64
	HalfDepth float64
	MinX      float64
	MaxX      float64
}

// Contains reports whether pos is inside the gate.
func (c Checkpoint) Contains(pos geom.Vec3) bool {
	return pos.X >= c.MinX && pos.X <= c.MaxX && math.Abs(pos.Z-c.Z) < c.HalfDepth
}

// DefaultFinishLine returns the circuit's start/finish line.
func DefaultFinishLine() FinishLine {
	return FinishLine{
		Z:    config.CircuitFinishLineZ,
		MinX: config.CircuitFinishLineMinX,
		MaxX: config.CircuitFinishLineMaxX,
	}
}

// DefaultCheckpoint returns the circuit's checkpoint gate.
func DefaultCheckpoint() Checkpoint {
	return Checkpoint{
		Z:         config.CircuitCheckpointZ,
		HalfDepth: config.CircuitCheckpointHalfDepth,
		MinX:      config.CircuitCheckpointMinX,
		MaxX:      config.CircuitCheckpointMaxX,
	}
}

// initialSample is where the previous position starts each race, just behind the line so the
// first frame cannot register a crossing from the origin.
var initialSample = geom.V3(0, config.CircuitGroundY, 5)

// Detector samples the player's position every tick while racing.
type Detector struct {
	store      *race.Store
	clock      clock.Clock
	log        *zap.Logger
	line       FinishLine
	checkpoint Checkpoint

	episode    uint64
	last       geom.Vec3
	armed      bool
	lapTime    time.Duration
	lastSample time.Time
}

// NewDetector creates a detector for a circuit store.
func NewDetector(store *race.Store, clk clock.Clock, line FinishLine, cp Checkpoint, log *zap.Logger) *Detector {
	d := &Detector{
		store:      store,
		clock:      clk,
		log:        log.Named("lap"),
		line:       line,
		checkpoint: cp,
	}
	d.reset(store.Snapshot())
	return d
}

// Armed reports whether the checkpoint has been passed since the last lap.
func (d *Detector) Armed() bool {
	return d.armed
}

// Sample reads the current pose from the store and updates lap timing and lap completion.
// Time spent outside the racing phase is not counted towards the lap.
func (d *Detector) Sample() {
	snap := d.store.Snapshot()
	if snap.Episode != d.episode {
		d.reset(snap)
	}
	if snap.Phase != race.PhaseRacing {
		d.lastSample = time.Time{}
		return
	}

	now := d.clock.Now()
	if !d.lastSample.IsZero() {
		d.lapTime += now.Sub(d.lastSample)
	}
	d.lastSample = now
	d.store.UpdateLapTime(d.lapTime)

	pos := snap.Position
	if d.checkpoint.Contains(pos) && !d.armed {
		d.armed = true
		d.log.Debug("checkpoint", zap.Int("lap", snap.CurrentLap))
	}

	if d.armed && d.line.Crossed(d.last, pos) {
		d.store.CompleteLap()
		d.armed = false
		d.lapTime = 0
	}
	d.last = pos
}

func (d *Detector) reset(snap race.Snapshot) {
	d.episode = snap.Episode
	d.last = initialSample
	d.armed = false
	d.lapTime = 0
	d.lastSample = snap.RaceStartTime.GetOrZero()
}
