package vehicle

import (
	"github.com/samber/lo"

	"github.com/race/dragrace/config"
	"github.com/race/dragrace/internal/geom"
)

// BoostZone is a circular pad on the track surface.
type BoostZone struct {
	Center geom.Vec3
	Radius float64
}

// Contains reports whether pos lies strictly inside the zone on the X/Z plane.
func (z BoostZone) Contains(pos geom.Vec3) bool {
	return geom.HorizontalDistance(pos, z.Center) < z.Radius
}

// CircuitBoostZones returns the pads of the circuit track.
func CircuitBoostZones() []BoostZone {
	return lo.Map(config.BoostZoneCenters, func(c [2]float64, _ int) BoostZone {
		return BoostZone{Center: geom.V3(c[0], 0, c[1]), Radius: config.BoostZoneRadius}
	})
}

// BoostConfig describes how a boost behaves once triggered.
type BoostConfig struct {
	Multiplier float64
	Duration   float64 // seconds
	Cooldown   float64 // seconds, counted from the end of the boost
}

// DefaultBoostConfig returns the circuit boost tuning.
func DefaultBoostConfig() BoostConfig {
	return BoostConfig{
		Multiplier: config.BoostMultiplier,
		Duration:   config.BoostDuration,
		Cooldown:   config.BoostCooldown,
	}
}

// BoostTracker applies boost zones to one car. A boost fires when the car is inside any
// zone and neither a boost nor its cooldown is running, so staying on or re-entering a pad
// during the cooldown window has no effect.
type BoostTracker struct {
	Zones  []BoostZone
	Config BoostConfig

	active      float64 // seconds of boost left
	cooldown    float64 // seconds of cooldown left
	activations int
}

// NewBoostTracker creates a tracker for zones.
func NewBoostTracker(zones []BoostZone, cfg BoostConfig) *BoostTracker {
	return &BoostTracker{Zones: zones, Config: cfg}
}

// Update advances the timers by dt and triggers a boost if pos is on a pad. It returns the
// multiplier to apply to acceleration and top speed this frame.
func (b *BoostTracker) Update(pos geom.Vec3, dt float64) float64 {
	if b.active > 0 {
		b.active -= dt
		if b.active <= 0 {
			b.active = 0
			b.cooldown = b.Config.Cooldown
		}
	} else if b.cooldown > 0 {
		b.cooldown = max(0, b.cooldown-dt)
	}

	if b.active == 0 && b.cooldown == 0 && b.inZone(pos) {
		b.active = b.Config.Duration
		b.activations++
	}
	return b.Multiplier()
}

// Multiplier returns the current boost factor, 1 when no boost is running.
func (b *BoostTracker) Multiplier() float64 {
	if b.active > 0 {
		return b.Config.Multiplier
	}
	return 1
}

// Active reports whether a boost is running.
func (b *BoostTracker) Active() bool {
	return b.active > 0
}

// Activations counts boosts triggered since the last Reset.
func (b *BoostTracker) Activations() int {
	return b.activations
}

// Reset clears all timers.
func (b *BoostTracker) Reset() {
	b.active = 0
	b.cooldown = 0
	b.activations = 0
}

func (b *BoostTracker) inZone(pos geom.Vec3) bool {
	return lo.SomeBy(b.Zones, func(z BoostZone) bool {
		return z.Contains(pos)
	})
}
