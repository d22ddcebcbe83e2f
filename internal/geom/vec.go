// Package geom holds the small amount of vector math shared by the simulation packages.
package geom

import "math"

// Vec3 is a world-space vector in metres (or metres/second for velocities).
// Y is up; cars drive on the X/Z plane.
type Vec3 struct {
	X float64
	Y float64
	Z float64
}

// V3 is shorthand for building a Vec3.
func V3(x, y, z float64) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// HorizontalLength is the length of the X/Z projection.
func (v Vec3) HorizontalLength() float64 {
	return math.Hypot(v.X, v.Z)
}

// HorizontalDistance is the X/Z distance between two points.
func HorizontalDistance(a, b Vec3) float64 {
	return math.Hypot(a.X-b.X, a.Z-b.Z)
}

// ClampHorizontal rescales the X/Z part of v so its length does not exceed limit.
// Y is left untouched.
func (v Vec3) ClampHorizontal(limit float64) Vec3 {
	l := v.HorizontalLength()
	if l <= limit || l == 0 {
		return v
	}
	k := limit / l
	return Vec3{X: v.X * k, Y: v.Y, Z: v.Z * k}
}

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// KmhPerMps converts metres/second to km/h.
const KmhPerMps = 3.6
