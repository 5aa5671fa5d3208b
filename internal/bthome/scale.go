package bthome

import "cloudpico-bthome/internal/sensor"

// Scale converts a sample to fixed point at the given resolution (100 for
// hundredths, 1 for whole units):
//
//	Integer*resolution + Fraction/(1_000_000/resolution)
//
// The fractional contribution is truncated toward zero, so the result is the
// same for the same input on every call.
func Scale(s sensor.Sample, resolution int64) int64 {
	return int64(s.Integer)*resolution + int64(s.Fraction)/(sensor.FractionScale/resolution)
}

// Clamp saturates v to the range of f.
func Clamp(v int64, f Format) int64 {
	if lo := f.Min(); v < lo {
		return lo
	}
	if hi := f.Max(); v > hi {
		return hi
	}
	return v
}

// ScaleClamp scales s at f's resolution and saturates it to f's byte width.
// clamped reports whether saturation changed the value.
func ScaleClamp(s sensor.Sample, f Format) (v int64, clamped bool) {
	raw := Scale(s, f.Resolution)
	v = Clamp(raw, f)
	return v, v != raw
}
