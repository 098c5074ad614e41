// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package heading handles circular heading values so they can be
// interpolated linearly between consecutive sensor samples.
package heading

import "math"

const twoPi = 2 * math.Pi

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * 360.0 / twoPi
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * twoPi / 360.0
}

// Mod2Pi folds n into [0, 2π), also for negative values.
func Mod2Pi(n float64) float64 {
	m := math.Mod(math.Mod(n, twoPi)+twoPi, twoPi)
	// math.Mod can round a tiny negative value up to exactly 2π.
	if m >= twoPi {
		return 0
	}
	return m
}

// Unwrap returns raw shifted by a multiple of 2π so that it lies within π of
// previous. previous is an already unwrapped heading and may be outside
// [0, 2π).
//
//	diff = raw - mod2pi(previous)
//	if |diff| > π, diff takes the shorter arc
//	result = previous + diff
func Unwrap(raw, previous float64) float64 {
	diff := raw - Mod2Pi(previous)
	if math.Abs(diff) > math.Pi {
		sign := 1.0
		if diff < 0 {
			sign = -1.0
		}
		diff = -sign * (twoPi - math.Abs(diff))
	}
	return previous + diff
}

// Unwrapper keeps the last unwrapped heading of a sample stream.
// The zero value has no previous heading.
type Unwrapper struct {
	prev float64
	have bool
}

// Next unwraps raw against the previous heading. When ok is false the sample
// carried no heading: the state is reset and Next reports (0, false), so the
// next real heading starts a fresh sequence.
func (u *Unwrapper) Next(raw float64, ok bool) (float64, bool) {
	if !ok {
		u.Reset()
		return 0, false
	}
	if !u.have {
		u.prev, u.have = raw, true
		return raw, true
	}
	u.prev = Unwrap(raw, u.prev)
	return u.prev, true
}

// Reset forgets the previous heading.
func (u *Unwrapper) Reset() {
	u.prev, u.have = 0, false
}
