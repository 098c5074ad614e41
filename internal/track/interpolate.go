// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package track

// Fix is an interpolated marker state at a query time.
type Fix struct {
	Point
	Heading     float64 `json:"heading,omitempty"`
	HasHeading  bool    `json:"has_heading"`
	TimestampMs int64   `json:"t_ms"`
}

// PositionAt returns the position on the piecewise-linear path through
// samples at time q (ms). Samples must be in strictly increasing timestamp
// order. It reports false when samples is empty or q lies outside
// [first, last]; there is no extrapolation.
func PositionAt(q int64, samples []Sample) (Point, bool) {
	f, _, ok := interpolate(q, samples, 0)
	return f.Point, ok
}

// Interpolate is PositionAt that also interpolates the heading when both
// ends of the segment carry one.
func Interpolate(q int64, samples []Sample) (Fix, bool) {
	f, _, ok := interpolate(q, samples, 0)
	return f, ok
}

// Interpolator caches the segment of the previous query. Queries with
// non-decreasing times resume the search there; any other query restarts from
// the oldest sample, so results are identical to Interpolate.
type Interpolator struct {
	cursor int
}

// At interpolates samples at q.
func (it *Interpolator) At(q int64, samples []Sample) (Fix, bool) {
	start := it.cursor
	if start >= len(samples) || samples[start].TimestampMs > q {
		start = 0
	}
	f, i, ok := interpolate(q, samples, start)
	if ok {
		it.cursor = i
	}
	return f, ok
}

// Reset forgets the cached segment.
func (it *Interpolator) Reset() { it.cursor = 0 }

// interpolate scans segments from start, which must satisfy
// samples[start].TimestampMs <= q, and returns the fix and segment index.
func interpolate(q int64, samples []Sample, start int) (Fix, int, bool) {
	n := len(samples)
	if n == 0 || q < samples[0].TimestampMs || q > samples[n-1].TimestampMs {
		return Fix{}, 0, false
	}
	if n == 1 {
		return fixOf(samples[0]), 0, true
	}

	for i := start; i < n-1; i++ {
		a, b := samples[i], samples[i+1]
		if q > b.TimestampMs {
			continue
		}
		switch q {
		case a.TimestampMs:
			return fixOf(a), i, true
		case b.TimestampMs:
			return fixOf(b), i, true
		}

		frac := float64(q-a.TimestampMs) / float64(b.TimestampMs-a.TimestampMs)
		f := Fix{
			Point: Point{
				X: lerp(a.X, b.X, frac),
				Y: lerp(a.Y, b.Y, frac),
			},
			TimestampMs: q,
		}
		if a.HasHeading && b.HasHeading {
			f.Heading = lerp(a.Heading, b.Heading, frac)
			f.HasHeading = true
		}
		return f, i, true
	}
	return Fix{}, 0, false
}

func fixOf(s Sample) Fix {
	return Fix{
		Point:       s.Point(),
		Heading:     s.Heading,
		HasHeading:  s.HasHeading,
		TimestampMs: s.TimestampMs,
	}
}

func lerp(a, b, frac float64) float64 {
	return a + frac*(b-a)
}
