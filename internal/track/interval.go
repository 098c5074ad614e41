// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package track

// DefaultDeltaMeanMs is the assumed sampling period before two samples exist.
const DefaultDeltaMeanMs = 500.0

// MeanInterval returns the mean delay between consecutive samples in ms.
// With fewer than two samples it returns previous.
func MeanInterval(samples []Sample, previous float64) float64 {
	n := len(samples)
	if n < 2 {
		return previous
	}
	span := samples[n-1].TimestampMs - samples[0].TimestampMs
	return float64(span) / float64(n-1)
}

// IntervalEstimator keeps the running mean sampling period (DeltaMean).
type IntervalEstimator struct {
	initial float64
	mean    float64
}

// NewIntervalEstimator creates an estimator starting at initial ms.
// A non-positive initial value falls back to DefaultDeltaMeanMs.
func NewIntervalEstimator(initial float64) *IntervalEstimator {
	if initial <= 0 {
		initial = DefaultDeltaMeanMs
	}
	return &IntervalEstimator{initial: initial, mean: initial}
}

// Recompute updates the estimate from samples and returns it. The last known
// value is kept while fewer than two samples are available.
func (e *IntervalEstimator) Recompute(samples []Sample) float64 {
	e.mean = MeanInterval(samples, e.mean)
	return e.mean
}

// Mean returns the current estimate in ms.
func (e *IntervalEstimator) Mean() float64 { return e.mean }

// Reset returns the estimate to its initial value.
func (e *IntervalEstimator) Reset() { e.mean = e.initial }
