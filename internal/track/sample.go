// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package track holds the bounded sample history of a tracked position and
// interpolates a smooth marker trajectory through it.
package track

import "github.com/paulmach/orb"

// Point is a position in map coordinates (Web Mercator metres).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Orb returns the point as an orb geometry.
func (p Point) Orb() orb.Point {
	return orb.Point{p.X, p.Y}
}

// Sample is one accepted sensor fix. Heading is in radians and already
// unwrapped; it is only meaningful when HasHeading is true.
type Sample struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Heading     float64 `json:"heading,omitempty"`
	HasHeading  bool    `json:"has_heading"`
	TimestampMs int64   `json:"t_ms"`
}

// Point returns the sample position.
func (s Sample) Point() Point {
	return Point{X: s.X, Y: s.Y}
}
