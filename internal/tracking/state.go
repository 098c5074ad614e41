// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package tracking runs a live tracking session: it feeds sensor fixes into
// the sample history and answers per-frame marker position queries.
package tracking

// State is the lifecycle state of a Session.
type State string

const (
	// StateStopped means no fixes are accepted.
	StateStopped State = "stopped"
	// StateTracking means the sensor is on and fixes are accepted.
	StateTracking State = "tracking"
)

// ImageVariant selects the marker glyph.
type ImageVariant string

const (
	// VariantPlain is the round marker without direction.
	VariantPlain ImageVariant = "plain"
	// VariantHeading is the arrow marker, used while moving with a heading.
	VariantHeading ImageVariant = "heading"
)

// Asset returns the marker image path for the variant.
func (v ImageVariant) Asset() string {
	if v == VariantHeading {
		return "assets/geolocation_marker_heading.png"
	}
	return "assets/geolocation_marker.png"
}

func variantFor(hasHeading bool, heading float64, hasSpeed bool, speed float64) ImageVariant {
	if hasHeading && heading != 0 && hasSpeed && speed != 0 {
		return VariantHeading
	}
	return VariantPlain
}
